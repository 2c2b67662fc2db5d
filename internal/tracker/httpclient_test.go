package tracker

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/boatri/linear-agent/internal/activity"
	"github.com/boatri/linear-agent/internal/plan"
)

func TestHTTPClient_CreateActivityPostsExpectedBody(t *testing.T) {
	var gotPath, gotAuth, gotIdempotency string
	var gotBody createActivityRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotIdempotency = r.Header.Get("Idempotency-Key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	client := New(srv.URL, WithBearerToken("tok-123"))
	err := client.CreateActivity(t.Context(), activity.Activity{
		AgentSessionID: "sess-1",
		Content:        activity.Content{Type: activity.TypeResponse, Body: "hi"},
	})
	require.NoError(t, err)
	require.Equal(t, "/activities", gotPath)
	require.Equal(t, "Bearer tok-123", gotAuth)
	require.NotEmpty(t, gotIdempotency)
	require.Equal(t, "sess-1", gotBody.AgentSessionID)
	require.Equal(t, "hi", gotBody.Content.Body)
}

func TestHTTPClient_UpdateSessionPlanPostsToSessionPath(t *testing.T) {
	var gotPath string
	var gotBody updateSessionPlanRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := New(srv.URL)
	items := []plan.SnapshotItem{{Content: "A", Status: "pending"}}
	err := client.UpdateSessionPlan(t.Context(), "sess-7", items)
	require.NoError(t, err)
	require.Equal(t, "/sessions/sess-7/plan", gotPath)
	require.Equal(t, items, gotBody.Plan)
}

func TestHTTPClient_NonSuccessStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := New(srv.URL)
	err := client.CreateActivity(t.Context(), activity.Activity{})
	require.Error(t, err)
}
