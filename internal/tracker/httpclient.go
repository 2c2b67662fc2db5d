package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/boatri/linear-agent/internal/activity"
	"github.com/boatri/linear-agent/internal/plan"
)

// Option configures an HTTPClient.
//
// Grounded on runtime/a2a/httpclient/client.go's functional-options
// construction.
type Option func(*HTTPClient)

// HTTPClient implements Client over the tracker's REST API.
type HTTPClient struct {
	baseURL string
	http    *http.Client
	headers http.Header
}

// WithHTTPClient overrides the underlying *http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *HTTPClient) { cl.http = c }
}

// WithBearerToken attaches an Authorization: Bearer header to every request.
func WithBearerToken(token string) Option {
	return func(cl *HTTPClient) {
		if cl.headers == nil {
			cl.headers = make(http.Header)
		}
		cl.headers.Set("Authorization", "Bearer "+token)
	}
}

// New constructs an HTTPClient posting to baseURL.
func New(baseURL string, opts ...Option) *HTTPClient {
	cl := &HTTPClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
		headers: make(http.Header),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(cl)
		}
	}
	return cl
}

var _ Client = (*HTTPClient)(nil)

type createActivityRequest struct {
	AgentSessionID string           `json:"agentSessionId"`
	Content        activity.Content `json:"content"`
	Ephemeral      bool             `json:"ephemeral,omitempty"`
}

// CreateActivity implements Client.
func (c *HTTPClient) CreateActivity(ctx context.Context, act activity.Activity) error {
	body := createActivityRequest{
		AgentSessionID: act.AgentSessionID,
		Content:        act.Content,
		Ephemeral:      act.Ephemeral,
	}
	return c.post(ctx, "/activities", body)
}

type updateSessionPlanRequest struct {
	Plan []plan.SnapshotItem `json:"plan"`
}

// UpdateSessionPlan implements Client.
func (c *HTTPClient) UpdateSessionPlan(ctx context.Context, sessionID string, items []plan.SnapshotItem) error {
	return c.post(ctx, "/sessions/"+sessionID+"/plan", updateSessionPlanRequest{Plan: items})
}

func (c *HTTPClient) post(ctx context.Context, path string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("tracker: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("tracker: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", uuid.NewString())
	for k, vs := range c.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("tracker: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("tracker: unexpected status %d from %s", resp.StatusCode, path)
	}
	return nil
}
