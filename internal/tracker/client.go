// Package tracker is the external collaborator boundary: the issue
// tracker's REST/GraphQL client, specified here only by the interface the
// core consumes (spec.md §1, §6). Authentication/token acquisition is the
// caller's concern — Client implementations accept a pre-authenticated
// http.Client or bearer token.
package tracker

import (
	"context"

	"github.com/boatri/linear-agent/internal/activity"
	"github.com/boatri/linear-agent/internal/plan"
)

// Client is the tracker surface the core depends on.
type Client interface {
	CreateActivity(ctx context.Context, act activity.Activity) error
	UpdateSessionPlan(ctx context.Context, sessionID string, items []plan.SnapshotItem) error
}
