package sync

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ironlog/ironlog/internal/db"
	"github.com/ironlog/ironlog/internal/schema"
)

// Syncer runs the two halves of a sync cycle.
type Syncer interface {
	// Push sends every dirty row to the authority and marks the
	// acknowledged ones clean.
	//
	// It is a no-op returning a zero result when there is no identity or
	// nothing is dirty. Rows the authority does not acknowledge stay dirty
	// and are retried on the next cycle.
	Push(ctx context.Context) (PushResult, error)

	// Pull fetches every row changed since the cursor, merges each through
	// Resolve in one transaction, then advances the cursor to the returned
	// server time.
	//
	// It is a no-op returning a zero result when there is no identity.
	Pull(ctx context.Context) (PullResult, error)
}

// Remote is the authority's RPC surface.
type Remote interface {
	Push(ctx context.Context, req PushRequest) (*PushResponse, error)
	Pull(ctx context.Context, since time.Time) (*PullResponse, error)
}

// Identity reports the authenticated account, if any.
type Identity interface {
	Current(ctx context.Context) (userID string, ok bool)
}

// PushRequest is the body of a push call.
type PushRequest struct {
	Payload db.Snapshot `json:"payload"`
}

// PushResponse is the authority's acknowledgment. A table missing from
// SyncedIDs means the authority did not report ids for it.
type PushResponse struct {
	ServerTime *time.Time
	SyncedIDs  map[schema.Table][]string
}

// PullResponse carries the changed rows per table, still encoded.
type PullResponse struct {
	ServerTime *time.Time
	Rows       map[schema.Table][]json.RawMessage
}

// PushResult summarizes a push.
type PushResult struct {
	// Pushed is the number of rows sent.
	Pushed int
	// Accepted is the number of rows marked clean.
	Accepted int
	// ServerTime is zero when nothing was sent.
	ServerTime time.Time
}

// PullResult summarizes a pull.
type PullResult struct {
	// Pulled is the number of rows received across all tables.
	Pulled int
	// Applied rows replaced (or created) the local copy.
	Applied int
	// Skipped rows lost the conflict comparison or were identical.
	Skipped int
	// ServerTime is zero when no pull ran.
	ServerTime time.Time
}
