package store

import (
	"context"
	"time"

	"github.com/abhisek/tutord/internal/errs"
	"github.com/abhisek/tutord/internal/learner"
)

// ErrStale is returned by Save when the stored profile revision no longer
// matches the one the caller loaded. Callers reload and re-apply.
var ErrStale = errs.Conflict("stale profile revision")

// Event is one applied mutation in a learner's append-only audit log.
type Event struct {
	Sequence  int64          `json:"sequence"`
	LearnerID string         `json:"learner_id"`
	Kind      string         `json:"kind"`
	Topic     string         `json:"topic,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// QueryOpts configures event queries.
type QueryOpts struct {
	Limit int   // max results (0 = unlimited)
	After int64 // sequence > After
}

// ProfileStore persists learner profiles.
type ProfileStore interface {
	// Load returns the stored profile. It fails with errs.ErrNotFound when
	// the learner has never been saved.
	Load(ctx context.Context, learnerID string) (*learner.Profile, error)

	// Save writes p and appends events in one atomic step. A profile with
	// revision 0 must not exist yet; otherwise the stored revision must equal
	// p.Revision. On success p.Revision is incremented. On ErrStale nothing
	// is written.
	Save(ctx context.Context, p *learner.Profile, events ...Event) error

	// Events returns a learner's events, newest first.
	Events(ctx context.Context, learnerID string, opts QueryOpts) ([]Event, error)

	// List returns every stored learner ID, sorted.
	List(ctx context.Context) ([]string, error)

	Close() error
}
