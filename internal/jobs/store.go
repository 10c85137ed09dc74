// Package jobs tracks asynchronous generation work: a TTL-bounded store of
// job records, a runner that executes work detached from the caller, and a
// poller that waits for a job to settle.
package jobs

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"

	"faceswap/internal/domain"
)

const (
	// DefaultTTL bounds how long a job record is readable after creation.
	DefaultTTL = time.Hour
	// DefaultTombstoneTTL is how long an expired job is remembered as expired.
	DefaultTombstoneTTL = 24 * time.Hour
)

// Store holds job records. Implementations must:
//   - reject Put over a terminal record with domain.ErrJobFinalized,
//   - reject a terminal Put for a missing record with domain.ErrNotFound,
//   - return domain.ErrNotFound from Get once the TTL has elapsed, or
//     domain.ErrJobExpired while a tombstone is still held.
type Store interface {
	Put(ctx context.Context, job *domain.Job) error
	Get(ctx context.Context, id string) (*domain.Job, error)
	Delete(ctx context.Context, id string) error
	Sweep(ctx context.Context, now time.Time) (int, error)
}

// NewJobID returns a lexically sortable id: a millisecond timestamp followed
// by a random suffix.
func NewJobID() string {
	return ulid.Make().String()
}
