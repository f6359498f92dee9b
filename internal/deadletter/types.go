// Package deadletter is the durable holding area for jobs that
// exhausted their attempt budget. Entries wait for a human decision;
// there is no automatic expiry, because silently dropping a failed
// customer-facing reply is not acceptable.
package deadletter

import (
	"context"
	"time"

	"github.com/helpflowai/helpflow/internal/queue"
)

// Entry is one terminally failed job.
type Entry struct {
	ID             string     `json:"id"`
	OriginalJobID  string     `json:"original_job_id"`
	Job            *queue.Job `json:"job"`
	Error          string     `json:"error"`
	FailureCount   int        `json:"failure_count"`
	FirstFailureAt time.Time  `json:"first_failure_at"`
	LastFailureAt  time.Time  `json:"last_failure_at"`
}

// Store persists dead letter entries.
type Store interface {
	Insert(ctx context.Context, entry Entry) error
	List(ctx context.Context, limit int) ([]Entry, error)
	Get(ctx context.Context, id string) (Entry, bool, error)
	Delete(ctx context.Context, id string) (bool, error)
	DeleteAll(ctx context.Context) (int, error)
}

// Enqueuer re-admits retried jobs; satisfied by queue.PriorityQueue.
type Enqueuer interface {
	Enqueue(job *queue.Job) bool
}
