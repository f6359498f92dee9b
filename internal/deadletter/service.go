package deadletter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/helpflowai/helpflow/internal/queue"
)

// Service implements the dead letter operations over a Store.
type Service struct {
	store  Store
	queue  Enqueuer
	logger *slog.Logger
}

func NewService(log *slog.Logger, store Store, q Enqueuer) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		store:  store,
		queue:  q,
		logger: log.With(slog.String("service", "deadletter")),
	}
}

// Add persists a terminally failed job. It never surfaces an error:
// the worker handing the job over must not crash because the dead
// letter write failed, so store errors are logged and swallowed.
func (s *Service) Add(ctx context.Context, job *queue.Job, cause error, failureCount int) {
	if job == nil {
		return
	}
	now := time.Now().UTC()
	entry := Entry{
		ID:             uuid.NewString(),
		OriginalJobID:  job.ID,
		Job:            job,
		Error:          fmt.Sprint(cause),
		FailureCount:   failureCount,
		FirstFailureAt: now,
		LastFailureAt:  now,
	}
	if err := s.store.Insert(ctx, entry); err != nil {
		s.logger.Error("dead letter write failed, entry lost",
			slog.String("job_id", job.ID),
			slog.String("job_key", job.Key),
			slog.Any("write_error", err),
			slog.String("job_error", entry.Error),
		)
		return
	}
	s.logger.Warn("job moved to dead letter queue",
		slog.String("entry_id", entry.ID),
		slog.String("job_id", job.ID),
		slog.String("tenant_id", job.TenantID),
		slog.Int("failure_count", failureCount),
	)
}

// ListPending returns entries awaiting manual review.
func (s *Service) ListPending(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	entries, err := s.store.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list dead letters: %w", err)
	}
	return entries, nil
}

// Retry re-admits the original payload as a fresh job and removes the
// entry. It reports false when the entry does not exist.
func (s *Service) Retry(ctx context.Context, entryID string) (bool, error) {
	entry, found, err := s.store.Get(ctx, entryID)
	if err != nil {
		return false, fmt.Errorf("load dead letter entry: %w", err)
	}
	if !found {
		return false, nil
	}

	orig := entry.Job
	job := queue.NewJob(orig.Key, orig.TenantID, orig.ConversationID, orig.CustomerAddress,
		orig.MessageText, orig.Tier, orig.IsFirstMessage, orig.ConversationLength)
	if !s.queue.Enqueue(job) {
		return false, fmt.Errorf("job key %s is already pending", orig.Key)
	}

	if _, err := s.store.Delete(ctx, entryID); err != nil {
		// The retry is already admitted; a stale entry is the lesser
		// problem and an operator can discard it.
		s.logger.Error("failed to delete retried dead letter entry",
			slog.String("entry_id", entryID),
			slog.Any("error", err),
		)
	}
	s.logger.Info("dead letter entry retried",
		slog.String("entry_id", entryID),
		slog.String("new_job_id", job.ID),
	)
	return true, nil
}

// Discard removes the entry without retrying.
func (s *Service) Discard(ctx context.Context, entryID string) (bool, error) {
	deleted, err := s.store.Delete(ctx, entryID)
	if err != nil {
		return false, fmt.Errorf("discard dead letter entry: %w", err)
	}
	return deleted, nil
}

// ClearAll removes every entry. Destructive; callers gate it behind
// explicit confirmation.
func (s *Service) ClearAll(ctx context.Context) (int, error) {
	removed, err := s.store.DeleteAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("clear dead letters: %w", err)
	}
	return removed, nil
}
