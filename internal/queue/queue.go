package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const tierCount = 4

// retryBackoff delays re-admission of a failed job whose class opted
// into retries.
const retryBackoff = 2 * time.Second

// Counts is a snapshot of queue depth by state.
type Counts struct {
	Waiting   int `json:"waiting"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Delayed   int `json:"delayed"`
}

// Health combines liveness thresholds with the counts snapshot.
type Health struct {
	IsHealthy bool   `json:"is_healthy"`
	Counts    Counts `json:"counts"`
}

type doneRecord struct {
	jobID      string
	failed     bool
	finishedAt time.Time
}

// PriorityQueue is a strict-priority, multi-level in-process queue.
// Across tiers a pending urgent job is always served before any lower
// tier, regardless of enqueue order; within a tier admission order is
// preserved. Admission is idempotent per job key while the key is
// pending, active or delayed.
//
// The queue imposes no depth bound of its own: depth is surfaced via
// Counts so an operator or control loop can react, rather than the
// queue silently throttling intake.
type PriorityQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	tiers  [tierCount][]*Job
	keys   map[string]struct{}
	busy   map[string]int // conversations with an in-flight job
	active int
	done   []doneRecord
	paused bool
	closed bool

	waitingAlert int
	failedAlert  int
	logger       *slog.Logger
}

// New creates an empty queue. waitingAlert/failedAlert are the
// unhealthy thresholds reported by GetHealth.
func New(log *slog.Logger, waitingAlert, failedAlert int) *PriorityQueue {
	if log == nil {
		log = slog.Default()
	}
	if waitingAlert <= 0 {
		waitingAlert = 100
	}
	if failedAlert <= 0 {
		failedAlert = 10
	}
	q := &PriorityQueue{
		keys:         map[string]struct{}{},
		busy:         map[string]int{},
		waitingAlert: waitingAlert,
		failedAlert:  failedAlert,
		logger:       log.With(slog.String("component", "queue")),
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Enqueue admits a job. A second admission with a key already pending,
// active or delayed is a no-op: the webhook handler retries its own
// enqueue call on transient errors and must not create duplicates.
// Enqueue never blocks on processing.
func (q *PriorityQueue) Enqueue(job *Job) bool {
	if job == nil || job.Tier < 0 || int(job.Tier) >= tierCount {
		return false
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	if job.Key != "" {
		if _, exists := q.keys[job.Key]; exists {
			q.logger.Debug("duplicate enqueue ignored", slog.String("job_key", job.Key))
			return false
		}
		q.keys[job.Key] = struct{}{}
	}
	q.tiers[job.Tier] = append(q.tiers[job.Tier], job)
	q.cond.Broadcast()
	return true
}

// Dequeue blocks until a job is available (or ctx is done / the queue
// closed) and returns the highest-priority admissible job. Jobs whose
// conversation already has an in-flight job are skipped so one
// customer's messages are answered in arrival order.
func (q *PriorityQueue) Dequeue(ctx context.Context) *Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	stop := context.AfterFunc(ctx, func() {
		q.mu.Lock()
		q.cond.Broadcast()
		q.mu.Unlock()
	})
	defer stop()

	for {
		if q.closed || ctx.Err() != nil {
			return nil
		}
		if !q.paused {
			if job := q.takeLocked(); job != nil {
				return job
			}
		}
		q.cond.Wait()
	}
}

func (q *PriorityQueue) takeLocked() *Job {
	for tier := 0; tier < tierCount; tier++ {
		for i, job := range q.tiers[tier] {
			if q.busy[job.ConversationID] > 0 {
				continue
			}
			q.tiers[tier] = append(q.tiers[tier][:i], q.tiers[tier][i+1:]...)
			q.busy[job.ConversationID]++
			q.active++
			return job
		}
	}
	return nil
}

// Complete marks an active job finished. Terminal jobs (success, or
// failure with the attempt budget spent) release their key; a job
// with budget left is re-admitted to its tier after a short backoff
// and counted as delayed meanwhile.
func (q *PriorityQueue) Complete(job *Job, failed bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.releaseLocked(job)

	if failed && job.Attempts < job.MaxAttempts {
		time.AfterFunc(retryBackoff, func() { q.readmit(job) })
		return
	}
	if job.Key != "" {
		delete(q.keys, job.Key)
	}
	q.done = append(q.done, doneRecord{jobID: job.ID, failed: failed, finishedAt: time.Now()})
	q.cond.Broadcast()
}

func (q *PriorityQueue) releaseLocked(job *Job) {
	q.active--
	if q.busy[job.ConversationID] <= 1 {
		delete(q.busy, job.ConversationID)
	} else {
		q.busy[job.ConversationID]--
	}
}

func (q *PriorityQueue) readmit(job *Job) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.tiers[job.Tier] = append(q.tiers[job.Tier], job)
	q.cond.Broadcast()
}

// Pause stops dequeuing without losing admitted jobs.
func (q *PriorityQueue) Pause() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.paused = true
}

// Resume restarts dequeuing.
func (q *PriorityQueue) Resume() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.paused = false
	q.cond.Broadcast()
}

// Paused reports whether dequeuing is stopped.
func (q *PriorityQueue) Paused() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.paused
}

// Close wakes all waiters; subsequent Dequeue calls return nil.
func (q *PriorityQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}

// Clean purges completed/failed bookkeeping older than grace.
func (q *PriorityQueue) Clean(grace time.Duration) int {
	cutoff := time.Now().Add(-grace)
	q.mu.Lock()
	defer q.mu.Unlock()
	kept := q.done[:0]
	removed := 0
	for _, rec := range q.done {
		if rec.finishedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, rec)
	}
	q.done = kept
	return removed
}

// Counts returns the queue depth snapshot. Delayed counts keys held
// by jobs awaiting retry re-admission.
func (q *PriorityQueue) Counts() Counts {
	q.mu.Lock()
	defer q.mu.Unlock()
	waiting := 0
	for tier := 0; tier < tierCount; tier++ {
		waiting += len(q.tiers[tier])
	}
	completed, failed := 0, 0
	for _, rec := range q.done {
		if rec.failed {
			failed++
		} else {
			completed++
		}
	}
	delayed := len(q.keys) - waiting - q.active
	if delayed < 0 {
		delayed = 0
	}
	return Counts{
		Waiting:   waiting,
		Active:    q.active,
		Completed: completed,
		Failed:    failed,
		Delayed:   delayed,
	}
}

// GetHealth reports unhealthy when the waiting or failed count crosses
// its alert threshold.
func (q *PriorityQueue) GetHealth() Health {
	counts := q.Counts()
	return Health{
		IsHealthy: counts.Waiting <= q.waitingAlert && counts.Failed <= q.failedAlert,
		Counts:    counts,
	}
}
