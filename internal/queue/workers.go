package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ProcessFunc executes one job under the supplied deadline.
type ProcessFunc func(ctx context.Context, job *Job) error

// DeadLetterSink receives jobs whose attempt budget is exhausted. Add
// must never return an error to the worker; persistence failures are
// the sink's own problem to log.
type DeadLetterSink interface {
	Add(ctx context.Context, job *Job, cause error, failureCount int)
}

// Workers runs a bounded pool of goroutines pulling from the queue.
// Each worker processes one job to completion before pulling the next.
// One job's failure never affects other jobs or the pool itself.
type Workers struct {
	queue   *PriorityQueue
	process ProcessFunc
	sink    DeadLetterSink
	metrics *Metrics
	count   int
	logger  *slog.Logger

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

func NewWorkers(log *slog.Logger, q *PriorityQueue, metrics *Metrics, sink DeadLetterSink, process ProcessFunc, count int) *Workers {
	if log == nil {
		log = slog.Default()
	}
	if count <= 0 {
		count = 4
	}
	return &Workers{
		queue:   q,
		process: process,
		sink:    sink,
		metrics: metrics,
		count:   count,
		logger:  log.With(slog.String("component", "workers")),
	}
}

// Start launches the pool.
func (w *Workers) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	for i := 0; i < w.count; i++ {
		w.wg.Add(1)
		go func(id int) {
			defer w.wg.Done()
			w.run(ctx, id)
		}(i)
	}
	w.logger.Info("worker pool started", slog.Int("workers", w.count))
}

// Stop cancels the workers and waits for in-flight jobs.
func (w *Workers) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.queue.Close()
	w.wg.Wait()
	w.logger.Info("worker pool stopped")
}

func (w *Workers) run(ctx context.Context, id int) {
	for {
		job := w.queue.Dequeue(ctx)
		if job == nil {
			return
		}
		w.handle(ctx, id, job)
	}
}

func (w *Workers) handle(ctx context.Context, workerID int, job *Job) {
	job.Attempts++
	start := time.Now()

	err := w.runAttempt(ctx, job)
	duration := time.Since(start)

	if err == nil {
		slaTarget := job.Tier.SLA()
		w.metrics.RecordSuccess(duration, slaTarget)
		if duration > slaTarget {
			w.logger.Warn("job exceeded SLA target",
				slog.String("job_id", job.ID),
				slog.String("tier", job.Tier.String()),
				slog.Duration("duration", duration),
				slog.Duration("sla", slaTarget),
			)
		}
		w.queue.Complete(job, false)
		return
	}

	terminal := job.Attempts >= job.MaxAttempts
	w.logger.Error("job attempt failed",
		slog.Int("worker", workerID),
		slog.String("job_id", job.ID),
		slog.String("tier", job.Tier.String()),
		slog.Int("attempt", job.Attempts),
		slog.Bool("terminal", terminal),
		slog.Any("error", err),
	)
	if terminal {
		w.metrics.RecordFailure(duration)
		if w.sink != nil {
			// The sink swallows its own failures; a dead-letter write
			// problem must not crash the worker.
			w.sink.Add(context.WithoutCancel(ctx), job, err, job.Attempts)
		}
	}
	w.queue.Complete(job, true)
}

// runAttempt enforces the per-job deadline (double the tier SLA) and
// contains panics from the processing pipeline.
func (w *Workers) runAttempt(ctx context.Context, job *Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()

	attemptCtx, cancel := context.WithTimeout(ctx, job.Tier.Timeout())
	defer cancel()

	err = w.process(attemptCtx, job)
	if err == nil && attemptCtx.Err() != nil {
		err = attemptCtx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("job timed out after %s: %w", job.Tier.Timeout(), err)
	}
	return err
}
