package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helpflowai/helpflow/internal/priority"
)

func testJob(key, conversationID string, tier priority.Tier) *Job {
	return NewJob(key, "tenant-1", conversationID, "+15550001", "hello", tier, false, 1)
}

func TestDequeueFollowsStrictPriorityOrder(t *testing.T) {
	q := New(nil, 0, 0)
	require.True(t, q.Enqueue(testJob("k-low", "c1", priority.TierLow)))
	require.True(t, q.Enqueue(testJob("k-normal", "c2", priority.TierNormal)))
	require.True(t, q.Enqueue(testJob("k-urgent", "c3", priority.TierUrgent)))
	require.True(t, q.Enqueue(testJob("k-high", "c4", priority.TierHigh)))

	ctx := context.Background()
	var order []string
	for i := 0; i < 4; i++ {
		job := q.Dequeue(ctx)
		require.NotNil(t, job)
		order = append(order, job.Key)
		q.Complete(job, false)
	}
	assert.Equal(t, []string{"k-urgent", "k-high", "k-normal", "k-low"}, order)
}

func TestDequeueIsFIFOWithinTier(t *testing.T) {
	q := New(nil, 0, 0)
	for _, key := range []string{"a", "b", "c"} {
		require.True(t, q.Enqueue(testJob(key, "conv-"+key, priority.TierNormal)))
	}
	ctx := context.Background()
	for _, want := range []string{"a", "b", "c"} {
		job := q.Dequeue(ctx)
		require.NotNil(t, job)
		assert.Equal(t, want, job.Key)
		q.Complete(job, false)
	}
}

func TestEnqueueIsIdempotentPerKey(t *testing.T) {
	q := New(nil, 0, 0)
	require.True(t, q.Enqueue(testJob("same-key", "c1", priority.TierNormal)))
	assert.False(t, q.Enqueue(testJob("same-key", "c1", priority.TierNormal)))
	assert.Equal(t, 1, q.Counts().Waiting)

	// Still held while active.
	job := q.Dequeue(context.Background())
	require.NotNil(t, job)
	assert.False(t, q.Enqueue(testJob("same-key", "c1", priority.TierNormal)))

	// Terminal completion releases the key.
	q.Complete(job, false)
	assert.True(t, q.Enqueue(testJob("same-key", "c1", priority.TierNormal)))
}

func TestDequeueSkipsBusyConversation(t *testing.T) {
	q := New(nil, 0, 0)
	require.True(t, q.Enqueue(testJob("first", "conv-1", priority.TierNormal)))
	require.True(t, q.Enqueue(testJob("second", "conv-1", priority.TierNormal)))
	require.True(t, q.Enqueue(testJob("other", "conv-2", priority.TierNormal)))

	ctx := context.Background()
	first := q.Dequeue(ctx)
	require.Equal(t, "first", first.Key)

	// conv-1 has an in-flight job: its second message must wait, the
	// other conversation is served instead.
	next := q.Dequeue(ctx)
	require.Equal(t, "other", next.Key)

	q.Complete(first, false)
	third := q.Dequeue(ctx)
	assert.Equal(t, "second", third.Key)
}

func TestPauseStopsDequeueWithoutLosingJobs(t *testing.T) {
	q := New(nil, 0, 0)
	q.Pause()
	require.True(t, q.Enqueue(testJob("k1", "c1", priority.TierNormal)))

	got := make(chan *Job, 1)
	go func() { got <- q.Dequeue(context.Background()) }()

	select {
	case <-got:
		t.Fatal("dequeue returned while paused")
	case <-time.After(50 * time.Millisecond):
	}

	q.Resume()
	select {
	case job := <-got:
		assert.Equal(t, "k1", job.Key)
	case <-time.After(time.Second):
		t.Fatal("dequeue did not resume")
	}
}

func TestDequeueReturnsNilOnContextCancel(t *testing.T) {
	q := New(nil, 0, 0)
	ctx, cancel := context.WithCancel(context.Background())

	got := make(chan *Job, 1)
	go func() { got <- q.Dequeue(ctx) }()
	cancel()

	select {
	case job := <-got:
		assert.Nil(t, job)
	case <-time.After(time.Second):
		t.Fatal("dequeue did not observe cancellation")
	}
}

func TestCountsAndClean(t *testing.T) {
	q := New(nil, 0, 0)
	require.True(t, q.Enqueue(testJob("k1", "c1", priority.TierNormal)))
	require.True(t, q.Enqueue(testJob("k2", "c2", priority.TierNormal)))
	assert.Equal(t, Counts{Waiting: 2}, q.Counts())

	ctx := context.Background()
	job := q.Dequeue(ctx)
	assert.Equal(t, Counts{Waiting: 1, Active: 1}, q.Counts())

	q.Complete(job, false)
	assert.Equal(t, Counts{Waiting: 1, Completed: 1}, q.Counts())

	job = q.Dequeue(ctx)
	job.Attempts = job.MaxAttempts
	q.Complete(job, true)
	assert.Equal(t, Counts{Completed: 1, Failed: 1}, q.Counts())

	removed := q.Clean(0)
	assert.Equal(t, 2, removed)
	assert.Equal(t, Counts{}, q.Counts())
}

func TestGetHealthThresholds(t *testing.T) {
	q := New(nil, 2, 1)
	assert.True(t, q.GetHealth().IsHealthy)

	for i, key := range []string{"k1", "k2", "k3"} {
		require.True(t, q.Enqueue(testJob(key, "c"+key, priority.TierNormal)), i)
	}
	health := q.GetHealth()
	assert.False(t, health.IsHealthy)
	assert.Equal(t, 3, health.Counts.Waiting)
}

func TestFailedJobWithRetryBudgetIsReadmitted(t *testing.T) {
	q := New(nil, 0, 0)
	job := testJob("retry-key", "c1", priority.TierNormal)
	job.MaxAttempts = 2
	require.True(t, q.Enqueue(job))

	ctx := context.Background()
	got := q.Dequeue(ctx)
	got.Attempts = 1
	q.Complete(got, true)

	// Key still held while the retry is delayed.
	assert.False(t, q.Enqueue(testJob("retry-key", "c1", priority.TierNormal)))
	assert.Equal(t, 1, q.Counts().Delayed)

	deadline := time.After(2 * retryBackoff)
	found := make(chan *Job, 1)
	go func() { found <- q.Dequeue(ctx) }()
	select {
	case again := <-found:
		assert.Equal(t, "retry-key", again.Key)
		assert.Equal(t, 1, again.Attempts)
	case <-deadline:
		t.Fatal("retried job was not re-admitted")
	}
}
