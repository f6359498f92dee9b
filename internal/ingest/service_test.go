package ingest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helpflowai/helpflow/internal/conversation"
	"github.com/helpflowai/helpflow/internal/dedupe"
	"github.com/helpflowai/helpflow/internal/message"
	"github.com/helpflowai/helpflow/internal/priority"
	"github.com/helpflowai/helpflow/internal/queue"
)

// memoryStore fakes the persistence store for conversations and
// messages.
type memoryStore struct {
	mu            sync.Mutex
	conversations map[string]conversation.Conversation // keyed by tenant|address
	messages      map[string][]message.Message         // keyed by conversation id
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		conversations: map[string]conversation.Conversation{},
		messages:      map[string][]message.Message{},
	}
}

func (s *memoryStore) ResolveOpen(_ context.Context, tenantID, addr, name string) (conversation.Conversation, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := tenantID + "|" + addr
	if conv, ok := s.conversations[key]; ok {
		return conv, false, nil
	}
	conv := conversation.Conversation{
		ID:              "conv-" + key,
		TenantID:        tenantID,
		CustomerAddress: addr,
		CustomerName:    name,
		Status:          conversation.StatusActive,
		AssignedTo:      conversation.AssignedAI,
		StartedAt:       time.Now(),
	}
	s.conversations[key] = conv
	return conv, true, nil
}

func (s *memoryStore) Touch(_ context.Context, conversationID string, at time.Time) error {
	return nil
}

func (s *memoryStore) Persist(_ context.Context, input message.PersistInput) (message.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg := message.Message{
		ID:             "msg-" + input.ConversationID,
		ConversationID: input.ConversationID,
		Text:           input.Text,
		CreatedAt:      time.Now(),
	}
	s.messages[input.ConversationID] = append(s.messages[input.ConversationID], msg)
	return msg, nil
}

func (s *memoryStore) CountByConversation(_ context.Context, conversationID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages[conversationID]), nil
}

func (s *memoryStore) totalMessages() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, msgs := range s.messages {
		total += len(msgs)
	}
	return total
}

func newTestService(store *memoryStore, q *queue.PriorityQueue) *Service {
	gate := dedupe.NewGate(nil, dedupe.NewCacheLockStore())
	return NewService(nil, gate, store, store, q, nil, nil)
}

func event(id, tenant, sender, text string) InboundEvent {
	return InboundEvent{EventID: id, TenantID: tenant, SenderAddress: sender, Text: text}
}

func TestSubmitAcceptsAndEnqueues(t *testing.T) {
	store := newMemoryStore()
	q := queue.New(nil, 0, 0)
	svc := newTestService(store, q)

	err := svc.Submit(context.Background(), event("evt-1", "tenant-1", "+15550001", "hi, do you ship abroad?"))
	require.NoError(t, err)

	assert.Equal(t, 1, store.totalMessages())
	require.Equal(t, 1, q.Counts().Waiting)

	job := q.Dequeue(context.Background())
	require.NotNil(t, job)
	// First message of a new conversation.
	assert.Equal(t, priority.TierUrgent, job.Tier)
	assert.True(t, job.IsFirstMessage)
	assert.Equal(t, "job:evt-1", job.Key)
}

func TestSubmitSameEventTwiceYieldsOneMessageAndOneJob(t *testing.T) {
	store := newMemoryStore()
	q := queue.New(nil, 0, 0)
	svc := newTestService(store, q)
	ctx := context.Background()

	require.NoError(t, svc.Submit(ctx, event("evt-1", "tenant-1", "+15550001", "hello")))
	err := svc.Submit(ctx, event("evt-1", "tenant-1", "+15550001", "hello"))
	require.Error(t, err)
	assert.ErrorIs(t, err, dedupe.ErrDuplicateEvent)

	assert.Equal(t, 1, store.totalMessages())
	assert.Equal(t, 1, q.Counts().Waiting)
}

func TestSubmitConcurrentDuplicatesAcceptOne(t *testing.T) {
	store := newMemoryStore()
	q := queue.New(nil, 0, 0)
	svc := newTestService(store, q)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = svc.Submit(context.Background(), event("evt-race", "tenant-1", "+15550001", "double tap"))
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, store.totalMessages())
	assert.Equal(t, 1, q.Counts().Waiting)
}

func TestSubmitFollowUpClassifiedByLength(t *testing.T) {
	store := newMemoryStore()
	q := queue.New(nil, 0, 0)
	svc := newTestService(store, q)
	ctx := context.Background()

	require.NoError(t, svc.Submit(ctx, event("evt-1", "tenant-1", "+15550001", "first message here")))
	first := q.Dequeue(ctx)
	q.Complete(first, false)

	require.NoError(t, svc.Submit(ctx, event("evt-2", "tenant-1", "+15550001", "thanks")))
	job := q.Dequeue(ctx)
	require.NotNil(t, job)
	assert.Equal(t, priority.TierHigh, job.Tier)
	assert.False(t, job.IsFirstMessage)
}

func TestSubmitRejectsMissingFields(t *testing.T) {
	svc := newTestService(newMemoryStore(), queue.New(nil, 0, 0))
	ctx := context.Background()

	assert.Error(t, svc.Submit(ctx, event("evt-1", "", "+15550001", "hi")))
	assert.Error(t, svc.Submit(ctx, event("evt-2", "tenant-1", "+15550001", "   ")))
}

func TestLivenessThresholds(t *testing.T) {
	tracker := NewLivenessTracker()
	now := time.Now()
	tracker.now = func() time.Time { return now }

	tracker.Record("tenant-fresh")
	now = now.Add(6 * time.Minute)
	tracker.Record("tenant-warm") // recorded at +6m
	now = now.Add(6 * time.Minute)

	// tenant-fresh: 12m silence (critical); tenant-warm: 6m (warn).
	statuses := map[string]string{}
	for _, src := range tracker.Snapshot() {
		statuses[src.TenantID] = src.Status
	}
	assert.Equal(t, LivenessCritical, statuses["tenant-fresh"])
	assert.Equal(t, LivenessWarn, statuses["tenant-warm"])

	tracker.Record("tenant-warm")
	for _, src := range tracker.Snapshot() {
		if src.TenantID == "tenant-warm" {
			assert.Equal(t, LivenessOK, src.Status)
		}
	}
}
