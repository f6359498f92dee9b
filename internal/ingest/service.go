// Package ingest is the enqueue entrypoint: it accepts raw inbound
// events from the webhook, deduplicates, classifies and admits them to
// the priority queue. The whole path is designed to hand off well
// under 100ms; nothing here waits on response generation.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/helpflowai/helpflow/internal/conversation"
	"github.com/helpflowai/helpflow/internal/dedupe"
	"github.com/helpflowai/helpflow/internal/message"
	"github.com/helpflowai/helpflow/internal/notify"
	"github.com/helpflowai/helpflow/internal/priority"
	"github.com/helpflowai/helpflow/internal/queue"
)

// InboundEvent is the raw payload from the messaging provider. It is
// never persisted as-is; acceptance turns it into a Message.
type InboundEvent struct {
	EventID       string
	TenantID      string
	SenderAddress string
	SenderName    string
	Text          string
	Timestamp     time.Time
}

// ConversationResolver is the conversation side of the persistence
// store.
type ConversationResolver interface {
	ResolveOpen(ctx context.Context, tenantID, customerAddress, customerName string) (conversation.Conversation, bool, error)
	Touch(ctx context.Context, conversationID string, at time.Time) error
}

// MessageStore is the message side of the persistence store.
type MessageStore interface {
	Persist(ctx context.Context, input message.PersistInput) (message.Message, error)
	CountByConversation(ctx context.Context, conversationID string) (int, error)
}

// Enqueuer admits jobs; satisfied by queue.PriorityQueue.
type Enqueuer interface {
	Enqueue(job *queue.Job) bool
}

// Notifier pushes accepted-message events to connected clients.
type Notifier interface {
	Broadcast(tenantID string, event notify.Event)
}

// Service runs the ingestion pipeline.
type Service struct {
	gate          *dedupe.Gate
	conversations ConversationResolver
	messages      MessageStore
	queue         Enqueuer
	notifier      Notifier
	liveness      *LivenessTracker
	maxAttempts   int
	logger        *slog.Logger
}

func NewService(
	log *slog.Logger,
	gate *dedupe.Gate,
	conversations ConversationResolver,
	messages MessageStore,
	q Enqueuer,
	notifier Notifier,
	liveness *LivenessTracker,
) *Service {
	if log == nil {
		log = slog.Default()
	}
	if liveness == nil {
		liveness = NewLivenessTracker()
	}
	return &Service{
		gate:          gate,
		conversations: conversations,
		messages:      messages,
		queue:         q,
		notifier:      notifier,
		liveness:      liveness,
		logger:        log.With(slog.String("component", "ingest")),
	}
}

// SetMaxAttempts overrides the per-job attempt budget. Values below 1
// keep the single-attempt default.
func (s *Service) SetMaxAttempts(n int) {
	if n >= 1 {
		s.maxAttempts = n
	}
}

// Liveness exposes the webhook-source tracker for health reporting.
func (s *Service) Liveness() *LivenessTracker {
	return s.liveness
}

// Submit runs dedup → conversation resolution → persistence →
// classification → enqueue. Duplicate events surface as
// dedupe.ErrDuplicateEvent / ErrDuplicateContent so the webhook
// handler can acknowledge them without reprocessing.
func (s *Service) Submit(ctx context.Context, event InboundEvent) error {
	tenantID := strings.TrimSpace(event.TenantID)
	sender := strings.TrimSpace(event.SenderAddress)
	text := strings.TrimSpace(event.Text)
	if tenantID == "" || sender == "" {
		return fmt.Errorf("tenant id and sender address are required")
	}
	if text == "" {
		return fmt.Errorf("empty message text")
	}

	s.liveness.Record(tenantID)

	if err := s.gate.Check(event.EventID, sender, text); err != nil {
		s.logger.Debug("inbound event rejected by dedup gate",
			slog.String("tenant_id", tenantID),
			slog.String("event_id", event.EventID),
			slog.Any("reason", err),
		)
		return err
	}

	conv, isNew, err := s.conversations.ResolveOpen(ctx, tenantID, sender, event.SenderName)
	if err != nil {
		return fmt.Errorf("resolve conversation: %w", err)
	}

	msg, err := s.messages.Persist(ctx, message.PersistInput{
		ConversationID: conv.ID,
		TenantID:       tenantID,
		Direction:      message.DirectionInbound,
		Sender:         message.SenderCustomer,
		Text:           text,
		Metadata: map[string]any{
			"provider_event_id": strings.TrimSpace(event.EventID),
		},
	})
	if err != nil {
		return fmt.Errorf("persist inbound message: %w", err)
	}

	now := event.Timestamp
	if now.IsZero() {
		now = time.Now().UTC()
	}
	if err := s.conversations.Touch(ctx, conv.ID, now); err != nil {
		// The message is durable; a stale last_message_at is cosmetic.
		s.logger.Warn("touch conversation failed",
			slog.String("conversation_id", conv.ID),
			slog.Any("error", err),
		)
	}

	length, err := s.messages.CountByConversation(ctx, conv.ID)
	if err != nil {
		s.logger.Warn("count conversation messages failed",
			slog.String("conversation_id", conv.ID),
			slog.Any("error", err),
		)
		length = 1
	}

	wordCount := len(strings.Fields(text))
	tier := priority.Classify(isNew, wordCount, length)

	job := queue.NewJob(jobKey(event.EventID), tenantID, conv.ID, sender, text, tier, isNew, length)
	if s.maxAttempts > 1 {
		job.MaxAttempts = s.maxAttempts
	}
	if !s.queue.Enqueue(job) {
		// Admission raced a webhook retry; the first admission owns
		// the work.
		s.logger.Debug("enqueue deduplicated",
			slog.String("job_key", job.Key),
		)
		return nil
	}
	s.logger.Info("inbound message enqueued",
		slog.String("tenant_id", tenantID),
		slog.String("conversation_id", conv.ID),
		slog.String("tier", tier.String()),
		slog.Bool("first_message", isNew),
	)

	if s.notifier != nil {
		go s.notifier.Broadcast(tenantID, notify.Event{
			Type:           "message.received",
			TenantID:       tenantID,
			ConversationID: conv.ID,
			MessageID:      msg.ID,
			Sender:         message.SenderCustomer,
			Text:           text,
			CreatedAt:      msg.CreatedAt,
		})
	}
	return nil
}

// jobKey derives the exactly-once admission key from the provider
// event id.
func jobKey(eventID string) string {
	return "job:" + strings.TrimSpace(eventID)
}
