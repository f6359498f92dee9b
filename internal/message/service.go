package message

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/helpflowai/helpflow/internal/db"
)

// Service persists and reads conversation messages.
type Service struct {
	conn   db.Conn
	logger *slog.Logger
}

func NewService(log *slog.Logger, conn db.Conn) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		conn:   conn,
		logger: log.With(slog.String("service", "message")),
	}
}

// Persist writes a single message.
func (s *Service) Persist(ctx context.Context, input PersistInput) (Message, error) {
	if strings.TrimSpace(input.ConversationID) == "" {
		return Message{}, fmt.Errorf("conversation id is required")
	}
	if input.Direction != DirectionInbound && input.Direction != DirectionOutbound {
		return Message{}, fmt.Errorf("invalid direction: %s", input.Direction)
	}

	metaBytes, err := json.Marshal(nonNilMap(input.Metadata))
	if err != nil {
		return Message{}, fmt.Errorf("marshal message metadata: %w", err)
	}

	msg := Message{
		ID:             uuid.NewString(),
		ConversationID: input.ConversationID,
		TenantID:       input.TenantID,
		Direction:      input.Direction,
		Sender:         input.Sender,
		Text:           input.Text,
		DeliveryStatus: DeliveryPending,
		Metadata:       input.Metadata,
		CreatedAt:      time.Now().UTC(),
	}
	_, err = s.conn.Exec(ctx, `
		INSERT INTO messages
			(id, conversation_id, tenant_id, direction, sender, text, delivery_status, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		msg.ID, msg.ConversationID, msg.TenantID, msg.Direction, msg.Sender,
		msg.Text, msg.DeliveryStatus, metaBytes, msg.CreatedAt,
	)
	if err != nil {
		return Message{}, fmt.Errorf("insert message: %w", err)
	}
	return msg, nil
}

// CountByConversation returns the number of messages in a
// conversation, which feeds the priority classifier.
func (s *Service) CountByConversation(ctx context.Context, conversationID string) (int, error) {
	row := s.conn.QueryRow(ctx,
		`SELECT COUNT(*) FROM messages WHERE conversation_id = $1`,
		conversationID,
	)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return count, nil
}

// SetProviderEventID records the provider's event id for an outbound
// message once the send API has assigned one. Delivery-status
// callbacks match on it.
func (s *Service) SetProviderEventID(ctx context.Context, messageID, providerEventID string) error {
	_, err := s.conn.Exec(ctx, `
		UPDATE messages
		SET metadata = jsonb_set(metadata, '{provider_event_id}', to_jsonb($2::text))
		WHERE id = $1`,
		messageID, providerEventID,
	)
	if err != nil {
		return fmt.Errorf("set provider event id: %w", err)
	}
	return nil
}

// UpdateDeliveryStatus applies a delivery-status callback by the
// provider event id recorded in the message metadata.
func (s *Service) UpdateDeliveryStatus(ctx context.Context, tenantID, providerEventID, status string) error {
	switch status {
	case DeliverySent, DeliveryDelivered, DeliveryRead, DeliveryFailed:
	default:
		return fmt.Errorf("invalid delivery status: %s", status)
	}
	tag, err := s.conn.Exec(ctx, `
		UPDATE messages SET delivery_status = $3
		WHERE tenant_id = $1 AND metadata->>'provider_event_id' = $2`,
		tenantID, providerEventID, status,
	)
	if err != nil {
		return fmt.Errorf("update delivery status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		s.logger.Debug("delivery status callback matched no message",
			slog.String("tenant_id", tenantID),
			slog.String("provider_event_id", providerEventID),
			slog.String("status", status),
		)
		return ErrNotFound
	}
	return nil
}

func nonNilMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
