package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/helpflowai/helpflow/internal/db"
)

// Service resolves and mutates conversations.
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
		logger: log.With(slog.String("service", "conversation")),
	}
}

// ResolveOpen returns the open conversation for (tenant, address),
// creating one when none exists. isNew reports whether a conversation
// was created by this call, which makes the attached message the first
// of its conversation.
func (s *Service) ResolveOpen(ctx context.Context, tenantID, customerAddress, customerName string) (Conversation, bool, error) {
	tenantID = strings.TrimSpace(tenantID)
	customerAddress = strings.TrimSpace(customerAddress)
	if tenantID == "" || customerAddress == "" {
		return Conversation{}, false, fmt.Errorf("tenant id and customer address are required")
	}

	conv, err := s.findOpen(ctx, tenantID, customerAddress)
	if err == nil {
		return conv, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Conversation{}, false, fmt.Errorf("find open conversation: %w", err)
	}

	now := time.Now().UTC()
	conv = Conversation{
		ID:              uuid.NewString(),
		TenantID:        tenantID,
		CustomerAddress: customerAddress,
		CustomerName:    strings.TrimSpace(customerName),
		Status:          StatusActive,
		AssignedTo:      AssignedAI,
		StartedAt:       now,
		LastMessageAt:   now,
	}
	_, err = s.conn.Exec(ctx, `
		INSERT INTO conversations
			(id, tenant_id, customer_address, customer_name, status, assigned_to, started_at, last_message_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (tenant_id, customer_address) WHERE status IN ('active', 'escalated')
		DO NOTHING`,
		conv.ID, conv.TenantID, conv.CustomerAddress, conv.CustomerName,
		conv.Status, conv.AssignedTo, conv.StartedAt, conv.LastMessageAt,
	)
	if err != nil {
		return Conversation{}, false, fmt.Errorf("create conversation: %w", err)
	}

	// A concurrent insert may have won the partial unique index; the
	// re-read settles which row owns the pair.
	winner, err := s.findOpen(ctx, tenantID, customerAddress)
	if err != nil {
		return Conversation{}, false, fmt.Errorf("reload conversation: %w", err)
	}
	return winner, winner.ID == conv.ID, nil
}

// Touch advances last_message_at.
func (s *Service) Touch(ctx context.Context, conversationID string, at time.Time) error {
	_, err := s.conn.Exec(ctx,
		`UPDATE conversations SET last_message_at = $2 WHERE id = $1 AND last_message_at < $2`,
		conversationID, at.UTC(),
	)
	if err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}
	return nil
}

func (s *Service) findOpen(ctx context.Context, tenantID, customerAddress string) (Conversation, error) {
	row := s.conn.QueryRow(ctx, `
		SELECT id, tenant_id, customer_address, customer_name, status, assigned_to, started_at, last_message_at
		FROM conversations
		WHERE tenant_id = $1 AND customer_address = $2 AND status IN ('active', 'escalated')
		ORDER BY started_at DESC
		LIMIT 1`,
		tenantID, customerAddress,
	)
	var conv Conversation
	err := row.Scan(
		&conv.ID, &conv.TenantID, &conv.CustomerAddress, &conv.CustomerName,
		&conv.Status, &conv.AssignedTo, &conv.StartedAt, &conv.LastMessageAt,
	)
	if err != nil {
		return Conversation{}, err
	}
	return conv, nil
}
