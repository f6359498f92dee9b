package message

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no message matches a lookup.
var ErrNotFound = errors.New("message not found")

// Direction constants.
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// Sender constants.
const (
	SenderCustomer = "customer"
	SenderAI       = "ai"
	SenderHuman    = "human"
)

// Delivery status constants.
const (
	DeliveryPending   = "pending"
	DeliverySent      = "sent"
	DeliveryDelivered = "delivered"
	DeliveryRead      = "read"
	DeliveryFailed    = "failed"
)

// Message is a single durable conversation message. Metadata carries
// the originating provider event id under "provider_event_id" so a
// message can always be traced back to its delivery.
type Message struct {
	ID             string         `json:"id"`
	ConversationID string         `json:"conversation_id"`
	TenantID       string         `json:"tenant_id"`
	Direction      string         `json:"direction"`
	Sender         string         `json:"sender"`
	Text           string         `json:"text"`
	DeliveryStatus string         `json:"delivery_status"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// PersistInput is the input for persisting a message.
type PersistInput struct {
	ConversationID string
	TenantID       string
	Direction      string
	Sender         string
	Text           string
	Metadata       map[string]any
}

// Writer defines the write behavior the pipeline needs.
type Writer interface {
	Persist(ctx context.Context, input PersistInput) (Message, error)
	SetProviderEventID(ctx context.Context, messageID, providerEventID string) error
}
