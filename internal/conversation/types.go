// Package conversation defines conversation domain types and rules.
package conversation

import "time"

// Conversation status constants.
const (
	StatusActive    = "active"
	StatusEscalated = "escalated"
	StatusClosed    = "closed"
)

// Assignment constants.
const (
	AssignedAI    = "ai"
	AssignedHuman = "human"
)

// Conversation groups messages from one customer address to one
// tenant. At most one active/escalated conversation exists per
// (tenant, customer address) pair at a time; new inbound messages
// attach to it, or open a fresh one if none is open.
type Conversation struct {
	ID              string    `json:"id"`
	TenantID        string    `json:"tenant_id"`
	CustomerAddress string    `json:"customer_address"`
	CustomerName    string    `json:"customer_name,omitempty"`
	Status          string    `json:"status"`
	AssignedTo      string    `json:"assigned_to"`
	StartedAt       time.Time `json:"started_at"`
	LastMessageAt   time.Time `json:"last_message_at"`
}

// IsOpen reports whether the conversation still accepts inbound
// traffic.
func (c Conversation) IsOpen() bool {
	return c.Status == StatusActive || c.Status == StatusEscalated
}
