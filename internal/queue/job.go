// Package queue implements the priority job queue and its worker pool.
package queue

import (
	"time"

	"github.com/google/uuid"

	"github.com/helpflowai/helpflow/internal/priority"
)

// Job is one unit of queued work: answer a single inbound customer
// message. Key derives from the provider event id and is the basis for
// exactly-once admission; ID is the queue's own identifier.
type Job struct {
	ID                 string        `json:"id"`
	Key                string        `json:"key"`
	TenantID           string        `json:"tenant_id"`
	ConversationID     string        `json:"conversation_id"`
	CustomerAddress    string        `json:"customer_address"`
	MessageText        string        `json:"message_text"`
	Tier               priority.Tier `json:"tier"`
	IsFirstMessage     bool          `json:"is_first_message"`
	ConversationLength int           `json:"conversation_length"`
	EnqueuedAt         time.Time     `json:"enqueued_at"`

	// Attempts counts processing attempts so far. MaxAttempts defaults
	// to 1: an automatic retry risks answering the customer twice,
	// which is worse than a dropped reply landing in the dead letter
	// queue for human review. Job classes that want retries opt in.
	Attempts    int `json:"attempts"`
	MaxAttempts int `json:"max_attempts"`
}

// NewJob builds a job with a fresh internal id.
func NewJob(key, tenantID, conversationID, customerAddress, text string, tier priority.Tier, isFirst bool, conversationLength int) *Job {
	return &Job{
		ID:                 uuid.NewString(),
		Key:                key,
		TenantID:           tenantID,
		ConversationID:     conversationID,
		CustomerAddress:    customerAddress,
		MessageText:        text,
		Tier:               tier,
		IsFirstMessage:     isFirst,
		ConversationLength: conversationLength,
		EnqueuedAt:         time.Now().UTC(),
		MaxAttempts:        1,
	}
}
