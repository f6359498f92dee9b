// Package priority assigns latency tiers to inbound customer messages.
package priority

import "time"

// Tier orders work by urgency. Lower values are served first.
type Tier int

const (
	// TierUrgent is reserved for the first message of a conversation:
	// a prospect waiting on a first reply churns fastest.
	TierUrgent Tier = iota
	// TierHigh covers short follow-ups, which read as quick questions.
	TierHigh
	// TierNormal is the default tier.
	TierNormal
	// TierLow covers long-running conversations that already received
	// plenty of attention.
	TierLow
)

const shortMessageWords = 10

// longConversationLen is the message count past which a conversation
// is considered long-running.
const longConversationLen = 10

func (t Tier) String() string {
	switch t {
	case TierUrgent:
		return "urgent"
	case TierHigh:
		return "high"
	case TierNormal:
		return "normal"
	case TierLow:
		return "low"
	default:
		return "unknown"
	}
}

// SLA returns the response-latency budget for the tier. A breach is
// tracked as an observability signal, never enforced as a failure.
func (t Tier) SLA() time.Duration {
	switch t {
	case TierUrgent:
		return 1500 * time.Millisecond
	case TierHigh:
		return 2 * time.Second
	case TierLow:
		return 5 * time.Second
	default:
		return 2500 * time.Millisecond
	}
}

// Timeout returns the hard processing deadline for a job in the tier.
func (t Tier) Timeout() time.Duration {
	return 2 * t.SLA()
}

// Classify maps message context to a tier. The check order is a
// deliberate product decision: first messages always win, and a short
// message in a long conversation is still High, not Low.
func Classify(isFirstMessage bool, wordCount, conversationLength int) Tier {
	if isFirstMessage {
		return TierUrgent
	}
	if wordCount <= shortMessageWords {
		return TierHigh
	}
	if conversationLength > longConversationLen {
		return TierLow
	}
	return TierNormal
}
