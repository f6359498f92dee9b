package priority

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name               string
		isFirstMessage     bool
		wordCount          int
		conversationLength int
		want               Tier
	}{
		{"first message always urgent", true, 50, 20, TierUrgent},
		{"short follow-up is high", false, 5, 3, TierHigh},
		{"long conversation is low", false, 20, 15, TierLow},
		{"default is normal", false, 20, 3, TierNormal},
		{"short message in long conversation stays high", false, 8, 30, TierHigh},
		{"boundary word count is high", false, 10, 3, TierHigh},
		{"boundary conversation length is normal", false, 20, 10, TierNormal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.isFirstMessage, tt.wordCount, tt.conversationLength)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTierSLA(t *testing.T) {
	assert.Equal(t, 1500*time.Millisecond, TierUrgent.SLA())
	assert.Equal(t, 2*time.Second, TierHigh.SLA())
	assert.Equal(t, 2500*time.Millisecond, TierNormal.SLA())
	assert.Equal(t, 5*time.Second, TierLow.SLA())
}

func TestTierTimeoutIsDoubleSLA(t *testing.T) {
	for _, tier := range []Tier{TierUrgent, TierHigh, TierNormal, TierLow} {
		assert.Equal(t, 2*tier.SLA(), tier.Timeout(), tier.String())
	}
}
