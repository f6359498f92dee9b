package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBreaker(clock *time.Time) *CircuitBreaker {
	b := NewCircuitBreaker()
	b.now = func() time.Time { return *clock }
	return b
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	clock := time.Now()
	b := newTestBreaker(&clock)

	for i := 0; i < defaultFailureThreshold-1; i++ {
		require.True(t, b.Allow())
		b.RecordFailure()
	}
	assert.Equal(t, BreakerClosed, b.Stats().State)

	require.True(t, b.Allow())
	b.RecordFailure()
	assert.Equal(t, BreakerOpen, b.Stats().State)
	assert.False(t, b.Allow())
}

func TestBreakerHalfOpenAfterCooldown(t *testing.T) {
	clock := time.Now()
	b := newTestBreaker(&clock)

	for i := 0; i < defaultFailureThreshold; i++ {
		b.RecordFailure()
	}
	require.False(t, b.Allow())

	clock = clock.Add(defaultCooldown + time.Second)
	// Cooldown elapsed: single probe admitted.
	assert.True(t, b.Allow())
	assert.Equal(t, BreakerHalfOpen, b.state)

	b.RecordSuccess()
	assert.Equal(t, BreakerClosed, b.Stats().State)
	assert.Zero(t, b.Stats().ConsecutiveFailures)
}

func TestBreakerHalfOpenFailureReopensAndResetsCooldown(t *testing.T) {
	clock := time.Now()
	b := newTestBreaker(&clock)

	for i := 0; i < defaultFailureThreshold; i++ {
		b.RecordFailure()
	}
	clock = clock.Add(defaultCooldown + time.Second)
	require.True(t, b.Allow())

	b.RecordFailure()
	assert.False(t, b.Allow())

	// Cooldown restarted at the probe failure, not the original open.
	clock = clock.Add(defaultCooldown / 2)
	assert.False(t, b.Allow())
	clock = clock.Add(defaultCooldown)
	assert.True(t, b.Allow())
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	clock := time.Now()
	b := newTestBreaker(&clock)

	for i := 0; i < defaultFailureThreshold-1; i++ {
		b.RecordFailure()
	}
	b.RecordSuccess()
	for i := 0; i < defaultFailureThreshold-1; i++ {
		b.RecordFailure()
	}
	assert.Equal(t, BreakerClosed, b.Stats().State)
	assert.True(t, b.Allow())
}
