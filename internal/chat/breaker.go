package chat

import (
	"sync"
	"time"
)

// BreakerState is the circuit breaker state machine position.
type BreakerState string

const (
	BreakerClosed   BreakerState = "closed"
	BreakerOpen     BreakerState = "open"
	BreakerHalfOpen BreakerState = "half-open"
)

const (
	defaultFailureThreshold = 5
	defaultCooldown         = 30 * time.Second
)

// BreakerStats is a point-in-time snapshot of breaker state.
type BreakerStats struct {
	State               BreakerState `json:"state"`
	ConsecutiveFailures int          `json:"consecutive_failures"`
	LastFailureAt       time.Time    `json:"last_failure_at,omitzero"`
	LastSuccessAt       time.Time    `json:"last_success_at,omitzero"`
}

// CircuitBreaker guards one provider. State is process-local: with
// multiple worker processes each keeps its own view, and false
// negatives self-correct through health-checked probes.
type CircuitBreaker struct {
	mu        sync.Mutex
	state     BreakerState
	failures  int
	openedAt  time.Time
	lastFail  time.Time
	lastOK    time.Time
	threshold int
	cooldown  time.Duration
	now       func() time.Time
}

// NewCircuitBreaker creates a closed breaker with the default
// threshold (5 consecutive failures) and cooldown (30s).
func NewCircuitBreaker() *CircuitBreaker {
	return &CircuitBreaker{
		state:     BreakerClosed,
		threshold: defaultFailureThreshold,
		cooldown:  defaultCooldown,
		now:       time.Now,
	}
}

// Allow reports whether a call to the guarded provider may proceed.
// When the cooldown has elapsed on an open breaker, the breaker moves
// to half-open and admits a single probe.
func (b *CircuitBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case BreakerClosed, BreakerHalfOpen:
		return true
	case BreakerOpen:
		if b.now().Sub(b.openedAt) >= b.cooldown {
			b.state = BreakerHalfOpen
			return true
		}
		return false
	}
	return true
}

// RecordSuccess closes the breaker and resets the failure count.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = BreakerClosed
	b.failures = 0
	b.lastOK = b.now()
}

// RecordFailure counts a failure. A half-open probe failure reopens
// immediately and restarts the cooldown; in closed state the breaker
// opens once the consecutive-failure threshold is reached.
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	b.lastFail = b.now()
	if b.state == BreakerHalfOpen || b.failures >= b.threshold {
		b.state = BreakerOpen
		b.openedAt = b.now()
	}
}

// Stats returns a snapshot for observability.
func (b *CircuitBreaker) Stats() BreakerStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	state := b.state
	if state == BreakerOpen && b.now().Sub(b.openedAt) >= b.cooldown {
		state = BreakerHalfOpen
	}
	return BreakerStats{
		State:               state,
		ConsecutiveFailures: b.failures,
		LastFailureAt:       b.lastFail,
		LastSuccessAt:       b.lastOK,
	}
}
