package chat

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ProviderError is the only provider-failure type crossing this
// package's boundary. It wraps the origin provider name together with
// the underlying cause.
type ProviderError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("provider %s: status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Transient reports whether the failure is eligible for retry or
// fallback: timeouts, connection failures, 5xx and rate limits.
// Other 4xx responses are permanent.
func (e *ProviderError) Transient() bool {
	if e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500 {
		return true
	}
	if e.StatusCode >= 400 {
		return false
	}
	var netErr net.Error
	if errors.As(e.Err, &netErr) {
		return true
	}
	return errors.Is(e.Err, context.DeadlineExceeded) || e.StatusCode == 0
}

// CircuitOpenError signals the breaker refused the call without
// contacting the provider. It carries breaker statistics for
// diagnosis.
type CircuitOpenError struct {
	Provider string
	Stats    BreakerStats
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit open for provider %s after %d consecutive failures",
		e.Provider, e.Stats.ConsecutiveFailures)
}
