package chat

import (
	"context"
	"fmt"
	"log/slog"
)

// FallbackChat fronts a primary provider with an optional fallback,
// protected by a circuit breaker on the primary. It is the only chat
// entry point the processing pipeline sees.
type FallbackChat struct {
	primary  Provider
	fallback Provider
	breaker  *CircuitBreaker
	logger   *slog.Logger
}

// NewFallbackChat wires the layer. fallback may be nil, in which case
// primary failures propagate.
func NewFallbackChat(log *slog.Logger, primary Provider, fallback Provider, breaker *CircuitBreaker) *FallbackChat {
	if log == nil {
		log = slog.Default()
	}
	if breaker == nil {
		breaker = NewCircuitBreaker()
	}
	return &FallbackChat{
		primary:  primary,
		fallback: fallback,
		breaker:  breaker,
		logger:   log.With(slog.String("component", "chat_fallback")),
	}
}

// Chat routes the request. With the breaker open, the primary is not
// invoked at all; otherwise any primary failure triggers an immediate
// fallback attempt when a fallback is configured.
func (f *FallbackChat) Chat(ctx context.Context, req Request) (Result, error) {
	if f.primary == nil {
		return Result{}, fmt.Errorf("no primary provider configured")
	}

	if !f.breaker.Allow() {
		openErr := &CircuitOpenError{Provider: f.primary.Name(), Stats: f.breaker.Stats()}
		if f.fallback == nil {
			return Result{}, openErr
		}
		f.logger.Warn("circuit open, short-circuiting to fallback",
			slog.String("primary", f.primary.Name()),
			slog.String("fallback", f.fallback.Name()),
			slog.Int("consecutive_failures", openErr.Stats.ConsecutiveFailures),
		)
		return f.fallback.Chat(ctx, req)
	}

	result, err := f.primary.Chat(ctx, req)
	if err == nil {
		f.breaker.RecordSuccess()
		return result, nil
	}
	f.breaker.RecordFailure()

	if f.fallback == nil {
		return Result{}, err
	}
	f.logger.Warn("primary provider failed, trying fallback",
		slog.String("primary", f.primary.Name()),
		slog.String("fallback", f.fallback.Name()),
		slog.Any("error", err),
	)
	return f.fallback.Chat(ctx, req)
}

// PrimaryStats exposes the primary breaker snapshot.
func (f *FallbackChat) PrimaryStats() BreakerStats {
	return f.breaker.Stats()
}

// PrimaryName returns the primary provider name, empty when
// unconfigured.
func (f *FallbackChat) PrimaryName() string {
	if f.primary == nil {
		return ""
	}
	return f.primary.Name()
}
