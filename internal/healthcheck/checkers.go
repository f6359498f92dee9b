package healthcheck

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/helpflowai/helpflow/internal/chat"
	"github.com/helpflowai/helpflow/internal/ingest"
	"github.com/helpflowai/helpflow/internal/queue"
)

const (
	checkTypeQueue    = "queue.backlog"
	checkTypeProvider = "provider.circuit"
	checkTypeWebhook  = "webhook.liveness"
)

// QueueSource exposes queue state to the backlog checker; satisfied by
// queue.PriorityQueue.
type QueueSource interface {
	GetHealth() queue.Health
	Paused() bool
}

// QueueChecker reports backlog pressure and failure accumulation.
type QueueChecker struct {
	logger *slog.Logger
	queue  QueueSource
}

func NewQueueChecker(log *slog.Logger, q QueueSource) *QueueChecker {
	if log == nil {
		log = slog.Default()
	}
	return &QueueChecker{
		logger: log.With(slog.String("checker", "healthcheck_queue")),
		queue:  q,
	}
}

func (c *QueueChecker) ListChecks(_ context.Context) []CheckResult {
	if c.queue == nil {
		return []CheckResult{{
			ID:      checkTypeQueue + ".service",
			Type:    checkTypeQueue,
			Label:   "Message queue",
			Status:  StatusUnknown,
			Summary: "Queue is not available.",
		}}
	}
	health := c.queue.GetHealth()
	result := CheckResult{
		ID:      checkTypeQueue + ".backlog",
		Type:    checkTypeQueue,
		Label:   "Message queue",
		Status:  StatusOK,
		Summary: "Backlog within limits.",
		Metadata: map[string]any{
			"waiting": health.Counts.Waiting,
			"active":  health.Counts.Active,
			"failed":  health.Counts.Failed,
			"paused":  c.queue.Paused(),
		},
	}
	if !health.IsHealthy {
		result.Status = StatusError
		result.Summary = "Queue backlog or failure count exceeds alert threshold."
		result.Detail = fmt.Sprintf("waiting=%d failed=%d", health.Counts.Waiting, health.Counts.Failed)
		c.logger.Warn("queue healthcheck degraded",
			slog.Int("waiting", health.Counts.Waiting),
			slog.Int("failed", health.Counts.Failed),
		)
	} else if c.queue.Paused() {
		result.Status = StatusWarn
		result.Summary = "Queue is paused; jobs are accumulating."
	}
	return []CheckResult{result}
}

// BreakerSource exposes primary-provider circuit state; satisfied by
// chat.FallbackChat.
type BreakerSource interface {
	PrimaryName() string
	PrimaryStats() chat.BreakerStats
}

// ProviderChecker reports the primary provider circuit position.
type ProviderChecker struct {
	source BreakerSource
}

func NewProviderChecker(source BreakerSource) *ProviderChecker {
	return &ProviderChecker{source: source}
}

func (c *ProviderChecker) ListChecks(_ context.Context) []CheckResult {
	if c.source == nil {
		return []CheckResult{{
			ID:      checkTypeProvider + ".service",
			Type:    checkTypeProvider,
			Label:   "LLM provider",
			Status:  StatusUnknown,
			Summary: "Provider layer is not available.",
		}}
	}
	stats := c.source.PrimaryStats()
	result := CheckResult{
		ID:      checkTypeProvider + "." + c.source.PrimaryName(),
		Type:    checkTypeProvider,
		Label:   "LLM provider",
		Status:  StatusOK,
		Summary: "Primary provider circuit is closed.",
		Metadata: map[string]any{
			"provider":             c.source.PrimaryName(),
			"state":                string(stats.State),
			"consecutive_failures": stats.ConsecutiveFailures,
		},
	}
	switch stats.State {
	case chat.BreakerOpen:
		result.Status = StatusError
		result.Summary = "Primary provider circuit is open; requests go to the fallback."
	case chat.BreakerHalfOpen:
		result.Status = StatusWarn
		result.Summary = "Primary provider circuit is half-open; probing recovery."
	}
	return []CheckResult{result}
}

// LivenessSource exposes webhook recency; satisfied by
// ingest.LivenessTracker.
type LivenessSource interface {
	Snapshot() []ingest.SourceLiveness
}

// WebhookChecker reports tenants whose inbound webhooks have gone
// quiet.
type WebhookChecker struct {
	source LivenessSource
}

func NewWebhookChecker(source LivenessSource) *WebhookChecker {
	return &WebhookChecker{source: source}
}

func (c *WebhookChecker) ListChecks(_ context.Context) []CheckResult {
	if c.source == nil {
		return []CheckResult{{
			ID:      checkTypeWebhook + ".service",
			Type:    checkTypeWebhook,
			Label:   "Inbound webhooks",
			Status:  StatusUnknown,
			Summary: "Liveness tracker is not available.",
		}}
	}
	sources := c.source.Snapshot()
	if len(sources) == 0 {
		return []CheckResult{{
			ID:      checkTypeWebhook + ".sources",
			Type:    checkTypeWebhook,
			Label:   "Inbound webhooks",
			Status:  StatusUnknown,
			Summary: "No inbound events observed yet.",
		}}
	}
	results := make([]CheckResult, 0, len(sources))
	for _, src := range sources {
		result := CheckResult{
			ID:      checkTypeWebhook + "." + src.TenantID,
			Type:    checkTypeWebhook,
			Label:   "Inbound webhooks",
			Status:  StatusOK,
			Summary: "Receiving events.",
			Metadata: map[string]any{
				"tenant_id":     src.TenantID,
				"last_event_at": src.LastEventAt,
				"silence_ms":    src.Silence.Milliseconds(),
			},
		}
		switch src.Status {
		case ingest.LivenessCritical:
			result.Status = StatusError
			result.Summary = fmt.Sprintf("No inbound events for %s.", src.Silence.Round(0))
		case ingest.LivenessWarn:
			result.Status = StatusWarn
			result.Summary = fmt.Sprintf("No inbound events for %s.", src.Silence.Round(0))
		}
		results = append(results, result)
	}
	return results
}
