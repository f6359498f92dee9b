package handlers

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/helpflowai/helpflow/internal/chat"
	"github.com/helpflowai/helpflow/internal/healthcheck"
	"github.com/helpflowai/helpflow/internal/ingest"
	"github.com/helpflowai/helpflow/internal/queue"
)

// MetricsSource exposes processing counters; satisfied by
// queue.Metrics.
type MetricsSource interface {
	Snapshot() queue.MetricsSnapshot
}

// QueueSource exposes queue depth and health; satisfied by
// queue.PriorityQueue.
type QueueSource interface {
	Counts() queue.Counts
	GetHealth() queue.Health
	Paused() bool
}

// HealthReport is the full health snapshot served at /health.
type HealthReport struct {
	Status   string                    `json:"status"`
	Queue    queue.Health              `json:"queue"`
	Paused   bool                      `json:"paused"`
	Metrics  queue.MetricsSnapshot     `json:"metrics"`
	Provider providerReport            `json:"provider"`
	Webhooks []ingest.SourceLiveness   `json:"webhooks"`
	Checks   []healthcheck.CheckResult `json:"checks"`
}

type providerReport struct {
	Primary string            `json:"primary"`
	Breaker chat.BreakerStats `json:"breaker"`
}

// HealthHandler serves liveness and the aggregated health report.
type HealthHandler struct {
	metrics  MetricsSource
	queue    QueueSource
	breaker  healthcheck.BreakerSource
	liveness healthcheck.LivenessSource
	checks   *healthcheck.Registry
	logger   *slog.Logger
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(log *slog.Logger, metrics MetricsSource, q QueueSource, breaker healthcheck.BreakerSource, liveness healthcheck.LivenessSource, checks *healthcheck.Registry) *HealthHandler {
	if log == nil {
		log = slog.Default()
	}
	return &HealthHandler{
		metrics:  metrics,
		queue:    q,
		breaker:  breaker,
		liveness: liveness,
		checks:   checks,
		logger:   log.With(slog.String("handler", "health")),
	}
}

// Register registers the health routes.
func (h *HealthHandler) Register(e *echo.Echo) {
	e.GET("/health", h.Health)
	e.HEAD("/health", h.HealthHead)
}

// Health returns the aggregated snapshot. A degraded pipeline still
// answers 200; the verdict lives in the payload so load balancers
// keep routing while operators investigate.
func (h *HealthHandler) Health(c echo.Context) error {
	report := HealthReport{
		Status: healthcheck.StatusOK,
	}
	if h.queue != nil {
		report.Queue = h.queue.GetHealth()
		report.Paused = h.queue.Paused()
	}
	if h.metrics != nil {
		report.Metrics = h.metrics.Snapshot()
	}
	if h.breaker != nil {
		report.Provider = providerReport{
			Primary: h.breaker.PrimaryName(),
			Breaker: h.breaker.PrimaryStats(),
		}
	}
	if h.liveness != nil {
		report.Webhooks = h.liveness.Snapshot()
	}
	if h.checks != nil {
		report.Checks = h.checks.ListChecks(c.Request().Context())
		report.Status = healthcheck.Overall(report.Checks)
	}
	return c.JSON(http.StatusOK, report)
}

// HealthHead is the bare liveness probe.
func (h *HealthHandler) HealthHead(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}
