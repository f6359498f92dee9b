package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/helpflowai/helpflow/internal/queue"
)

// QueueAdmin is the operator surface of the queue; satisfied by
// queue.PriorityQueue.
type QueueAdmin interface {
	Counts() queue.Counts
	Paused() bool
	Pause()
	Resume()
	Clean(grace time.Duration) int
}

// QueueAdminHandler exposes queue inspection and control endpoints.
type QueueAdminHandler struct {
	queue      QueueAdmin
	metrics    MetricsSource
	cleanGrace time.Duration
	logger     *slog.Logger
}

// NewQueueAdminHandler creates a QueueAdminHandler. cleanGrace is the
// default retention for completed/failed records when a clean request
// does not specify one.
func NewQueueAdminHandler(log *slog.Logger, q QueueAdmin, metrics MetricsSource, cleanGrace time.Duration) *QueueAdminHandler {
	if log == nil {
		log = slog.Default()
	}
	return &QueueAdminHandler{
		queue:      q,
		metrics:    metrics,
		cleanGrace: cleanGrace,
		logger:     log.With(slog.String("handler", "queue_admin")),
	}
}

// Register registers the queue admin routes.
func (h *QueueAdminHandler) Register(e *echo.Echo) {
	group := e.Group("/api/queue")
	group.GET("/stats", h.Stats)
	group.POST("/pause", h.Pause)
	group.POST("/resume", h.Resume)
	group.POST("/clean", h.Clean)
}

// Stats returns queue depth counters and processing metrics.
func (h *QueueAdminHandler) Stats(c echo.Context) error {
	resp := map[string]any{
		"counts": h.queue.Counts(),
		"paused": h.queue.Paused(),
	}
	if h.metrics != nil {
		resp["metrics"] = h.metrics.Snapshot()
	}
	return c.JSON(http.StatusOK, resp)
}

// Pause stops workers from taking new jobs; in-flight jobs finish.
func (h *QueueAdminHandler) Pause(c echo.Context) error {
	h.queue.Pause()
	h.logger.Info("queue paused via admin api")
	return c.JSON(http.StatusOK, map[string]any{"paused": true})
}

// Resume reopens the queue to workers.
func (h *QueueAdminHandler) Resume(c echo.Context) error {
	h.queue.Resume()
	h.logger.Info("queue resumed via admin api")
	return c.JSON(http.StatusOK, map[string]any{"paused": false})
}

// Clean drops finished-job records older than the grace period. An
// optional grace_minutes query parameter overrides the configured
// default.
func (h *QueueAdminHandler) Clean(c echo.Context) error {
	grace := h.cleanGrace
	if raw := c.QueryParam("grace_minutes"); raw != "" {
		mins, err := strconv.Atoi(raw)
		if err != nil || mins < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "grace_minutes must be a non-negative integer")
		}
		grace = time.Duration(mins) * time.Minute
	}
	removed := h.queue.Clean(grace)
	h.logger.Info("queue cleaned via admin api",
		slog.Int("removed", removed),
		slog.Duration("grace", grace),
	)
	return c.JSON(http.StatusOK, map[string]any{"removed": removed})
}
