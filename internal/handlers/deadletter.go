package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/helpflowai/helpflow/internal/deadletter"
)

// DeadLetterAdmin is the operator surface of the dead letter sink;
// satisfied by deadletter.Service.
type DeadLetterAdmin interface {
	ListPending(ctx context.Context, limit int) ([]deadletter.Entry, error)
	Retry(ctx context.Context, entryID string) (bool, error)
	Discard(ctx context.Context, entryID string) (bool, error)
	ClearAll(ctx context.Context) (int, error)
}

// DeadLetterHandler exposes dead letter inspection and replay.
type DeadLetterHandler struct {
	service DeadLetterAdmin
	logger  *slog.Logger
}

// NewDeadLetterHandler creates a DeadLetterHandler.
func NewDeadLetterHandler(log *slog.Logger, service DeadLetterAdmin) *DeadLetterHandler {
	if log == nil {
		log = slog.Default()
	}
	return &DeadLetterHandler{
		service: service,
		logger:  log.With(slog.String("handler", "deadletter")),
	}
}

// Register registers the dead letter admin routes.
func (h *DeadLetterHandler) Register(e *echo.Echo) {
	group := e.Group("/api/deadletters")
	group.GET("", h.List)
	group.POST("/:id/retry", h.Retry)
	group.DELETE("/:id", h.Discard)
	group.DELETE("", h.ClearAll)
}

// List returns pending dead letters, oldest first.
func (h *DeadLetterHandler) List(c echo.Context) error {
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = n
	}
	entries, err := h.service.ListPending(c.Request().Context(), limit)
	if err != nil {
		h.logger.Error("list dead letters failed", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list dead letters")
	}
	return c.JSON(http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}

// Retry re-admits the dead letter as a fresh job and removes the
// entry.
func (h *DeadLetterHandler) Retry(c echo.Context) error {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "entry id is required")
	}
	ok, err := h.service.Retry(c.Request().Context(), id)
	if err != nil {
		h.logger.Error("dead letter retry failed",
			slog.String("entry_id", id),
			slog.Any("error", err),
		)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to retry dead letter")
	}
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "dead letter not found")
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "requeued"})
}

// Discard removes the entry without replaying it.
func (h *DeadLetterHandler) Discard(c echo.Context) error {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "entry id is required")
	}
	ok, err := h.service.Discard(c.Request().Context(), id)
	if err != nil {
		h.logger.Error("dead letter discard failed",
			slog.String("entry_id", id),
			slog.Any("error", err),
		)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to discard dead letter")
	}
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "dead letter not found")
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "discarded"})
}

// ClearAll removes every entry. Destructive, so it requires an
// explicit confirm=true query parameter.
func (h *DeadLetterHandler) ClearAll(c echo.Context) error {
	if c.QueryParam("confirm") != "true" {
		return echo.NewHTTPError(http.StatusBadRequest, "clearing all dead letters requires confirm=true")
	}
	removed, err := h.service.ClearAll(c.Request().Context())
	if err != nil {
		h.logger.Error("dead letter clear failed", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to clear dead letters")
	}
	h.logger.Info("dead letters cleared via admin api", slog.Int("removed", removed))
	return c.JSON(http.StatusOK, map[string]any{"removed": removed})
}
