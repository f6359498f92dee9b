package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/helpflowai/helpflow/internal/dedupe"
	"github.com/helpflowai/helpflow/internal/ingest"
	"github.com/helpflowai/helpflow/internal/message"
)

// InboundMessageRequest is the messaging-provider webhook payload for
// a customer message.
type InboundMessageRequest struct {
	EventID    string `json:"event_id" validate:"required"`
	From       string `json:"from" validate:"required"`
	SenderName string `json:"sender_name"`
	Text       string `json:"text" validate:"required"`
	Timestamp  int64  `json:"timestamp"`
}

// DeliveryStatusRequest is the provider callback for an outbound
// message delivery transition.
type DeliveryStatusRequest struct {
	EventID string `json:"event_id" validate:"required"`
	Status  string `json:"status" validate:"required,oneof=sent delivered read failed"`
}

// Ingestor admits inbound events; satisfied by ingest.Service.
type Ingestor interface {
	Submit(ctx context.Context, event ingest.InboundEvent) error
}

// StatusUpdater applies delivery transitions; satisfied by
// message.Service.
type StatusUpdater interface {
	UpdateDeliveryStatus(ctx context.Context, tenantID, providerEventID, status string) error
}

// WebhookHandler handles messaging-provider callbacks.
type WebhookHandler struct {
	ingestor Ingestor
	statuses StatusUpdater
	logger   *slog.Logger
}

// NewWebhookHandler creates a WebhookHandler.
func NewWebhookHandler(log *slog.Logger, ingestor Ingestor, statuses StatusUpdater) *WebhookHandler {
	if log == nil {
		log = slog.Default()
	}
	return &WebhookHandler{
		ingestor: ingestor,
		statuses: statuses,
		logger:   log.With(slog.String("handler", "webhook")),
	}
}

// Register registers the webhook routes.
func (h *WebhookHandler) Register(e *echo.Echo) {
	e.POST("/webhooks/messages/:tenant_id", h.ReceiveMessage)
	e.POST("/webhooks/status/:tenant_id", h.ReceiveStatus)
}

// ReceiveMessage accepts an inbound customer message. Duplicates are
// acknowledged with 200 so the provider stops retrying; a fresh event
// is acknowledged with 202 as soon as it is persisted and queued.
func (h *WebhookHandler) ReceiveMessage(c echo.Context) error {
	tenantID := strings.TrimSpace(c.Param("tenant_id"))
	if tenantID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "tenant id is required")
	}
	var req InboundMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	event := ingest.InboundEvent{
		EventID:       req.EventID,
		TenantID:      tenantID,
		SenderAddress: req.From,
		SenderName:    req.SenderName,
		Text:          req.Text,
	}
	if req.Timestamp > 0 {
		event.Timestamp = time.Unix(req.Timestamp, 0).UTC()
	}

	err := h.ingestor.Submit(c.Request().Context(), event)
	switch {
	case err == nil:
		return c.JSON(http.StatusAccepted, map[string]string{"status": "accepted"})
	case errors.Is(err, dedupe.ErrDuplicateEvent), errors.Is(err, dedupe.ErrDuplicateContent):
		return c.JSON(http.StatusOK, map[string]string{"status": "duplicate"})
	default:
		h.logger.Error("inbound webhook rejected",
			slog.String("tenant_id", tenantID),
			slog.String("event_id", req.EventID),
			slog.Any("error", err),
		)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to accept message")
	}
}

// ReceiveStatus applies a delivery-status transition to the outbound
// message that carries the provider event id.
func (h *WebhookHandler) ReceiveStatus(c echo.Context) error {
	tenantID := strings.TrimSpace(c.Param("tenant_id"))
	if tenantID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "tenant id is required")
	}
	var req DeliveryStatusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := h.statuses.UpdateDeliveryStatus(c.Request().Context(), tenantID, req.EventID, req.Status); err != nil {
		if errors.Is(err, message.ErrNotFound) {
			// The provider can report status for messages we never
			// sent (or already pruned); acknowledge and move on.
			return c.JSON(http.StatusOK, map[string]string{"status": "ignored"})
		}
		h.logger.Error("delivery status update failed",
			slog.String("tenant_id", tenantID),
			slog.String("event_id", req.EventID),
			slog.Any("error", err),
		)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to update delivery status")
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "updated"})
}
