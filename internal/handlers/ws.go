package handlers

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/helpflowai/helpflow/internal/notify"
)

const wsReadLimit = 4 << 10

// WSHandler upgrades dashboard clients onto the notification hub.
type WSHandler struct {
	hub      *notify.Hub
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewWSHandler creates a WSHandler.
func NewWSHandler(log *slog.Logger, hub *notify.Hub) *WSHandler {
	if log == nil {
		log = slog.Default()
	}
	return &WSHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Dashboard origins are enforced upstream at the proxy.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: log.With(slog.String("handler", "ws")),
	}
}

// Register registers the websocket route.
func (h *WSHandler) Register(e *echo.Echo) {
	e.GET("/ws/:tenant_id", h.Subscribe)
}

// Subscribe upgrades the connection and keeps it registered until the
// client goes away. Clients only listen; inbound frames besides
// close/ping are drained and dropped.
func (h *WSHandler) Subscribe(c echo.Context) error {
	tenantID := strings.TrimSpace(c.Param("tenant_id"))
	if tenantID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "tenant id is required")
	}
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	h.hub.Add(tenantID, conn)
	h.logger.Info("dashboard client connected",
		slog.String("tenant_id", tenantID),
		slog.Int("clients", h.hub.ClientCount(tenantID)),
	)

	conn.SetReadLimit(wsReadLimit)
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(90 * time.Second))
	})
	defer func() {
		h.hub.Remove(tenantID, conn)
		_ = conn.Close()
		h.logger.Info("dashboard client disconnected",
			slog.String("tenant_id", tenantID),
		)
	}()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return nil
		}
	}
}
