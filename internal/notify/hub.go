// Package notify pushes "new message" events to connected dashboard
// clients over websockets.
package notify

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeTimeout = 5 * time.Second

// Event is what subscribers receive.
type Event struct {
	Type           string    `json:"type"`
	TenantID       string    `json:"tenant_id"`
	ConversationID string    `json:"conversation_id"`
	MessageID      string    `json:"message_id"`
	Sender         string    `json:"sender"`
	Text           string    `json:"text"`
	CreatedAt      time.Time `json:"created_at"`
}

// Hub is the explicitly-owned registry of connected clients, keyed by
// tenant. It is created at process start, torn down at shutdown, and
// mutated only through Add, Remove and Broadcast.
type Hub struct {
	mu      sync.RWMutex
	writeMu sync.Mutex // serializes writes; gorilla conns allow one writer
	clients map[string]map[*websocket.Conn]struct{}
	logger  *slog.Logger
	closed  bool
}

func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		clients: map[string]map[*websocket.Conn]struct{}{},
		logger:  log.With(slog.String("component", "notify_hub")),
	}
}

// Add registers a connection for a tenant.
func (h *Hub) Add(tenantID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	if h.clients[tenantID] == nil {
		h.clients[tenantID] = map[*websocket.Conn]struct{}{}
	}
	h.clients[tenantID][conn] = struct{}{}
}

// Remove drops a connection; the caller owns closing it.
func (h *Hub) Remove(tenantID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns := h.clients[tenantID]; conns != nil {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.clients, tenantID)
		}
	}
}

// Broadcast sends the event to every client of the tenant. Write
// failures drop the failing connection; they never propagate to the
// caller.
func (h *Hub) Broadcast(tenantID string, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("marshal notify event", slog.Any("error", err))
		return
	}

	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.clients[tenantID]))
	for conn := range h.clients[tenantID] {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	for _, conn := range conns {
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.logger.Debug("dropping dead subscriber",
				slog.String("tenant_id", tenantID),
				slog.Any("error", err),
			)
			h.Remove(tenantID, conn)
			_ = conn.Close()
		}
	}
}

// ClientCount reports connected clients for a tenant.
func (h *Hub) ClientCount(tenantID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[tenantID])
}

// Shutdown closes every connection and stops accepting new ones.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for tenantID, conns := range h.clients {
		for conn := range conns {
			_ = conn.Close()
		}
		delete(h.clients, tenantID)
	}
}
