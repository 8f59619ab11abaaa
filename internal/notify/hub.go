package notify

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeTimeout = 5 * time.Second

// Hub fans events out to connected inbox clients, grouped by tenant.
type Hub struct {
	log     *slog.Logger
	mu      sync.RWMutex
	clients map[string]map[*websocket.Conn]struct{}
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		log:     log.With(slog.String("service", "notify_hub")),
		clients: map[string]map[*websocket.Conn]struct{}{},
	}
}

// Add registers a client connection under its tenant.
func (h *Hub) Add(tenantID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[tenantID] == nil {
		h.clients[tenantID] = map[*websocket.Conn]struct{}{}
	}
	h.clients[tenantID][conn] = struct{}{}
}

// Remove drops a client connection. Safe to call for an unknown conn.
func (h *Hub) Remove(tenantID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients[tenantID], conn)
	if len(h.clients[tenantID]) == 0 {
		delete(h.clients, tenantID)
	}
}

// Broadcast sends the event to every client of the tenant. Dead connections
// are dropped on write failure.
func (h *Hub) Broadcast(tenantID string, event Event) {
	body, err := json.Marshal(event)
	if err != nil {
		h.log.Warn("marshal event failed", slog.String("error", err.Error()))
		return
	}

	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.clients[tenantID]))
	for conn := range h.clients[tenantID] {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, body); err != nil {
			h.Remove(tenantID, conn)
			conn.Close()
		}
	}
}

// ClientCount reports connected clients for a tenant.
func (h *Hub) ClientCount(tenantID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[tenantID])
}
