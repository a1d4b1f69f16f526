package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/chorequest/chorequest/internal/model"
)

// Message is a real-time event pushed to every connected client. A
// "changed" message carries no payload and tells clients to re-fetch
// their snapshots. A "notification" message carries a single levelup or
// reward notification for immediate display.
type Message struct {
	Type         string              `json:"type"`
	Notification *model.Notification `json:"notification,omitempty"`
}

// ChangedMessage signals that server state changed and client snapshots are stale.
func ChangedMessage() Message {
	return Message{Type: "changed"}
}

// NotificationMessage wraps a notification for live delivery.
func NotificationMessage(n model.Notification) Message {
	return Message{Type: "notification", Notification: &n}
}

// Hub maintains the set of active WebSocket clients and broadcasts messages.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *slog.Logger
}

// NewHub creates a new Hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger,
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

// Unregister removes a client from the hub and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// Broadcast sends a message to all connected clients. Delivery is
// best-effort: notifications also live in the durable log, so a client
// that misses a broadcast catches up through replay on reconnect.
func (h *Hub) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal broadcast", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			// Client buffer full, drop the message to avoid blocking
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
