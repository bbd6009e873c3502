// Package live pushes player state changes to every open tab of a device
// over websockets.
package live

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/linguapolis/internal/domain"
	"github.com/coder/websocket"
)

const writeTimeout = 5 * time.Second

// Message is the envelope written to clients.
type Message struct {
	Type  string              `json:"type"`
	State *domain.PlayerState `json:"state,omitempty"`
}

// Message types.
const (
	TypeState = "state"
	TypeEmpty = "empty"
)

// conn is the subset of *websocket.Conn the hub needs.
type conn interface {
	Write(ctx context.Context, typ websocket.MessageType, p []byte) error
	Close(code websocket.StatusCode, reason string) error
}

// Hub tracks active websocket connections per user.
type Hub struct {
	mu     sync.RWMutex
	active map[string]map[conn]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		active: make(map[string]map[conn]struct{}),
	}
}

// Register adds a connection for userID.
func (h *Hub) Register(userID string, c conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.active[userID]; !exists {
		h.active[userID] = make(map[conn]struct{})
	}
	h.active[userID][c] = struct{}{}
	slog.Debug("Live connection registered", "user_id", userID, "connections", len(h.active[userID]))
}

// Unregister removes a connection for userID.
func (h *Hub) Unregister(userID string, c conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns, ok := h.active[userID]
	if !ok {
		return
	}
	delete(conns, c)
	if len(conns) == 0 {
		delete(h.active, userID)
	}
	slog.Debug("Live connection unregistered", "user_id", userID)
}

// Count returns the number of open connections for userID.
func (h *Hub) Count(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.active[userID])
}

// Broadcast sends state to every connection of userID. A nil state sends
// an empty message, used after reset.
func (h *Hub) Broadcast(userID string, state *domain.PlayerState) {
	msg := Message{Type: TypeState, State: state}
	if state == nil {
		msg.Type = TypeEmpty
	}
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("Failed to encode live message", "error", err, "user_id", userID)
		return
	}

	h.mu.RLock()
	targets := make([]conn, 0, len(h.active[userID]))
	for c := range h.active[userID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		if err := c.Write(ctx, websocket.MessageText, data); err != nil {
			slog.Debug("Live write failed", "error", err, "user_id", userID)
		}
		cancel()
	}
}

// CloseUser forcefully closes all connections for userID.
func (h *Hub) CloseUser(userID string) {
	h.mu.Lock()
	conns := h.active[userID]
	delete(h.active, userID)
	h.mu.Unlock()

	for c := range conns {
		_ = c.Close(websocket.StatusNormalClosure, "profile closed")
	}
	if len(conns) > 0 {
		slog.Info("Live connections closed", "user_id", userID, "count", len(conns))
	}
}
