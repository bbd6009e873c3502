package live

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ashureev/linguapolis/internal/domain"
	"github.com/ashureev/linguapolis/internal/identity"
	"github.com/coder/websocket"
)

// StateSource returns the current state for a user.
type StateSource interface {
	State(ctx context.Context, owner string) (domain.PlayerState, bool)
}

// Handler upgrades requests to a websocket state feed.
type Handler struct {
	hub           *Hub
	source        StateSource
	allowedOrigin string
	isDev         bool
}

// NewHandler creates a websocket handler.
func NewHandler(hub *Hub, source StateSource, allowedOrigin string, isDev bool) *Handler {
	return &Handler{
		hub:           hub,
		source:        source,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "user_id", userID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "feed ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "user_id", userID)
		}
	}()

	h.hub.Register(userID, ws)
	defer h.hub.Unregister(userID, ws)

	ctx := r.Context()
	msg := Message{Type: TypeEmpty}
	if state, ok := h.source.State(ctx, userID); ok {
		msg = Message{Type: TypeState, State: &state}
	}
	if err := writeJSON(ctx, ws, msg); err != nil {
		slog.Debug("Failed to send initial state", "error", err, "user_id", userID)
		return
	}

	// Clients only listen; reading keeps control frames flowing and
	// detects disconnects.
	for {
		if _, _, err := ws.Read(ctx); err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("WebSocket closed by client", "user_id", userID)
			} else {
				slog.Debug("WebSocket read ended", "error", err, "user_id", userID)
			}
			return
		}
	}
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

func writeJSON(ctx context.Context, ws *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return ws.Write(ctx, websocket.MessageText, data)
}
