package live

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ashureev/linguapolis/internal/domain"
	"github.com/ashureev/linguapolis/internal/identity"
	"github.com/coder/websocket"
)

type staticSource struct {
	state *domain.PlayerState
}

func (s staticSource) State(context.Context, string) (domain.PlayerState, bool) {
	if s.state == nil {
		return domain.PlayerState{}, false
	}
	return *s.state, true
}

func withUser(userID string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(identity.WithUser(r.Context(), userID)))
	})
}

func readMessage(t *testing.T, ctx context.Context, c *websocket.Conn) Message {
	t.Helper()
	_, data, err := c.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return msg
}

func TestHandler_SendsInitialStateThenBroadcasts(t *testing.T) {
	hub := NewHub()
	state := domain.PlayerState{SelectedCharacterID: "tech_01", Level: 1}
	srv := httptest.NewServer(withUser("u1", NewHandler(hub, staticSource{state: &state}, "*", true)))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer func() { _ = c.Close(websocket.StatusNormalClosure, "") }()

	first := readMessage(t, ctx, c)
	if first.Type != TypeState || first.State.SelectedCharacterID != "tech_01" {
		t.Fatalf("unexpected initial message %+v", first)
	}

	deadline := time.Now().Add(2 * time.Second)
	for hub.Count("u1") == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	next := domain.PlayerState{SelectedCharacterID: "tech_01", Level: 3}
	hub.Broadcast("u1", &next)

	if got := readMessage(t, ctx, c); got.State == nil || got.State.Level != 3 {
		t.Fatalf("unexpected broadcast %+v", got)
	}
}

func TestHandler_EmptyWhenNoState(t *testing.T) {
	srv := httptest.NewServer(withUser("u1", NewHandler(NewHub(), staticSource{}, "*", true)))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer func() { _ = c.Close(websocket.StatusNormalClosure, "") }()

	if got := readMessage(t, ctx, c); got.Type != TypeEmpty {
		t.Fatalf("expected empty message, got %+v", got)
	}
}

func TestHandler_RejectsAnonymous(t *testing.T) {
	rr := httptest.NewRecorder()
	NewHandler(NewHub(), staticSource{}, "*", true).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ws/state", nil))

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestHandler_CheckOrigin(t *testing.T) {
	h := NewHandler(NewHub(), staticSource{}, "https://linguapolis.example", false)

	req := httptest.NewRequest(http.MethodGet, "/ws/state", nil)
	req.Header.Set("Origin", "https://evil.example")
	if h.checkOrigin(req) {
		t.Fatal("expected foreign origin to be rejected")
	}
	req.Header.Set("Origin", "https://linguapolis.example")
	if !h.checkOrigin(req) {
		t.Fatal("expected configured origin to pass")
	}
}
