package live

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/linguapolis/internal/domain"
	"github.com/coder/websocket"
)

type fakeConn struct {
	mu     sync.Mutex
	writes [][]byte
	closed bool
}

func (c *fakeConn) Write(_ context.Context, _ websocket.MessageType, p []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes = append(c.writes, append([]byte(nil), p...))
	return nil
}

func (c *fakeConn) Close(websocket.StatusCode, string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) last(t *testing.T) Message {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.writes) == 0 {
		t.Fatal("no writes")
	}
	var msg Message
	if err := json.Unmarshal(c.writes[len(c.writes)-1], &msg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return msg
}

func TestHub_BroadcastReachesEveryTab(t *testing.T) {
	hub := NewHub()
	tab1, tab2, other := &fakeConn{}, &fakeConn{}, &fakeConn{}
	hub.Register("u1", tab1)
	hub.Register("u1", tab2)
	hub.Register("u2", other)

	state := domain.PlayerState{SelectedCharacterID: "tech_01", Level: 2, XP: 25}
	hub.Broadcast("u1", &state)

	for _, c := range []*fakeConn{tab1, tab2} {
		msg := c.last(t)
		if msg.Type != TypeState || msg.State == nil || msg.State.Level != 2 {
			t.Fatalf("unexpected message %+v", msg)
		}
	}
	if len(other.writes) != 0 {
		t.Fatal("broadcast leaked to another user")
	}
}

func TestHub_BroadcastNilIsEmpty(t *testing.T) {
	hub := NewHub()
	c := &fakeConn{}
	hub.Register("u1", c)

	hub.Broadcast("u1", nil)

	if msg := c.last(t); msg.Type != TypeEmpty || msg.State != nil {
		t.Fatalf("unexpected message %+v", msg)
	}
}

func TestHub_Unregister(t *testing.T) {
	hub := NewHub()
	c1, c2 := &fakeConn{}, &fakeConn{}
	hub.Register("u1", c1)
	hub.Register("u1", c2)

	hub.Unregister("u1", c1)
	if hub.Count("u1") != 1 {
		t.Fatalf("count = %d, want 1", hub.Count("u1"))
	}
	hub.Unregister("u1", c2)
	if hub.Count("u1") != 0 {
		t.Fatalf("count = %d, want 0", hub.Count("u1"))
	}
	hub.Unregister("nobody", c1)
}

func TestHub_CloseUser(t *testing.T) {
	hub := NewHub()
	c := &fakeConn{}
	hub.Register("u1", c)

	hub.CloseUser("u1")

	if !c.closed {
		t.Fatal("connection not closed")
	}
	if hub.Count("u1") != 0 {
		t.Fatal("connection still registered")
	}
}

func TestHub_ConcurrentAccess(t *testing.T) {
	hub := NewHub()
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			hub.Register("u"+strconv.Itoa(i%5), &fakeConn{})
		}
	}()
	go func() {
		defer wg.Done()
		state := domain.PlayerState{Level: 1}
		for i := 0; i < 500; i++ {
			hub.Broadcast("u"+strconv.Itoa(i%5), &state)
		}
	}()

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("concurrent access timed out")
	}
}
