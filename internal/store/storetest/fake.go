// Package storetest provides an in-memory store.Repository for tests.
package storetest

import (
	"context"
	"sync"
	"time"

	"github.com/ashureev/linguapolis/internal/domain"
	"github.com/ashureev/linguapolis/internal/store"
)

// Repo is an in-memory store.Repository. Err fields, when set, are
// returned by the matching calls.
type Repo struct {
	mu    sync.Mutex
	users map[string]*domain.User
	slots map[string]map[string][]byte

	GetUserErr error
	PutSlotErr error
	GetSlotErr error
	DeleteErr  error
}

var _ store.Repository = (*Repo)(nil)

// New creates an empty Repo.
func New() *Repo {
	return &Repo{
		users: make(map[string]*domain.User),
		slots: make(map[string]map[string][]byte),
	}
}

func (f *Repo) GetUser(_ context.Context, userID string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.GetUserErr != nil {
		return nil, f.GetUserErr
	}
	user := f.users[userID]
	if user == nil {
		return nil, nil
	}
	u := *user
	return &u, nil
}

func (f *Repo) UpsertUser(_ context.Context, user *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := *user
	f.users[user.UserID] = &u
	return nil
}

func (f *Repo) UpdateLastSeen(_ context.Context, userID string, lastSeen time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if user := f.users[userID]; user != nil {
		user.LastSeenAt = lastSeen
		user.UpdatedAt = time.Now()
	}
	return nil
}

func (f *Repo) GetIdleUsers(_ context.Context, ttl time.Duration) ([]*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	threshold := time.Now().Add(-ttl)
	var out []*domain.User
	for _, user := range f.users {
		if user.LastSeenAt.Before(threshold) {
			u := *user
			out = append(out, &u)
		}
	}
	return out, nil
}

func (f *Repo) DeleteUser(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.DeleteErr != nil {
		return f.DeleteErr
	}
	delete(f.users, userID)
	delete(f.slots, userID)
	return nil
}

func (f *Repo) Ping(_ context.Context) error { return nil }
func (f *Repo) Close() error                 { return nil }

func (f *Repo) GetSlot(_ context.Context, userID, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.GetSlotErr != nil {
		return nil, f.GetSlotErr
	}
	v, ok := f.slots[userID][key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (f *Repo) PutSlot(_ context.Context, userID, key string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PutSlotErr != nil {
		return f.PutSlotErr
	}
	if f.slots[userID] == nil {
		f.slots[userID] = make(map[string][]byte)
	}
	f.slots[userID][key] = append([]byte(nil), payload...)
	return nil
}

func (f *Repo) DeleteSlot(_ context.Context, userID, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.DeleteErr != nil {
		return f.DeleteErr
	}
	delete(f.slots[userID], key)
	return nil
}

// User returns a copy of the stored user, or nil.
func (f *Repo) User(userID string) *domain.User {
	u, _ := f.GetUser(context.Background(), userID)
	return u
}

// SlotCount returns how many slots userID holds.
func (f *Repo) SlotCount(userID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.slots[userID])
}
