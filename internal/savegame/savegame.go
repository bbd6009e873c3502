// Package savegame persists player state in a per-device slot under a
// fixed key, the server-side counterpart of browser local storage.
package savegame

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ashureev/linguapolis/internal/domain"
	"github.com/ashureev/linguapolis/internal/store"
)

// DefaultKey is the canonical slot key for player state.
const DefaultKey = "linguapolis_state_v1"

// Store saves and restores PlayerState through a slot backend.
type Store struct {
	slots  store.Slots
	key    string
	logger *slog.Logger
}

// New creates a Store writing under key. An empty key uses DefaultKey.
func New(slots store.Slots, key string, logger *slog.Logger) *Store {
	if key == "" {
		key = DefaultKey
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{slots: slots, key: key, logger: logger}
}

// Key returns the slot key in use.
func (s *Store) Key() string {
	return s.key
}

// Save overwrites the owner's slot with state.
func (s *Store) Save(ctx context.Context, owner string, state domain.PlayerState) error {
	payload, err := json.Marshal(state.Normalized())
	if err != nil {
		return fmt.Errorf("encode player state: %w", err)
	}
	if err := s.slots.PutSlot(ctx, owner, s.key, payload); err != nil {
		return fmt.Errorf("save player state: %w", err)
	}
	return nil
}

// Load restores the owner's state. Any read failure, parse failure or shape
// mismatch is reported as no saved state; it never fails the caller.
func (s *Store) Load(ctx context.Context, owner string) (domain.PlayerState, bool) {
	payload, err := s.slots.GetSlot(ctx, owner, s.key)
	if errors.Is(err, store.ErrNotFound) {
		return domain.PlayerState{}, false
	}
	if err != nil {
		s.logger.Warn("Failed to read saved state", "user_id", owner, "key", s.key, "error", err)
		return domain.PlayerState{}, false
	}

	var state domain.PlayerState
	if err := json.Unmarshal(payload, &state); err != nil {
		s.logger.Warn("Discarding unparseable saved state", "user_id", owner, "key", s.key, "error", err)
		return domain.PlayerState{}, false
	}
	state = state.Normalized()
	if !state.Valid() {
		s.logger.Warn("Discarding saved state with invalid shape", "user_id", owner, "key", s.key)
		return domain.PlayerState{}, false
	}
	return state, true
}

// Reset deletes the owner's slot.
func (s *Store) Reset(ctx context.Context, owner string) error {
	if err := s.slots.DeleteSlot(ctx, owner, s.key); err != nil {
		return fmt.Errorf("reset player state: %w", err)
	}
	return nil
}
