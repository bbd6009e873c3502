// Package game is the single owning context for player progression. It
// threads the catalog, the progression engine, persistence and live
// notifications through every mutation.
package game

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/ashureev/linguapolis/internal/catalog"
	"github.com/ashureev/linguapolis/internal/domain"
	"github.com/ashureev/linguapolis/internal/progression"
)

var (
	// ErrUnknownCharacter is returned when a character id is not in the catalog.
	ErrUnknownCharacter = errors.New("unknown character")
	// ErrUnknownQuest is returned when a quest id is not in the catalog.
	ErrUnknownQuest = errors.New("unknown quest")
	// ErrNoState is returned when an operation needs a selected character.
	ErrNoState = errors.New("no character selected")
)

// Saves persists player state. Load never fails; it reports absence.
type Saves interface {
	Save(ctx context.Context, owner string, state domain.PlayerState) error
	Load(ctx context.Context, owner string) (domain.PlayerState, bool)
	Reset(ctx context.Context, owner string) error
}

// Notifier receives the state after every mutation. nil means reset.
type Notifier interface {
	Broadcast(owner string, state *domain.PlayerState)
}

// ReplyResult is the outcome of a quest reply.
type ReplyResult struct {
	Matched bool               `json:"matched"`
	Chunk   string             `json:"chunk,omitempty"`
	Hint    string             `json:"hint,omitempty"`
	Applied bool               `json:"applied"`
	State   domain.PlayerState `json:"state"`
}

// Service owns progression for every device.
type Service struct {
	catalog  *catalog.Catalog
	engine   *progression.Engine
	saves    Saves
	notifier Notifier
	logger   *slog.Logger

	locks sync.Map // owner -> *sync.Mutex
}

// NewService creates the game context. notifier may be nil.
func NewService(cat *catalog.Catalog, engine *progression.Engine, saves Saves, notifier Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		catalog:  cat,
		engine:   engine,
		saves:    saves,
		notifier: notifier,
		logger:   logger,
	}
}

// Catalog returns the loaded catalog.
func (s *Service) Catalog() *catalog.Catalog {
	return s.catalog
}

// Engine returns the progression engine.
func (s *Service) Engine() *progression.Engine {
	return s.engine
}

// State returns the owner's current state, if a character was selected.
func (s *Service) State(ctx context.Context, owner string) (domain.PlayerState, bool) {
	return s.saves.Load(ctx, owner)
}

// Select starts progression with characterID. Re-selecting the current
// character keeps the existing state; picking another one starts over.
func (s *Service) Select(ctx context.Context, owner, characterID string) (domain.PlayerState, error) {
	ch, ok := s.catalog.Character(characterID)
	if !ok {
		return domain.PlayerState{}, ErrUnknownCharacter
	}

	unlock := s.lock(owner)
	defer unlock()

	if current, ok := s.saves.Load(ctx, owner); ok && current.SelectedCharacterID == ch.ID {
		return current, nil
	}

	state := s.engine.NewState(ch)
	s.logger.Info("Character selected", "user_id", owner, "character_id", ch.ID)
	s.commit(ctx, owner, state)
	return state, nil
}

// Reply checks message against the quest's required chunks and completes
// the quest on a match. A miss returns the nearest chunk as a hint.
func (s *Service) Reply(ctx context.Context, owner, questID, message string) (ReplyResult, error) {
	quest, ok := s.catalog.Quest(questID)
	if !ok {
		return ReplyResult{}, ErrUnknownQuest
	}

	unlock := s.lock(owner)
	defer unlock()

	state, ok := s.saves.Load(ctx, owner)
	if !ok {
		return ReplyResult{}, ErrNoState
	}

	chunk, matched := progression.MatchChunk(message, quest.RequiredChunks)
	if !matched {
		hint, _ := progression.NearestChunk(message, quest.RequiredChunks)
		return ReplyResult{Hint: hint, State: state}, nil
	}

	next, applied := s.engine.CompleteQuest(state, quest.ID, quest)
	if applied {
		s.logQuest(owner, quest.ID, state, next)
		s.commit(ctx, owner, next)
	}
	return ReplyResult{Matched: true, Chunk: chunk, Applied: applied, State: next}, nil
}

// Complete completes questID without a reply check. Completing an already
// completed quest changes nothing.
func (s *Service) Complete(ctx context.Context, owner, questID string) (domain.PlayerState, bool, error) {
	quest, ok := s.catalog.Quest(questID)
	if !ok {
		return domain.PlayerState{}, false, ErrUnknownQuest
	}

	unlock := s.lock(owner)
	defer unlock()

	state, ok := s.saves.Load(ctx, owner)
	if !ok {
		return domain.PlayerState{}, false, ErrNoState
	}

	next, applied := s.engine.CompleteQuest(state, quest.ID, quest)
	if applied {
		s.logQuest(owner, quest.ID, state, next)
		s.commit(ctx, owner, next)
	}
	return next, applied, nil
}

// Reset destroys the owner's state.
func (s *Service) Reset(ctx context.Context, owner string) {
	unlock := s.lock(owner)
	defer unlock()

	if err := s.saves.Reset(ctx, owner); err != nil {
		s.logger.Error("Failed to clear saved state", "error", err, "user_id", owner)
	}
	s.logger.Info("Player state reset", "user_id", owner)
	if s.notifier != nil {
		s.notifier.Broadcast(owner, nil)
	}
}

// commit persists state and notifies listeners. Persistence failures are
// logged only; the in-flight response still carries the new state.
func (s *Service) commit(ctx context.Context, owner string, state domain.PlayerState) {
	if err := s.saves.Save(ctx, owner, state); err != nil {
		s.logger.Error("Failed to persist player state", "error", err, "user_id", owner)
	}
	if s.notifier != nil {
		s.notifier.Broadcast(owner, &state)
	}
}

func (s *Service) logQuest(owner, questID string, before, after domain.PlayerState) {
	s.logger.Info("Quest completed",
		"user_id", owner,
		"quest_id", questID,
		"level", after.Level,
		"xp", after.XP,
		"coins", after.Coins,
	)
	if after.Level > before.Level {
		s.logger.Info("Level up", "user_id", owner, "from", before.Level, "to", after.Level)
	}
}

func (s *Service) lock(owner string) func() {
	v, _ := s.locks.LoadOrStore(owner, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Forget drops the owner's lock entry once the device is gone.
func (s *Service) Forget(owner string) {
	s.locks.Delete(owner)
}
