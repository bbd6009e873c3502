package savegame

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/ashureev/linguapolis/internal/domain"
	"github.com/ashureev/linguapolis/internal/store"
)

type memSlots struct {
	mu     sync.Mutex
	data   map[string][]byte
	getErr error
	putErr error
}

func newMemSlots() *memSlots {
	return &memSlots{data: make(map[string][]byte)}
}

func (m *memSlots) GetSlot(_ context.Context, userID, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.data[userID+"/"+key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return v, nil
}

func (m *memSlots) PutSlot(_ context.Context, userID, key string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	m.data[userID+"/"+key] = append([]byte(nil), payload...)
	return nil
}

func (m *memSlots) DeleteSlot(_ context.Context, userID, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, userID+"/"+key)
	return nil
}

func sampleState() domain.PlayerState {
	return domain.PlayerState{
		SelectedCharacterID: "tech_01",
		Stats:               domain.Stats{Confidence: 40, Vocabulary: 25, Fluency: 10},
		Coins:               50,
		Level:               2,
		XP:                  25,
		CompletedQuestIDs:   []string{"q_order", "q_price"},
	}
}

func TestStore_RoundTrip(t *testing.T) {
	s := New(newMemSlots(), "", nil)
	ctx := context.Background()
	states := []domain.PlayerState{
		sampleState(),
		{SelectedCharacterID: "c", Level: 1, CompletedQuestIDs: []string{}},
		{SelectedCharacterID: "c", Level: 9, XP: 300, Coins: 1, Stats: domain.Stats{Confidence: 100, Fluency: 100}, CompletedQuestIDs: []string{"a"}},
	}

	for _, want := range states {
		if err := s.Save(ctx, "u1", want); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		got, ok := s.Load(ctx, "u1")
		if !ok {
			t.Fatalf("Load returned no state for %+v", want)
		}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, want)
		}
	}
}

func TestStore_UsesFixedKey(t *testing.T) {
	slots := newMemSlots()
	s := New(slots, "", nil)

	if err := s.Save(context.Background(), "u1", sampleState()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, ok := slots.data["u1/"+DefaultKey]; !ok {
		t.Fatalf("expected slot under %s, have %v", DefaultKey, slots.data)
	}
	if s.Key() != DefaultKey {
		t.Fatalf("Key() = %q", s.Key())
	}
}

func TestStore_LoadMissing(t *testing.T) {
	s := New(newMemSlots(), "k", nil)
	if _, ok := s.Load(context.Background(), "u1"); ok {
		t.Fatal("expected no state")
	}
}

func TestStore_LoadRejectsBadPayloads(t *testing.T) {
	cases := map[string]string{
		"garbage":        `not json`,
		"wrong type":     `[1,2,3]`,
		"no character":   `{"level":1}`,
		"zero level":     `{"selectedCharacterId":"c","level":0}`,
		"negative xp":    `{"selectedCharacterId":"c","level":1,"xp":-4}`,
		"stat overflow":  `{"selectedCharacterId":"c","level":1,"stats":{"confidence":250}}`,
		"string coins":   `{"selectedCharacterId":"c","level":1,"coins":"50"}`,
		"negative coins": `{"selectedCharacterId":"c","level":1,"coins":-1}`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			slots := newMemSlots()
			slots.data["u1/"+DefaultKey] = []byte(payload)
			s := New(slots, "", nil)

			if state, ok := s.Load(context.Background(), "u1"); ok {
				t.Fatalf("expected no state, got %+v", state)
			}
		})
	}
}

func TestStore_LoadNormalizesCompletedSet(t *testing.T) {
	slots := newMemSlots()
	slots.data["u1/"+DefaultKey] = []byte(`{"selectedCharacterId":"c","level":1,"completedQuestIds":["b","a","b"]}`)
	s := New(slots, "", nil)

	got, ok := s.Load(context.Background(), "u1")
	if !ok {
		t.Fatal("expected state")
	}
	if !reflect.DeepEqual(got.CompletedQuestIDs, []string{"a", "b"}) {
		t.Fatalf("completed = %v", got.CompletedQuestIDs)
	}
}

func TestStore_ReadFailureIsEmpty(t *testing.T) {
	slots := newMemSlots()
	slots.getErr = errors.New("disk on fire")
	s := New(slots, "", nil)

	if _, ok := s.Load(context.Background(), "u1"); ok {
		t.Fatal("expected no state on read failure")
	}
}

func TestStore_SaveFailureIsReturned(t *testing.T) {
	slots := newMemSlots()
	slots.putErr = errors.New("read-only")
	s := New(slots, "", nil)

	if err := s.Save(context.Background(), "u1", sampleState()); err == nil {
		t.Fatal("expected error")
	}
}

func TestStore_Reset(t *testing.T) {
	s := New(newMemSlots(), "", nil)
	ctx := context.Background()
	if err := s.Save(ctx, "u1", sampleState()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if err := s.Reset(ctx, "u1"); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if _, ok := s.Load(ctx, "u1"); ok {
		t.Fatal("state survived reset")
	}
}
