package domain

import (
	"slices"
)

// PlayerState is the mutable progression of one device.
type PlayerState struct {
	SelectedCharacterID string   `json:"selectedCharacterId"`
	Stats               Stats    `json:"stats"`
	Coins               int      `json:"coins"`
	Level               int      `json:"level"`
	XP                  int      `json:"xp"`
	CompletedQuestIDs   []string `json:"completedQuestIds"`
}

// HasCompleted reports whether questID is in the completed set.
func (p PlayerState) HasCompleted(questID string) bool {
	_, found := slices.BinarySearch(p.CompletedQuestIDs, questID)
	return found
}

// WithCompleted returns a copy with questID added to the completed set.
// The set stays sorted and duplicate-free.
func (p PlayerState) WithCompleted(questID string) PlayerState {
	i, found := slices.BinarySearch(p.CompletedQuestIDs, questID)
	if found {
		return p
	}
	out := p
	out.CompletedQuestIDs = slices.Insert(slices.Clone(p.CompletedQuestIDs), i, questID)
	return out
}

// Valid reports whether the state satisfies the persisted shape rules.
func (p PlayerState) Valid() bool {
	return p.SelectedCharacterID != "" &&
		p.Level >= 1 &&
		p.XP >= 0 &&
		p.Coins >= 0 &&
		p.Stats.InRange()
}

// Normalized returns a copy whose completed set is sorted, duplicate-free
// and non-nil.
func (p PlayerState) Normalized() PlayerState {
	out := p
	ids := slices.Clone(p.CompletedQuestIDs)
	if ids == nil {
		ids = []string{}
	}
	slices.Sort(ids)
	out.CompletedQuestIDs = slices.Compact(ids)
	return out
}
