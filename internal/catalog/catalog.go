// Package catalog loads the static character and quest document and
// normalizes it into one canonical shape.
package catalog

import (
	"github.com/ashureev/linguapolis/internal/domain"
)

// Catalog is the immutable set of characters and quests, in document order.
type Catalog struct {
	characters []domain.Character
	quests     []domain.Quest
	charByID   map[string]int
	questByID  map[string]int
}

func newCatalog(characters []domain.Character, quests []domain.Quest) *Catalog {
	c := &Catalog{
		characters: characters,
		quests:     quests,
		charByID:   make(map[string]int, len(characters)),
		questByID:  make(map[string]int, len(quests)),
	}
	for i, ch := range characters {
		c.charByID[ch.ID] = i
	}
	for i, q := range quests {
		c.questByID[q.ID] = i
	}
	return c
}

// Characters returns a copy of all characters.
func (c *Catalog) Characters() []domain.Character {
	return append([]domain.Character(nil), c.characters...)
}

// Character looks up a character by id.
func (c *Catalog) Character(id string) (domain.Character, bool) {
	i, ok := c.charByID[id]
	if !ok {
		return domain.Character{}, false
	}
	return c.characters[i], true
}

// Quests returns a copy of all quests.
func (c *Catalog) Quests() []domain.Quest {
	return append([]domain.Quest(nil), c.quests...)
}

// Quest looks up a quest by id.
func (c *Catalog) Quest(id string) (domain.Quest, bool) {
	i, ok := c.questByID[id]
	if !ok {
		return domain.Quest{}, false
	}
	return c.quests[i], true
}
