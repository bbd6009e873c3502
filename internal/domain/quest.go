package domain

// Reward is a sparse set of deltas applied atomically on quest completion.
// A nil field means the quest does not touch that value.
type Reward struct {
	Confidence *int `json:"confidence,omitempty"`
	Vocabulary *int `json:"vocabulary,omitempty"`
	Fluency    *int `json:"fluency,omitempty"`
	Coins      *int `json:"coins,omitempty"`
	XP         *int `json:"xp,omitempty"`
}

// Quest is an immutable catalog entry the player completes by replying
// with one of its required chunks.
type Quest struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	RequiredChunks []string `json:"requiredChunks"`
	Reward         Reward   `json:"reward"`
}

// Int returns a pointer to v, for building rewards in code.
func Int(v int) *int {
	return &v
}
