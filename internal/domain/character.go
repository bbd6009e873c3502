package domain

// Stat bounds shared by characters and player state.
const (
	StatMin = 0
	StatMax = 100
)

// Stats holds the three learner stats.
type Stats struct {
	Confidence int `json:"confidence"`
	Vocabulary int `json:"vocabulary"`
	Fluency    int `json:"fluency"`
}

// Clamped returns a copy with every stat limited to [StatMin, StatMax].
func (s Stats) Clamped() Stats {
	return Stats{
		Confidence: ClampStat(s.Confidence),
		Vocabulary: ClampStat(s.Vocabulary),
		Fluency:    ClampStat(s.Fluency),
	}
}

// InRange reports whether every stat lies within [StatMin, StatMax].
func (s Stats) InRange() bool {
	return s == s.Clamped()
}

// ClampStat limits v to [StatMin, StatMax].
func ClampStat(v int) int {
	return min(max(v, StatMin), StatMax)
}

// Character is an immutable catalog entry a player can pick.
type Character struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	AvatarKey       string   `json:"avatarKey"`
	StartingStats   Stats    `json:"startingStats"`
	PreferredChunks []string `json:"preferredChunks"`
}
