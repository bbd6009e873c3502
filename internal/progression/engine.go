// Package progression applies quest rewards to player state and resolves
// level-ups on a fixed XP curve.
package progression

import (
	"github.com/ashureev/linguapolis/internal/domain"
)

// Defaults for the additive XP curve and the reward fallback.
const (
	DefaultBase      = 100
	DefaultIncrement = 40
	DefaultRewardXP  = 35
)

// Curve is the additive XP curve: Threshold(level) = Base + (level-1)*Increment.
type Curve struct {
	Base      int `json:"base"`
	Increment int `json:"increment"`
}

// DefaultCurve returns the canonical curve (100, +40 per level).
func DefaultCurve() Curve {
	return Curve{Base: DefaultBase, Increment: DefaultIncrement}
}

// Threshold returns the XP needed to advance from level to level+1.
// Levels below 1 are treated as level 1.
func (c Curve) Threshold(level int) int {
	if level < 1 {
		level = 1
	}
	return c.Base + (level-1)*c.Increment
}

// Engine owns reward application. It holds no player state itself.
type Engine struct {
	curve    Curve
	rewardXP int
}

// NewEngine creates an engine for the given curve. rewardXP is granted
// when a reward omits its xp field.
func NewEngine(curve Curve, rewardXP int) *Engine {
	if curve.Base <= 0 {
		curve.Base = DefaultBase
	}
	if curve.Increment < 0 {
		curve.Increment = 0
	}
	if rewardXP < 0 {
		rewardXP = DefaultRewardXP
	}
	return &Engine{curve: curve, rewardXP: rewardXP}
}

// Curve returns the engine's XP curve.
func (e *Engine) Curve() Curve {
	return e.curve
}

// RewardXP returns the fallback XP applied when a reward omits xp.
func (e *Engine) RewardXP() int {
	return e.rewardXP
}

// NewState seeds a fresh state from a character's starting stats.
func (e *Engine) NewState(ch domain.Character) domain.PlayerState {
	return domain.PlayerState{
		SelectedCharacterID: ch.ID,
		Stats:               ch.StartingStats.Clamped(),
		Level:               1,
		CompletedQuestIDs:   []string{},
	}
}

// ApplyReward returns state with reward applied and level-ups resolved.
// The input state is not modified.
func (e *Engine) ApplyReward(state domain.PlayerState, reward domain.Reward) domain.PlayerState {
	out := state
	out.Stats = domain.Stats{
		Confidence: addStat(state.Stats.Confidence, reward.Confidence),
		Vocabulary: addStat(state.Stats.Vocabulary, reward.Vocabulary),
		Fluency:    addStat(state.Stats.Fluency, reward.Fluency),
	}
	if reward.Coins != nil {
		out.Coins = max(0, out.Coins+*reward.Coins)
	}

	xp := e.rewardXP
	if reward.XP != nil {
		xp = *reward.XP
	}
	out.XP = max(0, out.XP+xp)
	if out.Level < 1 {
		out.Level = 1
	}

	for out.XP >= e.curve.Threshold(out.Level) {
		out.XP -= e.curve.Threshold(out.Level)
		out.Level++
	}
	return out
}

// CompleteQuest applies the quest reward and records questID, unless the
// quest is already completed. applied reports whether anything changed.
func (e *Engine) CompleteQuest(state domain.PlayerState, questID string, quest domain.Quest) (domain.PlayerState, bool) {
	if state.HasCompleted(questID) {
		return state, false
	}
	next := e.ApplyReward(state, quest.Reward)
	return next.WithCompleted(questID), true
}

func addStat(current int, delta *int) int {
	if delta == nil {
		return domain.ClampStat(current)
	}
	return domain.ClampStat(current + *delta)
}
