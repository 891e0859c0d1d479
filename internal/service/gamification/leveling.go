package gamification

// DefaultBaseXP is the XP needed to leave level 1.
const DefaultBaseXP = 100

// LevelState is an operator's position on the level curve.
type LevelState struct {
	Level      int
	XPCurrent  int
	XPRequired int
}

// Leveling applies the progression policy Requirement(L) = L * BaseXP.
type Leveling struct {
	BaseXP int
}

// NewLeveling returns the policy for baseXP, falling back to DefaultBaseXP when it is not positive.
func NewLeveling(baseXP int) Leveling {
	if baseXP <= 0 {
		baseXP = DefaultBaseXP
	}
	return Leveling{BaseXP: baseXP}
}

// Requirement returns the XP needed to advance from level to level+1.
func (l Leveling) Requirement(level int) int {
	if level < 1 {
		level = 1
	}
	return level * l.BaseXP
}

// Initial returns the state of a new operator.
func (l Leveling) Initial() LevelState {
	return LevelState{Level: 1, XPCurrent: 0, XPRequired: l.Requirement(1)}
}

// Apply adds delta XP and carries overflow through as many level-ups as it pays for.
// Negative deltas are ignored.
func (l Leveling) Apply(state LevelState, delta int) LevelState {
	if state.Level < 1 {
		state.Level = 1
	}
	if delta > 0 {
		state.XPCurrent += delta
	}
	for state.XPCurrent >= l.Requirement(state.Level) {
		state.XPCurrent -= l.Requirement(state.Level)
		state.Level++
	}
	state.XPRequired = l.Requirement(state.Level)
	return state
}
