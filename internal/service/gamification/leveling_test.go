package gamification

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLeveling_Apply(t *testing.T) {
	l := NewLeveling(100)

	tests := []struct {
		name  string
		start LevelState
		delta int
		want  LevelState
	}{
		{"carry over one level", LevelState{Level: 1, XPCurrent: 0, XPRequired: 100}, 250, LevelState{Level: 2, XPCurrent: 150, XPRequired: 200}},
		{"just below threshold", LevelState{Level: 1, XPCurrent: 0, XPRequired: 100}, 99, LevelState{Level: 1, XPCurrent: 99, XPRequired: 100}},
		{"exact threshold", LevelState{Level: 1, XPCurrent: 0, XPRequired: 100}, 100, LevelState{Level: 2, XPCurrent: 0, XPRequired: 200}},
		{"two levels at once", LevelState{Level: 1, XPCurrent: 0, XPRequired: 100}, 300, LevelState{Level: 3, XPCurrent: 0, XPRequired: 300}},
		{"partial xp carried", LevelState{Level: 2, XPCurrent: 150, XPRequired: 200}, 60, LevelState{Level: 3, XPCurrent: 10, XPRequired: 300}},
		{"zero delta", LevelState{Level: 4, XPCurrent: 10, XPRequired: 400}, 0, LevelState{Level: 4, XPCurrent: 10, XPRequired: 400}},
		{"negative delta ignored", LevelState{Level: 2, XPCurrent: 10, XPRequired: 200}, -50, LevelState{Level: 2, XPCurrent: 10, XPRequired: 200}},
		{"invalid level normalized", LevelState{Level: 0}, 0, LevelState{Level: 1, XPCurrent: 0, XPRequired: 100}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := l.Apply(tt.start, tt.delta)
			assert.Equal(t, tt.want, got)
			assert.Less(t, got.XPCurrent, got.XPRequired)
		})
	}
}

func TestLeveling_ApplyIsDeterministic(t *testing.T) {
	l := NewLeveling(100)
	start := l.Initial()

	// Applying the total at once equals applying it in parts.
	whole := l.Apply(start, 1234)
	parts := l.Apply(l.Apply(l.Apply(start, 34), 600), 600)
	assert.Equal(t, whole, parts)
}

func TestNewLeveling_DefaultBaseXP(t *testing.T) {
	assert.Equal(t, DefaultBaseXP, NewLeveling(0).BaseXP)
	assert.Equal(t, 250, NewLeveling(250).Requirement(1))
	assert.Equal(t, 750, NewLeveling(250).Requirement(3))
}
