package calls

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCalculateHandleTime(t *testing.T) {
	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		completed time.Time
		want      int
	}{
		{"three minutes", start.Add(3 * time.Minute), 180},
		{"sub-second truncated", start.Add(1500 * time.Millisecond), 1},
		{"same instant", start, 0},
		{"clock skew", start.Add(-time.Minute), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CalculateHandleTime(start, tt.completed))
		})
	}
}

func TestValidSatisfaction(t *testing.T) {
	score := func(v int) *int { return &v }

	assert.True(t, ValidSatisfaction(nil))
	assert.True(t, ValidSatisfaction(score(1)))
	assert.True(t, ValidSatisfaction(score(5)))
	assert.False(t, ValidSatisfaction(score(0)))
	assert.False(t, ValidSatisfaction(score(6)))
}
