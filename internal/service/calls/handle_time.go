package calls

import (
	"time"
)

// CalculateHandleTime returns the whole seconds between start and completion.
// Negative durations (clock skew) count as 0.
func CalculateHandleTime(startedAt, completedAt time.Time) int {
	seconds := int(completedAt.Sub(startedAt).Seconds())
	if seconds < 0 {
		return 0
	}
	return seconds
}

// ValidSatisfaction reports whether a customer rating is on the 1-5 scale. Nil means unrated.
func ValidSatisfaction(score *int) bool {
	return score == nil || (*score >= 1 && *score <= 5)
}
