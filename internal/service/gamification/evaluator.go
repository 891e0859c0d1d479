package gamification

import (
	"time"

	"github.com/aimd54/callcenter-gamification/internal/models"
	"github.com/aimd54/callcenter-gamification/internal/service/statistics"
)

// EventKind names the domain event that triggered an evaluation.
type EventKind string

// EventKind constants.
const (
	EventCallCompleted EventKind = "call_completed"
)

// Event is a domain event that can advance goals. ID is the causal token used to reject replays.
type Event struct {
	ID                string
	Kind              EventKind
	OccurredAt        time.Time
	Resolved          bool
	HandleTimeSeconds int
	Satisfaction      *int
}

// Inputs are the aggregates a goal is measured against.
type Inputs struct {
	// Window is the occurrence of the goal being evaluated. Mission events outside it
	// contribute nothing.
	Window statistics.Window
	Stats  statistics.Snapshot
	Points int64
	Level  int
}

// Evaluation is the outcome of evaluating one goal for one event.
type Evaluation struct {
	// Candidate is the value this event proposes.
	Candidate float64
	// Value is what should be stored: Candidate merged with the previous value.
	Value float64
	// Relevant is false when the event neither contributes to nor samples the goal.
	Relevant bool
	// Satisfied reports whether Candidate meets the threshold.
	Satisfied bool
}

// Evaluate computes the progress of goal for event given the previous progress row (nil if none).
// It has no side effects.
func Evaluate(event Event, goal *models.Goal, prev *models.Progress, in Inputs) Evaluation {
	cond := goal.Condition

	var old float64
	fresh := prev == nil || prev.Fresh()
	if prev != nil {
		old = prev.Value
	}

	var (
		candidate float64
		relevant  bool
	)
	if cond.Accumulating() {
		contribution := Contribution(event, goal, in.Window)
		candidate = old + contribution
		relevant = contribution > 0
	} else {
		candidate, relevant = aggregate(cond.Type, in)
	}

	if !relevant {
		return Evaluation{Candidate: old, Value: old}
	}

	return Evaluation{
		Candidate: candidate,
		Value:     Merge(cond.Direction(), old, candidate, fresh),
		Relevant:  true,
		Satisfied: cond.SatisfiedBy(candidate),
	}
}

// Contribution returns how much a single event adds to an accumulating goal.
// Events outside the mission's current window contribute nothing.
func Contribution(event Event, goal *models.Goal, window statistics.Window) float64 {
	if event.Kind != EventCallCompleted {
		return 0
	}
	if goal.IsMission() && !window.Contains(event.OccurredAt) {
		return 0
	}
	switch goal.Condition.Type {
	case models.ConditionCallsHandled:
		return 1
	case models.ConditionResolutionCount:
		if event.Resolved {
			return 1
		}
	}
	return 0
}

// aggregate returns the live value of an aggregate condition and whether a sample exists.
func aggregate(t models.ConditionType, in Inputs) (float64, bool) {
	switch t {
	case models.ConditionAverageHandleTime:
		return in.Stats.AvgHandleTimeSeconds, in.Stats.TotalCalls > 0
	case models.ConditionAverageSatisfaction:
		return in.Stats.AvgSatisfaction, in.Stats.RatedCalls > 0
	case models.ConditionLifetimePoints:
		return float64(in.Points), true
	case models.ConditionLevel:
		return float64(in.Level), true
	}
	return 0, false
}

// Merge keeps the stored value from regressing: the larger value for at-least goals,
// the smaller for at-most goals. A fresh row takes the candidate as is.
func Merge(dir models.Direction, old, candidate float64, fresh bool) float64 {
	if fresh {
		return candidate
	}
	if dir == models.AtMost {
		return min(old, candidate)
	}
	return max(old, candidate)
}

// operatorDerived reports whether the goal depends only on the operator's points or level,
// which can change again within the same evaluation.
func operatorDerived(t models.ConditionType) bool {
	return t == models.ConditionLifetimePoints || t == models.ConditionLevel
}

// needsStatistics reports whether the goal reads call statistics.
func needsStatistics(t models.ConditionType) bool {
	return t == models.ConditionAverageHandleTime || t == models.ConditionAverageSatisfaction
}
