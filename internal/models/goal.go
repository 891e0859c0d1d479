package models

import (
	"fmt"
	"time"
)

// GoalKind discriminates the two goal variants.
type GoalKind string

// GoalKind constants.
const (
	GoalKindMission     GoalKind = "mission"
	GoalKindAchievement GoalKind = "achievement"
)

// ConditionType is the trigger condition a goal is measured by.
type ConditionType string

// ConditionType constants.
const (
	ConditionCallsHandled        ConditionType = "calls_handled"
	ConditionResolutionCount     ConditionType = "resolution_count"
	ConditionAverageHandleTime   ConditionType = "average_handle_time"
	ConditionAverageSatisfaction ConditionType = "average_satisfaction"
	ConditionLifetimePoints      ConditionType = "lifetime_points"
	ConditionLevel               ConditionType = "level"
)

// Direction is the comparison used to decide whether a value satisfies a threshold.
type Direction int

// Direction constants.
const (
	AtLeast Direction = iota // value >= threshold
	AtMost                   // value <= threshold
)

// MissionPeriod is the cadence of a time-boxed mission.
type MissionPeriod string

// MissionPeriod constants.
const (
	PeriodDaily   MissionPeriod = "daily"
	PeriodWeekly  MissionPeriod = "weekly"
	PeriodMonthly MissionPeriod = "monthly"
	PeriodSpecial MissionPeriod = "special"
)

// Bounds returns the calendar period of this cadence that contains t, computed in loc.
// Weeks start on Monday. ok is false for special missions, which follow no calendar.
func (p MissionPeriod) Bounds(t time.Time, loc *time.Location) (from, to time.Time, ok bool) {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	startOfDay := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)

	switch p {
	case PeriodDaily:
		return startOfDay, startOfDay.AddDate(0, 0, 1), true
	case PeriodWeekly:
		from = startOfDay.AddDate(0, 0, -((int(local.Weekday()) + 6) % 7))
		return from, from.AddDate(0, 0, 7), true
	case PeriodMonthly:
		from = time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
		return from, from.AddDate(0, 1, 0), true
	}
	return time.Time{}, time.Time{}, false
}

// TriggerCondition is the rule shared by missions and achievements.
type TriggerCondition struct {
	Type      ConditionType `gorm:"size:64;not null" json:"type" yaml:"type"`
	Threshold float64       `gorm:"not null" json:"threshold" yaml:"threshold"`
}

// Accumulating reports whether progress grows by per-event increments
// rather than being recomputed from an aggregate.
func (c TriggerCondition) Accumulating() bool {
	return c.Type == ConditionCallsHandled || c.Type == ConditionResolutionCount
}

// Direction returns the comparison natural to the condition type.
func (c TriggerCondition) Direction() Direction {
	if c.Type == ConditionAverageHandleTime {
		return AtMost
	}
	return AtLeast
}

// SatisfiedBy reports whether value meets the threshold.
func (c TriggerCondition) SatisfiedBy(value float64) bool {
	if c.Direction() == AtMost {
		return value <= c.Threshold
	}
	return value >= c.Threshold
}

// Validate checks the condition type is known and the threshold positive.
func (c TriggerCondition) Validate() error {
	switch c.Type {
	case ConditionCallsHandled, ConditionResolutionCount, ConditionAverageHandleTime,
		ConditionAverageSatisfaction, ConditionLifetimePoints, ConditionLevel:
	default:
		return fmt.Errorf("unknown condition type %q", c.Type)
	}
	if c.Threshold <= 0 {
		return fmt.Errorf("threshold must be positive, got %v", c.Threshold)
	}
	return nil
}

// MissionWindow bounds a mission in time. Zero for achievements.
type MissionWindow struct {
	Period    MissionPeriod `gorm:"size:32" json:"period,omitempty" yaml:"period"`
	StartsAt  *time.Time    `json:"starts_at,omitempty" yaml:"starts_at"`
	ExpiresAt *time.Time    `json:"expires_at,omitempty" yaml:"expires_at"`
}

// Open reports whether t falls inside the window. Missing bounds are open-ended.
func (w MissionWindow) Open(t time.Time) bool {
	if w.StartsAt != nil && t.Before(*w.StartsAt) {
		return false
	}
	if w.ExpiresAt != nil && !t.Before(*w.ExpiresAt) {
		return false
	}
	return true
}

// Recurring reports whether the window restarts every calendar period instead of having
// fixed bounds.
func (w MissionWindow) Recurring() bool {
	if w.StartsAt != nil || w.ExpiresAt != nil {
		return false
	}
	_, _, ok := w.Period.Bounds(time.Time{}, time.UTC)
	return ok
}

// Goal is either a time-boxed Mission or a permanent Achievement.
type Goal struct {
	ID          uint             `gorm:"primaryKey" json:"id"`
	Code        string           `gorm:"uniqueIndex;not null;size:100" json:"code"`
	Kind        GoalKind         `gorm:"size:32;not null;index" json:"kind"`
	Title       string           `gorm:"size:255;not null" json:"title"`
	Description string           `gorm:"type:text" json:"description"`
	Icon        string           `gorm:"size:50" json:"icon"`
	Condition   TriggerCondition `gorm:"embedded;embeddedPrefix:condition_" json:"condition"`
	Reward      int              `gorm:"not null;default:0" json:"reward"`
	Active      bool             `gorm:"not null;index" json:"active"`
	Window      MissionWindow    `gorm:"embedded;embeddedPrefix:window_" json:"window"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// TableName specifies the table name for Goal model.
func (Goal) TableName() string {
	return "goals"
}

// IsMission reports whether the goal is time-boxed.
func (g *Goal) IsMission() bool {
	return g.Kind == GoalKindMission
}

// PeriodKey names the occurrence of a recurring mission that contains t: the local date its
// period starts on. Achievements and fixed-window missions occur once and have an empty key.
func (g *Goal) PeriodKey(t time.Time, loc *time.Location) string {
	if !g.IsMission() || !g.Window.Recurring() {
		return ""
	}
	from, _, _ := g.Window.Period.Bounds(t, loc)
	return from.Format("2006-01-02")
}

// Validate checks the invariants a goal must hold to be evaluated.
func (g *Goal) Validate() error {
	if g.Kind != GoalKindMission && g.Kind != GoalKindAchievement {
		return fmt.Errorf("goal %q: unknown kind %q", g.Code, g.Kind)
	}
	if err := g.Condition.Validate(); err != nil {
		return fmt.Errorf("goal %q: %w", g.Code, err)
	}
	if g.Reward < 0 {
		return fmt.Errorf("goal %q: reward must not be negative", g.Code)
	}
	if g.IsMission() && g.Window.StartsAt != nil && g.Window.ExpiresAt != nil &&
		!g.Window.ExpiresAt.After(*g.Window.StartsAt) {
		return fmt.Errorf("goal %q: window expires before it starts", g.Code)
	}
	return nil
}
