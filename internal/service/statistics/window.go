package statistics

import (
	"fmt"
	"time"

	"github.com/aimd54/callcenter-gamification/internal/models"
)

// Window names.
const (
	WindowToday   = "today"
	WindowWeek    = "week"
	WindowMonth   = "month"
	WindowAllTime = "all_time"
	WindowRange   = "range"
)

// Window is a half-open time range [From, To) over call completion time.
// Nil bounds are open-ended.
type Window struct {
	Name string
	From *time.Time
	To   *time.Time
}

// AllTime returns the unbounded window.
func AllTime() Window {
	return Window{Name: WindowAllTime}
}

// Range returns an explicit window.
func Range(from, to *time.Time) Window {
	return Window{Name: WindowRange, From: from, To: to}
}

// Calendar returns the named calendar window containing now, computed in loc.
// Weeks start on Monday.
func Calendar(name string, now time.Time, loc *time.Location) (Window, error) {
	var period models.MissionPeriod
	switch name {
	case WindowToday, "day":
		name, period = WindowToday, models.PeriodDaily
	case WindowWeek:
		period = models.PeriodWeekly
	case WindowMonth:
		period = models.PeriodMonthly
	case WindowAllTime, "":
		return AllTime(), nil
	default:
		return Window{}, fmt.Errorf("unknown statistics window %q", name)
	}

	from, to, _ := period.Bounds(now, loc)
	return Window{Name: name, From: &from, To: &to}, nil
}

// ForGoal returns the window a goal's aggregate condition is measured over.
// Achievements use all-time statistics. Missions use their explicit bounds, or the calendar
// period containing now when no bounds are set.
func ForGoal(goal *models.Goal, now time.Time, loc *time.Location) Window {
	if !goal.IsMission() {
		return AllTime()
	}
	if goal.Window.StartsAt != nil || goal.Window.ExpiresAt != nil {
		return Window{Name: string(goal.Window.Period), From: goal.Window.StartsAt, To: goal.Window.ExpiresAt}
	}

	var name string
	switch goal.Window.Period {
	case models.PeriodDaily:
		name = WindowToday
	case models.PeriodWeekly:
		name = WindowWeek
	case models.PeriodMonthly:
		name = WindowMonth
	default:
		return AllTime()
	}
	w, _ := Calendar(name, now, loc)
	return w
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	if w.From != nil && t.Before(*w.From) {
		return false
	}
	if w.To != nil && !t.Before(*w.To) {
		return false
	}
	return true
}

// Key identifies the window's bounds, so goals sharing a window share one snapshot.
func (w Window) Key() string {
	format := func(t *time.Time) string {
		if t == nil {
			return "-"
		}
		return t.UTC().Format(time.RFC3339Nano)
	}
	return format(w.From) + "/" + format(w.To)
}
