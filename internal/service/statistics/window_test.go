package statistics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aimd54/callcenter-gamification/internal/models"
)

func TestCalendar(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	// Wednesday 2025-03-12 23:30 UTC is already Thursday in Berlin.
	now := time.Date(2025, 3, 12, 23, 30, 0, 0, time.UTC)

	tests := []struct {
		name     string
		window   string
		loc      *time.Location
		wantFrom time.Time
		wantTo   time.Time
	}{
		{"today utc", WindowToday, time.UTC, time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC), time.Date(2025, 3, 13, 0, 0, 0, 0, time.UTC)},
		{"today berlin", WindowToday, berlin, time.Date(2025, 3, 13, 0, 0, 0, 0, berlin), time.Date(2025, 3, 14, 0, 0, 0, 0, berlin)},
		{"day alias", "day", time.UTC, time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC), time.Date(2025, 3, 13, 0, 0, 0, 0, time.UTC)},
		{"week starts monday", WindowWeek, time.UTC, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), time.Date(2025, 3, 17, 0, 0, 0, 0, time.UTC)},
		{"month", WindowMonth, time.UTC, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := Calendar(tt.window, now, tt.loc)
			require.NoError(t, err)
			require.NotNil(t, w.From)
			require.NotNil(t, w.To)
			assert.True(t, tt.wantFrom.Equal(*w.From), "from = %s", w.From)
			assert.True(t, tt.wantTo.Equal(*w.To), "to = %s", w.To)
		})
	}
}

func TestCalendar_AllTimeAndUnknown(t *testing.T) {
	w, err := Calendar(WindowAllTime, time.Now(), nil)
	require.NoError(t, err)
	assert.Nil(t, w.From)
	assert.Nil(t, w.To)

	_, err = Calendar("fortnight", time.Now(), nil)
	assert.Error(t, err)
}

func TestForGoal(t *testing.T) {
	now := time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC)
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC)

	achievement := &models.Goal{Kind: models.GoalKindAchievement}
	assert.Equal(t, AllTime(), ForGoal(achievement, now, time.UTC))

	bounded := &models.Goal{Kind: models.GoalKindMission, Window: models.MissionWindow{Period: models.PeriodSpecial, StartsAt: &start, ExpiresAt: &end}}
	w := ForGoal(bounded, now, time.UTC)
	assert.Equal(t, &start, w.From)
	assert.Equal(t, &end, w.To)

	daily := &models.Goal{Kind: models.GoalKindMission, Window: models.MissionWindow{Period: models.PeriodDaily}}
	w = ForGoal(daily, now, time.UTC)
	assert.Equal(t, WindowToday, w.Name)
	assert.True(t, time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC).Equal(*w.From))

	unbounded := &models.Goal{Kind: models.GoalKindMission, Window: models.MissionWindow{Period: models.PeriodSpecial}}
	assert.Equal(t, AllTime(), ForGoal(unbounded, now, time.UTC))
}

func TestWindow_Key(t *testing.T) {
	a := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	b := a.In(time.FixedZone("X", 3600))

	assert.Equal(t, Range(&a, nil).Key(), Range(&b, nil).Key())
	assert.NotEqual(t, Range(&a, nil).Key(), AllTime().Key())
}

func TestWindow_Contains(t *testing.T) {
	from := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC)
	w := Range(&from, &to)

	assert.True(t, w.Contains(from))
	assert.True(t, w.Contains(to.Add(-time.Nanosecond)))
	assert.False(t, w.Contains(to))
	assert.False(t, w.Contains(from.Add(-time.Second)))
	assert.True(t, AllTime().Contains(from))
}
