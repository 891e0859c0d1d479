package statistics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/aimd54/callcenter-gamification/internal/models"
	"github.com/aimd54/callcenter-gamification/internal/repository"
	"github.com/aimd54/callcenter-gamification/pkg/logger"
)

type failingCallRepo struct{}

func (failingCallRepo) Aggregate(context.Context, uint, *time.Time, *time.Time) (repository.CallAggregate, error) {
	return repository.CallAggregate{}, errors.New("connection reset")
}

func setupTestDB(t *testing.T) *repository.DB {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	db := repository.Wrap(gdb)
	require.NoError(t, db.AutoMigrate())
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestFromAggregate_ZeroCalls(t *testing.T) {
	s := FromAggregate(WindowAllTime, repository.CallAggregate{})

	assert.Zero(t, s.TotalCalls)
	assert.Zero(t, s.AvgHandleTimeSeconds)
	assert.Zero(t, s.AvgSatisfaction)
	assert.Zero(t, s.ResolutionRate)
}

func TestFromAggregate_SatisfactionOverRatedCallsOnly(t *testing.T) {
	s := FromAggregate(WindowToday, repository.CallAggregate{
		TotalCalls:         4,
		ResolvedCalls:      3,
		TotalHandleSeconds: 800,
		RatedCalls:         2,
		TotalSatisfaction:  9,
	})

	assert.Equal(t, 200.0, s.AvgHandleTimeSeconds)
	assert.Equal(t, 4.5, s.AvgSatisfaction)
	assert.Equal(t, 0.75, s.ResolutionRate)
}

func TestService_Snapshot(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(repository.NewCallRepository(db), time.UTC, logger.Nop())
	ctx := context.Background()

	op := &models.Operator{Username: "alice", Level: 1, XPRequired: 100, Status: models.StatusAwaitingCall}
	require.NoError(t, db.Create(op).Error)

	yesterday := time.Date(2025, 3, 11, 15, 0, 0, 0, time.UTC)
	today := time.Date(2025, 3, 12, 9, 0, 0, 0, time.UTC)
	five, three := 5, 3
	for i, c := range []models.Call{
		{HandleTimeSeconds: 120, Resolved: true, Satisfaction: &five, CompletedAt: &yesterday},
		{HandleTimeSeconds: 240, Resolved: false, CompletedAt: &today},
		{HandleTimeSeconds: 360, Resolved: true, Satisfaction: &three, CompletedAt: &today},
	} {
		c.EventID = "evt-" + string(rune('a'+i))
		c.OperatorID = op.ID
		c.Status = models.CallStatusCompleted
		c.StartedAt = c.CompletedAt.Add(-time.Duration(c.HandleTimeSeconds) * time.Second)
		require.NoError(t, db.Create(&c).Error)
	}

	all, err := svc.Snapshot(ctx, op.ID, AllTime())
	require.NoError(t, err)
	assert.Equal(t, int64(3), all.TotalCalls)
	assert.Equal(t, 240.0, all.AvgHandleTimeSeconds)
	assert.Equal(t, 4.0, all.AvgSatisfaction)
	assert.InDelta(t, 2.0/3.0, all.ResolutionRate, 1e-9)

	now := time.Date(2025, 3, 12, 18, 0, 0, 0, time.UTC)
	day, err := svc.SnapshotFor(ctx, op.ID, WindowToday, now)
	require.NoError(t, err)
	assert.Equal(t, WindowToday, day.Window)
	assert.Equal(t, int64(2), day.TotalCalls)
	assert.Equal(t, 300.0, day.AvgHandleTimeSeconds)
	assert.Equal(t, 3.0, day.AvgSatisfaction)

	empty, err := svc.Snapshot(ctx, 4242, AllTime())
	require.NoError(t, err)
	assert.Zero(t, empty.ResolutionRate)
}

func TestService_Snapshot_Error(t *testing.T) {
	svc := NewServiceWithInterfaces(failingCallRepo{}, nil, logger.Nop())

	_, err := svc.Snapshot(context.Background(), 1, AllTime())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Equal(t, time.UTC, svc.Location())
}
