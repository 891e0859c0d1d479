package repository

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
)

// setupTestDB creates an in-memory SQLite database for testing.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err, "Failed to open test database")

	// A second connection would see a different in-memory database.
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	db := Wrap(gdb)
	require.NoError(t, db.AutoMigrate(), "Failed to migrate test database")

	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

func createTestOperator(t *testing.T, db *DB, username, team string) *models.Operator {
	t.Helper()

	op := &models.Operator{
		Username:    username,
		DisplayName: username,
		Team:        team,
		Level:       1,
		XPRequired:  100,
		Status:      models.StatusAwaitingCall,
	}
	require.NoError(t, db.Create(op).Error)
	return op
}

func createTestGoal(t *testing.T, db *DB, code string, kind models.GoalKind, cond models.ConditionType, threshold float64, reward int) *models.Goal {
	t.Helper()

	g := &models.Goal{
		Code:      code,
		Kind:      kind,
		Title:     code,
		Condition: models.TriggerCondition{Type: cond, Threshold: threshold},
		Reward:    reward,
		Active:    true,
	}
	require.NoError(t, db.Create(g).Error)
	return g
}

func TestDB_Transaction_RollsBackOnError(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := db.Transaction(ctx, func(tx *DB) error {
		op := &models.Operator{Username: "rolled-back", Level: 1, XPRequired: 100, Status: models.StatusOffline}
		require.NoError(t, tx.Create(op).Error)
		return boom
	})
	require.ErrorIs(t, err, boom)

	var count int64
	require.NoError(t, db.Model(&models.Operator{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestDB_Health(t *testing.T) {
	db := setupTestDB(t)
	assert.NoError(t, db.Health())
}

func utc(year int, month time.Month, day, hour, minute int) time.Time {
	return time.Date(year, month, day, hour, minute, 0, 0, time.UTC)
}
