package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aimd54/callcenter-gamification/internal/models"
)

func createCompletedCall(t *testing.T, db *DB, operatorID uint, eventID string, completedAt time.Time, handle int, resolved bool, satisfaction *int) {
	t.Helper()

	call := &models.Call{
		EventID:           eventID,
		OperatorID:        operatorID,
		Status:            models.CallStatusCompleted,
		StartedAt:         completedAt.Add(-time.Duration(handle) * time.Second),
		CompletedAt:       &completedAt,
		HandleTimeSeconds: handle,
		Resolved:          resolved,
		Satisfaction:      satisfaction,
	}
	require.NoError(t, db.Create(call).Error)
}

func intPtr(v int) *int { return &v }

func TestCallRepository_CompleteIsConditional(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCallRepository(db)
	ctx := context.Background()

	op := createTestOperator(t, db, "alice", "support")
	started := utc(2025, time.March, 10, 12, 0)
	call := &models.Call{EventID: "evt-1", OperatorID: op.ID, Status: models.CallStatusInProgress, StartedAt: started}
	require.NoError(t, repo.Create(ctx, call))

	open, err := repo.GetInProgress(ctx, op.ID)
	require.NoError(t, err)
	assert.Equal(t, call.ID, open.ID)

	completed := started.Add(4 * time.Minute)
	call.CompletedAt = &completed
	call.HandleTimeSeconds = 240
	call.Resolved = true
	call.Satisfaction = intPtr(5)

	ok, err := repo.Complete(ctx, call)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, models.CallStatusCompleted, call.Status)

	ok, err = repo.Complete(ctx, call)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := repo.GetByEventID(ctx, "evt-1")
	require.NoError(t, err)
	assert.Equal(t, 240, got.HandleTimeSeconds)
	require.NotNil(t, got.Satisfaction)
	assert.Equal(t, 5, *got.Satisfaction)

	_, err = repo.GetInProgress(ctx, op.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCallRepository_Aggregate(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCallRepository(db)
	ctx := context.Background()

	op := createTestOperator(t, db, "alice", "support")
	createCompletedCall(t, db, op.ID, "e1", utc(2025, time.March, 9, 10, 0), 100, true, intPtr(5))
	createCompletedCall(t, db, op.ID, "e2", utc(2025, time.March, 10, 10, 0), 200, false, nil)
	createCompletedCall(t, db, op.ID, "e3", utc(2025, time.March, 10, 11, 0), 300, true, intPtr(3))
	require.NoError(t, db.Create(&models.Call{EventID: "open", OperatorID: op.ID, Status: models.CallStatusInProgress, StartedAt: utc(2025, time.March, 10, 11, 30)}).Error)

	all, err := repo.Aggregate(ctx, op.ID, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, CallAggregate{
		OperatorID:         op.ID,
		TotalCalls:         3,
		ResolvedCalls:      2,
		TotalHandleSeconds: 600,
		RatedCalls:         2,
		TotalSatisfaction:  8,
	}, all)

	from, to := utc(2025, time.March, 10, 0, 0), utc(2025, time.March, 11, 0, 0)
	today, err := repo.Aggregate(ctx, op.ID, &from, &to)
	require.NoError(t, err)
	assert.Equal(t, int64(2), today.TotalCalls)
	assert.Equal(t, int64(500), today.TotalHandleSeconds)
	assert.Equal(t, int64(1), today.RatedCalls)

	empty, err := repo.Aggregate(ctx, 9999, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, CallAggregate{OperatorID: 9999}, empty)
}

func TestCallRepository_AggregateByOperator(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCallRepository(db)
	ctx := context.Background()

	alice := createTestOperator(t, db, "alice", "support")
	bob := createTestOperator(t, db, "bob", "sales")
	at := utc(2025, time.March, 10, 10, 0)
	createCompletedCall(t, db, alice.ID, "a1", at, 100, true, nil)
	createCompletedCall(t, db, alice.ID, "a2", at, 100, true, nil)
	createCompletedCall(t, db, bob.ID, "b1", at, 100, false, nil)

	all, err := repo.AggregateByOperator(ctx, "", nil, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	support, err := repo.AggregateByOperator(ctx, "support", nil, nil)
	require.NoError(t, err)
	require.Len(t, support, 1)
	assert.Equal(t, alice.ID, support[0].OperatorID)
	assert.Equal(t, int64(2), support[0].ResolvedCalls)
}
