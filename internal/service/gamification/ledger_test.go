package gamification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aimd54/callcenter-gamification/internal/models"
)

type fakeLedgerStore struct {
	completeWins bool
	grantInserts bool
	completeErr  error
	grants       []models.RewardGrant
	credited     int
}

func (f *fakeLedgerStore) CompleteProgress(context.Context, uint, float64, string, time.Time) (bool, error) {
	return f.completeWins, f.completeErr
}

func (f *fakeLedgerStore) InsertRewardGrant(_ context.Context, g *models.RewardGrant) (bool, error) {
	if f.grantInserts {
		f.grants = append(f.grants, *g)
	}
	return f.grantInserts, nil
}

func (f *fakeLedgerStore) CreditPoints(_ context.Context, _ uint, points int) error {
	f.credited += points
	return nil
}

func TestLedger_Grant(t *testing.T) {
	req := GrantRequest{OperatorID: 1, GoalID: 2, Period: "2025-03-10", ProgressID: 3, Value: 50, Reward: 200, EventID: "evt", At: time.Now()}

	t.Run("winner is credited", func(t *testing.T) {
		store := &fakeLedgerStore{completeWins: true, grantInserts: true}
		points, err := Ledger{}.Grant(context.Background(), store, req)
		require.NoError(t, err)
		assert.Equal(t, 200, points)
		assert.Equal(t, 200, store.credited)
		require.Len(t, store.grants, 1)
		assert.Equal(t, "evt", store.grants[0].EventID)
		assert.Equal(t, "2025-03-10", store.grants[0].Period)
	})

	t.Run("lost completion is a conflict", func(t *testing.T) {
		store := &fakeLedgerStore{completeWins: false, grantInserts: true}
		_, err := Ledger{}.Grant(context.Background(), store, req)
		assert.ErrorIs(t, err, ErrConflict)
		assert.NotErrorIs(t, err, ErrDuplicateGrant)
		assert.Zero(t, store.credited)
		assert.Empty(t, store.grants)
	})

	t.Run("existing grant is a conflict", func(t *testing.T) {
		store := &fakeLedgerStore{completeWins: true, grantInserts: false}
		_, err := Ledger{}.Grant(context.Background(), store, req)
		assert.ErrorIs(t, err, ErrConflict)
		assert.ErrorIs(t, err, ErrDuplicateGrant)
		assert.Zero(t, store.credited)
	})

	t.Run("zero reward completes without grant", func(t *testing.T) {
		store := &fakeLedgerStore{completeWins: true, grantInserts: true}
		zero := req
		zero.Reward = 0
		points, err := Ledger{}.Grant(context.Background(), store, zero)
		require.NoError(t, err)
		assert.Zero(t, points)
		assert.Empty(t, store.grants)
		assert.Zero(t, store.credited)
	})

	t.Run("store errors propagate", func(t *testing.T) {
		boom := errors.New("boom")
		store := &fakeLedgerStore{completeErr: boom}
		_, err := Ledger{}.Grant(context.Background(), store, req)
		assert.ErrorIs(t, err, boom)
	})
}
