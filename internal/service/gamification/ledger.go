package gamification

import (
	"context"
	"fmt"
	"time"

	"github.com/aimd54/callcenter-gamification/internal/models"
)

// LedgerStore is the set of conditional writes the ledger is built from.
// Each must run inside the caller's transaction.
type LedgerStore interface {
	CompleteProgress(ctx context.Context, progressID uint, value float64, eventID string, at time.Time) (bool, error)
	InsertRewardGrant(ctx context.Context, grant *models.RewardGrant) (bool, error)
	CreditPoints(ctx context.Context, operatorID uint, points int) error
}

// GrantRequest describes a completion to record.
type GrantRequest struct {
	OperatorID uint
	GoalID     uint
	Period     string
	ProgressID uint
	Value      float64
	Reward     int
	EventID    string
	At         time.Time
}

// Ledger completes goals and credits their rewards at most once per (operator, goal).
type Ledger struct{}

// Grant marks the progress row completed and credits the reward. It returns the points credited,
// or ErrConflict if another evaluation completed the goal first. Nothing is read before it is
// written: the conditional update and the unique grant index decide the winner.
// A grant already on record for a row that was still open is reported as ErrDuplicateGrant,
// which also matches ErrConflict.
func (Ledger) Grant(ctx context.Context, store LedgerStore, req GrantRequest) (int, error) {
	won, err := store.CompleteProgress(ctx, req.ProgressID, req.Value, req.EventID, req.At)
	if err != nil {
		return 0, err
	}
	if !won {
		return 0, ErrConflict
	}

	if req.Reward <= 0 {
		return 0, nil
	}

	inserted, err := store.InsertRewardGrant(ctx, &models.RewardGrant{
		OperatorID: req.OperatorID,
		GoalID:     req.GoalID,
		Period:     req.Period,
		Points:     req.Reward,
		EventID:    req.EventID,
		GrantedAt:  req.At,
	})
	if err != nil {
		return 0, err
	}
	if !inserted {
		return 0, fmt.Errorf("reward for goal %d progress %d: %w", req.GoalID, req.ProgressID, ErrDuplicateGrant)
	}

	if err := store.CreditPoints(ctx, req.OperatorID, req.Reward); err != nil {
		return 0, err
	}
	return req.Reward, nil
}
