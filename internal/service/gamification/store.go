package gamification

import (
	"context"
	"time"

	"github.com/aimd54/callcenter-gamification/internal/models"
	"github.com/aimd54/callcenter-gamification/internal/repository"
)

// Store is the engine's view of persistence.
type Store interface {
	GetOperator(ctx context.Context, id uint) (*models.Operator, error)
	ListCandidates(ctx context.Context, operatorID uint, now time.Time, loc *time.Location) ([]models.Candidate, error)
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the set of operations available inside one evaluation transaction.
type Tx interface {
	LedgerStore
	MarkEventProcessed(ctx context.Context, event *models.ProcessedEvent) (bool, error)
	GetOperatorForUpdate(ctx context.Context, id uint) (*models.Operator, error)
	LockProgress(ctx context.Context, operatorID, goalID uint, period string) (*models.Progress, error)
	SaveProgressValue(ctx context.Context, progressID uint, value float64, eventID string, at time.Time) error
	UpdateLevel(ctx context.Context, operatorID uint, state LevelState, levelUpAt *time.Time) error
}

type gormStore struct {
	db        *repository.DB
	operators *repository.OperatorRepository
	goals     *repository.GoalRepository
}

// NewStore returns a Store backed by the gorm repositories.
func NewStore(db *repository.DB) Store {
	return &gormStore{
		db:        db,
		operators: repository.NewOperatorRepository(db),
		goals:     repository.NewGoalRepository(db),
	}
}

func (s *gormStore) GetOperator(ctx context.Context, id uint) (*models.Operator, error) {
	return s.operators.GetByID(ctx, id)
}

func (s *gormStore) ListCandidates(ctx context.Context, operatorID uint, now time.Time, loc *time.Location) ([]models.Candidate, error) {
	return s.goals.ListCandidates(ctx, operatorID, now, loc)
}

func (s *gormStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	return s.db.Transaction(ctx, func(tx *repository.DB) error {
		return fn(&gormTx{
			operators: repository.NewOperatorRepository(tx),
			progress:  repository.NewProgressRepository(tx),
		})
	})
}

type gormTx struct {
	operators *repository.OperatorRepository
	progress  *repository.ProgressRepository
}

func (t *gormTx) MarkEventProcessed(ctx context.Context, event *models.ProcessedEvent) (bool, error) {
	return t.progress.MarkEventProcessed(ctx, event)
}

func (t *gormTx) GetOperatorForUpdate(ctx context.Context, id uint) (*models.Operator, error) {
	return t.operators.GetForUpdate(ctx, id)
}

func (t *gormTx) LockProgress(ctx context.Context, operatorID, goalID uint, period string) (*models.Progress, error) {
	return t.progress.LockOrCreate(ctx, operatorID, goalID, period)
}

func (t *gormTx) SaveProgressValue(ctx context.Context, progressID uint, value float64, eventID string, at time.Time) error {
	return t.progress.SaveValue(ctx, progressID, value, eventID, at)
}

func (t *gormTx) CompleteProgress(ctx context.Context, progressID uint, value float64, eventID string, at time.Time) (bool, error) {
	return t.progress.CompleteProgress(ctx, progressID, value, eventID, at)
}

func (t *gormTx) InsertRewardGrant(ctx context.Context, grant *models.RewardGrant) (bool, error) {
	return t.progress.InsertRewardGrant(ctx, grant)
}

func (t *gormTx) CreditPoints(ctx context.Context, operatorID uint, points int) error {
	return t.operators.CreditPoints(ctx, operatorID, points)
}

func (t *gormTx) UpdateLevel(ctx context.Context, operatorID uint, state LevelState, levelUpAt *time.Time) error {
	return t.operators.UpdateLevel(ctx, operatorID, state.Level, state.XPCurrent, state.XPRequired, levelUpAt)
}
