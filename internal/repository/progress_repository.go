package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm/clause"

	"github.com/aimd54/callcenter-gamification/internal/models"
)

// ProgressRepository handles goal progress, reward grants and processed-event markers.
// Every write that decides a completion or a grant is conditional, so concurrent callers
// racing on the same (operator, goal) pair can never both succeed.
type ProgressRepository struct {
	db *DB
}

// NewProgressRepository creates a new progress repository.
func NewProgressRepository(db *DB) *ProgressRepository {
	return &ProgressRepository{db: db}
}

// MarkEventProcessed records the event id. It reports false if the event was already recorded.
func (r *ProgressRepository) MarkEventProcessed(ctx context.Context, event *models.ProcessedEvent) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(event)
	if result.Error != nil {
		return false, fmt.Errorf("failed to record event %s: %w", event.EventID, result.Error)
	}
	return result.RowsAffected == 1, nil
}

// LockOrCreate returns the progress row for (operatorID, goalID, period), creating it if absent,
// and locks it until the surrounding transaction ends. Period is empty for goals that occur once.
func (r *ProgressRepository) LockOrCreate(ctx context.Context, operatorID, goalID uint, period string) (*models.Progress, error) {
	fresh := &models.Progress{OperatorID: operatorID, GoalID: goalID, Period: period}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "operator_id"}, {Name: "goal_id"}, {Name: "period"}},
			DoNothing: true,
		}).
		Create(fresh).Error
	if err != nil {
		return nil, fmt.Errorf("failed to create progress for operator %d goal %d: %w", operatorID, goalID, err)
	}

	var progress models.Progress
	err = r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("operator_id = ? AND goal_id = ? AND period = ?", operatorID, goalID, period).
		First(&progress).Error
	if err != nil {
		return nil, fmt.Errorf("failed to lock progress for operator %d goal %d: %w", operatorID, goalID, notFound(err))
	}
	return &progress, nil
}

// SaveValue stores a new value on a progress row that is not completed yet.
func (r *ProgressRepository) SaveValue(ctx context.Context, progressID uint, value float64, eventID string, at time.Time) error {
	err := r.db.WithContext(ctx).Model(&models.Progress{}).
		Where("id = ? AND completed = ?", progressID, false).
		Updates(map[string]interface{}{
			"value":         value,
			"last_event_id": eventID,
			"last_event_at": at,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to save progress %d: %w", progressID, err)
	}
	return nil
}

// CompleteProgress flips the row to completed only if it is still open.
// It reports whether this call performed the transition.
func (r *ProgressRepository) CompleteProgress(ctx context.Context, progressID uint, value float64, eventID string, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Progress{}).
		Where("id = ? AND completed = ?", progressID, false).
		Updates(map[string]interface{}{
			"completed":     true,
			"completed_at":  at,
			"value":         value,
			"last_event_id": eventID,
			"last_event_at": at,
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to complete progress %d: %w", progressID, result.Error)
	}
	return result.RowsAffected == 1, nil
}

// InsertRewardGrant appends a grant record. It reports false if the operator already holds a
// grant for the goal in the grant's period.
func (r *ProgressRepository) InsertRewardGrant(ctx context.Context, grant *models.RewardGrant) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "operator_id"}, {Name: "goal_id"}, {Name: "period"}},
			DoNothing: true,
		}).
		Create(grant)
	if result.Error != nil {
		return false, fmt.Errorf("failed to insert reward grant for operator %d goal %d: %w",
			grant.OperatorID, grant.GoalID, result.Error)
	}
	return result.RowsAffected == 1, nil
}

// ListByOperator retrieves all progress rows of an operator with goal details preloaded.
func (r *ProgressRepository) ListByOperator(ctx context.Context, operatorID uint) ([]models.Progress, error) {
	var rows []models.Progress
	err := r.db.WithContext(ctx).
		Where("operator_id = ?", operatorID).
		Preload("Goal").
		Order("goal_id ASC, period ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list progress for operator %d: %w", operatorID, err)
	}
	return rows, nil
}

// ListCompleted retrieves the operator's completed goals of the given kind, newest first.
// An empty kind returns both.
func (r *ProgressRepository) ListCompleted(ctx context.Context, operatorID uint, kind models.GoalKind) ([]models.Progress, error) {
	query := r.db.WithContext(ctx).
		Joins("JOIN goals ON goals.id = goal_progress.goal_id").
		Preload("Goal").
		Where("goal_progress.operator_id = ? AND goal_progress.completed = ?", operatorID, true)
	if kind != "" {
		query = query.Where("goals.kind = ?", kind)
	}

	var rows []models.Progress
	if err := query.Order("goal_progress.completed_at DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list completed goals for operator %d: %w", operatorID, err)
	}
	return rows, nil
}

// GetGrants retrieves reward grants of an operator with goal details preloaded.
func (r *ProgressRepository) GetGrants(ctx context.Context, operatorID uint) ([]models.RewardGrant, error) {
	var grants []models.RewardGrant
	err := r.db.WithContext(ctx).
		Where("operator_id = ?", operatorID).
		Preload("Goal").
		Order("granted_at DESC").
		Find(&grants).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list grants for operator %d: %w", operatorID, err)
	}
	return grants, nil
}

// GetRecentGrants retrieves grants made since the given time across all operators.
func (r *ProgressRepository) GetRecentGrants(ctx context.Context, since time.Time) ([]models.RewardGrant, error) {
	var grants []models.RewardGrant
	err := r.db.WithContext(ctx).
		Where("granted_at >= ?", since).
		Preload("Goal").
		Order("granted_at DESC").
		Find(&grants).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list recent grants: %w", err)
	}
	return grants, nil
}
