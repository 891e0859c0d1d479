package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/aimd54/callcenter-gamification/internal/models"
)

// CallAggregate holds raw sums over an operator's completed calls.
// Averages are derived by the caller so empty windows never divide by zero here.
type CallAggregate struct {
	OperatorID         uint
	TotalCalls         int64
	ResolvedCalls      int64
	TotalHandleSeconds int64
	RatedCalls         int64
	TotalSatisfaction  int64
}

// CallRepository handles call history database operations.
type CallRepository struct {
	db *DB
}

// NewCallRepository creates a new call repository.
func NewCallRepository(db *DB) *CallRepository {
	return &CallRepository{db: db}
}

// Create creates a new call record.
func (r *CallRepository) Create(ctx context.Context, call *models.Call) error {
	if err := r.db.WithContext(ctx).Create(call).Error; err != nil {
		return fmt.Errorf("failed to create call: %w", err)
	}
	return nil
}

// GetByEventID retrieves a call by its event id.
func (r *CallRepository) GetByEventID(ctx context.Context, eventID string) (*models.Call, error) {
	var call models.Call
	if err := r.db.WithContext(ctx).Where("event_id = ?", eventID).First(&call).Error; err != nil {
		return nil, fmt.Errorf("failed to get call %s: %w", eventID, notFound(err))
	}
	return &call, nil
}

// GetInProgress retrieves the operator's open call, if any.
func (r *CallRepository) GetInProgress(ctx context.Context, operatorID uint) (*models.Call, error) {
	var call models.Call
	err := r.db.WithContext(ctx).
		Where("operator_id = ? AND status = ?", operatorID, models.CallStatusInProgress).
		Order("started_at DESC").
		First(&call).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get open call of operator %d: %w", operatorID, notFound(err))
	}
	return &call, nil
}

// Complete finalizes an open call. It reports false if the call was already completed.
func (r *CallRepository) Complete(ctx context.Context, call *models.Call) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Call{}).
		Where("id = ? AND status = ?", call.ID, models.CallStatusInProgress).
		Updates(map[string]interface{}{
			"status":              models.CallStatusCompleted,
			"completed_at":        call.CompletedAt,
			"handle_time_seconds": call.HandleTimeSeconds,
			"resolved":            call.Resolved,
			"satisfaction":        call.Satisfaction,
			"notes":               call.Notes,
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to complete call %d: %w", call.ID, result.Error)
	}
	if result.RowsAffected == 1 {
		call.Status = models.CallStatusCompleted
	}
	return result.RowsAffected == 1, nil
}

// ListByOperator retrieves the operator's most recent calls.
func (r *CallRepository) ListByOperator(ctx context.Context, operatorID uint, limit int) ([]models.Call, error) {
	var calls []models.Call
	query := r.db.WithContext(ctx).Where("operator_id = ?", operatorID).Order("started_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&calls).Error; err != nil {
		return nil, fmt.Errorf("failed to list calls of operator %d: %w", operatorID, err)
	}
	return calls, nil
}

const aggregateColumns = "calls.operator_id AS operator_id, " +
	"COUNT(*) AS total_calls, " +
	"COALESCE(SUM(CASE WHEN calls.resolved THEN 1 ELSE 0 END), 0) AS resolved_calls, " +
	"COALESCE(SUM(calls.handle_time_seconds), 0) AS total_handle_seconds, " +
	"COUNT(calls.satisfaction) AS rated_calls, " +
	"COALESCE(SUM(calls.satisfaction), 0) AS total_satisfaction"

// Aggregate sums the operator's completed calls with completion time in [from, to).
// Nil bounds are open-ended.
func (r *CallRepository) Aggregate(ctx context.Context, operatorID uint, from, to *time.Time) (CallAggregate, error) {
	var results []CallAggregate
	query := r.db.WithContext(ctx).Model(&models.Call{}).
		Select(aggregateColumns).
		Where("calls.operator_id = ? AND calls.status = ?", operatorID, models.CallStatusCompleted)
	query = completedBetween(query, from, to)

	if err := query.Group("calls.operator_id").Scan(&results).Error; err != nil {
		return CallAggregate{}, fmt.Errorf("failed to aggregate calls of operator %d: %w", operatorID, err)
	}
	if len(results) == 0 {
		return CallAggregate{OperatorID: operatorID}, nil
	}
	return results[0], nil
}

// AggregateByOperator sums completed calls per operator with completion time in [from, to),
// optionally restricted to one team. Operators without calls are absent.
func (r *CallRepository) AggregateByOperator(ctx context.Context, team string, from, to *time.Time) ([]CallAggregate, error) {
	query := r.db.WithContext(ctx).Model(&models.Call{}).
		Select(aggregateColumns).
		Where("calls.status = ?", models.CallStatusCompleted)
	if team != "" {
		query = query.
			Joins("JOIN operators ON operators.id = calls.operator_id").
			Where("operators.team = ?", team)
	}
	query = completedBetween(query, from, to)

	var results []CallAggregate
	if err := query.Group("calls.operator_id").Scan(&results).Error; err != nil {
		return nil, fmt.Errorf("failed to aggregate calls by operator: %w", err)
	}
	return results, nil
}

func completedBetween(query *gorm.DB, from, to *time.Time) *gorm.DB {
	if from != nil {
		query = query.Where("calls.completed_at >= ?", from.UTC())
	}
	if to != nil {
		query = query.Where("calls.completed_at < ?", to.UTC())
	}
	return query
}
