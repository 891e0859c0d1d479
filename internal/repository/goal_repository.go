package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm/clause"

	"github.com/aimd54/callcenter-gamification/internal/models"
)

// GoalRepository handles goal catalog database operations.
type GoalRepository struct {
	db *DB
}

// NewGoalRepository creates a new goal repository.
func NewGoalRepository(db *DB) *GoalRepository {
	return &GoalRepository{db: db}
}

// Create creates a new goal in the database.
func (r *GoalRepository) Create(ctx context.Context, goal *models.Goal) error {
	if err := r.db.WithContext(ctx).Create(goal).Error; err != nil {
		return fmt.Errorf("failed to create goal %s: %w", goal.Code, err)
	}
	return nil
}

// GetByID retrieves a goal by its ID.
func (r *GoalRepository) GetByID(ctx context.Context, id uint) (*models.Goal, error) {
	var goal models.Goal
	if err := r.db.WithContext(ctx).First(&goal, id).Error; err != nil {
		return nil, fmt.Errorf("failed to get goal %d: %w", id, notFound(err))
	}
	return &goal, nil
}

// GetByCode retrieves a goal by its stable code.
func (r *GoalRepository) GetByCode(ctx context.Context, code string) (*models.Goal, error) {
	var goal models.Goal
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&goal).Error; err != nil {
		return nil, fmt.Errorf("failed to get goal %s: %w", code, notFound(err))
	}
	return &goal, nil
}

// GetAll retrieves goals, optionally filtered by kind and active flag.
func (r *GoalRepository) GetAll(ctx context.Context, kind models.GoalKind, activeOnly bool) ([]models.Goal, error) {
	query := r.db.WithContext(ctx).Model(&models.Goal{})
	if kind != "" {
		query = query.Where("kind = ?", kind)
	}
	if activeOnly {
		query = query.Where("active = ?", true)
	}

	var goals []models.Goal
	if err := query.Order("id ASC").Find(&goals).Error; err != nil {
		return nil, fmt.Errorf("failed to list goals: %w", err)
	}
	return goals, nil
}

// UpsertByCode inserts the goal or, when the code already exists, overwrites its definition.
// Progress and grants referencing the goal are untouched.
func (r *GoalRepository) UpsertByCode(ctx context.Context, goal *models.Goal) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "code"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"kind", "title", "description", "icon",
			"condition_type", "condition_threshold", "reward", "active",
			"window_period", "window_starts_at", "window_expires_at", "updated_at",
		}),
	}).Create(goal).Error
	if err != nil {
		return fmt.Errorf("failed to upsert goal %s: %w", goal.Code, err)
	}
	return nil
}

// SetActive enables or disables a goal.
func (r *GoalRepository) SetActive(ctx context.Context, id uint, active bool) error {
	result := r.db.WithContext(ctx).Model(&models.Goal{}).Where("id = ?", id).Update("active", active)
	if result.Error != nil {
		return fmt.Errorf("failed to update goal %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("failed to update goal %d: %w", id, ErrNotFound)
	}
	return nil
}

// ListCandidates returns the active goals the operator has not completed yet, each with its
// progress row when one exists. Missions whose window has not opened or has closed at now
// are left out. Recurring missions are matched against the row of the period containing now,
// computed in loc, so each period starts over.
func (r *GoalRepository) ListCandidates(ctx context.Context, operatorID uint, now time.Time, loc *time.Location) ([]models.Candidate, error) {
	var goals []models.Goal
	err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("id ASC").
		Find(&goals).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list candidate goals for operator %d: %w", operatorID, err)
	}

	open := goals[:0]
	goalIDs := make([]uint, 0, len(goals))
	periods := make(map[uint]string, len(goals))
	for _, g := range goals {
		if g.IsMission() && !g.Window.Open(now) {
			continue
		}
		open = append(open, g)
		goalIDs = append(goalIDs, g.ID)
		periods[g.ID] = g.PeriodKey(now, loc)
	}
	if len(open) == 0 {
		return nil, nil
	}

	var rows []models.Progress
	err = r.db.WithContext(ctx).
		Where("operator_id = ? AND goal_id IN ?", operatorID, goalIDs).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load progress for operator %d: %w", operatorID, err)
	}

	byGoal := make(map[uint]*models.Progress, len(rows))
	for i := range rows {
		if rows[i].Period == periods[rows[i].GoalID] {
			byGoal[rows[i].GoalID] = &rows[i]
		}
	}

	candidates := make([]models.Candidate, 0, len(open))
	for _, g := range open {
		p := byGoal[g.ID]
		if p != nil && p.Completed {
			continue
		}
		candidates = append(candidates, models.Candidate{Goal: g, Progress: p})
	}
	return candidates, nil
}
