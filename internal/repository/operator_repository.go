package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/aimd54/callcenter-gamification/internal/models"
)

// OperatorRepository handles operator-related database operations.
type OperatorRepository struct {
	db *DB
}

// NewOperatorRepository creates a new operator repository.
func NewOperatorRepository(db *DB) *OperatorRepository {
	return &OperatorRepository{db: db}
}

// Create creates a new operator.
func (r *OperatorRepository) Create(ctx context.Context, operator *models.Operator) error {
	if err := r.db.WithContext(ctx).Create(operator).Error; err != nil {
		return fmt.Errorf("failed to create operator: %w", err)
	}
	return nil
}

// GetByID retrieves an operator by ID.
func (r *OperatorRepository) GetByID(ctx context.Context, id uint) (*models.Operator, error) {
	var operator models.Operator
	if err := r.db.WithContext(ctx).First(&operator, id).Error; err != nil {
		return nil, fmt.Errorf("failed to get operator by id %d: %w", id, notFound(err))
	}
	return &operator, nil
}

// GetForUpdate retrieves an operator and locks the row until the surrounding transaction ends.
func (r *OperatorRepository) GetForUpdate(ctx context.Context, id uint) (*models.Operator, error) {
	var operator models.Operator
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&operator, id).Error
	if err != nil {
		return nil, fmt.Errorf("failed to lock operator %d: %w", id, notFound(err))
	}
	return &operator, nil
}

// GetByUsername retrieves an operator by username.
func (r *OperatorRepository) GetByUsername(ctx context.Context, username string) (*models.Operator, error) {
	var operator models.Operator
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&operator).Error; err != nil {
		return nil, fmt.Errorf("failed to get operator by username %s: %w", username, notFound(err))
	}
	return &operator, nil
}

// List retrieves all operators, optionally restricted to one team.
func (r *OperatorRepository) List(ctx context.Context, team string) ([]models.Operator, error) {
	query := r.db.WithContext(ctx).Model(&models.Operator{})
	if team != "" {
		query = query.Where("team = ?", team)
	}

	var operators []models.Operator
	if err := query.Order("id ASC").Find(&operators).Error; err != nil {
		return nil, fmt.Errorf("failed to list operators: %w", err)
	}
	return operators, nil
}

// CreateOrUpdate creates an operator if the username is unknown, or updates its profile fields.
// Progression fields are never overwritten.
func (r *OperatorRepository) CreateOrUpdate(ctx context.Context, operator *models.Operator) error {
	var existing models.Operator
	err := r.db.WithContext(ctx).Where("username = ?", operator.Username).First(&existing).Error
	if err == nil {
		err = r.db.WithContext(ctx).Model(&existing).Updates(map[string]interface{}{
			"display_name": operator.DisplayName,
			"team":         operator.Team,
		}).Error
		if err != nil {
			return fmt.Errorf("failed to update operator: %w", err)
		}
		existing.DisplayName = operator.DisplayName
		existing.Team = operator.Team
		*operator = existing
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to look up operator %s: %w", operator.Username, err)
	}
	return r.Create(ctx, operator)
}

// TransitionStatus moves the operator to status `to` only if its current status is one of `from`.
// It reports whether the transition happened.
func (r *OperatorRepository) TransitionStatus(ctx context.Context, id uint, from []models.OperatorStatus, to models.OperatorStatus) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Operator{}).
		Where("id = ? AND status IN ?", id, from).
		Update("status", to)
	if result.Error != nil {
		return false, fmt.Errorf("failed to update status of operator %d: %w", id, result.Error)
	}
	return result.RowsAffected == 1, nil
}

// CreditPoints atomically adds points to the operator's lifetime total.
func (r *OperatorRepository) CreditPoints(ctx context.Context, id uint, points int) error {
	result := r.db.WithContext(ctx).Model(&models.Operator{}).
		Where("id = ?", id).
		Update("points", gorm.Expr("points + ?", points))
	if result.Error != nil {
		return fmt.Errorf("failed to credit %d points to operator %d: %w", points, id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("failed to credit points to operator %d: %w", id, ErrNotFound)
	}
	return nil
}

// UpdateLevel stores the operator's level and XP state.
func (r *OperatorRepository) UpdateLevel(ctx context.Context, id uint, level, xpCurrent, xpRequired int, levelUpAt *time.Time) error {
	updates := map[string]interface{}{
		"level":       level,
		"xp_current":  xpCurrent,
		"xp_required": xpRequired,
	}
	if levelUpAt != nil {
		updates["last_level_up_at"] = *levelUpAt
	}
	err := r.db.WithContext(ctx).Model(&models.Operator{}).Where("id = ?", id).Updates(updates).Error
	if err != nil {
		return fmt.Errorf("failed to update level of operator %d: %w", id, err)
	}
	return nil
}
