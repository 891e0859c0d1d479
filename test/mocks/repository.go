package mocks

import (
	"context"

	"github.com/aimd54/callcenter-gamification/internal/models"
)

// MockGoalRepository is a simple mock for goal repository
type MockGoalRepository struct {
	UpsertByCodeFunc func(ctx context.Context, goal *models.Goal) error
	GetAllFunc       func(ctx context.Context, kind models.GoalKind, activeOnly bool) ([]models.Goal, error)
}

func (m *MockGoalRepository) UpsertByCode(ctx context.Context, goal *models.Goal) error {
	if m.UpsertByCodeFunc != nil {
		return m.UpsertByCodeFunc(ctx, goal)
	}
	return nil
}

func (m *MockGoalRepository) GetAll(ctx context.Context, kind models.GoalKind, activeOnly bool) ([]models.Goal, error) {
	if m.GetAllFunc != nil {
		return m.GetAllFunc(ctx, kind, activeOnly)
	}
	return []models.Goal{}, nil
}

// MockProgressRepository is a simple mock for progress repository
type MockProgressRepository struct {
	ListByOperatorFunc func(ctx context.Context, operatorID uint) ([]models.Progress, error)
	ListCompletedFunc  func(ctx context.Context, operatorID uint, kind models.GoalKind) ([]models.Progress, error)
}

func (m *MockProgressRepository) ListByOperator(ctx context.Context, operatorID uint) ([]models.Progress, error) {
	if m.ListByOperatorFunc != nil {
		return m.ListByOperatorFunc(ctx, operatorID)
	}
	return []models.Progress{}, nil
}

func (m *MockProgressRepository) ListCompleted(ctx context.Context, operatorID uint, kind models.GoalKind) ([]models.Progress, error) {
	if m.ListCompletedFunc != nil {
		return m.ListCompletedFunc(ctx, operatorID, kind)
	}
	return []models.Progress{}, nil
}
