// Package calls drives the call lifecycle of operators and feeds completed calls to the
// gamification engine.
package calls

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	prommetrics "github.com/aimd54/callcenter-gamification/internal/metrics"
	"github.com/aimd54/callcenter-gamification/internal/models"
	"github.com/aimd54/callcenter-gamification/internal/repository"
	"github.com/aimd54/callcenter-gamification/internal/service/gamification"
	"github.com/aimd54/callcenter-gamification/pkg/logger"
)

var (
	// ErrNotFound is returned when the operator does not exist.
	ErrNotFound = repository.ErrNotFound

	// ErrInvalidTransition is returned when the operator's current status forbids the request.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrNoActiveCall is returned when completing a call while none is in progress.
	ErrNoActiveCall = errors.New("no call in progress")

	// ErrInvalidSatisfaction is returned for a rating outside 1-5.
	ErrInvalidSatisfaction = errors.New("satisfaction must be between 1 and 5")

	// ErrCallNotCompleted is returned when re-evaluating a call that is still in progress.
	ErrCallNotCompleted = errors.New("call not completed")

	// ErrEvaluationDisabled is returned when the service has no goal evaluator.
	ErrEvaluationDisabled = errors.New("goal evaluation disabled")
)

// OperatorRepository defines the operator operations the call lifecycle needs.
type OperatorRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Operator, error)
	CreateOrUpdate(ctx context.Context, operator *models.Operator) error
	TransitionStatus(ctx context.Context, id uint, from []models.OperatorStatus, to models.OperatorStatus) (bool, error)
}

// CallRepository defines the call history operations the call lifecycle needs.
type CallRepository interface {
	Create(ctx context.Context, call *models.Call) error
	GetByEventID(ctx context.Context, eventID string) (*models.Call, error)
	GetInProgress(ctx context.Context, operatorID uint) (*models.Call, error)
	Complete(ctx context.Context, call *models.Call) (bool, error)
	ListByOperator(ctx context.Context, operatorID uint, limit int) ([]models.Call, error)
}

// GoalEvaluator evaluates goals for a domain event.
type GoalEvaluator interface {
	EvaluateGoalsOnEvent(ctx context.Context, operatorID uint, event gamification.Event) (*gamification.Result, error)
}

// BoardCache drops cached leaderboards once call statistics change.
type BoardCache interface {
	Invalidate(ctx context.Context) error
}

// CompleteRequest carries the outcome of a call.
type CompleteRequest struct {
	Resolved     bool   `json:"resolved"`
	Satisfaction *int   `json:"satisfaction,omitempty"`
	Notes        string `json:"notes,omitempty"`
}

// CompleteResult is the finalized call together with what it changed in the game.
// A gamification failure never fails the call: it is reported with EvaluationSkipped.
type CompleteResult struct {
	Call              *models.Call         `json:"call"`
	Gamification      *gamification.Result `json:"gamification,omitempty"`
	EvaluationSkipped bool                 `json:"evaluation_skipped"`
}

// idleStatuses are the statuses an operator not on a call can be in.
var idleStatuses = []models.OperatorStatus{
	models.StatusAwaitingCall,
	models.StatusOnBreak,
	models.StatusOffline,
}

// Service handles the call lifecycle.
type Service struct {
	operators OperatorRepository
	calls     CallRepository
	engine    GoalEvaluator
	boards    BoardCache
	now       func() time.Time
	log       *logger.Logger
}

// NewService creates a new call service.
func NewService(operatorRepo *repository.OperatorRepository, callRepo *repository.CallRepository, engine *gamification.Engine, log *logger.Logger) *Service {
	var evaluator GoalEvaluator
	if engine != nil {
		evaluator = engine
	}
	return NewServiceWithInterfaces(operatorRepo, callRepo, evaluator, log)
}

// NewServiceWithInterfaces creates a new call service with interface dependencies (useful for testing).
func NewServiceWithInterfaces(operatorRepo OperatorRepository, callRepo CallRepository, engine GoalEvaluator, log *logger.Logger) *Service {
	return &Service{
		operators: operatorRepo,
		calls:     callRepo,
		engine:    engine,
		now:       time.Now,
		log:       log,
	}
}

// WithClock replaces the service's time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// WithBoards sets the leaderboard cache to invalidate after every completed call.
func (s *Service) WithBoards(boards BoardCache) *Service {
	s.boards = boards
	return s
}

// RegisterOperator creates the operator, or refreshes its display name and team.
func (s *Service) RegisterOperator(ctx context.Context, username, displayName, team string) (*models.Operator, error) {
	if username == "" {
		return nil, fmt.Errorf("username is required")
	}
	operator := &models.Operator{
		Username:    username,
		DisplayName: displayName,
		Team:        team,
		Level:       1,
		XPRequired:  gamification.DefaultBaseXP,
		Status:      models.StatusOffline,
	}
	if err := s.operators.CreateOrUpdate(ctx, operator); err != nil {
		return nil, err
	}
	return operator, nil
}

// StartCall opens a call for an operator awaiting one and moves the operator on_call.
func (s *Service) StartCall(ctx context.Context, operatorID uint) (*models.Call, error) {
	operator, err := s.operators.GetByID(ctx, operatorID)
	if err != nil {
		return nil, err
	}

	moved, err := s.operators.TransitionStatus(ctx, operatorID,
		[]models.OperatorStatus{models.StatusAwaitingCall}, models.StatusOnCall)
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, fmt.Errorf("%w: operator %d is %s, must be %s to take a call",
			ErrInvalidTransition, operatorID, operator.Status, models.StatusAwaitingCall)
	}

	call := &models.Call{
		EventID:    uuid.NewString(),
		OperatorID: operatorID,
		Status:     models.CallStatusInProgress,
		StartedAt:  s.now().UTC(),
	}
	if err := s.calls.Create(ctx, call); err != nil {
		s.revertStatus(ctx, operatorID, models.StatusOnCall, models.StatusAwaitingCall)
		return nil, err
	}

	prommetrics.RecordCallStarted()
	s.log.Info().
		Uint("operator_id", operatorID).
		Str("event_id", call.EventID).
		Msg("Call started")

	return call, nil
}

// CompleteCall finalizes the operator's open call, returns the operator to awaiting_call and
// evaluates goals for the completed call.
func (s *Service) CompleteCall(ctx context.Context, operatorID uint, req CompleteRequest) (*CompleteResult, error) {
	if !ValidSatisfaction(req.Satisfaction) {
		return nil, ErrInvalidSatisfaction
	}

	operator, err := s.operators.GetByID(ctx, operatorID)
	if err != nil {
		return nil, err
	}

	call, err := s.calls.GetInProgress(ctx, operatorID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w for operator %d", ErrNoActiveCall, operatorID)
	}
	if err != nil {
		return nil, err
	}

	// Only one finalizer can move the operator off the call.
	moved, err := s.operators.TransitionStatus(ctx, operatorID,
		[]models.OperatorStatus{models.StatusOnCall}, models.StatusAwaitingCall)
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, fmt.Errorf("%w: operator %d is not on a call", ErrInvalidTransition, operatorID)
	}

	completedAt := s.now().UTC()
	call.CompletedAt = &completedAt
	call.HandleTimeSeconds = CalculateHandleTime(call.StartedAt, completedAt)
	call.Resolved = req.Resolved
	call.Satisfaction = req.Satisfaction
	call.Notes = req.Notes

	completed, err := s.calls.Complete(ctx, call)
	if err != nil {
		s.revertStatus(ctx, operatorID, models.StatusAwaitingCall, models.StatusOnCall)
		return nil, err
	}
	if !completed {
		return nil, fmt.Errorf("%w for operator %d", ErrNoActiveCall, operatorID)
	}

	prommetrics.RecordCallCompleted(operator.Team, call.Resolved, call.HandleTimeSeconds)
	s.log.Info().
		Uint("operator_id", operatorID).
		Str("event_id", call.EventID).
		Int("handle_time_seconds", call.HandleTimeSeconds).
		Bool("resolved", call.Resolved).
		Msg("Call completed")
	s.invalidateBoards(ctx)

	result := &CompleteResult{Call: call}
	if s.engine == nil {
		return result, nil
	}

	outcome, err := s.engine.EvaluateGoalsOnEvent(ctx, operatorID, callEvent(call))
	if err != nil {
		s.log.Error().
			Err(err).
			Uint("operator_id", operatorID).
			Str("event_id", call.EventID).
			Msg("Goal evaluation skipped for completed call")
		result.EvaluationSkipped = true
		return result, nil
	}
	result.Gamification = outcome
	return result, nil
}

// Reevaluate runs goal evaluation again for a completed call of the operator, typically one
// whose completion reported EvaluationSkipped. A call that was already evaluated comes back
// with Replayed set and changes nothing.
func (s *Service) Reevaluate(ctx context.Context, operatorID uint, eventID string) (*gamification.Result, error) {
	if s.engine == nil {
		return nil, ErrEvaluationDisabled
	}

	call, err := s.calls.GetByEventID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if call.OperatorID != operatorID {
		return nil, fmt.Errorf("call %s of operator %d: %w", eventID, operatorID, ErrNotFound)
	}
	if call.Status != models.CallStatusCompleted || call.CompletedAt == nil {
		return nil, fmt.Errorf("%w: call %s is %s", ErrCallNotCompleted, eventID, call.Status)
	}

	outcome, err := s.engine.EvaluateGoalsOnEvent(ctx, operatorID, callEvent(call))
	if err != nil {
		s.log.Warn().
			Err(err).
			Uint("operator_id", operatorID).
			Str("event_id", eventID).
			Msg("Goal re-evaluation failed")
		return nil, err
	}

	s.log.Info().
		Uint("operator_id", operatorID).
		Str("event_id", eventID).
		Bool("replayed", outcome.Replayed).
		Int("completed", len(outcome.NewlyCompleted)).
		Msg("Goals re-evaluated for call")
	return outcome, nil
}

// callEvent builds the domain event of a completed call. The call's event id makes repeated
// evaluations of the same call idempotent.
func callEvent(call *models.Call) gamification.Event {
	return gamification.Event{
		ID:                call.EventID,
		Kind:              gamification.EventCallCompleted,
		OccurredAt:        *call.CompletedAt,
		Resolved:          call.Resolved,
		HandleTimeSeconds: call.HandleTimeSeconds,
		Satisfaction:      call.Satisfaction,
	}
}

func (s *Service) invalidateBoards(ctx context.Context) {
	if s.boards == nil {
		return
	}
	if err := s.boards.Invalidate(ctx); err != nil {
		s.log.Warn().Err(err).Msg("Failed to invalidate leaderboards")
	}
}

// SetStatus changes the status of an operator who is not on a call.
// on_call is entered only through StartCall.
func (s *Service) SetStatus(ctx context.Context, operatorID uint, status models.OperatorStatus) (*models.Operator, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, status)
	}
	if status == models.StatusOnCall {
		return nil, fmt.Errorf("%w: start a call to go %s", ErrInvalidTransition, models.StatusOnCall)
	}

	moved, err := s.operators.TransitionStatus(ctx, operatorID, idleStatuses, status)
	if err != nil {
		return nil, err
	}

	operator, err := s.operators.GetByID(ctx, operatorID)
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, fmt.Errorf("%w: operator %d is %s", ErrInvalidTransition, operatorID, operator.Status)
	}
	return operator, nil
}

// History returns the operator's most recent calls.
func (s *Service) History(ctx context.Context, operatorID uint, limit int) ([]models.Call, error) {
	return s.calls.ListByOperator(ctx, operatorID, limit)
}

func (s *Service) revertStatus(ctx context.Context, operatorID uint, from, to models.OperatorStatus) {
	if _, err := s.operators.TransitionStatus(ctx, operatorID, []models.OperatorStatus{from}, to); err != nil {
		s.log.Error().
			Err(err).
			Uint("operator_id", operatorID).
			Str("status", string(to)).
			Msg("Failed to restore operator status")
	}
}
