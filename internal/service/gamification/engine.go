// Package gamification evaluates mission and achievement progress for domain events and
// grants each goal's reward at most once.
package gamification

import (
	"context"
	"errors"
	"fmt"
	"time"

	prommetrics "github.com/aimd54/callcenter-gamification/internal/metrics"
	"github.com/aimd54/callcenter-gamification/internal/models"
	"github.com/aimd54/callcenter-gamification/internal/repository"
	"github.com/aimd54/callcenter-gamification/internal/service/statistics"
	"github.com/aimd54/callcenter-gamification/pkg/logger"
)

// StatisticsSource computes call statistics snapshots.
type StatisticsSource interface {
	Snapshot(ctx context.Context, operatorID uint, window statistics.Window) (statistics.Snapshot, error)
	Location() *time.Location
}

// Completion is a goal completed by an evaluation.
type Completion struct {
	GoalID        uint            `json:"goal_id"`
	Code          string          `json:"code"`
	Title         string          `json:"title"`
	Kind          models.GoalKind `json:"kind"`
	RewardGranted int             `json:"reward_granted"`
}

// ProgressUpdate is the stored progress of a goal after an evaluation.
type ProgressUpdate struct {
	GoalID    uint    `json:"goal_id"`
	Code      string  `json:"code"`
	Value     float64 `json:"value"`
	Target    float64 `json:"target"`
	Completed bool    `json:"completed"`
}

// Result summarizes what one evaluation changed.
type Result struct {
	NewlyCompleted  []Completion     `json:"newly_completed"`
	UpdatedProgress []ProgressUpdate `json:"updated_progress"`
	Level           int              `json:"level"`
	LevelsGained    int              `json:"levels_gained"`
	PointsAwarded   int              `json:"points_awarded"`
	Replayed        bool             `json:"replayed"`
}

// Engine evaluates goals for domain events.
type Engine struct {
	store    Store
	stats    StatisticsSource
	notifier Notifier
	leveling Leveling
	ledger   Ledger
	now      func() time.Time
	log      *logger.Logger
}

// NewEngine creates an engine backed by the gorm store.
func NewEngine(db *repository.DB, stats *statistics.Service, notifier Notifier, baseXP int, log *logger.Logger) *Engine {
	return NewEngineWithInterfaces(NewStore(db), stats, notifier, NewLeveling(baseXP), log)
}

// NewEngineWithInterfaces creates an engine with interface dependencies (useful for testing).
func NewEngineWithInterfaces(store Store, stats StatisticsSource, notifier Notifier, leveling Leveling, log *logger.Logger) *Engine {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Engine{
		store:    store,
		stats:    stats,
		notifier: notifier,
		leveling: leveling,
		now:      time.Now,
		log:      log,
	}
}

// WithClock replaces the engine's time source.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Leveling returns the engine's progression policy.
func (e *Engine) Leveling() Leveling {
	return e.leveling
}

// evaluation carries the mutable state of one EvaluateGoalsOnEvent call.
type evaluation struct {
	operator   *models.Operator
	event      Event
	now        time.Time
	snapshots  map[string]statistics.Snapshot
	state      LevelState
	points     int64
	result     *Result
	updates    map[uint]int
	notes      []Notification
	startLevel int
}

// EvaluateGoalsOnEvent updates progress of every open goal of the operator for the event,
// completes the goals whose threshold is met, credits their rewards and reconciles the
// operator's level. All writes commit atomically; notifications are sent after commit.
//
// A replayed event (same ID) returns Replayed with no changes. A missing operator returns an
// empty result. A storage failure returns an error matching ErrEvaluationSkipped and nothing
// is written.
func (e *Engine) EvaluateGoalsOnEvent(ctx context.Context, operatorID uint, event Event) (*Result, error) {
	started := time.Now()
	defer func() { prommetrics.ObserveEvaluationDuration(time.Since(started)) }()

	if event.ID == "" {
		return nil, fmt.Errorf("%w: event id is required", ErrEvaluationSkipped)
	}
	now := e.now()
	if event.OccurredAt.IsZero() {
		event.OccurredAt = now
	}
	if event.Kind == "" {
		event.Kind = EventCallCompleted
	}

	log := e.log.With().
		Uint("operator_id", operatorID).
		Str("event_id", event.ID).
		Str("event_kind", string(event.Kind)).
		Logger()

	operator, err := e.store.GetOperator(ctx, operatorID)
	if errors.Is(err, ErrNotFound) {
		log.Warn().Msg("Operator not found, skipping goal evaluation")
		prommetrics.RecordEventEvaluated("operator_missing")
		return &Result{}, nil
	}
	if err != nil {
		prommetrics.RecordEventEvaluated("skipped")
		return nil, skipped("load operator", err)
	}

	candidates, err := e.store.ListCandidates(ctx, operatorID, now, e.stats.Location())
	if err != nil {
		prommetrics.RecordEventEvaluated("skipped")
		return nil, skipped("list candidate goals", err)
	}
	candidates = e.validCandidates(candidates)

	snapshots, err := e.loadSnapshots(ctx, operatorID, candidates, now)
	if err != nil {
		prommetrics.RecordEventEvaluated("skipped")
		return nil, skipped("read statistics", err)
	}

	ev := &evaluation{
		event:     event,
		now:       now,
		snapshots: snapshots,
		result:    &Result{Level: operator.Level},
		updates:   make(map[uint]int),
	}

	err = e.store.InTx(ctx, func(tx Tx) error {
		return e.evaluate(ctx, tx, operatorID, candidates, ev)
	})
	if err != nil {
		prommetrics.RecordEventEvaluated("skipped")
		log.Error().Err(err).Msg("Goal evaluation rolled back")
		return nil, skipped("evaluate goals", err)
	}

	if ev.result.Replayed {
		prommetrics.RecordEventEvaluated("replayed")
		log.Debug().Msg("Event already processed, ignoring replay")
		return ev.result, nil
	}

	prommetrics.RecordEventEvaluated("evaluated")
	for _, c := range ev.result.NewlyCompleted {
		prommetrics.RecordGoalCompleted(string(c.Kind), c.Code, c.RewardGranted)
	}
	prommetrics.RecordLevelUps(ev.result.LevelsGained)

	log.Info().
		Int("completed", len(ev.result.NewlyCompleted)).
		Int("points_awarded", ev.result.PointsAwarded).
		Int("level", ev.result.Level).
		Int("levels_gained", ev.result.LevelsGained).
		Msg("Goals evaluated")

	e.dispatch(ctx, ev.notes)
	return ev.result, nil
}

// validCandidates drops goals whose definition cannot be evaluated.
func (e *Engine) validCandidates(candidates []models.Candidate) []models.Candidate {
	valid := candidates[:0]
	for _, c := range candidates {
		if err := c.Goal.Validate(); err != nil {
			e.log.Warn().
				Err(fmt.Errorf("%w: %w", ErrInvalidGoal, err)).
				Uint("goal_id", c.Goal.ID).
				Str("goal", c.Goal.Code).
				Msg("Excluding invalid goal from evaluation")
			prommetrics.RecordInvalidGoal(c.Goal.Code)
			continue
		}
		valid = append(valid, c)
	}
	return valid
}

// loadSnapshots reads one statistics snapshot per distinct window the candidates need.
func (e *Engine) loadSnapshots(ctx context.Context, operatorID uint, candidates []models.Candidate, now time.Time) (map[string]statistics.Snapshot, error) {
	snapshots := make(map[string]statistics.Snapshot)
	for i := range candidates {
		goal := &candidates[i].Goal
		if !needsStatistics(goal.Condition.Type) {
			continue
		}
		window := statistics.ForGoal(goal, now, e.stats.Location())
		if _, ok := snapshots[window.Key()]; ok {
			continue
		}
		snap, err := e.stats.Snapshot(ctx, operatorID, window)
		if err != nil {
			return nil, err
		}
		snapshots[window.Key()] = snap
	}
	return snapshots, nil
}

func (e *Engine) evaluate(ctx context.Context, tx Tx, operatorID uint, candidates []models.Candidate, ev *evaluation) error {
	fresh, err := tx.MarkEventProcessed(ctx, &models.ProcessedEvent{
		EventID:     ev.event.ID,
		OperatorID:  operatorID,
		Kind:        string(ev.event.Kind),
		ProcessedAt: ev.now,
	})
	if err != nil {
		return err
	}
	if !fresh {
		ev.result.Replayed = true
		return nil
	}

	operator, err := tx.GetOperatorForUpdate(ctx, operatorID)
	if err != nil {
		return err
	}
	ev.operator = operator
	ev.points = operator.Points
	ev.state = LevelState{Level: operator.Level, XPCurrent: operator.XPCurrent, XPRequired: operator.XPRequired}
	ev.startLevel = operator.Level
	initial := ev.state

	// Operator-derived goals are re-checked after later grants in the same event, until a
	// pass completes nothing. Each extra pass needs at least one completion, so the loop is bounded.
	pending := candidates
	for pass := 0; len(pending) > 0; pass++ {
		var retry []models.Candidate
		completedAny := false
		for _, c := range pending {
			completed, err := e.evaluateGoal(ctx, tx, operatorID, c, ev)
			if err != nil {
				return err
			}
			if completed {
				completedAny = true
				continue
			}
			if operatorDerived(c.Goal.Condition.Type) {
				retry = append(retry, c)
			}
		}
		if !completedAny {
			break
		}
		pending = retry
	}

	if ev.state != initial {
		var levelUpAt *time.Time
		if ev.state.Level > initial.Level {
			levelUpAt = &ev.now
		}
		if err := tx.UpdateLevel(ctx, operatorID, ev.state, levelUpAt); err != nil {
			return err
		}
	}

	ev.result.Level = ev.state.Level
	ev.result.LevelsGained = ev.state.Level - ev.startLevel
	if ev.result.LevelsGained > 0 {
		ev.notes = append(ev.notes, Notification{
			Type:       NotificationLevelUp,
			OperatorID: operatorID,
			Username:   operator.Username,
			Team:       operator.Team,
			Level:      ev.state.Level,
			EventID:    ev.event.ID,
			At:         ev.now,
		})
	}
	return nil
}

// evaluateGoal evaluates one candidate under its row lock and reports whether this call completed it.
func (e *Engine) evaluateGoal(ctx context.Context, tx Tx, operatorID uint, c models.Candidate, ev *evaluation) (bool, error) {
	goal := &c.Goal
	loc := e.stats.Location()
	window := statistics.ForGoal(goal, ev.now, loc)
	inputs := Inputs{Window: window, Points: ev.points, Level: ev.state.Level}
	if needsStatistics(goal.Condition.Type) {
		inputs.Stats = ev.snapshots[window.Key()]
	}
	period := goal.PeriodKey(ev.now, loc)

	if !Evaluate(ev.event, goal, c.Progress, inputs).Relevant {
		return false, nil
	}

	progress, err := tx.LockProgress(ctx, operatorID, goal.ID, period)
	if errors.Is(err, ErrNotFound) {
		e.log.Warn().Uint("goal_id", goal.ID).Str("goal", goal.Code).Msg("Goal disappeared during evaluation, skipping")
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if progress.Completed {
		return false, nil
	}

	// The locked row is authoritative; the listed one may be stale.
	result := Evaluate(ev.event, goal, progress, inputs)
	if !result.Satisfied {
		if progress.Fresh() || result.Value != progress.Value {
			if err := tx.SaveProgressValue(ctx, progress.ID, result.Value, ev.event.ID, ev.now); err != nil {
				return false, err
			}
		}
		ev.recordProgress(goal, result.Value, false)
		return false, nil
	}

	points, err := e.ledger.Grant(ctx, tx, GrantRequest{
		OperatorID: operatorID,
		GoalID:     goal.ID,
		Period:     period,
		ProgressID: progress.ID,
		Value:      result.Value,
		Reward:     goal.Reward,
		EventID:    ev.event.ID,
		At:         ev.now,
	})
	if errors.Is(err, ErrDuplicateGrant) {
		prommetrics.RecordLedgerConflict()
		e.log.Warn().
			Err(err).
			Uint("operator_id", operatorID).
			Uint("goal_id", goal.ID).
			Uint("progress_id", progress.ID).
			Str("goal", goal.Code).
			Str("period", period).
			Msg("Reward already granted for an open goal, progress and grants disagree")
		return false, nil
	}
	if errors.Is(err, ErrConflict) {
		prommetrics.RecordLedgerConflict()
		e.log.Debug().Uint("goal_id", goal.ID).Str("goal", goal.Code).Msg("Goal completed concurrently, no reward granted")
		return false, nil
	}
	if err != nil {
		return false, err
	}

	ev.points += int64(points)
	ev.state = e.leveling.Apply(ev.state, points)
	ev.result.PointsAwarded += points
	ev.result.NewlyCompleted = append(ev.result.NewlyCompleted, Completion{
		GoalID:        goal.ID,
		Code:          goal.Code,
		Title:         goal.Title,
		Kind:          goal.Kind,
		RewardGranted: points,
	})
	ev.recordProgress(goal, result.Value, true)
	ev.notes = append(ev.notes, Notification{
		Type:       NotificationGoalCompleted,
		OperatorID: operatorID,
		Username:   ev.operator.Username,
		Team:       ev.operator.Team,
		GoalID:     goal.ID,
		GoalCode:   goal.Code,
		GoalTitle:  goal.Title,
		GoalIcon:   goal.Icon,
		GoalKind:   goal.Kind,
		Points:     points,
		EventID:    ev.event.ID,
		At:         ev.now,
	})
	return true, nil
}

func (ev *evaluation) recordProgress(goal *models.Goal, value float64, completed bool) {
	update := ProgressUpdate{
		GoalID:    goal.ID,
		Code:      goal.Code,
		Value:     value,
		Target:    goal.Condition.Threshold,
		Completed: completed,
	}
	if i, ok := ev.updates[goal.ID]; ok {
		ev.result.UpdatedProgress[i] = update
		return
	}
	ev.updates[goal.ID] = len(ev.result.UpdatedProgress)
	ev.result.UpdatedProgress = append(ev.result.UpdatedProgress, update)
}

// dispatch sends notifications. Failures are logged and never affect the committed result.
func (e *Engine) dispatch(ctx context.Context, notes []Notification) {
	for _, n := range notes {
		if err := e.notifier.Notify(ctx, n); err != nil {
			e.log.Warn().
				Err(err).
				Str("type", string(n.Type)).
				Uint("operator_id", n.OperatorID).
				Str("goal", n.GoalCode).
				Msg("Failed to deliver notification")
		}
	}
}
