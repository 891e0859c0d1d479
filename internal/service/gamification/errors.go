package gamification

import (
	"errors"
	"fmt"

	"github.com/aimd54/callcenter-gamification/internal/repository"
)

var (
	// ErrNotFound is returned when the operator or goal of an evaluation does not exist.
	ErrNotFound = repository.ErrNotFound

	// ErrConflict is returned by the ledger when a concurrent evaluation already completed the goal.
	ErrConflict = errors.New("goal already completed")

	// ErrDuplicateGrant is returned by the ledger when it won the completion but a grant for the
	// same goal and period already exists, so progress and grants disagree.
	ErrDuplicateGrant = fmt.Errorf("reward granted for an open goal: %w", ErrConflict)

	// ErrTransientStore marks a storage failure that may succeed on retry.
	ErrTransientStore = errors.New("transient store failure")

	// ErrEvaluationSkipped is returned when an evaluation was abandoned and nothing was written.
	ErrEvaluationSkipped = errors.New("goal evaluation skipped")

	// ErrInvalidGoal marks a goal whose definition cannot be evaluated.
	ErrInvalidGoal = errors.New("invalid goal definition")
)

// skipped wraps a storage failure so callers can match both ErrEvaluationSkipped and ErrTransientStore.
func skipped(op string, err error) error {
	return fmt.Errorf("%w: %s: %w: %w", ErrEvaluationSkipped, op, ErrTransientStore, err)
}
