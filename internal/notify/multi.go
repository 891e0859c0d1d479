package notify

import (
	"context"
	"errors"
	"fmt"

	prommetrics "github.com/aimd54/callcenter-gamification/internal/metrics"
	"github.com/aimd54/callcenter-gamification/internal/service/gamification"
)

// Target is a named notification channel.
type Target struct {
	Name     string
	Notifier gamification.Notifier
}

// Multi fans a notification out to every target. One target failing does not stop the others.
type Multi struct {
	targets []Target
}

// NewMulti creates a fan-out notifier. Targets with a nil notifier are skipped.
func NewMulti(targets ...Target) *Multi {
	m := &Multi{}
	for _, t := range targets {
		if t.Notifier != nil {
			m.targets = append(m.targets, t)
		}
	}
	return m
}

// Add registers another target.
func (m *Multi) Add(name string, n gamification.Notifier) {
	if n != nil {
		m.targets = append(m.targets, Target{Name: name, Notifier: n})
	}
}

// Len returns the number of targets.
func (m *Multi) Len() int {
	return len(m.targets)
}

// Notify implements gamification.Notifier. The returned error joins every target's failure.
func (m *Multi) Notify(ctx context.Context, n gamification.Notification) error {
	var errs []error
	for _, t := range m.targets {
		err := t.Notifier.Notify(ctx, n)
		prommetrics.RecordNotification(t.Name, err)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", t.Name, err))
		}
	}
	return errors.Join(errs...)
}
