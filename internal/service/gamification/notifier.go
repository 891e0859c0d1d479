package gamification

import (
	"context"
	"time"

	"github.com/aimd54/callcenter-gamification/internal/models"
)

// NotificationType names a notification sent after an evaluation commits.
type NotificationType string

// NotificationType constants.
const (
	NotificationGoalCompleted NotificationType = "goal_completed"
	NotificationLevelUp       NotificationType = "level_up"
)

// Notification is a committed change worth telling the operator (and supervisors) about.
type Notification struct {
	Type       NotificationType `json:"type"`
	OperatorID uint             `json:"operator_id"`
	Username   string           `json:"username,omitempty"`
	Team       string           `json:"team,omitempty"`
	GoalID     uint             `json:"goal_id,omitempty"`
	GoalCode   string           `json:"goal_code,omitempty"`
	GoalTitle  string           `json:"goal_title,omitempty"`
	GoalIcon   string           `json:"goal_icon,omitempty"`
	GoalKind   models.GoalKind  `json:"goal_kind,omitempty"`
	Points     int              `json:"points,omitempty"`
	Level      int              `json:"level,omitempty"`
	EventID    string           `json:"event_id"`
	At         time.Time        `json:"at"`
}

// Notifier delivers notifications. Delivery is best-effort: errors are logged, never retried.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// NopNotifier discards notifications.
type NopNotifier struct{}

// Notify implements Notifier.
func (NopNotifier) Notify(context.Context, Notification) error { return nil }
