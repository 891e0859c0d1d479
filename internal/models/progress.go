package models

import (
	"time"
)

// Progress tracks one operator's advance toward one goal. Recurring missions get one row per
// period, keyed by Period; every other goal has a single row with an empty Period.
type Progress struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	OperatorID  uint       `gorm:"not null;uniqueIndex:idx_progress_operator_goal" json:"operator_id"`
	GoalID      uint       `gorm:"not null;uniqueIndex:idx_progress_operator_goal;index" json:"goal_id"`
	Period      string     `gorm:"size:16;not null;default:'';uniqueIndex:idx_progress_operator_goal" json:"period,omitempty"`
	Goal        *Goal      `gorm:"foreignKey:GoalID" json:"goal,omitempty"`
	Value       float64    `gorm:"not null;default:0" json:"value"`
	Completed   bool       `gorm:"not null;default:false" json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	LastEventID string     `gorm:"size:64" json:"last_event_id,omitempty"`
	LastEventAt *time.Time `json:"last_event_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TableName specifies the table name for Progress model.
func (Progress) TableName() string {
	return "goal_progress"
}

// Fresh reports whether no event has contributed to the row yet.
func (p *Progress) Fresh() bool {
	return p.LastEventAt == nil
}

// Candidate is a goal still open for an operator, paired with its progress row if one exists.
type Candidate struct {
	Goal     Goal
	Progress *Progress
}

// RewardGrant is the audit record of points credited for a completed goal.
// The unique (operator, goal, period) index makes a second grant impossible.
type RewardGrant struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	OperatorID uint      `gorm:"not null;uniqueIndex:idx_reward_grant_operator_goal" json:"operator_id"`
	GoalID     uint      `gorm:"not null;uniqueIndex:idx_reward_grant_operator_goal" json:"goal_id"`
	Period     string    `gorm:"size:16;not null;default:'';uniqueIndex:idx_reward_grant_operator_goal" json:"period,omitempty"`
	Goal       *Goal     `gorm:"foreignKey:GoalID" json:"goal,omitempty"`
	Points     int       `gorm:"not null" json:"points"`
	EventID    string    `gorm:"size:64;not null" json:"event_id"`
	GrantedAt  time.Time `gorm:"not null;index" json:"granted_at"`
}

// TableName specifies the table name for RewardGrant model.
func (RewardGrant) TableName() string {
	return "reward_grants"
}

// ProcessedEvent marks a domain event as evaluated so redeliveries are rejected.
type ProcessedEvent struct {
	EventID     string    `gorm:"primaryKey;size:64" json:"event_id"`
	OperatorID  uint      `gorm:"not null;index" json:"operator_id"`
	Kind        string    `gorm:"size:64;not null" json:"kind"`
	ProcessedAt time.Time `gorm:"not null" json:"processed_at"`
}

// TableName specifies the table name for ProcessedEvent model.
func (ProcessedEvent) TableName() string {
	return "processed_events"
}
