// Package models defines domain models for the call-center gamification service.
package models

import (
	"time"
)

// OperatorStatus is the operational state of an operator.
type OperatorStatus string

// OperatorStatus constants.
const (
	StatusAwaitingCall OperatorStatus = "awaiting_call"
	StatusOnCall       OperatorStatus = "on_call"
	StatusOnBreak      OperatorStatus = "on_break"
	StatusOffline      OperatorStatus = "offline"
)

// Valid reports whether s is a known status.
func (s OperatorStatus) Valid() bool {
	switch s {
	case StatusAwaitingCall, StatusOnCall, StatusOnBreak, StatusOffline:
		return true
	}
	return false
}

// Operator represents a call-center operator taking part in the game.
type Operator struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	Username      string         `gorm:"uniqueIndex;not null;size:255" json:"username"`
	DisplayName   string         `gorm:"size:255" json:"display_name"`
	Team          string         `gorm:"size:100;index" json:"team"`
	Level         int            `gorm:"not null;default:1" json:"level"`
	XPCurrent     int            `gorm:"column:xp_current;not null;default:0" json:"xp_current"`
	XPRequired    int            `gorm:"column:xp_required;not null;default:100" json:"xp_required"`
	Points        int64          `gorm:"not null;default:0" json:"points"`
	Status        OperatorStatus `gorm:"size:32;not null;default:offline" json:"status"`
	LastLevelUpAt *time.Time     `json:"last_level_up_at,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// TableName specifies the table name for Operator model.
func (Operator) TableName() string {
	return "operators"
}
