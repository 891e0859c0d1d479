package models

import (
	"time"
)

// CallStatus constants.
const (
	CallStatusInProgress = "in_progress"
	CallStatusCompleted  = "completed"
)

// Call is one handled call, the authoritative history statistics are computed from.
type Call struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	EventID           string     `gorm:"uniqueIndex;size:64;not null" json:"event_id"`
	OperatorID        uint       `gorm:"not null;index:idx_calls_operator_completed" json:"operator_id"`
	Operator          *Operator  `gorm:"foreignKey:OperatorID" json:"operator,omitempty"`
	Status            string     `gorm:"size:32;not null;index" json:"status"`
	StartedAt         time.Time  `gorm:"not null" json:"started_at"`
	CompletedAt       *time.Time `gorm:"index:idx_calls_operator_completed" json:"completed_at,omitempty"`
	HandleTimeSeconds int        `gorm:"not null;default:0" json:"handle_time_seconds"`
	Resolved          bool       `gorm:"not null;default:false" json:"resolved"`
	Satisfaction      *int       `json:"satisfaction,omitempty"` // 1-5 when the customer rated the call
	Notes             string     `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// TableName specifies the table name for Call model.
func (Call) TableName() string {
	return "calls"
}
