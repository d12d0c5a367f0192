package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Run statuses.
const (
	RunStatusQueued    = "queued"
	RunStatusRunning   = "running"
	RunStatusSucceeded = "succeeded"
	RunStatusHalted    = "halted"
	RunStatusCanceled  = "canceled"
	RunStatusFailed    = "failed"
)

// PlanGenerationRun is one queued or executed pipeline run. A halted
// run is a successful crisis stop, not a failure; the two are kept
// distinct so the API can route halts to clinical review.
type PlanGenerationRun struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ClientID       uuid.UUID      `gorm:"type:uuid;not null;index" json:"client_id"`
	SessionID      uuid.UUID      `gorm:"type:uuid;not null;index" json:"session_id"`
	PlanID         *uuid.UUID     `gorm:"type:uuid;index" json:"plan_id,omitempty"`
	Status         string         `gorm:"column:status;not null;index" json:"status"`
	Stage          string         `gorm:"column:stage;not null;index" json:"stage"`
	Progress       int            `gorm:"column:progress;not null;default:0" json:"progress"`
	Attempts       int            `gorm:"column:attempts;not null;default:0" json:"attempts"`
	Error          string         `gorm:"column:error" json:"error"`
	Warnings       datatypes.JSON `gorm:"type:jsonb;column:warnings" json:"warnings"`
	CrisisDetected bool           `gorm:"column:crisis_detected;not null;default:false" json:"crisis_detected"`
	CrisisSeverity string         `gorm:"column:crisis_severity" json:"crisis_severity"`
	VersionNumber  int            `gorm:"column:version_number;not null;default:0" json:"version_number"`
	LastErrorAt    *time.Time     `gorm:"column:last_error_at" json:"last_error_at,omitempty"`
	LockedAt       *time.Time     `gorm:"column:locked_at;index" json:"locked_at,omitempty"`
	HeartbeatAt    *time.Time     `gorm:"column:heartbeat_at;index" json:"heartbeat_at,omitempty"`
	Metadata       datatypes.JSON `gorm:"type:jsonb;column:metadata" json:"metadata"`
	CreatedAt      time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP;index" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP;index" json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (PlanGenerationRun) TableName() string { return "plan_generation_run" }
