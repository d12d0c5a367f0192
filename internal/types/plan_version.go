package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Plan version change types.
const (
	ChangeTypeInitial       = "initial"
	ChangeTypeSessionUpdate = "session_update"
	ChangeTypeManualEdit    = "manual_edit"
	ChangeTypeRestore       = "restore"
	ChangeTypeAIGeneration  = "ai_generation"
)

// PlanVersion is an immutable snapshot of a plan's three documents.
// Rows are append-only: version numbers per plan are contiguous and
// 1-based, and nothing ever updates or deletes them.
type PlanVersion struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	PlanID        uuid.UUID      `gorm:"type:uuid;not null;index:idx_plan_version,unique,priority:1" json:"plan_id"`
	VersionNumber int            `gorm:"column:version_number;not null;index:idx_plan_version,unique,priority:2" json:"version_number"`
	ChangeType    string         `gorm:"column:change_type;not null" json:"change_type"`
	ChangeSummary string         `gorm:"column:change_summary" json:"change_summary"`
	CreatedBy     string         `gorm:"column:created_by;not null" json:"created_by"`
	SessionID     *uuid.UUID     `gorm:"type:uuid;index" json:"session_id,omitempty"`
	Canonical     datatypes.JSON `gorm:"type:jsonb;column:canonical;not null" json:"canonical"`
	TherapistView datatypes.JSON `gorm:"type:jsonb;column:therapist_view" json:"therapist_view"`
	ClientView    datatypes.JSON `gorm:"type:jsonb;column:client_view" json:"client_view"`
	CreatedAt     time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (PlanVersion) TableName() string { return "plan_version" }
