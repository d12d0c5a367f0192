package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// TreatmentPlan is the live plan row for one client. The three jsonb
// columns hold the canonical document and its two derived views;
// CurrentVersion always equals the highest stored PlanVersion number.
// IsLocked serializes writers across concurrent generation requests.
type TreatmentPlan struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ClientID       uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex" json:"client_id"`
	Client         *Client        `gorm:"constraint:OnDelete:CASCADE;foreignKey:ClientID;references:ID" json:"client,omitempty"`
	CurrentVersion int            `gorm:"column:current_version;not null;default:0" json:"current_version"`
	IsLocked       bool           `gorm:"column:is_locked;not null;default:false" json:"is_locked"`
	LockedAt       *time.Time     `gorm:"column:locked_at" json:"locked_at,omitempty"`
	Canonical      datatypes.JSON `gorm:"type:jsonb;column:canonical" json:"canonical"`
	TherapistView  datatypes.JSON `gorm:"type:jsonb;column:therapist_view" json:"therapist_view"`
	ClientView     datatypes.JSON `gorm:"type:jsonb;column:client_view" json:"client_view"`
	CreatedAt      time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (TreatmentPlan) TableName() string { return "treatment_plan" }
