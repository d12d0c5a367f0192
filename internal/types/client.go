package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Client struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	DisplayName string         `gorm:"column:display_name;not null" json:"display_name"`
	// Therapist preferences for this client's documents: modalities,
	// language_level, include_icd10, custom_instructions.
	Preferences datatypes.JSON `gorm:"type:jsonb;column:preferences" json:"preferences"`
	CreatedAt   time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Client) TableName() string { return "client" }
