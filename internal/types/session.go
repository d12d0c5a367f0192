package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Session struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ClientID      uuid.UUID      `gorm:"type:uuid;not null;index" json:"client_id"`
	Client        *Client        `gorm:"constraint:OnDelete:CASCADE;foreignKey:ClientID;references:ID" json:"client,omitempty"`
	SessionNumber int            `gorm:"column:session_number;not null" json:"session_number"`
	SessionDate   time.Time      `gorm:"column:session_date;not null" json:"session_date"`
	// Transcript text arrives already transcribed; audio handling lives
	// outside this service.
	Transcript string         `gorm:"column:transcript" json:"transcript"`
	Status     string         `gorm:"column:status;not null;default:'recorded'" json:"status"` // recorded|processed
	CreatedAt  time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Session) TableName() string { return "session" }
