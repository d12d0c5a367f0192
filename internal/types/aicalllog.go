package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// AICallLog is the audit row for each generative-model call. Prompts
// carry clinical language, so only shape metadata and usage are stored.
type AICallLog struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	RunID     *uuid.UUID     `gorm:"type:uuid;index" json:"run_id,omitempty"`
	ClientID  *uuid.UUID     `gorm:"type:uuid;index" json:"client_id,omitempty"`
	Stage     string         `gorm:"column:stage;not null" json:"stage"`
	Model     string         `gorm:"column:model;not null" json:"model"`
	Success   bool           `gorm:"column:success;not null" json:"success"`
	Error     string         `gorm:"column:error" json:"error"`
	LatencyMs int64          `gorm:"column:latency_ms;not null;default:0" json:"latency_ms"`
	Usage     datatypes.JSON `gorm:"type:jsonb;column:usage" json:"usage"`
	CreatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (AICallLog) TableName() string { return "ai_call_log" }
