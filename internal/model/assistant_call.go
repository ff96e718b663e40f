package model

import (
	"time"

	"gorm.io/datatypes"
)

// AssistantCall is an audit row for one request to the language model.
type AssistantCall struct {
	ID        int64          `gorm:"primaryKey" json:"id"`
	Kind      string         `gorm:"size:16;not null;index" json:"kind"`
	Model     string         `gorm:"size:64" json:"model"`
	OK        bool           `gorm:"not null" json:"ok"`
	LatencyMS int64          `json:"latencyMs"`
	Error     string         `gorm:"size:512" json:"error,omitempty"`
	Request   datatypes.JSON `json:"request,omitempty"`
	Response  datatypes.JSON `json:"response,omitempty"`
	CreatedAt time.Time      `gorm:"index" json:"createdAt"`
}
