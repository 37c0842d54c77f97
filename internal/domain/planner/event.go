package planner

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const EventPlanGenerated = "plan_generated"

// Event is an append-only analytics row. Only written when the request named
// an acquisition source.
type Event struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string         `gorm:"column:name;not null;index" json:"name"`
	UserID    string         `gorm:"column:user_id;index" json:"user_id,omitempty"`
	Source    string         `gorm:"column:source;not null;index" json:"source"`
	Locale    string         `gorm:"column:locale;not null" json:"locale"`
	Mode      string         `gorm:"column:mode;not null" json:"mode"`
	Channel   string         `gorm:"column:channel;not null" json:"channel"`
	RequestID string         `gorm:"column:request_id" json:"request_id,omitempty"`
	Data      datatypes.JSON `gorm:"column:data" json:"data,omitempty"`
	CreatedAt time.Time      `gorm:"not null;index" json:"created_at"`
}

func (Event) TableName() string { return "planner_event" }
