package planner

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Plan is a durable copy of an AI-generated report. Fallback reports are
// never stored.
type Plan struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      string         `gorm:"column:user_id;not null;index" json:"user_id"`
	Locale      string         `gorm:"column:locale;not null" json:"locale"`
	Title       string         `gorm:"column:title;not null" json:"title"`
	Mode        string         `gorm:"column:mode;not null" json:"mode"`
	Model       string         `gorm:"column:model" json:"model,omitempty"`
	Channel     string         `gorm:"column:channel;not null" json:"channel"`
	Preferences datatypes.JSON `gorm:"column:preferences;not null" json:"preferences"`
	Report      datatypes.JSON `gorm:"column:report;not null" json:"report"`
	CreatedAt   time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Plan) TableName() string { return "planner_plan" }
