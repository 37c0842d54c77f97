package planner

import (
	"time"

	"gorm.io/datatypes"
)

// CacheEntry holds one validated report keyed by the preference fingerprint.
// Rows past the TTL are read as misses and left in place.
type CacheEntry struct {
	Hash      string         `gorm:"column:hash;primaryKey;size:64" json:"hash"`
	Report    datatypes.JSON `gorm:"column:report;not null" json:"report"`
	Model     string         `gorm:"column:model;not null;default:''" json:"model"`
	HitCount  int64          `gorm:"column:hit_count;not null;default:0" json:"hit_count"`
	CreatedAt time.Time      `gorm:"column:created_at;not null;index" json:"created_at"`
}

func (CacheEntry) TableName() string { return "planner_cache" }
