package models

import "time"

// CacheEntry is a short-lived key/value row used by the database-backed cache store
// (rate limiting counters when no shared cache is configured).
type CacheEntry struct {
	Key       string    `gorm:"column:cache_key;primaryKey;size:256"`
	Value     []byte
	ExpiresAt time.Time `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
