package models

import (
	"time"
)

// KVRecord is the single persistence primitive of the system: a
// key/value row with an optional expiry. Every entity (sessions,
// messages, rate-limit state, counters) is stored as a JSON value
// under a namespaced key.
type KVRecord struct {
	Key       string     `gorm:"primaryKey;size:512" json:"key"`
	Value     []byte     `gorm:"not null" json:"value"`
	ExpiresAt *time.Time `gorm:"index" json:"expires_at,omitempty"`
}

// TableName returns the table name for KVRecord
func (KVRecord) TableName() string {
	return "kv_records"
}

// Expired reports whether the record is past its expiry at the given time.
// Records without an expiry never expire.
func (r *KVRecord) Expired(now time.Time) bool {
	return r.ExpiresAt != nil && !r.ExpiresAt.After(now)
}
