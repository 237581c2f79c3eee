package models

import (
	"time"
)

// RateLimitBucket is the persisted state of one token bucket, stored
// under `ratelimit:bucket:<scope>`. Capacity and refill rate are
// per-scope constants held by the caller, not persisted.
type RateLimitBucket struct {
	Tokens       float64   `json:"tokens"`
	LastRefillAt time.Time `json:"last_refill_at"`
}

// DailyCounter is a fixed daily quota counter, stored under
// `ratelimit:daily:<scope>:<utc-day>`. The day string in the key gives
// the reset; the record's TTL only reclaims space.
type DailyCounter struct {
	Count int `json:"count"`
}

// DomainCounter backs round-robin domain rotation, stored under
// `sys:domain_counter`. Must never decrease.
type DomainCounter struct {
	Counter int64 `json:"counter"`
}

// StatCounter is a generic counter used for ingest volume buckets and
// blocked-request tallies feeding the admin dashboard.
type StatCounter struct {
	Count int64 `json:"count"`
}
