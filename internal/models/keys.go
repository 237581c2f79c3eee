package models

import (
	"fmt"
	"strconv"
	"time"
)

// Key namespaces. Every persisted entity lives under one of these
// prefixes so admin scans and ownership checks stay bounded.
const (
	KeyPrefixSession     = "session:"
	KeyPrefixRecovery    = "recovery:"
	KeyPrefixMessage     = "msg:"
	KeyPrefixRateBucket  = "ratelimit:bucket:"
	KeyPrefixRateDaily   = "ratelimit:daily:"
	KeyPrefixStatVolume  = "stats:volume:"
	KeyPrefixStatBlocked = "stats:blocked:"

	KeyDomainCounter = "sys:domain_counter"
)

// SessionKey returns the storage key for a mailbox session.
func SessionKey(address string) string {
	return KeyPrefixSession + address
}

// RecoveryKey returns the storage key for a recovery-key mapping.
func RecoveryKey(key string) string {
	return KeyPrefixRecovery + key
}

// MessageKey returns the storage key for a message owned by address.
func MessageKey(address, id string) string {
	return KeyPrefixMessage + address + ":" + id
}

// MessagePrefix returns the scan prefix covering one mailbox's messages.
func MessagePrefix(address string) string {
	return KeyPrefixMessage + address + ":"
}

// RateBucketKey returns the storage key for a token bucket scope.
func RateBucketKey(scope string) string {
	return KeyPrefixRateBucket + scope
}

// RateDailyKey returns the storage key for a daily counter scope on the
// given UTC day.
func RateDailyKey(scope string, day time.Time) string {
	return fmt.Sprintf("%s%s:%s", KeyPrefixRateDaily, scope, day.UTC().Format("2006-01-02"))
}

// VolumeBucketKey returns the stats key for the 5-minute ingest volume
// bucket containing t.
func VolumeBucketKey(t time.Time, bucketSize time.Duration) string {
	bucket := t.UTC().Truncate(bucketSize).Unix()
	return KeyPrefixStatVolume + strconv.FormatInt(bucket, 10)
}

// BlockedDayKey returns the stats key for blocked requests on the UTC
// day containing t.
func BlockedDayKey(t time.Time) string {
	return KeyPrefixStatBlocked + t.UTC().Format("2006-01-02")
}
