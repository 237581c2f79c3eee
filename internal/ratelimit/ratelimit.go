// Package ratelimit implements store-backed soft rate limiting: a
// token bucket for per-minute smoothing and a fixed daily quota. Both
// persist their state as KV records so limits hold across stateless
// request handlers, and both fail open when state cannot be read.
package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"github.com/vanishmail/vanishmail-backend/internal/models"
	"github.com/vanishmail/vanishmail-backend/internal/repository"
)

// bucketTTL keeps abandoned buckets self-cleaning. Refill at any sane
// rate fills a bucket well within this window, so expiry never costs a
// caller tokens they would otherwise have.
const bucketTTL = 120 * time.Second

// dailyTTL outlives the UTC day boundary; the day string in the key is
// what provides the reset.
const dailyTTL = 48 * time.Hour

// Limiter provides token-bucket and daily-quota rate limiting backed
// by the KV store. Updates are read-modify-write without cross-request
// locking: last-write-wins races are acceptable for a soft limiter.
type Limiter struct {
	kv     repository.KVRepository
	now    repository.Clock
	logger *slog.Logger
}

// NewLimiter creates a new Limiter
func NewLimiter(kv repository.KVRepository, logger *slog.Logger) *Limiter {
	return NewLimiterWithClock(kv, logger, time.Now)
}

// NewLimiterWithClock creates a Limiter with a custom clock
func NewLimiterWithClock(kv repository.KVRepository, logger *slog.Logger, now repository.Clock) *Limiter {
	return &Limiter{kv: kv, now: now, logger: logger}
}

// Consume charges one token from the bucket for scope, refilling first
// at refillPerSecond up to capacity. A scope with no stored state
// starts at full capacity. Returns true when the call is allowed.
func (l *Limiter) Consume(ctx context.Context, scope string, capacity, refillPerSecond float64) bool {
	now := l.now()
	key := models.RateBucketKey(scope)

	bucket, err := repository.GetJSON[models.RateLimitBucket](ctx, l.kv, key)
	if err != nil {
		// Absent or unreadable state reads as a fresh bucket: fail open.
		bucket = &models.RateLimitBucket{Tokens: capacity, LastRefillAt: now}
	} else {
		elapsed := now.Sub(bucket.LastRefillAt).Seconds()
		if elapsed > 0 {
			bucket.Tokens += elapsed * refillPerSecond
		}
		if bucket.Tokens > capacity {
			bucket.Tokens = capacity
		}
		bucket.LastRefillAt = now
	}

	allowed := bucket.Tokens >= 1
	if allowed {
		bucket.Tokens--
	}
	if bucket.Tokens < 0 {
		bucket.Tokens = 0
	}

	// Persist regardless of outcome so denied callers keep a warm
	// refill timestamp. Write failure must not block the request.
	if err := repository.PutJSON(ctx, l.kv, key, bucket, bucketTTL); err != nil && l.logger != nil {
		l.logger.Warn("failed to persist rate limit bucket",
			slog.String("scope", scope),
			slog.Any("error", err))
	}

	return allowed
}

// ConsumeDaily increments the fixed daily counter for scope and
// reports whether the call stays within maxPerDay. The counter key
// embeds the UTC day, so a new day starts at zero regardless of prior
// counts.
func (l *Limiter) ConsumeDaily(ctx context.Context, scope string, maxPerDay int) bool {
	now := l.now()
	key := models.RateDailyKey(scope, now)

	counter, err := repository.GetJSON[models.DailyCounter](ctx, l.kv, key)
	if err != nil {
		counter = &models.DailyCounter{}
	}

	if counter.Count >= maxPerDay {
		return false
	}

	counter.Count++
	if err := repository.PutJSON(ctx, l.kv, key, counter, dailyTTL); err != nil && l.logger != nil {
		l.logger.Warn("failed to persist daily counter",
			slog.String("scope", scope),
			slog.Any("error", err))
	}

	return true
}
