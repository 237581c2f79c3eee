package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/vanishmail/vanishmail-backend/internal/models"
	"github.com/vanishmail/vanishmail-backend/internal/repository"
)

// Volume bucketing for the admin dashboard. Counters are incremented
// at ingest time, never derived by scanning the message store.
const (
	VolumeBucketSize  = 5 * time.Minute
	VolumeBucketCount = 12

	// statTTL keeps counters around long enough for the dashboard
	// window and lets the key TTL do the cleanup.
	statTTL = 2 * time.Hour
)

// StatsRecorder increments dashboard counters. Increments are
// read-modify-write without locking; a lost update skews a soft metric
// and nothing else.
type StatsRecorder struct {
	kv     repository.KVRepository
	now    repository.Clock
	logger *slog.Logger
}

// NewStatsRecorder creates a new StatsRecorder
func NewStatsRecorder(kv repository.KVRepository, logger *slog.Logger) *StatsRecorder {
	return NewStatsRecorderWithClock(kv, logger, time.Now)
}

// NewStatsRecorderWithClock creates a StatsRecorder with a custom clock
func NewStatsRecorderWithClock(kv repository.KVRepository, logger *slog.Logger, now repository.Clock) *StatsRecorder {
	return &StatsRecorder{kv: kv, now: now, logger: logger}
}

// RecordIngest bumps the current 5-minute ingest volume bucket.
func (s *StatsRecorder) RecordIngest(ctx context.Context) {
	s.increment(ctx, models.VolumeBucketKey(s.now(), VolumeBucketSize), statTTL)
}

// RecordBlocked bumps today's blocked-request counter.
func (s *StatsRecorder) RecordBlocked(ctx context.Context) {
	s.increment(ctx, models.BlockedDayKey(s.now()), 48*time.Hour)
}

func (s *StatsRecorder) increment(ctx context.Context, key string, ttl time.Duration) {
	counter, err := repository.GetJSON[models.StatCounter](ctx, s.kv, key)
	if err != nil {
		counter = &models.StatCounter{}
	}
	counter.Count++

	if err := repository.PutJSON(ctx, s.kv, key, counter, ttl); err != nil && s.logger != nil {
		s.logger.Warn("failed to persist stat counter",
			slog.String("key", key),
			slog.Any("error", err))
	}
}
