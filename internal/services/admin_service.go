package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/vanishmail/vanishmail-backend/internal/models"
	"github.com/vanishmail/vanishmail-backend/internal/repository"
)

// Admin scan caps. Dashboards read bounded slices of the KV namespace,
// never the whole keyspace.
const (
	recentSessionsLimit = 25
	recentMessagesLimit = 20
)

// VolumePoint is one 5-minute ingest volume bucket.
type VolumePoint struct {
	BucketStart time.Time `json:"bucket_start"`
	Count       int64     `json:"count"`
}

// Overview aggregates the dashboard headline numbers.
type Overview struct {
	Volume         []VolumePoint `json:"volume"`
	ActiveSessions int64         `json:"active_sessions"`
	StoredMessages int64         `json:"stored_messages"`
	BlockedToday   int64         `json:"blocked_today"`
}

// AdminSession is the dashboard view of a session. The recovery key is
// never exposed, even to admins.
type AdminSession struct {
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AdminMessage is the dashboard view of a stored message.
type AdminMessage struct {
	ID         string    `json:"id"`
	Address    string    `json:"address"`
	From       string    `json:"from"`
	Subject    string    `json:"subject,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
}

// AdminService derives dashboard widgets from bounded KV scans and the
// counters maintained at ingest time. Every read is best-effort: a
// degraded widget renders as zero or empty, never as a failed request.
type AdminService struct {
	kv     repository.KVRepository
	logger *slog.Logger
	now    repository.Clock
}

// NewAdminService creates a new AdminService
func NewAdminService(kv repository.KVRepository, logger *slog.Logger) *AdminService {
	return NewAdminServiceWithClock(kv, logger, time.Now)
}

// NewAdminServiceWithClock creates an AdminService with a custom clock
func NewAdminServiceWithClock(kv repository.KVRepository, logger *slog.Logger, now repository.Clock) *AdminService {
	return &AdminService{kv: kv, logger: logger, now: now}
}

// GetOverview returns the headline dashboard numbers. The volume
// series comes from counters incremented at ingest time, not from
// scanning the message store.
func (a *AdminService) GetOverview(ctx context.Context) *Overview {
	now := a.now()
	overview := &Overview{
		Volume: make([]VolumePoint, 0, VolumeBucketCount),
	}

	newest := now.UTC().Truncate(VolumeBucketSize)
	for i := VolumeBucketCount - 1; i >= 0; i-- {
		start := newest.Add(-time.Duration(i) * VolumeBucketSize)
		point := VolumePoint{BucketStart: start}
		if counter, err := repository.GetJSON[models.StatCounter](ctx, a.kv, models.VolumeBucketKey(start, VolumeBucketSize)); err == nil {
			point.Count = counter.Count
		}
		overview.Volume = append(overview.Volume, point)
	}

	if count, err := a.kv.CountByPrefix(ctx, models.KeyPrefixSession); err == nil {
		overview.ActiveSessions = count
	}
	if count, err := a.kv.CountByPrefix(ctx, models.KeyPrefixMessage); err == nil {
		overview.StoredMessages = count
	}
	if counter, err := repository.GetJSON[models.StatCounter](ctx, a.kv, models.BlockedDayKey(now)); err == nil {
		overview.BlockedToday = counter.Count
	}

	return overview
}

// RecentSessions returns the newest sessions, capped at a fixed limit.
func (a *AdminService) RecentSessions(ctx context.Context) []AdminSession {
	records, err := a.kv.ListByPrefix(ctx, models.KeyPrefixSession, recentSessionsLimit)
	if err != nil {
		if a.logger != nil {
			a.logger.Warn("recent sessions scan degraded", slog.Any("error", err))
		}
		return []AdminSession{}
	}

	sessions := make([]AdminSession, 0, len(records))
	for _, record := range records {
		session, err := repository.GetJSON[models.Session](ctx, a.kv, record.Key)
		if err != nil {
			continue
		}
		sessions = append(sessions, AdminSession{
			Address:   session.Address,
			CreatedAt: session.CreatedAt,
			ExpiresAt: session.ExpiresAt,
		})
	}
	return sessions
}

// RecentMessages returns the newest stored messages, capped at a fixed
// limit.
func (a *AdminService) RecentMessages(ctx context.Context) []AdminMessage {
	records, err := a.kv.ListByPrefix(ctx, models.KeyPrefixMessage, recentMessagesLimit)
	if err != nil {
		if a.logger != nil {
			a.logger.Warn("recent messages scan degraded", slog.Any("error", err))
		}
		return []AdminMessage{}
	}

	messages := make([]AdminMessage, 0, len(records))
	for _, record := range records {
		msg, err := repository.GetJSON[models.Message](ctx, a.kv, record.Key)
		if err != nil {
			continue
		}
		messages = append(messages, AdminMessage{
			ID:         msg.ID,
			Address:    msg.Address,
			From:       msg.From,
			Subject:    msg.Subject,
			ReceivedAt: msg.ReceivedAt,
		})
	}
	return messages
}
