package services

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/vanishmail/vanishmail-backend/internal/config"
	apperrors "github.com/vanishmail/vanishmail-backend/internal/errors"
	"github.com/vanishmail/vanishmail-backend/internal/mailparse"
	"github.com/vanishmail/vanishmail-backend/internal/models"
	"github.com/vanishmail/vanishmail-backend/internal/repository"
	"github.com/vanishmail/vanishmail-backend/internal/validator"
)

// Ingest limits
const (
	// MaxRawMessageBytes caps the raw transport payload before parsing
	// is attempted.
	MaxRawMessageBytes = 256000

	// MaxBodyChars caps the stored plain-text body.
	MaxBodyChars = 100000

	// flushScanLimit bounds how many records one flush pass touches.
	flushScanLimit = 500
)

// Notifier receives new-message events for live inbox push. The
// websocket hub implements it; a nil Notifier disables push.
type Notifier interface {
	NotifyNewMessage(address string, summary models.MessageSummary)
}

// MessageService accepts, lists, reads and deletes short-lived
// messages. Messages are keyed under their owning address, so every
// operation is scoped to one mailbox by construction.
type MessageService struct {
	kv       repository.KVRepository
	sessions *SessionService
	stats    *StatsRecorder
	cfg      *config.Config
	notifier Notifier
	logger   *slog.Logger
	now      repository.Clock

	// dispatch runs post-acceptance side effects (stat counters, push
	// notifications) without adding latency to the ingest path.
	dispatch func(func())
}

// NewMessageService creates a new MessageService
func NewMessageService(kv repository.KVRepository, sessions *SessionService, stats *StatsRecorder, cfg *config.Config, logger *slog.Logger) *MessageService {
	return NewMessageServiceWithClock(kv, sessions, stats, cfg, logger, time.Now)
}

// NewMessageServiceWithClock creates a MessageService with a custom clock
func NewMessageServiceWithClock(kv repository.KVRepository, sessions *SessionService, stats *StatsRecorder, cfg *config.Config, logger *slog.Logger, now repository.Clock) *MessageService {
	return &MessageService{
		kv:       kv,
		sessions: sessions,
		stats:    stats,
		cfg:      cfg,
		logger:   logger,
		now:      now,
		dispatch: func(fn func()) { go fn() },
	}
}

// SetNotifier attaches a live-push notifier.
func (m *MessageService) SetNotifier(n Notifier) {
	m.notifier = n
}

// Ingest accepts a raw inbound message for address. Oversized payloads
// and dead mailboxes are rejected; payloads with no discernible sender
// are dropped silently (the sender is not a client of this API) and
// report success with an empty id.
func (m *MessageService) Ingest(ctx context.Context, address string, raw []byte, envelopeFrom string) (string, error) {
	if len(raw) > MaxRawMessageBytes {
		return "", apperrors.ErrMessageTooLarge
	}

	address = validator.NormalizeAddress(address)
	if _, err := m.sessions.Get(ctx, address); err != nil {
		return "", apperrors.ErrSessionNotFound
	}

	envelope, err := mailparse.Parse(bytes.NewReader(raw), envelopeFrom)
	if err != nil {
		if m.logger != nil {
			m.logger.Debug("dropping unparseable message",
				slog.String("address", address),
				slog.Any("error", err))
		}
		return "", nil
	}

	now := m.now()
	msg := &models.Message{
		ID:         uuid.NewString(),
		Address:    address,
		From:       envelope.SenderEmail,
		FromName:   envelope.SenderName,
		Subject:    envelope.Subject,
		Body:       truncateRunes(envelope.BodyText, MaxBodyChars),
		HTMLBody:   envelope.BodyHTML,
		Snippet:    envelope.Snippet,
		ReceivedAt: now,
		ExpiresAt:  now.Add(m.cfg.MessageTTL),
	}

	if err := repository.PutJSON(ctx, m.kv, models.MessageKey(address, msg.ID), msg, m.cfg.MessageTTL); err != nil {
		return "", fmt.Errorf("%w: failed to store message", apperrors.ErrStorageDegraded)
	}

	summary := msg.Summary()
	m.dispatch(func() {
		m.stats.RecordIngest(context.Background())
		if m.notifier != nil {
			m.notifier.NotifyNewMessage(address, summary)
		}
	})

	if m.logger != nil {
		m.logger.Info("message ingested",
			slog.String("address", address),
			slog.Int("raw_bytes", len(raw)))
	}

	return msg.ID, nil
}

// List returns up to limit message summaries for address, most recent
// first, along with the mailbox's total stored count. A mailbox whose
// session has expired behaves as if it never existed.
func (m *MessageService) List(ctx context.Context, address string, limit int) ([]models.MessageSummary, int64, error) {
	if err := validator.ValidateAddress(address, m.cfg.MailboxDomains); err != nil {
		return nil, 0, fmt.Errorf("%w: malformed address", apperrors.ErrValidation)
	}
	address = validator.NormalizeAddress(address)

	if _, err := m.sessions.Get(ctx, address); err != nil {
		return nil, 0, apperrors.ErrSessionNotFound
	}

	limit = validator.ClampListLimit(limit)
	records, err := m.kv.ListByPrefix(ctx, models.MessagePrefix(address), limit)
	if err != nil {
		// Read path fails soft: an empty inbox beats a failed request.
		return []models.MessageSummary{}, 0, nil
	}

	summaries := make([]models.MessageSummary, 0, len(records))
	for _, record := range records {
		msg, err := repository.GetJSON[models.Message](ctx, m.kv, record.Key)
		if err != nil || msg.Address != address {
			continue
		}
		summaries = append(summaries, msg.Summary())
	}

	total, err := m.kv.CountByPrefix(ctx, models.MessagePrefix(address))
	if err != nil {
		total = int64(len(summaries))
	}

	return summaries, total, nil
}

// Get returns one message, cross-checking ownership: a message id
// alone must never disclose content for a different mailbox.
func (m *MessageService) Get(ctx context.Context, address, id string) (*models.Message, error) {
	if err := m.validateRef(address, id); err != nil {
		return nil, err
	}
	address = validator.NormalizeAddress(address)

	if _, err := m.sessions.Get(ctx, address); err != nil {
		return nil, apperrors.ErrMessageNotFound
	}

	msg, err := repository.GetJSON[models.Message](ctx, m.kv, models.MessageKey(address, id))
	if err != nil || msg.Address != address || msg.ID != id {
		return nil, apperrors.ErrMessageNotFound
	}

	return msg, nil
}

// Delete removes one message after the same ownership check as Get.
func (m *MessageService) Delete(ctx context.Context, address, id string) error {
	if _, err := m.Get(ctx, address, id); err != nil {
		return err
	}
	address = validator.NormalizeAddress(address)

	if err := m.kv.Delete(ctx, models.MessageKey(address, id)); err != nil {
		return fmt.Errorf("%w: failed to delete message", apperrors.ErrStorageDegraded)
	}
	return nil
}

// Flush deletes every stored message for address. Admin-only; used
// when revoking abusive mailboxes.
func (m *MessageService) Flush(ctx context.Context, address string) (int, error) {
	address = validator.NormalizeAddress(address)

	records, err := m.kv.ListByPrefix(ctx, models.MessagePrefix(address), flushScanLimit)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to scan messages", apperrors.ErrStorageDegraded)
	}

	deleted := 0
	for _, record := range records {
		if err := m.kv.Delete(ctx, record.Key); err == nil {
			deleted++
		}
	}

	if m.logger != nil {
		m.logger.Info("mailbox flushed",
			slog.String("address", address),
			slog.Int("deleted", deleted))
	}
	return deleted, nil
}

func (m *MessageService) validateRef(address, id string) error {
	if err := validator.ValidateAddress(address, m.cfg.MailboxDomains); err != nil {
		return fmt.Errorf("%w: malformed address", apperrors.ErrValidation)
	}
	if err := validator.ValidateToken(id); err != nil {
		return fmt.Errorf("%w: malformed message id", apperrors.ErrValidation)
	}
	return nil
}

// truncateRunes caps s at n characters without splitting a rune.
func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
