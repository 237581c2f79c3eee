package services

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/vanishmail/vanishmail-backend/internal/config"
	apperrors "github.com/vanishmail/vanishmail-backend/internal/errors"
	"github.com/vanishmail/vanishmail-backend/internal/models"
	"github.com/vanishmail/vanishmail-backend/internal/repository"
	"github.com/vanishmail/vanishmail-backend/internal/validator"
)

// localPartLength is the length of generated mailbox local parts.
const localPartLength = 10

const localPartAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// SessionService creates, validates, restores and revokes ephemeral
// mailbox identities.
type SessionService struct {
	kv        repository.KVRepository
	allocator *DomainAllocator
	cfg       *config.Config
	logger    *slog.Logger
	now       repository.Clock
}

// NewSessionService creates a new SessionService
func NewSessionService(kv repository.KVRepository, allocator *DomainAllocator, cfg *config.Config, logger *slog.Logger) *SessionService {
	return NewSessionServiceWithClock(kv, allocator, cfg, logger, time.Now)
}

// NewSessionServiceWithClock creates a SessionService with a custom clock
func NewSessionServiceWithClock(kv repository.KVRepository, allocator *DomainAllocator, cfg *config.Config, logger *slog.Logger, now repository.Clock) *SessionService {
	return &SessionService{kv: kv, allocator: allocator, cfg: cfg, logger: logger, now: now}
}

// Create provisions a new mailbox: a random local part on the next
// domain in rotation, a recovery key, and mirrored TTLs on both
// records.
func (s *SessionService) Create(ctx context.Context) (*models.SessionInfo, error) {
	domain := s.allocator.Next(ctx)

	localPart, err := randomLocalPart(localPartLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate local part: %w", err)
	}
	address := localPart + "@" + domain

	// Generated addresses must pass the same validation as submitted
	// ones; a misconfigured allow-list fails here, not at read time.
	if err := validator.ValidateAddress(address, s.cfg.MailboxDomains); err != nil {
		return nil, fmt.Errorf("%w: generated address rejected: %s", apperrors.ErrValidation, address)
	}

	now := s.now()
	session := &models.Session{
		Address:     address,
		RecoveryKey: uuid.NewString(),
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.cfg.MailboxTTL),
	}

	if err := repository.PutJSON(ctx, s.kv, models.SessionKey(address), session, s.cfg.MailboxTTL); err != nil {
		return nil, fmt.Errorf("%w: failed to store session", apperrors.ErrStorageDegraded)
	}

	recovery := &models.RecoveryRecord{Address: address, CreatedAt: now}
	if err := repository.PutJSON(ctx, s.kv, models.RecoveryKey(session.RecoveryKey), recovery, s.cfg.MailboxTTL); err != nil {
		return nil, fmt.Errorf("%w: failed to store recovery record", apperrors.ErrStorageDegraded)
	}

	if s.logger != nil {
		s.logger.Info("session created",
			slog.String("domain", domain),
			slog.Time("expires_at", session.ExpiresAt))
	}

	return &models.SessionInfo{
		Address:     session.Address,
		RecoveryKey: session.RecoveryKey,
		ExpiresAt:   session.ExpiresAt,
	}, nil
}

// Restore resolves a recovery key back to its mailbox. The key format
// is checked before any lookup, and both the recovery record and the
// underlying session must be live.
func (s *SessionService) Restore(ctx context.Context, recoveryKey string) (*models.SessionInfo, error) {
	if err := validator.ValidateToken(recoveryKey); err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrValidation, "malformed recovery key", apperrors.CodeValidation)
	}

	recovery, err := repository.GetJSON[models.RecoveryRecord](ctx, s.kv, models.RecoveryKey(recoveryKey))
	if err != nil {
		return nil, apperrors.ErrSessionNotFound
	}

	session, err := repository.GetJSON[models.Session](ctx, s.kv, models.SessionKey(recovery.Address))
	if err != nil {
		return nil, apperrors.ErrSessionNotFound
	}

	return &models.SessionInfo{
		Address:     session.Address,
		RecoveryKey: session.RecoveryKey,
		ExpiresAt:   session.ExpiresAt,
	}, nil
}

// Get returns the live session for address, or ErrSessionNotFound.
func (s *SessionService) Get(ctx context.Context, address string) (*models.Session, error) {
	address = validator.NormalizeAddress(address)
	session, err := repository.GetJSON[models.Session](ctx, s.kv, models.SessionKey(address))
	if err != nil {
		return nil, apperrors.ErrSessionNotFound
	}
	return session, nil
}

// ChangeAddress rotates a caller to a fresh mailbox. The old mailbox
// and its messages are left to expire on their own schedule; address
// rotation is deliberately decoupled from message deletion.
func (s *SessionService) ChangeAddress(ctx context.Context, oldAddress string) (*models.SessionInfo, error) {
	if err := validator.ValidateAddress(oldAddress, s.cfg.MailboxDomains); err != nil {
		return nil, fmt.Errorf("%w: malformed address", apperrors.ErrValidation)
	}
	return s.Create(ctx)
}

// Revoke destroys a session and its recovery mapping. Admin-only.
func (s *SessionService) Revoke(ctx context.Context, address string) error {
	address = validator.NormalizeAddress(address)

	session, err := repository.GetJSON[models.Session](ctx, s.kv, models.SessionKey(address))
	if err != nil {
		return apperrors.ErrSessionNotFound
	}

	if err := s.kv.Delete(ctx, models.SessionKey(address)); err != nil {
		return fmt.Errorf("%w: failed to delete session", apperrors.ErrStorageDegraded)
	}
	// Best effort: an orphaned recovery record points at a dead
	// session and Restore already re-checks the session record.
	_ = s.kv.Delete(ctx, models.RecoveryKey(session.RecoveryKey))

	if s.logger != nil {
		s.logger.Info("session revoked", slog.String("address", address))
	}
	return nil
}

// randomLocalPart generates a random lowercase alphanumeric local part
func randomLocalPart(length int) (string, error) {
	buf := make([]byte, length)
	max := big.NewInt(int64(len(localPartAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = localPartAlphabet[n.Int64()]
	}
	return string(buf), nil
}
