package handlers

import (
	"errors"

	"github.com/labstack/echo/v4"
	apperrors "github.com/vanishmail/vanishmail-backend/internal/errors"
	"github.com/vanishmail/vanishmail-backend/internal/api/response"
	"github.com/vanishmail/vanishmail-backend/internal/config"
	"github.com/vanishmail/vanishmail-backend/internal/logger"
	"github.com/vanishmail/vanishmail-backend/internal/ratelimit"
	"github.com/vanishmail/vanishmail-backend/internal/services"
)

// SessionHandler handles mailbox session endpoints
type SessionHandler struct {
	sessions *services.SessionService
	limiter  *ratelimit.Limiter
	stats    *services.StatsRecorder
	cfg      *config.Config
	secLog   *logger.SecurityLogger
}

// NewSessionHandler creates a new SessionHandler
func NewSessionHandler(sessions *services.SessionService, limiter *ratelimit.Limiter, stats *services.StatsRecorder, cfg *config.Config, secLog *logger.SecurityLogger) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		limiter:  limiter,
		stats:    stats,
		cfg:      cfg,
		secLog:   secLog,
	}
}

// restoreRequest is the body for POST /api/recovery/restore
type restoreRequest struct {
	RecoveryKey string `json:"recoveryKey"`
}

// changeAddressRequest is the body for POST /api/change_address
type changeAddressRequest struct {
	OldAddress string `json:"oldAddress"`
}

// Create handles POST /api/new_session. Session creation is the most
// abuse-prone operation, so it is gated by both the token bucket and
// the daily cap, keyed by client IP.
func (h *SessionHandler) Create(c echo.Context) error {
	ctx := c.Request().Context()
	ip := c.RealIP()

	if !h.limiter.Consume(ctx, "session:"+ip, h.cfg.SessionBucketCapacity, h.cfg.SessionRefillPerSec) {
		h.blocked(c)
		return api.TooManyRequests(c, "too many session requests")
	}
	if !h.limiter.ConsumeDaily(ctx, "session:"+ip, h.cfg.SessionMaxPerDay) {
		h.quotaExhausted(c, "session:"+ip)
		return api.TooManyRequests(c, "daily session quota exceeded")
	}

	info, err := h.sessions.Create(ctx)
	if err != nil {
		return api.Error(c, err)
	}

	return api.Created(c, info)
}

// ChangeAddress handles POST /api/change_address. Issues a fresh
// mailbox; the old one keeps expiring on its own schedule.
func (h *SessionHandler) ChangeAddress(c echo.Context) error {
	ctx := c.Request().Context()
	ip := c.RealIP()

	var req changeAddressRequest
	if err := c.Bind(&req); err != nil {
		return api.BadRequest(c, "invalid request body")
	}

	if !h.limiter.Consume(ctx, "session:"+ip, h.cfg.SessionBucketCapacity, h.cfg.SessionRefillPerSec) {
		h.blocked(c)
		return api.TooManyRequests(c, "too many session requests")
	}
	if !h.limiter.ConsumeDaily(ctx, "session:"+ip, h.cfg.SessionMaxPerDay) {
		h.quotaExhausted(c, "session:"+ip)
		return api.TooManyRequests(c, "daily session quota exceeded")
	}

	info, err := h.sessions.ChangeAddress(ctx, req.OldAddress)
	if err != nil {
		return api.Error(c, err)
	}

	return api.Created(c, info)
}

// Restore handles POST /api/recovery/restore
func (h *SessionHandler) Restore(c echo.Context) error {
	var req restoreRequest
	if err := c.Bind(&req); err != nil {
		return api.BadRequest(c, "invalid request body")
	}

	info, err := h.sessions.Restore(c.Request().Context(), req.RecoveryKey)
	if err != nil {
		// An unknown but well-formed key is a guessing signal
		if errors.Is(err, apperrors.ErrSessionNotFound) && h.secLog != nil {
			h.secLog.SuspiciousActivity(c.RealIP(), c.Path(), "unknown recovery key")
		}
		return api.Error(c, err)
	}

	return api.Success(c, info)
}

func (h *SessionHandler) blocked(c echo.Context) {
	h.stats.RecordBlocked(c.Request().Context())
	if h.secLog != nil {
		h.secLog.RateLimitExceeded(c.RealIP(), c.Path())
	}
}

func (h *SessionHandler) quotaExhausted(c echo.Context, scope string) {
	h.stats.RecordBlocked(c.Request().Context())
	if h.secLog != nil {
		h.secLog.QuotaExhausted(c.RealIP(), scope)
	}
}
