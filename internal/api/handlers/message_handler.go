package handlers

import (
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/vanishmail/vanishmail-backend/internal/api/response"
	"github.com/vanishmail/vanishmail-backend/internal/config"
	"github.com/vanishmail/vanishmail-backend/internal/logger"
	"github.com/vanishmail/vanishmail-backend/internal/models"
	"github.com/vanishmail/vanishmail-backend/internal/ratelimit"
	"github.com/vanishmail/vanishmail-backend/internal/services"
)

// MessageHandler handles inbox and message endpoints
type MessageHandler struct {
	messages *services.MessageService
	limiter  *ratelimit.Limiter
	stats    *services.StatsRecorder
	cfg      *config.Config
	secLog   *logger.SecurityLogger
}

// NewMessageHandler creates a new MessageHandler
func NewMessageHandler(messages *services.MessageService, limiter *ratelimit.Limiter, stats *services.StatsRecorder, cfg *config.Config, secLog *logger.SecurityLogger) *MessageHandler {
	return &MessageHandler{
		messages: messages,
		limiter:  limiter,
		stats:    stats,
		cfg:      cfg,
		secLog:   secLog,
	}
}

// inboxResponse is the payload for GET /api/inbox
type inboxResponse struct {
	Emails     []models.MessageSummary `json:"emails"`
	TotalCount int64                   `json:"totalCount"`
}

// Inbox handles GET /api/inbox?email=<address>
func (h *MessageHandler) Inbox(c echo.Context) error {
	ctx := c.Request().Context()
	ip := c.RealIP()

	if !h.limiter.Consume(ctx, "inbox:"+ip, h.cfg.InboxBucketCapacity, h.cfg.InboxRefillPerSec) {
		h.blocked(c)
		return api.TooManyRequests(c, "too many inbox requests")
	}

	address := c.QueryParam("email")
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			limit = v
		}
	}

	summaries, total, err := h.messages.List(ctx, address, limit)
	if err != nil {
		return api.Error(c, err)
	}

	return api.Success(c, inboxResponse{
		Emails:     summaries,
		TotalCount: total,
	})
}

// Get handles GET /api/message/:id?email=<address>
func (h *MessageHandler) Get(c echo.Context) error {
	ctx := c.Request().Context()
	ip := c.RealIP()

	if !h.limiter.Consume(ctx, "inbox:"+ip, h.cfg.InboxBucketCapacity, h.cfg.InboxRefillPerSec) {
		h.blocked(c)
		return api.TooManyRequests(c, "too many inbox requests")
	}

	address := c.QueryParam("email")
	id := c.Param("id")

	msg, err := h.messages.Get(ctx, address, id)
	if err != nil {
		return api.Error(c, err)
	}

	return api.Success(c, msg)
}

// Delete handles DELETE /api/message/:id?email=<address>
func (h *MessageHandler) Delete(c echo.Context) error {
	address := c.QueryParam("email")
	id := c.Param("id")

	if err := h.messages.Delete(c.Request().Context(), address, id); err != nil {
		return api.Error(c, err)
	}

	return api.NoContent(c)
}

func (h *MessageHandler) blocked(c echo.Context) {
	h.stats.RecordBlocked(c.Request().Context())
	if h.secLog != nil {
		h.secLog.RateLimitExceeded(c.RealIP(), c.Path())
	}
}
