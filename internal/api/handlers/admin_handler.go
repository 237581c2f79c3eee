package handlers

import (
	"github.com/labstack/echo/v4"
	"github.com/vanishmail/vanishmail-backend/internal/api/response"
	"github.com/vanishmail/vanishmail-backend/internal/services"
)

// AdminHandler handles the admin dashboard endpoints
type AdminHandler struct {
	admin    *services.AdminService
	sessions *services.SessionService
	messages *services.MessageService
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(admin *services.AdminService, sessions *services.SessionService, messages *services.MessageService) *AdminHandler {
	return &AdminHandler{
		admin:    admin,
		sessions: sessions,
		messages: messages,
	}
}

// Overview handles GET /api/admin/overview
func (h *AdminHandler) Overview(c echo.Context) error {
	return api.Success(c, h.admin.GetOverview(c.Request().Context()))
}

// Sessions handles GET /api/admin/sessions
func (h *AdminHandler) Sessions(c echo.Context) error {
	return api.Success(c, h.admin.RecentSessions(c.Request().Context()))
}

// Messages handles GET /api/admin/messages
func (h *AdminHandler) Messages(c echo.Context) error {
	return api.Success(c, h.admin.RecentMessages(c.Request().Context()))
}

// RevokeSession handles DELETE /api/admin/sessions/:address. The
// mailbox's stored messages are flushed along with the session.
func (h *AdminHandler) RevokeSession(c echo.Context) error {
	ctx := c.Request().Context()
	address := c.Param("address")

	if err := h.sessions.Revoke(ctx, address); err != nil {
		return api.Error(c, err)
	}

	deleted, err := h.messages.Flush(ctx, address)
	if err != nil {
		return api.Error(c, err)
	}

	return api.Success(c, map[string]interface{}{
		"revoked":          address,
		"messages_deleted": deleted,
	})
}

// FlushMessages handles DELETE /api/admin/messages?email=<address>
func (h *AdminHandler) FlushMessages(c echo.Context) error {
	address := c.QueryParam("email")
	if address == "" {
		return api.BadRequest(c, "email query parameter is required")
	}

	deleted, err := h.messages.Flush(c.Request().Context(), address)
	if err != nil {
		return api.Error(c, err)
	}

	return api.Success(c, map[string]interface{}{
		"address":          address,
		"messages_deleted": deleted,
	})
}
