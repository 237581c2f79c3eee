package handlers

import (
	gorilla "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/vanishmail/vanishmail-backend/internal/api/response"
	"github.com/vanishmail/vanishmail-backend/internal/config"
	"github.com/vanishmail/vanishmail-backend/internal/services"
	"github.com/vanishmail/vanishmail-backend/internal/validator"
	"github.com/vanishmail/vanishmail-backend/internal/websocket"
)

// WSHandler upgrades inbox subscription connections
type WSHandler struct {
	hub      *websocket.Hub
	sessions *services.SessionService
	upgrader gorilla.Upgrader
	cfg      *config.Config
}

// NewWSHandler creates a new WSHandler
func NewWSHandler(hub *websocket.Hub, sessions *services.SessionService, upgrader gorilla.Upgrader, cfg *config.Config) *WSHandler {
	return &WSHandler{
		hub:      hub,
		sessions: sessions,
		upgrader: upgrader,
		cfg:      cfg,
	}
}

// Inbox handles GET /ws/inbox?email=<address>. The connection is
// subscribed to the given mailbox immediately; further subscriptions
// can be managed over the socket.
func (h *WSHandler) Inbox(c echo.Context) error {
	address := validator.NormalizeAddress(c.QueryParam("email"))
	if err := validator.ValidateAddress(address, h.cfg.MailboxDomains); err != nil {
		return api.BadRequest(c, "invalid email address")
	}

	// Dead mailboxes do not get a live feed.
	if _, err := h.sessions.Get(c.Request().Context(), address); err != nil {
		return api.Error(c, err)
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade already wrote the handshake failure.
		return nil
	}

	client := websocket.NewClient(h.hub, conn, h.cfg.MailboxDomains, nil)
	h.hub.Register(client)
	h.hub.Subscribe(client, address)

	go client.WritePump()
	go client.ReadPump()

	return nil
}
