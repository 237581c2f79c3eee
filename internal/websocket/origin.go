package websocket

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/vanishmail/vanishmail-backend/internal/logger"
)

// NewSecureUpgrader creates a WebSocket upgrader that only accepts
// connections from allow-listed origins. Rejections are reported to
// the security log.
func NewSecureUpgrader(allowedOrigins []string, secLog *logger.SecurityLogger) websocket.Upgrader {
	// Default to localhost if no origins configured
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:3000"}
	}

	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")

			// Allow same-origin requests (empty Origin)
			if origin == "" {
				return true
			}

			for _, allowed := range allowedOrigins {
				if allowed == "*" || allowed == origin {
					return true
				}
			}

			if secLog != nil {
				secLog.InvalidOrigin(r.RemoteAddr, origin)
			}
			return false
		},
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
}
