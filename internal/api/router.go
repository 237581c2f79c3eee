package api

import (
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/vanishmail/vanishmail-backend/internal/api/handlers"
	"github.com/vanishmail/vanishmail-backend/internal/api/middleware"
	"github.com/vanishmail/vanishmail-backend/internal/config"
	"github.com/vanishmail/vanishmail-backend/internal/logger"
	"github.com/vanishmail/vanishmail-backend/internal/ratelimit"
	"github.com/vanishmail/vanishmail-backend/internal/services"
	"github.com/vanishmail/vanishmail-backend/internal/websocket"
	"gorm.io/gorm"
)

// RouterConfig holds dependencies for the router
type RouterConfig struct {
	DB       *gorm.DB
	Sessions *services.SessionService
	Messages *services.MessageService
	Admin    *services.AdminService
	Stats    *services.StatsRecorder
	Limiter  *ratelimit.Limiter
	Hub      *websocket.Hub
	Config   *config.Config
	Logger   *slog.Logger
	SecLog   *logger.SecurityLogger
}

// NewRouter creates and configures the Echo router with all routes
func NewRouter(cfg *RouterConfig) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// Middleware, outermost first
	e.Use(middleware.Recover())
	e.Use(middleware.SecureHeaders())
	e.Use(middleware.SecureCORS(cfg.Config.AllowedOrigins, cfg.Config.AppEnv))
	e.Use(middleware.RateLimiter(cfg.Config.RateLimitRequests, cfg.Config.RateLimitBurst, cfg.Logger))
	if cfg.Logger != nil {
		e.Use(middleware.RequestLogger(cfg.Logger))
	}

	// Handlers
	healthHandler := handlers.NewHealthHandler(cfg.DB)
	sessionHandler := handlers.NewSessionHandler(cfg.Sessions, cfg.Limiter, cfg.Stats, cfg.Config, cfg.SecLog)
	messageHandler := handlers.NewMessageHandler(cfg.Messages, cfg.Limiter, cfg.Stats, cfg.Config, cfg.SecLog)
	adminHandler := handlers.NewAdminHandler(cfg.Admin, cfg.Sessions, cfg.Messages)

	upgrader := websocket.NewSecureUpgrader(cfg.Config.AllowedOrigins, cfg.SecLog)
	wsHandler := handlers.NewWSHandler(cfg.Hub, cfg.Sessions, upgrader, cfg.Config)

	// Health routes (no auth required)
	e.GET("/health", healthHandler.Health)
	e.GET("/ready", healthHandler.Ready)

	// Public API routes
	apiGroup := e.Group("/api")
	apiGroup.POST("/new_session", sessionHandler.Create)
	apiGroup.POST("/change_address", sessionHandler.ChangeAddress)
	apiGroup.POST("/recovery/restore", sessionHandler.Restore)
	apiGroup.GET("/inbox", messageHandler.Inbox)
	apiGroup.GET("/message/:id", messageHandler.Get)
	apiGroup.DELETE("/message/:id", messageHandler.Delete)

	// Live inbox feed
	e.GET("/ws/inbox", wsHandler.Inbox)

	// Admin routes, gated by the shared secret
	admin := apiGroup.Group("/admin")
	admin.Use(middleware.AdminAuth(cfg.Config.AdminSecret, cfg.SecLog))
	admin.GET("/overview", adminHandler.Overview)
	admin.GET("/sessions", adminHandler.Sessions)
	admin.GET("/messages", adminHandler.Messages)
	admin.DELETE("/sessions/:address", adminHandler.RevokeSession)
	admin.DELETE("/messages", adminHandler.FlushMessages)

	return e
}
