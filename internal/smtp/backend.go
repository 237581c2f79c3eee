package smtp

import (
	"crypto/tls"
	"log/slog"
	"time"

	"github.com/emersion/go-smtp"
	"github.com/vanishmail/vanishmail-backend/internal/config"
	"github.com/vanishmail/vanishmail-backend/internal/services"
)

// Security limits
const (
	DefaultMaxRecipients = 10
	DefaultReadTimeout   = 60 * time.Second
	DefaultWriteTimeout  = 60 * time.Second
	DefaultMaxLineLength = 2000
)

// Backend implements the go-smtp Backend interface. Inbound mail is
// receive-only: no authentication, no relaying.
type Backend struct {
	sessions *services.SessionService
	messages *services.MessageService
	cfg      *config.Config
	logger   *slog.Logger
}

// BackendConfig holds configuration for the SMTP backend
type BackendConfig struct {
	Sessions *services.SessionService
	Messages *services.MessageService
	Config   *config.Config
	Logger   *slog.Logger
}

// NewBackend creates a new SMTP backend
func NewBackend(cfg *BackendConfig) *Backend {
	return &Backend{
		sessions: cfg.Sessions,
		messages: cfg.Messages,
		cfg:      cfg.Config,
		logger:   cfg.Logger,
	}
}

// NewSession creates a new SMTP session
func (b *Backend) NewSession(c *smtp.Conn) (smtp.Session, error) {
	if b.logger != nil {
		b.logger.Debug("new SMTP connection", slog.String("remote_addr", c.Conn().RemoteAddr().String()))
	}
	return NewSession(b), nil
}

// ServerConfig holds security configuration for the SMTP server
type ServerConfig struct {
	Addr          string
	Domain        string
	MaxRecipients int
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	TLSConfig     *tls.Config
}

// NewSecureServer creates a new SMTP server with security settings
func NewSecureServer(backend *Backend, cfg *ServerConfig) *smtp.Server {
	s := smtp.NewServer(backend)

	s.Addr = cfg.Addr
	s.Domain = cfg.Domain

	// One raw payload may not exceed what the message store accepts,
	// plus slack so overshoot is rejected by us with a clean 552
	// instead of a dropped connection.
	s.MaxMessageBytes = services.MaxRawMessageBytes + 1024

	if cfg.MaxRecipients > 0 {
		s.MaxRecipients = cfg.MaxRecipients
	} else {
		s.MaxRecipients = DefaultMaxRecipients
	}

	if cfg.ReadTimeout > 0 {
		s.ReadTimeout = cfg.ReadTimeout
	} else {
		s.ReadTimeout = DefaultReadTimeout
	}

	if cfg.WriteTimeout > 0 {
		s.WriteTimeout = cfg.WriteTimeout
	} else {
		s.WriteTimeout = DefaultWriteTimeout
	}

	if cfg.TLSConfig != nil {
		s.TLSConfig = cfg.TLSConfig
	}

	// Cap line length to prevent buffer abuse
	s.MaxLineLength = DefaultMaxLineLength

	return s
}
