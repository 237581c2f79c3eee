package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the application
type Config struct {
	// Database
	DatabaseURL string

	// Server ports
	APIPort  int
	SMTPPort int

	// SMTP
	SMTPDomain string

	// Mailbox pool
	MailboxDomains     []string
	DomainRepeatFactor int

	// Lifecycle
	MailboxTTL time.Duration
	MessageTTL time.Duration

	// Security
	AdminSecret    string
	AllowedOrigins []string
	AppEnv         string

	// Edge rate smoothing (in-process, per IP)
	RateLimitRequests float64
	RateLimitBurst    int

	// Store-backed limits
	SessionBucketCapacity float64
	SessionRefillPerSec   float64
	SessionMaxPerDay      int
	InboxBucketCapacity   float64
	InboxRefillPerSec     float64

	// Logging
	LogLevel string
}

// Default lifecycle values. The message TTL is deliberately much
// shorter than the mailbox TTL: addresses are long-lived handles,
// messages are read-once and discarded.
const (
	DefaultMailboxTTL = 30 * 24 * time.Hour
	DefaultMessageTTL = 15 * time.Minute
)

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{}

	// Required: DATABASE_URL
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required but not set")
	}

	// Required: MAILBOX_DOMAINS (comma-separated allow-list)
	domains := os.Getenv("MAILBOX_DOMAINS")
	if domains == "" {
		return nil, fmt.Errorf("MAILBOX_DOMAINS is required but not set")
	}
	for _, d := range strings.Split(domains, ",") {
		d = strings.TrimSpace(strings.ToLower(d))
		if d != "" {
			cfg.MailboxDomains = append(cfg.MailboxDomains, d)
		}
	}
	if len(cfg.MailboxDomains) == 0 {
		return nil, fmt.Errorf("MAILBOX_DOMAINS must contain at least one domain")
	}

	cfg.APIPort = getEnvInt("API_PORT", 8080)
	cfg.SMTPPort = getEnvInt("SMTP_PORT", 2525)

	cfg.SMTPDomain = os.Getenv("SMTP_DOMAIN")
	if cfg.SMTPDomain == "" {
		cfg.SMTPDomain = cfg.MailboxDomains[0]
	}

	cfg.DomainRepeatFactor = getEnvInt("DOMAIN_REPEAT_FACTOR", 2)
	if cfg.DomainRepeatFactor < 1 {
		return nil, fmt.Errorf("DOMAIN_REPEAT_FACTOR must be at least 1")
	}

	cfg.MailboxTTL = getEnvDuration("MAILBOX_TTL", DefaultMailboxTTL)
	cfg.MessageTTL = getEnvDuration("MESSAGE_TTL", DefaultMessageTTL)

	cfg.AdminSecret = os.Getenv("ADMIN_SECRET")

	for _, o := range strings.Split(os.Getenv("ALLOWED_ORIGINS"), ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
		}
	}

	cfg.AppEnv = os.Getenv("APP_ENV")
	if cfg.AppEnv == "" {
		cfg.AppEnv = "development"
	}

	cfg.RateLimitRequests = getEnvFloat("RATE_LIMIT_REQUESTS", 10.0)
	cfg.RateLimitBurst = getEnvInt("RATE_LIMIT_BURST", 20)

	cfg.SessionBucketCapacity = getEnvFloat("SESSION_BUCKET_CAPACITY", 5)
	cfg.SessionRefillPerSec = getEnvFloat("SESSION_REFILL_PER_SEC", 0.5)
	cfg.SessionMaxPerDay = getEnvInt("SESSION_MAX_PER_DAY", 100)
	cfg.InboxBucketCapacity = getEnvFloat("INBOX_BUCKET_CAPACITY", 30)
	cfg.InboxRefillPerSec = getEnvFloat("INBOX_REFILL_PER_SEC", 10)

	cfg.LogLevel = os.Getenv("LOG_LEVEL")
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	return cfg, nil
}

// LoadWithValidation loads and validates configuration, failing fast on errors
func LoadWithValidation() (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.AppEnv == "production" {
		if err := cfg.ValidateProduction(); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.APIPort <= 0 || c.APIPort > 65535 {
		return fmt.Errorf("APIPort must be between 1 and 65535")
	}
	if c.SMTPPort <= 0 || c.SMTPPort > 65535 {
		return fmt.Errorf("SMTPPort must be between 1 and 65535")
	}
	if c.MailboxTTL <= 0 {
		return fmt.Errorf("MailboxTTL must be positive")
	}
	if c.MessageTTL <= 0 {
		return fmt.Errorf("MessageTTL must be positive")
	}
	return nil
}

// ValidateProduction performs additional validation for production environment
func (c *Config) ValidateProduction() error {
	if c.AdminSecret == "" {
		return fmt.Errorf("ADMIN_SECRET is required in production")
	}

	if len(c.AllowedOrigins) == 0 {
		return fmt.Errorf("ALLOWED_ORIGINS is required in production")
	}
	for _, o := range c.AllowedOrigins {
		if o == "*" {
			return fmt.Errorf("wildcard (*) origins are not allowed in production")
		}
	}

	if strings.Contains(c.DatabaseURL, "sslmode=disable") {
		return fmt.Errorf("sslmode=disable is not allowed in production")
	}

	return nil
}

// LogConfig logs configuration values (excluding secrets)
func (c *Config) LogConfig(logger *slog.Logger) {
	logger.Info("configuration loaded",
		slog.Int("api_port", c.APIPort),
		slog.Int("smtp_port", c.SMTPPort),
		slog.Int("mailbox_domains", len(c.MailboxDomains)),
		slog.Int("domain_repeat_factor", c.DomainRepeatFactor),
		slog.Duration("mailbox_ttl", c.MailboxTTL),
		slog.Duration("message_ttl", c.MessageTTL),
		slog.String("app_env", c.AppEnv),
		slog.Bool("admin_secret_set", c.AdminSecret != ""),
		slog.Int("allowed_origins", len(c.AllowedOrigins)),
		slog.Float64("rate_limit_rps", c.RateLimitRequests),
		slog.Int("rate_limit_burst", c.RateLimitBurst),
		slog.String("log_level", c.LogLevel),
	)
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.Atoi(value); err == nil {
			return v
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.ParseFloat(value, 64); err == nil {
			return v
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if v, err := time.ParseDuration(value); err == nil {
			return v
		}
	}
	return defaultValue
}
