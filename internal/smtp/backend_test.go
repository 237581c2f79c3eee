package smtp

import (
	"testing"
	"time"

	"github.com/vanishmail/vanishmail-backend/internal/services"
)

func TestNewSecureServer(t *testing.T) {
	backend := &Backend{}

	t.Run("default configuration", func(t *testing.T) {
		cfg := &ServerConfig{
			Addr:   ":2525",
			Domain: "localhost",
		}

		server := NewSecureServer(backend, cfg)

		if server.Addr != ":2525" {
			t.Errorf("expected addr :2525, got %s", server.Addr)
		}
		if server.Domain != "localhost" {
			t.Errorf("expected domain localhost, got %s", server.Domain)
		}
		if server.MaxMessageBytes != services.MaxRawMessageBytes+1024 {
			t.Errorf("expected max message size %d, got %d", services.MaxRawMessageBytes+1024, server.MaxMessageBytes)
		}
		if server.MaxRecipients != DefaultMaxRecipients {
			t.Errorf("expected max recipients %d, got %d", DefaultMaxRecipients, server.MaxRecipients)
		}
		if server.ReadTimeout != DefaultReadTimeout {
			t.Errorf("expected read timeout %v, got %v", DefaultReadTimeout, server.ReadTimeout)
		}
		if server.WriteTimeout != DefaultWriteTimeout {
			t.Errorf("expected write timeout %v, got %v", DefaultWriteTimeout, server.WriteTimeout)
		}
		if server.MaxLineLength != DefaultMaxLineLength {
			t.Errorf("expected max line length %d, got %d", DefaultMaxLineLength, server.MaxLineLength)
		}
	})

	t.Run("custom configuration", func(t *testing.T) {
		cfg := &ServerConfig{
			Addr:          ":25",
			Domain:        "mail.example.com",
			MaxRecipients: 5,
			ReadTimeout:   30 * time.Second,
			WriteTimeout:  30 * time.Second,
		}

		server := NewSecureServer(backend, cfg)

		if server.MaxRecipients != 5 {
			t.Errorf("expected max recipients 5, got %d", server.MaxRecipients)
		}
		if server.ReadTimeout != 30*time.Second {
			t.Errorf("expected read timeout 30s, got %v", server.ReadTimeout)
		}
		if server.WriteTimeout != 30*time.Second {
			t.Errorf("expected write timeout 30s, got %v", server.WriteTimeout)
		}
	})

	t.Run("insecure auth disabled", func(t *testing.T) {
		cfg := &ServerConfig{
			Addr:   ":2525",
			Domain: "localhost",
		}

		server := NewSecureServer(backend, cfg)

		if server.AllowInsecureAuth {
			t.Error("AllowInsecureAuth should be disabled")
		}
	})
}

func TestNormalizeRecipient(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain address", "user@a.example", "user@a.example"},
		{"angle brackets", "<user@a.example>", "user@a.example"},
		{"uppercase", "USER@A.EXAMPLE", "user@a.example"},
		{"surrounding whitespace", "  <user@a.example>  ", "user@a.example"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := normalizeRecipient(tt.input); got != tt.expected {
				t.Errorf("normalizeRecipient(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}
