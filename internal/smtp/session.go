package smtp

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/emersion/go-smtp"
	apperrors "github.com/vanishmail/vanishmail-backend/internal/errors"
	"github.com/vanishmail/vanishmail-backend/internal/services"
	"github.com/vanishmail/vanishmail-backend/internal/validator"
)

// Session implements the go-smtp Session interface. Unknown recipients
// are rejected at RCPT time so senders to dead mailboxes get a bounce
// instead of a black hole.
type Session struct {
	backend    *Backend
	from       string
	recipients []string
}

// NewSession creates a new SMTP session
func NewSession(backend *Backend) *Session {
	return &Session{
		backend:    backend,
		recipients: make([]string, 0),
	}
}

// AuthPlain handles PLAIN authentication (not required for receiving)
func (s *Session) AuthPlain(username, password string) error {
	return nil
}

// Mail handles the MAIL FROM command
func (s *Session) Mail(from string, opts *smtp.MailOptions) error {
	s.from = from
	if s.backend.logger != nil {
		s.backend.logger.Debug("MAIL FROM", slog.String("from", from))
	}
	return nil
}

// Rcpt handles the RCPT TO command. The recipient must be a
// well-formed address on an allow-listed domain with a live session.
func (s *Session) Rcpt(to string, opts *smtp.RcptOptions) error {
	address := normalizeRecipient(to)

	if err := validator.ValidateAddress(address, s.backend.cfg.MailboxDomains); err != nil {
		return &smtp.SMTPError{
			Code:         550,
			EnhancedCode: smtp.EnhancedCode{5, 1, 1},
			Message:      "Invalid recipient address",
		}
	}

	if _, err := s.backend.sessions.Get(context.Background(), address); err != nil {
		if errors.Is(err, apperrors.ErrSessionNotFound) {
			return &smtp.SMTPError{
				Code:         550,
				EnhancedCode: smtp.EnhancedCode{5, 1, 1},
				Message:      "Mailbox not found",
			}
		}
		return &smtp.SMTPError{
			Code:         451,
			EnhancedCode: smtp.EnhancedCode{4, 3, 0},
			Message:      "Temporary error",
		}
	}

	s.recipients = append(s.recipients, address)
	if s.backend.logger != nil {
		s.backend.logger.Debug("RCPT TO", slog.String("to", address))
	}
	return nil
}

// Data handles the DATA command - receives the email content
func (s *Session) Data(r io.Reader) error {
	if len(s.recipients) == 0 {
		return &smtp.SMTPError{
			Code:         503,
			EnhancedCode: smtp.EnhancedCode{5, 5, 1},
			Message:      "No recipients specified",
		}
	}

	// Read one byte past the store limit so oversize is detectable
	// without buffering an unbounded payload.
	raw, err := io.ReadAll(io.LimitReader(r, services.MaxRawMessageBytes+1))
	if err != nil {
		return &smtp.SMTPError{
			Code:         451,
			EnhancedCode: smtp.EnhancedCode{4, 3, 0},
			Message:      "Failed to read message",
		}
	}
	if len(raw) > services.MaxRawMessageBytes {
		return &smtp.SMTPError{
			Code:         552,
			EnhancedCode: smtp.EnhancedCode{5, 3, 4},
			Message:      "Message exceeds maximum size",
		}
	}

	ctx := context.Background()
	for _, recipient := range s.recipients {
		if _, err := s.backend.messages.Ingest(ctx, recipient, raw, s.from); err != nil {
			// A mailbox that expired between RCPT and DATA is not the
			// other recipients' problem.
			if s.backend.logger != nil {
				s.backend.logger.Warn("failed to ingest message",
					slog.String("recipient", recipient),
					slog.Any("error", err))
			}
		}
	}

	if s.backend.logger != nil {
		s.backend.logger.Info("email received",
			slog.String("from", s.from),
			slog.Int("recipients", len(s.recipients)),
			slog.Int("raw_bytes", len(raw)))
	}

	return nil
}

// Reset resets the session state
func (s *Session) Reset() {
	s.from = ""
	s.recipients = make([]string, 0)
}

// Logout handles the end of the session
func (s *Session) Logout() error {
	return nil
}

// normalizeRecipient strips angle brackets and whitespace from an
// RCPT TO argument.
func normalizeRecipient(address string) string {
	address = strings.TrimSpace(address)
	address = strings.TrimPrefix(address, "<")
	address = strings.TrimSuffix(address, ">")
	return validator.NormalizeAddress(address)
}
