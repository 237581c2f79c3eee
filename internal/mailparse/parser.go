// Package mailparse extracts the minimal envelope the message store
// keeps from raw transport payloads: sender, subject, plain and HTML
// bodies. It is MIME-aware via enmime but deliberately shallow; full
// RFC-5322 fidelity is not a goal.
package mailparse

import (
	"errors"
	"io"
	"regexp"
	"strings"

	"github.com/jhillyerd/enmime"
)

// ErrNoSender indicates the payload had no discernible sender. Such
// messages are dropped at ingest rather than stored.
var ErrNoSender = errors.New("no discernible sender")

// Envelope is a parsed inbound message
type Envelope struct {
	SenderEmail string
	SenderName  string
	Subject     string
	Snippet     string
	BodyText    string
	BodyHTML    string
}

// Parse reads a raw message and extracts its envelope. The fallback
// sender (SMTP MAIL FROM) is used when the headers carry none; if both
// are empty the message is unparseable and ErrNoSender is returned.
func Parse(r io.Reader, fallbackSender string) (*Envelope, error) {
	env, err := enmime.ReadEnvelope(r)
	if err != nil {
		return nil, err
	}

	parsed := &Envelope{
		Subject:  env.GetHeader("Subject"),
		BodyText: env.Text,
		BodyHTML: env.HTML,
	}

	parsed.SenderName, parsed.SenderEmail = parseFromHeader(env.GetHeader("From"))
	if parsed.SenderEmail == "" {
		parsed.SenderEmail = strings.TrimSpace(fallbackSender)
	}
	if parsed.SenderEmail == "" {
		return nil, ErrNoSender
	}

	parsed.Snippet = generateSnippet(parsed.BodyText, parsed.BodyHTML)

	return parsed, nil
}

// parseFromHeader extracts name and email from a From header
func parseFromHeader(from string) (name, email string) {
	from = strings.TrimSpace(from)
	if from == "" {
		return "", ""
	}

	// Pattern: "Name" <email@example.com> or Name <email@example.com>
	re := regexp.MustCompile(`^(?:"?([^"<]*)"?\s*)?<?([^<>\s]+@[^<>\s]+)>?$`)
	matches := re.FindStringSubmatch(from)

	if len(matches) >= 3 {
		name = strings.Trim(strings.TrimSpace(matches[1]), `"`)
		email = strings.TrimSpace(matches[2])
	} else {
		// Fallback: treat entire string as email if it looks like one
		if strings.Contains(from, "@") {
			email = from
		}
	}

	return name, email
}

// generateSnippet creates a preview snippet from the message body
func generateSnippet(bodyText, bodyHTML string) string {
	var text string

	if bodyText != "" {
		text = bodyText
	} else if bodyHTML != "" {
		text = StripHTMLTags(bodyHTML)
	}

	text = strings.Join(strings.Fields(text), " ")
	text = strings.TrimSpace(text)

	if runes := []rune(text); len(runes) > 255 {
		text = string(runes[:252]) + "..."
	}

	return text
}

var (
	scriptStyleRe = regexp.MustCompile(`(?i)<(script|style)[^>]*>[\s\S]*?</(script|style)>`)
	tagRe         = regexp.MustCompile(`<[^>]*>`)
)

// StripHTMLTags removes HTML tags from a string
func StripHTMLTags(html string) string {
	html = scriptStyleRe.ReplaceAllString(html, "")
	html = tagRe.ReplaceAllString(html, " ")

	// Decode common HTML entities
	html = strings.ReplaceAll(html, "&nbsp;", " ")
	html = strings.ReplaceAll(html, "&amp;", "&")
	html = strings.ReplaceAll(html, "&lt;", "<")
	html = strings.ReplaceAll(html, "&gt;", ">")
	html = strings.ReplaceAll(html, "&quot;", `"`)
	html = strings.ReplaceAll(html, "&#39;", "'")

	return html
}
