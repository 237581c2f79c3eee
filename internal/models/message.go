package models

import (
	"time"
)

// Message represents a received email, stored under `msg:<address>:<id>`.
// Keying by owning address makes per-mailbox listing a bounded prefix
// scan and enforces ownership structurally.
type Message struct {
	ID         string    `json:"id"`
	Address    string    `json:"address"`
	From       string    `json:"from"`
	FromName   string    `json:"from_name,omitempty"`
	Subject    string    `json:"subject,omitempty"`
	Body       string    `json:"body,omitempty"`
	HTMLBody   string    `json:"html_body,omitempty"`
	Snippet    string    `json:"snippet,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// MessageSummary is a lightweight version for inbox list views
type MessageSummary struct {
	ID         string    `json:"id"`
	From       string    `json:"from"`
	FromName   string    `json:"from_name,omitempty"`
	Subject    string    `json:"subject,omitempty"`
	Snippet    string    `json:"snippet,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Summary returns the list-view projection of the message.
func (m *Message) Summary() MessageSummary {
	return MessageSummary{
		ID:         m.ID,
		From:       m.From,
		FromName:   m.FromName,
		Subject:    m.Subject,
		Snippet:    m.Snippet,
		ReceivedAt: m.ReceivedAt,
		ExpiresAt:  m.ExpiresAt,
	}
}
