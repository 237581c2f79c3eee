package models

import (
	"time"
)

// Session represents an ephemeral mailbox identity. It is stored under
// `session:<address>`, and its recovery key is mirrored under
// `recovery:<key>` with the same TTL.
type Session struct {
	Address     string    `json:"address"`
	RecoveryKey string    `json:"recovery_key"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// RecoveryRecord maps a recovery key back to its mailbox address.
type RecoveryRecord struct {
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionInfo is the public shape of a session. The recovery key is
// only included when the session is first created or restored.
type SessionInfo struct {
	Address     string    `json:"address"`
	RecoveryKey string    `json:"recovery_key,omitempty"`
	ExpiresAt   time.Time `json:"expires_at"`
}
