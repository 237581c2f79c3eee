// Package validator provides input validation for addresses, recovery
// keys and message ids. Malformed input is rejected here, before any
// storage access.
package validator

import (
	"errors"
	"regexp"
	"strings"
)

// Validation errors
var (
	ErrInvalidAddress   = errors.New("invalid address format")
	ErrInvalidLocalPart = errors.New("invalid local part format")
	ErrDomainNotAllowed = errors.New("domain not in allow-list")
	ErrInvalidToken     = errors.New("invalid token format")
	ErrEmptyInput       = errors.New("input cannot be empty")
)

// Regex patterns for validation
var (
	// Local part: lowercase alphanumeric plus dot, underscore, hyphen; 1-32 chars
	localPartRegex = regexp.MustCompile(`^[a-z0-9._-]{1,32}$`)

	// Recovery keys and message ids are 36-character UUID-shaped tokens.
	// Checked before lookup so malformed input never costs a storage read.
	tokenRegex = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)
)

// ValidateLocalPart validates the local part of a mailbox address.
func ValidateLocalPart(localPart string) error {
	if localPart == "" {
		return ErrEmptyInput
	}
	if !localPartRegex.MatchString(localPart) {
		return ErrInvalidLocalPart
	}
	return nil
}

// ValidateAddress validates a full mailbox address against the domain
// allow-list. The address must be exactly local@domain with a valid
// local part and an allow-listed domain.
func ValidateAddress(address string, allowedDomains []string) error {
	address = strings.TrimSpace(strings.ToLower(address))
	if address == "" {
		return ErrEmptyInput
	}

	local, domain, ok := strings.Cut(address, "@")
	if !ok || strings.Contains(domain, "@") {
		return ErrInvalidAddress
	}

	if err := ValidateLocalPart(local); err != nil {
		return err
	}

	for _, allowed := range allowedDomains {
		if domain == allowed {
			return nil
		}
	}
	return ErrDomainNotAllowed
}

// ValidateToken validates a recovery key or message id. Tokens are
// 36-character lowercase hex-and-hyphen strings (loose UUID shape).
func ValidateToken(token string) error {
	if token == "" {
		return ErrEmptyInput
	}
	if len(token) != 36 || !tokenRegex.MatchString(token) {
		return ErrInvalidToken
	}
	return nil
}

// NormalizeAddress lowercases and trims an address for use as a storage key.
func NormalizeAddress(address string) string {
	return strings.TrimSpace(strings.ToLower(address))
}

// List limits
const (
	DefaultListLimit = 20
	MaxListLimit     = 50
)

// ClampListLimit sanitizes a caller-supplied list limit.
func ClampListLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}
