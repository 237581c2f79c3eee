package repository

import (
	"errors"
)

// Common repository errors
var (
	// ErrNotFound is returned by typed lookups when the key is absent,
	// expired, or unreadable. The KV layer never distinguishes these.
	ErrNotFound = errors.New("record not found")
)
