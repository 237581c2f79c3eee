package errors

import (
	"errors"
	"fmt"
)

// Domain-specific error types
var (
	// ErrNotFound indicates a resource is absent or already expired.
	// Expired and never-existed are deliberately indistinguishable.
	ErrNotFound = errors.New("resource not found")

	// ErrValidation indicates malformed input rejected before any storage access
	ErrValidation = errors.New("invalid input")

	// ErrRateLimited indicates a token bucket or daily cap was exceeded
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrUnauthorized indicates a missing or incorrect admin secret
	ErrUnauthorized = errors.New("unauthorized")

	// ErrStorageDegraded indicates an internal store error on a write path.
	// Read paths never surface this; they fail soft to absent/empty.
	ErrStorageDegraded = errors.New("storage degraded")

	// ErrSessionNotFound indicates the mailbox session was not found
	ErrSessionNotFound = errors.New("session not found")

	// ErrMessageNotFound indicates the message was not found
	ErrMessageNotFound = errors.New("message not found")

	// ErrMessageTooLarge indicates a raw payload above the ingest cap
	ErrMessageTooLarge = errors.New("message too large")
)

// Error codes for API responses
const (
	CodeNotFound      = "NOT_FOUND"
	CodeValidation    = "INVALID_INPUT"
	CodeRateLimited   = "RATE_LIMITED"
	CodeUnauthorized  = "UNAUTHORIZED"
	CodeInternalError = "INTERNAL_ERROR"
)

// AppError represents an application error with context
type AppError struct {
	Err     error
	Message string
	Code    string
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new AppError
func NewAppError(err error, message string, code string) *AppError {
	return &AppError{
		Err:     err,
		Message: message,
		Code:    code,
	}
}

// GetErrorCode maps an error to its API error code
func GetErrorCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}

	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrSessionNotFound),
		errors.Is(err, ErrMessageNotFound):
		return CodeNotFound
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrMessageTooLarge):
		return CodeValidation
	case errors.Is(err, ErrRateLimited):
		return CodeRateLimited
	case errors.Is(err, ErrUnauthorized):
		return CodeUnauthorized
	default:
		return CodeInternalError
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
