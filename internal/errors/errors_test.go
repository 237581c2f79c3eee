package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetErrorCode_Sentinels(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"not found", ErrNotFound, CodeNotFound},
		{"session not found", ErrSessionNotFound, CodeNotFound},
		{"message not found", ErrMessageNotFound, CodeNotFound},
		{"validation", ErrValidation, CodeValidation},
		{"too large", ErrMessageTooLarge, CodeValidation},
		{"rate limited", ErrRateLimited, CodeRateLimited},
		{"unauthorized", ErrUnauthorized, CodeUnauthorized},
		{"storage degraded", ErrStorageDegraded, CodeInternalError},
		{"unknown", errors.New("boom"), CodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, GetErrorCode(tt.err))
		})
	}
}

func TestGetErrorCode_WrappedSentinel(t *testing.T) {
	err := fmt.Errorf("restore session: %w", ErrSessionNotFound)
	assert.Equal(t, CodeNotFound, GetErrorCode(err))
}

func TestAppError_CodeTakesPrecedence(t *testing.T) {
	appErr := NewAppError(ErrNotFound, "custom message", CodeRateLimited)
	assert.Equal(t, CodeRateLimited, GetErrorCode(appErr))
	assert.Equal(t, "custom message", appErr.Error())
	assert.ErrorIs(t, appErr, ErrNotFound)
}

func TestAppError_FallsBackToWrappedError(t *testing.T) {
	appErr := NewAppError(ErrUnauthorized, "", CodeUnauthorized)
	assert.Equal(t, "unauthorized", appErr.Error())
}

func TestWrap(t *testing.T) {
	assert.NoError(t, Wrap(nil, "context"))

	err := Wrap(ErrNotFound, "lookup recovery key")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "lookup recovery key")
}
