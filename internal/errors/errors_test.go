package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError(t *testing.T) {
	t.Run("Error returns formatted string", func(t *testing.T) {
		err := New(ErrCodeNotFound, "Server not found")
		assert.Equal(t, "NOT_FOUND: Server not found", err.Error())
	})

	t.Run("Error with cause includes cause", func(t *testing.T) {
		cause := errors.New("database connection failed")
		err := Wrap(ErrCodeDatabase, "Database error", cause)
		assert.Contains(t, err.Error(), "DATABASE_ERROR")
		assert.Contains(t, err.Error(), "Database error")
		assert.Contains(t, err.Error(), "database connection failed")
	})

	t.Run("WithCause adds cause to error", func(t *testing.T) {
		cause := errors.New("original error")
		err := New(ErrCodeInternal, "Something went wrong").WithCause(cause)
		assert.Equal(t, cause, err.Unwrap())
	})

	t.Run("WithDetails adds details to error", func(t *testing.T) {
		details := map[string]string{"field": "serverId", "reason": "missing"}
		err := New(ErrCodeValidation, "Validation failed").WithDetails(details)
		assert.Equal(t, details, err.Details)
	})
}

func TestErrorConstructors(t *testing.T) {
	tests := []struct {
		name         string
		constructor  func() *AppError
		expectedCode ErrorCode
	}{
		{"Unauthorized", func() *AppError { return Unauthorized("test") }, ErrCodeUnauthorized},
		{"Forbidden", func() *AppError { return Forbidden("test") }, ErrCodeForbidden},
		{"LinkInvalid", func() *AppError { return LinkInvalid() }, ErrCodeLinkInvalid},
		{"NotFound", func() *AppError { return NotFound("Server") }, ErrCodeNotFound},
		{"Conflict", func() *AppError { return Conflict("test") }, ErrCodeConflict},
		{"ValidationError", func() *AppError { return ValidationError("test") }, ErrCodeValidation},
		{"InvalidInput", func() *AppError { return InvalidInput("provider", "unsupported") }, ErrCodeInvalidInput},
		{"MissingRequired", func() *AppError { return MissingRequired("serverId") }, ErrCodeMissingRequired},
		{"RateLimitExceeded", func() *AppError { return RateLimitExceeded() }, ErrCodeRateLimitExceeded},
		{"GatewayTransport", func() *AppError { return GatewayTransport(502, "") }, ErrCodeGatewayTransport},
		{"GatewayTimeout", func() *AppError { return GatewayTimeout("") }, ErrCodeGatewayTimeout},
		{"QRNotPresent", func() *AppError { return QRNotPresent() }, ErrCodeQRNotPresent},
		{"Internal", func() *AppError { return Internal("test") }, ErrCodeInternal},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.constructor()
			assert.Equal(t, tc.expectedCode, err.Code)
			assert.NotEmpty(t, err.Message)
		})
	}
}

func TestDatabase(t *testing.T) {
	t.Run("wraps database error", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := Database(cause)
		assert.Equal(t, ErrCodeDatabase, err.Code)
		assert.Equal(t, cause, err.Unwrap())
	})
}

func TestGatewayTransport(t *testing.T) {
	t.Run("keeps upstream status in details", func(t *testing.T) {
		err := GatewayTransport(401, "invalid apikey")
		assert.Equal(t, "invalid apikey", err.Message)
		assert.Equal(t, map[string]any{"upstreamStatus": 401}, err.Details)
	})

	t.Run("falls back to generic message", func(t *testing.T) {
		err := GatewayTransport(0, "")
		assert.Equal(t, "Gateway request failed", err.Message)
	})
}

func TestHasCode(t *testing.T) {
	t.Run("matches wrapped AppError", func(t *testing.T) {
		err := fmt.Errorf("resolve link: %w", LinkInvalid())
		assert.True(t, HasCode(err, ErrCodeLinkInvalid))
		assert.False(t, HasCode(err, ErrCodeNotFound))
	})

	t.Run("false for standard error", func(t *testing.T) {
		assert.False(t, HasCode(errors.New("boom"), ErrCodeInternal))
	})
}

func TestIsAppError(t *testing.T) {
	t.Run("returns true for AppError", func(t *testing.T) {
		err := New(ErrCodeNotFound, "test")
		assert.True(t, IsAppError(err))
	})

	t.Run("returns false for standard error", func(t *testing.T) {
		err := errors.New("standard error")
		assert.False(t, IsAppError(err))
	})

	t.Run("returns true for wrapped AppError", func(t *testing.T) {
		appErr := New(ErrCodeNotFound, "test")
		wrapped := errors.New("wrapped: " + appErr.Error())
		// Note: This returns false because we're creating a new error, not wrapping
		assert.False(t, IsAppError(wrapped))
	})
}

func TestAsAppError(t *testing.T) {
	t.Run("extracts AppError", func(t *testing.T) {
		original := New(ErrCodeNotFound, "Connection not found")
		extracted, ok := AsAppError(original)
		assert.True(t, ok)
		assert.Equal(t, original, extracted)
	})

	t.Run("returns false for non-AppError", func(t *testing.T) {
		err := errors.New("standard error")
		extracted, ok := AsAppError(err)
		assert.False(t, ok)
		assert.Nil(t, extracted)
	})
}

func TestGetCode(t *testing.T) {
	t.Run("returns code for AppError", func(t *testing.T) {
		err := New(ErrCodeNotFound, "test")
		assert.Equal(t, ErrCodeNotFound, GetCode(err))
	})

	t.Run("returns ErrCodeInternal for standard error", func(t *testing.T) {
		err := errors.New("standard error")
		assert.Equal(t, ErrCodeInternal, GetCode(err))
	})
}

func TestNotFoundMessage(t *testing.T) {
	t.Run("formats resource name correctly", func(t *testing.T) {
		err := NotFound("Server")
		assert.Equal(t, "Server not found", err.Message)

		err = NotFound("Connection")
		assert.Equal(t, "Connection not found", err.Message)
	})
}

func TestMissingRequiredMessage(t *testing.T) {
	t.Run("formats field name correctly", func(t *testing.T) {
		err := MissingRequired("items")
		assert.Equal(t, "items is required", err.Message)

		err = MissingRequired("serverId")
		assert.Equal(t, "serverId is required", err.Message)
	})
}
