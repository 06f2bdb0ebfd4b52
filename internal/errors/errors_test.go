package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rescan/internal/types"
)

func TestConstructorsCarryStatusCodes(t *testing.T) {
	tests := []struct {
		name     string
		err      *CategorizedError
		status   int
		category ErrorCategory
	}{
		{"validation", NewValidationError("feedback", "empty"), http.StatusBadRequest, CategoryValidation},
		{"invalid address", NewInvalidAddressError("", "empty"), http.StatusBadRequest, CategoryValidation},
		{"invalid delta", NewInvalidDeltaError(-5), http.StatusBadRequest, CategoryValidation},
		{"not found", NewNotFoundError("address", "1 main st"), http.StatusNotFound, CategoryNotFound},
		{"duplicate", NewDuplicateKeyError("address", "1 main st", nil), http.StatusConflict, CategoryDuplicateKey},
		{"storage", NewStorageUnavailableError("insert", nil), http.StatusServiceUnavailable, CategoryStorage},
		{"timeout", NewTimeoutError("record scan", nil), http.StatusGatewayTimeout, CategoryTimeout},
		{"provider", NewProviderError("gemini", nil), http.StatusBadGateway, CategoryProvider},
		{"rate limit", NewRateLimitError(1), http.StatusTooManyRequests, CategoryRateLimit},
		{"internal", NewInternalError("boom", nil), http.StatusInternalServerError, CategorySystem},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, tt.err.StatusCode)
			assert.Equal(t, tt.category, tt.err.Category)
			assert.Equal(t, tt.status, GetHTTPStatusCode(tt.err))
		})
	}
}

func TestSentinelMatching(t *testing.T) {
	err := fmt.Errorf("lookup: %w", NewNotFoundError("address", "x"))

	assert.True(t, stderrors.Is(err, ErrNotFound))
	assert.False(t, stderrors.Is(err, ErrDuplicateKey))
	assert.True(t, stderrors.Is(NewInvalidDeltaError(-1), ErrValidation))
	assert.True(t, stderrors.Is(NewTimeoutError("x", nil), ErrTimeout))
	assert.True(t, stderrors.Is(NewStorageUnavailableError("x", nil), ErrStorage))
}

func TestCategorize(t *testing.T) {
	t.Run("nil", func(t *testing.T) {
		assert.Nil(t, Categorize(nil))
	})

	t.Run("already categorized", func(t *testing.T) {
		orig := NewNotFoundError("scan", "abc")
		assert.Same(t, orig, Categorize(fmt.Errorf("wrap: %w", orig)))
	})

	t.Run("deadline exceeded", func(t *testing.T) {
		got := Categorize(fmt.Errorf("query: %w", context.DeadlineExceeded))
		require.NotNil(t, got)
		assert.Equal(t, CategoryTimeout, got.Category)
	})

	t.Run("canceled", func(t *testing.T) {
		got := Categorize(context.Canceled)
		assert.Equal(t, CategoryTimeout, got.Category)
	})

	t.Run("service error", func(t *testing.T) {
		got := Categorize(&types.ServiceError{Code: "INVALID_CONFIDENCE", Message: "bad"})
		assert.Equal(t, CategoryValidation, got.Category)
		assert.Equal(t, http.StatusBadRequest, got.StatusCode)
	})

	t.Run("unknown", func(t *testing.T) {
		got := Categorize(stderrors.New("mystery"))
		assert.Equal(t, CategorySystem, got.Category)
		assert.Equal(t, http.StatusInternalServerError, got.StatusCode)
	})
}

func TestErrorClassHelpers(t *testing.T) {
	assert.True(t, IsUserError(NewInvalidAddressError("", "empty")))
	assert.False(t, IsSystemError(NewInvalidAddressError("", "empty")))
	assert.True(t, IsSystemError(NewStorageUnavailableError("begin", nil)))

	assert.True(t, IsRetryable(NewProviderError("gemini", nil)))
	assert.False(t, IsRetryable(NewProviderUnavailableError("gemini", nil)))
	assert.False(t, IsRetryable(NewValidationError("x", "y")))
	assert.False(t, IsRetryable(nil))
}

func TestErrorStringIncludesCause(t *testing.T) {
	err := NewStorageUnavailableError("commit", stderrors.New("disk full"))
	assert.Contains(t, err.Error(), "disk full")
	assert.ErrorIs(t, err, err.Cause)

	se := err.ToServiceError()
	assert.Equal(t, "STORAGE_UNAVAILABLE", se.Code)
}
