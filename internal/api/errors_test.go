package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/scry-practice/internal/api/shared"
	"github.com/phrazzld/scry-practice/internal/domain"
	"github.com/phrazzld/scry-practice/internal/generation"
	"github.com/phrazzld/scry-practice/internal/selector"
	"github.com/phrazzld/scry-practice/internal/service"
	"github.com/phrazzld/scry-practice/internal/store"
	"github.com/phrazzld/scry-practice/internal/task"
	"github.com/stretchr/testify/assert"
)

func TestMapErrorToStatusCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", fmt.Errorf("%w: subject cannot be empty", domain.ErrValidation), http.StatusBadRequest},
		{"empty body", shared.ErrEmptyBody, http.StatusBadRequest},
		{"selector", fmt.Errorf("%w: bad", selector.ErrInvalidRequest), http.StatusBadRequest},
		{"job not found", fmt.Errorf("get: %w", store.ErrJobNotFound), http.StatusNotFound},
		{"not owned", service.ErrNotOwned, http.StatusNotFound},
		{"finished job", fmt.Errorf("%w: completed -> cancelled", domain.ErrInvalidTransition), http.StatusConflict},
		{"queue full", task.ErrQueueFull, http.StatusServiceUnavailable},
		{"rating contention", service.ErrRatingRetriesExhausted, http.StatusServiceUnavailable},
		{"deadline", fmt.Errorf("select: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{"content blocked", generation.ErrContentBlocked, http.StatusBadGateway},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, MapErrorToStatusCode(tc.err))
		})
	}
}

func TestGetSafeErrorMessage(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Job not found", GetSafeErrorMessage(store.ErrJobNotFound))
	assert.Equal(t, "Server is busy, please retry later", GetSafeErrorMessage(task.ErrQueueFull))
	assert.Equal(t,
		"Validation error: subject cannot be empty",
		GetSafeErrorMessage(fmt.Errorf("%w: %v", domain.ErrValidation, domain.ErrEmptySubject)))
	assert.Equal(t, "Validation error", GetSafeErrorMessage(domain.ErrValidation))

	// Internal details never reach the client.
	msg := GetSafeErrorMessage(errors.New("pq: password authentication failed for user admin"))
	assert.Equal(t, "An unexpected error occurred", msg)
}

func TestSanitizeValidationError(t *testing.T) {
	t.Parallel()

	type payload struct {
		Subject string `validate:"required"`
		Count   int    `validate:"min=1"`
	}

	err := validator.New().Struct(payload{Count: 1})
	assert.Equal(t, "Invalid Subject: required field", SanitizeValidationError(err))

	err = validator.New().Struct(payload{Subject: "x"})
	assert.Equal(t, "Invalid Count: too small", SanitizeValidationError(err))

	assert.Equal(t, "Validation error", SanitizeValidationError(errors.New("other")))
}

func TestHandleAPIError_BusyQueueSetsRetryAfter(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/practice/assign/async", nil)
	HandleAPIError(rec, r, fmt.Errorf("submit: %w", task.ErrQueueFull), "")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "5", rec.Header().Get("Retry-After"))

	rec = httptest.NewRecorder()
	HandleAPIError(rec, r, domain.ErrInvalidTransition, "")

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Empty(t, rec.Header().Get("Retry-After"))
}
