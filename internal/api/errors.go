package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/scry-practice/internal/api/shared"
	"github.com/phrazzld/scry-practice/internal/domain"
	"github.com/phrazzld/scry-practice/internal/generation"
	"github.com/phrazzld/scry-practice/internal/selector"
	"github.com/phrazzld/scry-practice/internal/service"
	"github.com/phrazzld/scry-practice/internal/store"
	"github.com/phrazzld/scry-practice/internal/task"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	var validationErrs validator.ValidationErrors

	switch {
	case err == nil:
		return http.StatusOK

	// Authorization errors
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized

	// Not found errors. Jobs owned by someone else are reported as missing.
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, service.ErrNotOwned):
		return http.StatusNotFound

	// Bad request errors
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, domain.ErrInvalidScore),
		errors.Is(err, selector.ErrInvalidRequest),
		errors.Is(err, store.ErrInvalidEntity),
		errors.Is(err, shared.ErrEmptyBody),
		errors.As(err, &validationErrs):
		return http.StatusBadRequest

	// The language model rejected or failed the request
	case errors.Is(err, generation.ErrInvalidRequest),
		errors.Is(err, generation.ErrContentBlocked),
		errors.Is(err, generation.ErrGenerationFailed),
		errors.Is(err, generation.ErrTransientFailure):
		return http.StatusBadGateway

	// Conflict errors
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict

	// Busy errors
	case errors.Is(err, task.ErrQueueFull),
		errors.Is(err, task.ErrQueueClosed),
		errors.Is(err, service.ErrRatingRetriesExhausted):
		return http.StatusServiceUnavailable

	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout

	// Default: internal server error
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. This prevents leaking sensitive internal details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	var validationErrs validator.ValidationErrors

	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		return "Unauthorized"

	case errors.Is(err, store.ErrJobNotFound),
		errors.Is(err, service.ErrNotOwned):
		return "Job not found"

	case errors.Is(err, store.ErrNotFound):
		return "Resource not found"

	case errors.As(err, &validationErrs):
		return SanitizeValidationError(err)

	case errors.Is(err, domain.ErrValidation):
		return validationDetail(err)

	case errors.Is(err, domain.ErrInvalidID):
		return "Invalid ID format"

	case errors.Is(err, domain.ErrInvalidScore):
		return "Performance must be between 0 and 1"

	case errors.Is(err, shared.ErrEmptyBody):
		return "Request body is required"

	case errors.Is(err, selector.ErrInvalidRequest),
		errors.Is(err, store.ErrInvalidEntity):
		return "Invalid request"

	case errors.Is(err, generation.ErrInvalidRequest),
		errors.Is(err, generation.ErrContentBlocked),
		errors.Is(err, generation.ErrGenerationFailed),
		errors.Is(err, generation.ErrTransientFailure):
		return "Practice items could not be generated"

	case errors.Is(err, domain.ErrInvalidTransition):
		return "Job is already finished"

	case errors.Is(err, task.ErrQueueFull),
		errors.Is(err, task.ErrQueueClosed):
		return "Server is busy, please retry later"

	case errors.Is(err, service.ErrRatingRetriesExhausted):
		return "Rating update is contended, please retry"

	case errors.Is(err, context.DeadlineExceeded):
		return "Request timed out"

	default:
		return "An unexpected error occurred"
	}
}

// validationDetail returns the message of a domain validation error
// without the sentinel prefix. Domain validation messages never carry
// user data, so they are safe to return.
func validationDetail(err error) string {
	prefix := domain.ErrValidation.Error() + ": "
	msg := err.Error()
	if i := strings.Index(msg, prefix); i >= 0 {
		detail := msg[i+len(prefix):]
		if detail != "" {
			return "Validation error: " + detail
		}
	}
	return "Validation error"
}

// SanitizeValidationError removes sensitive details from validation errors
// and returns a user-friendly message.
func SanitizeValidationError(err error) string {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		fe := validationErrs[0]
		return fmt.Sprintf("Invalid %s: %s", fe.Field(), getValidationTagMessage(fe.Tag()))
	}
	return "Validation error"
}

// getValidationTagMessage maps validation tags to user-friendly error messages
func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "min", "gte", "gt":
		return "too small"
	case "max", "lte", "lt":
		return "too large"
	case "url":
		return "invalid URL"
	case "uuid":
		return "invalid UUID"
	case "oneof":
		return "invalid value"
	default:
		return "validation failed"
	}
}

// BusyRetryAfter is advertised to clients refused because the job queue is full.
const BusyRetryAfter = 5 * time.Second

// HandleAPIError maps err to a status code and safe message, then writes
// the response and logs the full error. defaultMsg replaces the generic
// message for internal errors when provided.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, defaultMsg string) {
	status := MapErrorToStatusCode(err)
	message := GetSafeErrorMessage(err)
	if status == http.StatusInternalServerError && defaultMsg != "" {
		message = defaultMsg
	}

	var opts []shared.ResponseOption
	switch {
	case status == http.StatusConflict:
		opts = append(opts, shared.WithElevatedLogLevel())
	case errors.Is(err, task.ErrQueueFull):
		opts = append(opts, shared.WithRetryAfter(BusyRetryAfter))
	}
	shared.RespondWithErrorAndLog(w, r, status, message, err, opts...)
}
