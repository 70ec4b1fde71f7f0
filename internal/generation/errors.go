package generation

import (
	"context"
	"errors"
)

// Common errors returned by the generation package
var (
	// ErrGenerationFailed is returned when generation fails for any general reason
	ErrGenerationFailed = errors.New("failed to generate practice items")

	// ErrInvalidResponse is returned when the LLM response cannot be parsed or is malformed
	ErrInvalidResponse = errors.New("invalid response from language model")

	// ErrContentBlocked is returned when the LLM blocks the content due to safety filters
	ErrContentBlocked = errors.New("content blocked by language model safety filters")

	// ErrTransientFailure is returned for temporary errors that might resolve on retry
	ErrTransientFailure = errors.New("transient error during generation")

	// ErrInvalidRequest is returned when the model rejects the request itself.
	// Retrying the same request will not help.
	ErrInvalidRequest = errors.New("invalid generation request")

	// ErrInvalidConfig is returned when the generator configuration is invalid
	ErrInvalidConfig = errors.New("invalid generator configuration")
)

// IsTransient reports whether err is worth retrying: an explicit transient
// failure or a per-call deadline. Cancellation of the caller's context is
// not transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrInvalidRequest) || errors.Is(err, ErrContentBlocked) {
		return false
	}
	return errors.Is(err, ErrTransientFailure) || errors.Is(err, context.DeadlineExceeded)
}
