// Package domain defines the core business entities and errors.
package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidFormat is returned when data is not in the expected format.
	ErrInvalidFormat = errors.New("invalid format")

	// ErrInvalidID is returned when an ID is malformed or invalid.
	ErrInvalidID = errors.New("invalid ID")

	// ErrInvalidTransition is returned when a job status change violates
	// the lifecycle, or progress would move backwards.
	ErrInvalidTransition = errors.New("invalid job status transition")

	// ErrInvalidDifficulty is returned when a difficulty falls outside 1..10.
	ErrInvalidDifficulty = errors.New("invalid difficulty")

	// ErrInvalidScore is returned when a practice outcome is not 0 or 1.
	ErrInvalidScore = errors.New("invalid practice score")

	// ErrUnauthorized is returned when an operation is not permitted.
	ErrUnauthorized = errors.New("unauthorized operation")
)
