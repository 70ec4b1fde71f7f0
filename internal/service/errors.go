package service

import (
	"errors"
	"fmt"
)

// Common service errors.
var (
	// ErrNotOwned indicates a job belongs to a different principal.
	// The API reports it as not found so job ids cannot be enumerated.
	ErrNotOwned = errors.New("resource is owned by another user")

	// ErrRatingRetriesExhausted is returned when a rating update keeps
	// losing races with concurrent writers.
	ErrRatingRetriesExhausted = errors.New("rating update retries exhausted")
)

// ServiceError wraps unexpected failures with the operation that produced them.
type ServiceError struct {
	// Operation is the operation that failed (e.g., "assign_async", "complete")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for ServiceError.
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("%s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewServiceError creates a new ServiceError. A nil err yields nil.
func NewServiceError(operation, message string, err error) error {
	if err == nil {
		return nil
	}
	return &ServiceError{Operation: operation, Message: message, Err: err}
}
