package store

import (
	"errors"
	"fmt"
)

// Common store errors used across all store implementations.
var (
	// ErrNotFound is returned when a requested entity does not exist in the store.
	// This is a generic version of the entity-specific not found errors.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when an operation would create a duplicate
	// of a unique entity.
	ErrDuplicate = errors.New("entity already exists")

	// ErrInvalidEntity is returned when an entity fails validation before
	// being stored. Check the wrapped error for specific validation details.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrTransactionFailed is returned when a transaction cannot be begun,
	// committed or rolled back.
	ErrTransactionFailed = errors.New("transaction failed")

	// ErrRatingConflict is returned when a rating update loses a race with a
	// concurrent writer (serialization failure or deadlock). Safe to retry.
	ErrRatingConflict = errors.New("concurrent rating update conflict")

	// Entity-specific "not found" errors

	// ErrJobNotFound indicates that the requested job does not exist in the store.
	ErrJobNotFound = fmt.Errorf("%w: job", ErrNotFound)

	// Entity-specific "duplicate" errors

	// ErrJobExists indicates that a job with the given ID already exists.
	ErrJobExists = fmt.Errorf("%w: job", ErrDuplicate)
)
