package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-practice/internal/domain"
)

// JobFilter narrows an owner's job listing. Zero values mean "any".
type JobFilter struct {
	OwnerID uuid.UUID
	Status  domain.JobStatus
	Type    domain.JobType
	Limit   int
	Offset  int
}

// DefaultJobListLimit applies when a filter has no limit.
const DefaultJobListLimit = 50

// JobStore defines the interface for job persistence.
// Jobs are never deleted; every status change goes through Transition.
type JobStore interface {
	// Create saves a new pending job.
	// Returns validation errors from the domain Job if data is invalid.
	Create(ctx context.Context, job *domain.Job) error

	// Get retrieves a job by its unique ID.
	// Returns ErrJobNotFound if the job does not exist.
	Get(ctx context.Context, id uuid.UUID) (*domain.Job, error)

	// Transition atomically applies update to the job if its current status
	// is one of expectedFrom (any status when expectedFrom is empty) and the
	// change is legal for the job's lifecycle. The committed job is returned.
	// Returns ErrJobNotFound if the job does not exist and
	// domain.ErrInvalidTransition if the compare-and-set does not hold.
	Transition(
		ctx context.Context,
		id uuid.UUID,
		expectedFrom []domain.JobStatus,
		update domain.JobUpdate,
	) (*domain.Job, error)

	// List returns the jobs matching filter, newest first.
	List(ctx context.Context, filter JobFilter) ([]*domain.Job, error)

	// ListByStatus returns jobs in the given status whose last update is
	// older than olderThan. A zero duration returns every job in that status.
	// Results are ordered oldest first.
	ListByStatus(ctx context.Context, status domain.JobStatus, olderThan time.Duration) ([]*domain.Job, error)
}

// StatusIn reports whether status is one of expected. An empty set matches
// every status.
func StatusIn(status domain.JobStatus, expected []domain.JobStatus) bool {
	if len(expected) == 0 {
		return true
	}
	for _, s := range expected {
		if s == status {
			return true
		}
	}
	return false
}
