package task

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-practice/internal/domain"
)

// ErrJobCancelled is returned by Run.Checkpoint once cancellation of the
// running job has been requested.
var ErrJobCancelled = errors.New("job cancelled")

// Handler executes one job type.
type Handler interface {
	// Handle runs the job and returns its result. It must call
	// run.Checkpoint before every expensive step and return promptly when
	// the checkpoint fails.
	Handle(ctx context.Context, run *Run) (domain.JobResult, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, run *Run) (domain.JobResult, error)

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, run *Run) (domain.JobResult, error) {
	return f(ctx, run)
}

// JobService is the job persistence the dispatcher needs. Every successful
// Transition is expected to be published to the notification channels.
type JobService interface {
	// Transition applies update if the job's status is one of expectedFrom
	Transition(
		ctx context.Context,
		id uuid.UUID,
		expectedFrom []domain.JobStatus,
		update domain.JobUpdate,
	) (*domain.Job, error)

	// Get returns the current snapshot of a job
	Get(ctx context.Context, id uuid.UUID) (*domain.Job, error)

	// ListByStatus returns jobs in status not updated for olderThan
	ListByStatus(ctx context.Context, status domain.JobStatus, olderThan time.Duration) ([]*domain.Job, error)
}
