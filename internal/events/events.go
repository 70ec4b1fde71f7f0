package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-practice/internal/domain"
)

// JobTransitionEvent describes a committed job transition.
type JobTransitionEvent struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// From is the status the job left. Equal to Job.Status for progress
	// updates and empty for job creation.
	From domain.JobStatus `json:"from,omitempty"`

	// Job is the committed snapshot after the transition
	Job *domain.Job `json:"job"`

	// OccurredAt is the timestamp when the event was created
	OccurredAt time.Time `json:"occurred_at"`
}

// NewJobTransitionEvent creates an event for a committed snapshot.
// The snapshot is copied so later mutation by the caller cannot leak into
// handlers.
func NewJobTransitionEvent(from domain.JobStatus, job *domain.Job) *JobTransitionEvent {
	snapshot := *job
	return &JobTransitionEvent{
		ID:         uuid.New(),
		From:       from,
		Job:        &snapshot,
		OccurredAt: time.Now().UTC(),
	}
}

// IsTerminal reports whether the event moved the job into a terminal state.
func (e *JobTransitionEvent) IsTerminal() bool {
	return e.Job != nil && e.Job.Status.IsTerminal()
}

// EventHandler defines an interface for components that can handle events.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	// Returns an error if the event cannot be handled successfully.
	HandleEvent(ctx context.Context, event *JobTransitionEvent) error
}

// EventHandlerFunc adapts a function to EventHandler.
type EventHandlerFunc func(ctx context.Context, event *JobTransitionEvent) error

// HandleEvent implements EventHandler.
func (f EventHandlerFunc) HandleEvent(ctx context.Context, event *JobTransitionEvent) error {
	return f(ctx, event)
}

// EventEmitter defines an interface for components that can emit events.
// This allows services to publish events without direct knowledge of handlers.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	// Returns an error if the event cannot be emitted.
	EmitEvent(ctx context.Context, event *JobTransitionEvent) error
}
