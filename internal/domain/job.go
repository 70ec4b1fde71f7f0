package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the lifecycle state of a job
type JobStatus string

// Possible job status values
const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// JobType discriminates the params and result payloads of a job
type JobType string

// Job type constants
const (
	// JobTypePracticeGeneration selects or synthesizes practice items for a learner
	JobTypePracticeGeneration JobType = "practice_generation"
)

// Common validation errors for Job
var (
	ErrEmptyJobID         = errors.New("job ID cannot be empty")
	ErrEmptyJobOwnerID    = errors.New("job owner ID cannot be empty")
	ErrInvalidJobType     = errors.New("invalid job type")
	ErrInvalidJobStatus   = errors.New("invalid job status")
	ErrInvalidProgress    = errors.New("progress must be between 0 and 100")
	ErrMissingJobResult   = errors.New("completed job must carry a result")
	ErrUnexpectedResult   = errors.New("result is only allowed on completed jobs")
	ErrMissingJobError    = errors.New("failed job must carry an error message")
	ErrUnexpectedJobError = errors.New("error message is only allowed on failed jobs")
)

// rank orders statuses along pending < processing < terminal.
func (s JobStatus) rank() int {
	switch s {
	case JobStatusPending:
		return 0
	case JobStatusProcessing:
		return 1
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return 2
	default:
		return -1
	}
}

// Rank exposes the ordering used by observers to reject regressions.
func (s JobStatus) Rank() int {
	return s.rank()
}

// IsTerminal returns true if no further transitions are possible.
func (s JobStatus) IsTerminal() bool {
	return s.rank() == 2
}

// IsValid reports whether s is a known status.
func (s JobStatus) IsValid() bool {
	return s.rank() >= 0
}

// CanTransitionTo reports whether moving from s to next is legal.
// Self-transitions are allowed only while processing, to report progress.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	switch s {
	case JobStatusPending:
		return next == JobStatusProcessing ||
			next == JobStatusCancelled ||
			next == JobStatusFailed
	case JobStatusProcessing:
		return next == JobStatusProcessing || next.IsTerminal()
	default:
		return false
	}
}

// Job is a unit of asynchronous work with a persisted, forward-only lifecycle.
type Job struct {
	ID              uuid.UUID `json:"id"`
	Type            JobType   `json:"job_type"`
	Status          JobStatus `json:"status"`
	OwnerID         uuid.UUID `json:"owner_id"`
	LearnerID       uuid.UUID `json:"learner_id"`
	Params          JobParams `json:"params"`
	Result          JobResult `json:"result,omitempty"`
	ErrorMessage    string    `json:"error,omitempty"`
	ProgressPercent int       `json:"progress_percent"`
	ProgressMessage string    `json:"progress_message"`
	WebhookURL      string    `json:"webhook_url,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// NewJob creates a pending job for the given params.
// The job type is taken from the params variant.
func NewJob(ownerID uuid.UUID, params JobParams, webhookURL string) (*Job, error) {
	if params == nil {
		return nil, ErrInvalidJobType
	}

	now := time.Now().UTC()
	job := &Job{
		ID:              uuid.New(),
		Type:            params.Type(),
		Status:          JobStatusPending,
		OwnerID:         ownerID,
		LearnerID:       params.Learner(),
		Params:          params,
		ProgressMessage: "Queued",
		WebhookURL:      webhookURL,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := job.Validate(); err != nil {
		return nil, err
	}

	return job, nil
}

// Validate checks the job's field-level invariants.
func (j *Job) Validate() error {
	if j.ID == uuid.Nil {
		return ErrEmptyJobID
	}

	if j.OwnerID == uuid.Nil {
		return ErrEmptyJobOwnerID
	}

	if !j.Status.IsValid() {
		return ErrInvalidJobStatus
	}

	if j.Params == nil || j.Params.Type() != j.Type {
		return ErrInvalidJobType
	}

	if err := j.Params.Validate(); err != nil {
		return err
	}

	if j.ProgressPercent < 0 || j.ProgressPercent > 100 {
		return ErrInvalidProgress
	}

	if j.Status == JobStatusCompleted && j.Result == nil {
		return ErrMissingJobResult
	}
	if j.Status != JobStatusCompleted && j.Result != nil {
		return ErrUnexpectedResult
	}

	if j.Status == JobStatusFailed && j.ErrorMessage == "" {
		return ErrMissingJobError
	}
	if j.Status != JobStatusFailed && j.ErrorMessage != "" {
		return ErrUnexpectedJobError
	}

	return nil
}

// JobUpdate describes a single transition request.
// Progress fields are optional; Result must accompany completed and
// ErrorMessage must accompany failed.
type JobUpdate struct {
	To              JobStatus
	ProgressPercent *int
	ProgressMessage *string
	Result          JobResult
	ErrorMessage    string
}

// Validate checks the update in isolation: payload presence must match the
// target status and progress must be in range.
func (u JobUpdate) Validate() error {
	if !u.To.IsValid() {
		return ErrInvalidJobStatus
	}
	if u.ProgressPercent != nil && (*u.ProgressPercent < 0 || *u.ProgressPercent > 100) {
		return ErrInvalidProgress
	}

	switch u.To {
	case JobStatusCompleted:
		if u.Result == nil {
			return ErrMissingJobResult
		}
		if u.ErrorMessage != "" {
			return ErrUnexpectedJobError
		}
	case JobStatusFailed:
		if u.ErrorMessage == "" {
			return ErrMissingJobError
		}
		if u.Result != nil {
			return ErrUnexpectedResult
		}
	default:
		if u.Result != nil {
			return ErrUnexpectedResult
		}
		if u.ErrorMessage != "" {
			return ErrUnexpectedJobError
		}
	}
	return nil
}

// Apply checks the update against the job's current state and, if legal,
// returns the updated copy. The receiver is left untouched.
func (j *Job) Apply(update JobUpdate, now time.Time) (*Job, error) {
	if err := update.Validate(); err != nil {
		return nil, err
	}
	if !j.Status.CanTransitionTo(update.To) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, update.To)
	}

	next := *j
	next.Status = update.To
	next.UpdatedAt = now

	if update.ProgressPercent != nil {
		p := *update.ProgressPercent
		if j.Status == JobStatusProcessing && p < j.ProgressPercent {
			return nil, fmt.Errorf("%w: progress %d -> %d", ErrInvalidTransition, j.ProgressPercent, p)
		}
		next.ProgressPercent = p
	}
	if update.ProgressMessage != nil {
		next.ProgressMessage = *update.ProgressMessage
	}

	switch update.To {
	case JobStatusCompleted:
		next.Result = update.Result
		next.ProgressPercent = 100
	case JobStatusFailed:
		next.ErrorMessage = update.ErrorMessage
	}

	return &next, nil
}

// SourcesFor returns the statuses from which a job may move to target.
func SourcesFor(target JobStatus) []JobStatus {
	var sources []JobStatus
	for _, s := range []JobStatus{JobStatusPending, JobStatusProcessing} {
		if s.CanTransitionTo(target) {
			sources = append(sources, s)
		}
	}
	return sources
}

// Progress builds a processing self-transition carrying progress.
func Progress(percent int, message string) JobUpdate {
	return JobUpdate{
		To:              JobStatusProcessing,
		ProgressPercent: &percent,
		ProgressMessage: &message,
	}
}
