package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-practice/internal/domain"
	"github.com/phrazzld/scry-practice/internal/events"
	"github.com/phrazzld/scry-practice/internal/platform/logger"
	"github.com/phrazzld/scry-practice/internal/store"
)

// DefaultStoreTimeout bounds every job store call when none is configured.
const DefaultStoreTimeout = 5 * time.Second

// JobService persists jobs and publishes every committed transition.
// It satisfies task.JobService and notify.JobReader.
type JobService struct {
	store        store.JobStore
	emitter      events.EventEmitter
	storeTimeout time.Duration
	logger       *slog.Logger
}

// NewJobService creates a JobService. A zero storeTimeout uses
// DefaultStoreTimeout.
func NewJobService(
	jobStore store.JobStore,
	emitter events.EventEmitter,
	storeTimeout time.Duration,
	logger *slog.Logger,
) *JobService {
	if jobStore == nil {
		panic("jobStore cannot be nil")
	}
	if emitter == nil {
		panic("emitter cannot be nil")
	}
	if storeTimeout <= 0 {
		storeTimeout = DefaultStoreTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &JobService{
		store:        jobStore,
		emitter:      emitter,
		storeTimeout: storeTimeout,
		logger:       logger.With(slog.String("component", "job_service")),
	}
}

// Create persists a new pending job and publishes it.
func (s *JobService) Create(ctx context.Context, job *domain.Job) error {
	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	if err := s.store.Create(storeCtx, job); err != nil {
		return err
	}

	s.publish(ctx, "", job)
	return nil
}

// Transition applies update through the store's compare-and-set and
// publishes the committed snapshot.
func (s *JobService) Transition(
	ctx context.Context,
	id uuid.UUID,
	expectedFrom []domain.JobStatus,
	update domain.JobUpdate,
) (*domain.Job, error) {
	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	job, err := s.store.Transition(storeCtx, id, expectedFrom, update)
	if err != nil {
		return nil, err
	}

	var from domain.JobStatus
	if len(expectedFrom) == 1 {
		from = expectedFrom[0]
	}
	s.publish(ctx, from, job)
	return job, nil
}

// Get returns the current snapshot of a job.
func (s *JobService) Get(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	return s.store.Get(storeCtx, id)
}

// GetForOwner returns the job only if ownerID owns it. Jobs owned by
// someone else are reported as store.ErrJobNotFound.
func (s *JobService) GetForOwner(ctx context.Context, id, ownerID uuid.UUID) (*domain.Job, error) {
	job, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.OwnerID != ownerID {
		logger.FromContextOrDefault(ctx, s.logger).DebugContext(ctx, "job read by non-owner",
			slog.String("job_id", id.String()),
			slog.String("owner_id", ownerID.String()))
		return nil, store.ErrJobNotFound
	}
	return job, nil
}

// List returns jobs matching filter, newest first.
func (s *JobService) List(ctx context.Context, filter store.JobFilter) ([]*domain.Job, error) {
	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	return s.store.List(storeCtx, filter)
}

// ListByStatus returns jobs in status not updated for olderThan.
func (s *JobService) ListByStatus(
	ctx context.Context,
	status domain.JobStatus,
	olderThan time.Duration,
) ([]*domain.Job, error) {
	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	return s.store.ListByStatus(storeCtx, status, olderThan)
}

// publish emits the transition. Handler failures never undo a committed
// transition; they are only logged.
func (s *JobService) publish(ctx context.Context, from domain.JobStatus, job *domain.Job) {
	if err := s.emitter.EmitEvent(ctx, events.NewJobTransitionEvent(from, job)); err != nil {
		logger.FromContextOrDefault(ctx, s.logger).WarnContext(ctx, "transition handler failed",
			slog.String("job_id", job.ID.String()),
			slog.String("status", string(job.Status)),
			slog.Any("error", err))
	}
}
