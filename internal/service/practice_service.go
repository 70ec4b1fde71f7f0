package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-practice/internal/domain"
	"github.com/phrazzld/scry-practice/internal/platform/logger"
	"github.com/phrazzld/scry-practice/internal/platform/metrics"
	"github.com/phrazzld/scry-practice/internal/selector"
)

// DefaultSyncTimeout bounds a synchronous assignment when none is configured.
const DefaultSyncTimeout = 30 * time.Second

// JobSubmitter queues jobs for background processing. It is implemented by
// task.Dispatcher.
type JobSubmitter interface {
	// Submit reserves capacity, creates the job with create and queues it
	Submit(ctx context.Context, create func(ctx context.Context) (*domain.Job, error)) (*domain.Job, error)

	// Cancel requests cancellation of a pending or processing job
	Cancel(ctx context.Context, id uuid.UUID) (*domain.Job, error)
}

// JobRepository persists and reads jobs. It is implemented by JobService.
type JobRepository interface {
	Create(ctx context.Context, job *domain.Job) error
	GetForOwner(ctx context.Context, id, ownerID uuid.UUID) (*domain.Job, error)
}

// Selector chooses practice items for a learner.
type Selector interface {
	Select(ctx context.Context, req selector.Request, hooks selector.Hooks) (*selector.Selection, error)
}

// PracticeService assigns practice either through a background job or
// synchronously within the request.
type PracticeService struct {
	jobs        JobRepository
	submitter   JobSubmitter
	selector    Selector
	syncTimeout time.Duration
	logger      *slog.Logger
}

// NewPracticeService creates a PracticeService. A zero syncTimeout uses
// DefaultSyncTimeout.
func NewPracticeService(
	jobs JobRepository,
	submitter JobSubmitter,
	sel Selector,
	syncTimeout time.Duration,
	logger *slog.Logger,
) *PracticeService {
	if jobs == nil {
		panic("jobs cannot be nil")
	}
	if submitter == nil {
		panic("submitter cannot be nil")
	}
	if sel == nil {
		panic("selector cannot be nil")
	}
	if syncTimeout <= 0 {
		syncTimeout = DefaultSyncTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PracticeService{
		jobs:        jobs,
		submitter:   submitter,
		selector:    sel,
		syncTimeout: syncTimeout,
		logger:      logger.With(slog.String("component", "practice_service")),
	}
}

// AssignAsync validates params and queues a practice_generation job owned
// by ownerID. It returns the pending job, or task.ErrQueueFull without
// creating anything when the dispatcher has no capacity.
func (s *PracticeService) AssignAsync(
	ctx context.Context,
	ownerID uuid.UUID,
	params *domain.PracticeGenerationParams,
	webhookURL string,
) (*domain.Job, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if params == nil {
		return nil, fmt.Errorf("%w: params are required", domain.ErrValidation)
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	job, err := s.submitter.Submit(ctx, func(ctx context.Context) (*domain.Job, error) {
		job, err := domain.NewJob(ownerID, params, webhookURL)
		if err != nil {
			return nil, err
		}
		if err := s.jobs.Create(ctx, job); err != nil {
			return nil, NewServiceError("assign_async", "failed to save job", err)
		}
		return job, nil
	})
	if err != nil {
		log.WarnContext(ctx, "practice job not accepted",
			slog.String("learner_id", params.LearnerID.String()),
			slog.Any("error", err))
		return nil, err
	}

	log.InfoContext(ctx, "practice job queued",
		slog.String("job_id", job.ID.String()),
		slog.String("learner_id", params.LearnerID.String()),
		slog.String("subject", params.Subject),
		slog.Int("num_items", params.NumItems))
	return job, nil
}

// AssignSync runs the selector within the request under the sync timeout.
func (s *PracticeService) AssignSync(
	ctx context.Context,
	params *domain.PracticeGenerationParams,
) (*domain.PracticeGenerationResult, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if params == nil {
		return nil, fmt.Errorf("%w: params are required", domain.ErrValidation)
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.syncTimeout)
	defer cancel()

	sel, err := s.selector.Select(ctx, selector.RequestFromParams(nil, params), selector.Hooks{})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			log.WarnContext(ctx, "synchronous practice assignment timed out",
				slog.String("learner_id", params.LearnerID.String()),
				slog.Duration("timeout", s.syncTimeout))
		}
		return nil, err
	}

	if sel.GenerationErr != nil {
		log.WarnContext(ctx, "generation ended early, returning partial selection",
			slog.Int("selected", len(sel.Items)),
			slog.Int("requested", sel.Requested),
			slog.Any("error", sel.GenerationErr))
	}

	result := sel.Result()
	metrics.ObservePracticeResult(string(result.Composition), result.Shortfall)
	return result, nil
}

// Cancel requests cancellation of a job owned by ownerID.
func (s *PracticeService) Cancel(ctx context.Context, id, ownerID uuid.UUID) (*domain.Job, error) {
	if _, err := s.jobs.GetForOwner(ctx, id, ownerID); err != nil {
		return nil, err
	}
	return s.submitter.Cancel(ctx, id)
}
