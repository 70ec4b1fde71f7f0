package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-practice/internal/domain"
	"github.com/phrazzld/scry-practice/internal/platform/logger"
	"github.com/phrazzld/scry-practice/internal/redact"
)

// Run is the view of a running job given to its Handler.
type Run struct {
	// Job is the snapshot taken when the job entered processing
	Job *domain.Job

	state *runState
	d     *Dispatcher
	log   *slog.Logger

	mu          sync.Mutex
	lastPercent int
}

// Checkpoint returns ErrJobCancelled once cancellation has been requested,
// or the context error if ctx is done.
func (r *Run) Checkpoint(ctx context.Context) error {
	if r.state.cancelled.Load() {
		return ErrJobCancelled
	}
	return ctx.Err()
}

// Progress records progress on the job. Percentages lower than one already
// reported are raised to it. If the job has left processing behind the
// worker's back, cancellation is requested so the next checkpoint stops.
func (r *Run) Progress(ctx context.Context, percent int, message string) {
	r.mu.Lock()
	if percent < r.lastPercent {
		percent = r.lastPercent
	}
	if percent > 99 {
		percent = 99
	}
	r.lastPercent = percent
	r.mu.Unlock()

	_, err := r.d.jobs.Transition(ctx, r.Job.ID,
		[]domain.JobStatus{domain.JobStatusProcessing},
		domain.Progress(percent, message))
	if err == nil {
		return
	}
	if errors.Is(err, domain.ErrInvalidTransition) {
		r.log.WarnContext(ctx, "job left processing while running, stopping", "error", err)
		r.state.requestCancel()
		return
	}
	r.log.WarnContext(ctx, "failed to record progress", "percent", percent, "error", err)
}

// runState tracks cancellation of one running job. Once the worker has
// settled on an outcome, further cancel requests are refused.
type runState struct {
	mu        sync.Mutex
	settled   bool
	cancelled atomic.Bool
	cancelCtx context.CancelFunc
}

// requestCancel flags the run as cancelled. It reports false if the
// worker had already settled on an outcome.
func (s *runState) requestCancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.settled {
		return false
	}
	s.cancelled.Store(true)
	s.cancelCtx()
	return true
}

// settle fixes the outcome and reports whether cancellation was requested
// before it.
func (s *runState) settle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.settled = true
	return s.cancelled.Load()
}

// worker processes job ids from the queue until it is closed and drained,
// or until the dispatcher is stopped.
func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()

	d.logger.Debug("starting worker", "worker_id", id)

	for {
		select {
		case <-d.ctx.Done():
			d.logger.Debug("stopping worker", "worker_id", id)
			return

		case <-d.quit:
			d.logger.Debug("dispatcher stopping, stopping worker", "worker_id", id)
			return

		case jobID, ok := <-d.queue.GetChannel():
			if !ok {
				d.logger.Debug("job queue closed, stopping worker", "worker_id", id)
				return
			}
			if d.stopping() {
				d.logger.Debug("dispatcher stopping, leaving job pending",
					"worker_id", id,
					"job_id", jobID)
				return
			}
			d.process(jobID, id)
		}
	}
}

// process moves a single job from pending to a terminal state.
func (d *Dispatcher) process(jobID uuid.UUID, workerID int) {
	log := d.logger.With(
		"job_id", jobID,
		"worker_id", workerID,
	)

	runCtx, cancel := context.WithCancel(d.ctx)
	defer cancel()
	runCtx = logger.WithLogger(runCtx, log)

	// Registered before the job enters processing so Cancel always finds
	// the owner of a processing job.
	state := &runState{cancelCtx: cancel}
	d.mu.Lock()
	d.running[jobID] = state
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		delete(d.running, jobID)
		d.mu.Unlock()
	}()

	started := "Processing"
	startPercent := 5
	job, err := d.jobs.Transition(runCtx, jobID,
		[]domain.JobStatus{domain.JobStatusPending},
		domain.JobUpdate{
			To:              domain.JobStatusProcessing,
			ProgressPercent: &startPercent,
			ProgressMessage: &started,
		})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			log.Info("job no longer pending, skipping", "error", err)
			return
		}
		log.Error("failed to update job status to processing", "error", err)
		return
	}

	log = log.With("job_type", job.Type)
	log.Info("processing job")

	handler, ok := d.handlers[job.Type]
	if !ok {
		d.finalize(runCtx, log, jobID, state, nil, fmt.Errorf("no handler registered for job type %q", job.Type))
		return
	}

	run := &Run{Job: job, state: state, d: d, log: log, lastPercent: startPercent}
	result, err := d.execute(runCtx, handler, run)
	d.finalize(runCtx, log, jobID, state, result, err)
}

// execute runs the handler, converting a panic into an error.
func (d *Dispatcher) execute(ctx context.Context, handler Handler, run *Run) (result domain.JobResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			run.log.Error("job handler panicked",
				"panic", r,
				"stack", string(debug.Stack()))
			err = fmt.Errorf("job handler panicked: %v", r)
		}
	}()
	return handler.Handle(ctx, run)
}

// finalize writes the terminal transition. Writes use a context detached
// from the run so that cancelling the run does not prevent recording it.
func (d *Dispatcher) finalize(
	runCtx context.Context,
	log *slog.Logger,
	jobID uuid.UUID,
	state *runState,
	result domain.JobResult,
	runErr error,
) {
	cancelled := state.settle()
	if runErr != nil && d.ctx.Err() != nil && !cancelled {
		log.Warn("dispatcher stopped while job was running, leaving it for recovery")
		return
	}

	ctx := context.WithoutCancel(runCtx)
	processing := []domain.JobStatus{domain.JobStatusProcessing}

	var update domain.JobUpdate
	switch {
	case cancelled || errors.Is(runErr, ErrJobCancelled):
		update = cancelUpdate()
	case runErr != nil:
		update = domain.JobUpdate{To: domain.JobStatusFailed, ErrorMessage: redact.Error(runErr)}
	case result == nil:
		update = domain.JobUpdate{To: domain.JobStatusFailed, ErrorMessage: "job produced no result"}
	default:
		done := "Completed"
		update = domain.JobUpdate{To: domain.JobStatusCompleted, Result: result, ProgressMessage: &done}
	}

	if _, err := d.jobs.Transition(ctx, jobID, processing, update); err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			log.Info("job already finalized elsewhere", "attempted", update.To, "error", err)
			return
		}
		log.Error("failed to finalize job", "attempted", update.To, "error", err)
		return
	}

	switch update.To {
	case domain.JobStatusCompleted:
		log.Info("job completed successfully")
	case domain.JobStatusCancelled:
		log.Info("job cancelled")
	default:
		log.Error("job failed", "error", runErr)
	}
}
