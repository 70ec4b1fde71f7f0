package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-practice/internal/domain"
	"github.com/sethvargo/go-retry"
)

// Messages stored on jobs finalized by the dispatcher itself
const (
	msgInterrupted = "interrupted by restart"
	msgStuck       = "job exceeded maximum processing time"
	msgNotQueued   = "job could not be queued"
	msgCancelled   = "Cancelled"
)

// requeueInterval is how often recovery retries pending jobs that did not
// fit in the queue.
const requeueInterval = 100 * time.Millisecond

// DispatcherConfig holds configuration for the dispatcher
type DispatcherConfig struct {
	// WorkerCount determines how many concurrent workers process jobs
	WorkerCount int

	// QueueSize determines the capacity of the in-memory job queue
	QueueSize int

	// StuckJobAge defines how long a job can stay in processing without a
	// progress update before it is failed. Zero disables the monitor.
	StuckJobAge time.Duration

	// StuckJobCheckInterval defines how often to check for stuck jobs
	// If zero, defaults to 5 minutes
	StuckJobCheckInterval time.Duration
}

// DefaultDispatcherConfig returns a DispatcherConfig with reasonable defaults
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		WorkerCount:           4,
		QueueSize:             100,
		StuckJobAge:           30 * time.Minute,
		StuckJobCheckInterval: 5 * time.Minute,
	}
}

// Dispatcher owns the worker pool and the queue feeding it.
type Dispatcher struct {
	jobs     JobService
	queue    *JobQueue
	handlers map[domain.JobType]Handler
	config   DispatcherConfig
	logger   *slog.Logger

	mu      sync.Mutex
	running map[uuid.UUID]*runState

	// quit is closed when Stop begins; ctx is cancelled once running jobs
	// must be interrupted.
	quit     chan struct{}
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	started  bool
	stopOnce sync.Once
}

// NewDispatcher creates a Dispatcher. Handlers must be registered before Start.
func NewDispatcher(jobs JobService, config DispatcherConfig, logger *slog.Logger) *Dispatcher {
	if jobs == nil {
		panic("job service cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "dispatcher"))

	if config.WorkerCount <= 0 {
		logger.Warn("invalid worker count specified, using default",
			"specified_count", config.WorkerCount,
			"default_count", 1)
		config.WorkerCount = 1
	}
	if config.StuckJobCheckInterval <= 0 {
		config.StuckJobCheckInterval = 5 * time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		jobs:     jobs,
		queue:    NewJobQueue(config.QueueSize, logger),
		handlers: make(map[domain.JobType]Handler),
		config:   config,
		logger:   logger,
		running:  make(map[uuid.UUID]*runState),
		quit:     make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// RegisterHandler sets the handler for a job type.
func (d *Dispatcher) RegisterHandler(jobType domain.JobType, handler Handler) {
	d.handlers[jobType] = handler
}

// Queue exposes the queue for depth reporting.
func (d *Dispatcher) Queue() *JobQueue {
	return d.queue
}

// Submit reserves a queue slot, creates the job with create and enqueues
// it. It never blocks on a full queue: ErrQueueFull is returned before the
// job is created.
func (d *Dispatcher) Submit(ctx context.Context, create func(ctx context.Context) (*domain.Job, error)) (*domain.Job, error) {
	if err := d.queue.Reserve(); err != nil {
		return nil, err
	}

	job, err := create(ctx)
	if err != nil {
		d.queue.Release()
		return nil, err
	}

	if err := d.queue.Commit(job.ID); err != nil {
		d.logger.ErrorContext(ctx, "failed to enqueue created job",
			"job_id", job.ID,
			"error", err)
		if _, failErr := d.jobs.Transition(context.WithoutCancel(ctx), job.ID,
			[]domain.JobStatus{domain.JobStatusPending},
			domain.JobUpdate{To: domain.JobStatusFailed, ErrorMessage: msgNotQueued}); failErr != nil {
			d.logger.ErrorContext(ctx, "failed to fail unqueued job", "job_id", job.ID, "error", failErr)
		}
		return nil, err
	}

	return job, nil
}

// Cancel requests cancellation of a job. A pending job is cancelled
// immediately. A processing job owned by a local worker is flagged and the
// worker finalizes it at its next checkpoint; the returned snapshot is then
// still processing. A processing job with no local owner is cancelled
// directly. Terminal jobs return domain.ErrInvalidTransition.
func (d *Dispatcher) Cancel(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	job, err := d.jobs.Transition(ctx, id,
		[]domain.JobStatus{domain.JobStatusPending},
		cancelUpdate())
	if err == nil {
		d.logger.InfoContext(ctx, "cancelled pending job", "job_id", id)
		return job, nil
	}
	if !errors.Is(err, domain.ErrInvalidTransition) {
		return nil, err
	}

	current, err := d.jobs.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status != domain.JobStatusProcessing {
		return current, fmt.Errorf("%w: job is %s", domain.ErrInvalidTransition, current.Status)
	}

	d.mu.Lock()
	state, owned := d.running[id]
	d.mu.Unlock()

	if owned {
		if !state.requestCancel() {
			return nil, fmt.Errorf("%w: job is finishing", domain.ErrInvalidTransition)
		}
		d.logger.InfoContext(ctx, "cancellation requested for running job", "job_id", id)
		return current, nil
	}

	job, err = d.jobs.Transition(ctx, id,
		[]domain.JobStatus{domain.JobStatusProcessing},
		cancelUpdate())
	if err != nil {
		return nil, err
	}
	d.logger.InfoContext(ctx, "cancelled orphaned processing job", "job_id", id)
	return job, nil
}

// Start recovers unfinished jobs and starts the workers and the stuck job
// monitor.
func (d *Dispatcher) Start() error {
	if d.started {
		return errors.New("dispatcher already started")
	}
	d.started = true

	if err := d.Recover(d.ctx); err != nil {
		return fmt.Errorf("failed to recover jobs: %w", err)
	}

	for i := 0; i < d.config.WorkerCount; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}

	if d.config.StuckJobAge > 0 {
		d.wg.Add(1)
		go d.stuckJobMonitor()
	}

	d.logger.Info("dispatcher started",
		"worker_count", d.config.WorkerCount,
		"queue_size", d.queue.Cap())
	return nil
}

// Stop closes the queue and waits for workers to finish their current job.
// Workers take no new job once Stop begins: ids still queued stay pending
// and are requeued by recovery on the next start. If ctx expires first,
// running jobs are interrupted; they stay in processing and are failed by
// recovery on the next start.
func (d *Dispatcher) Stop(ctx context.Context) error {
	var err error
	d.stopOnce.Do(func() {
		close(d.quit)
		d.queue.Close()

		done := make(chan struct{})
		go func() {
			d.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-ctx.Done():
			d.logger.Warn("dispatcher drain timed out, interrupting running jobs")
			err = ctx.Err()
		}
		d.cancel()
		<-done
		d.logger.Info("dispatcher stopped")
	})
	return err
}

// stopping reports whether Stop has begun.
func (d *Dispatcher) stopping() bool {
	select {
	case <-d.quit:
		return true
	default:
		return false
	}
}

// Recover requeues pending jobs and fails processing jobs left behind by a
// previous process. Processing jobs cannot be moved back to pending.
func (d *Dispatcher) Recover(ctx context.Context) error {
	pending, err := d.jobs.ListByStatus(ctx, domain.JobStatusPending, 0)
	if err != nil {
		return fmt.Errorf("failed to get pending jobs: %w", err)
	}

	processing, err := d.jobs.ListByStatus(ctx, domain.JobStatusProcessing, 0)
	if err != nil {
		return fmt.Errorf("failed to get processing jobs: %w", err)
	}

	d.logger.Info("recovering unfinished jobs",
		"pending_count", len(pending),
		"processing_count", len(processing))

	var overflow []uuid.UUID
	for _, job := range pending {
		err := d.queue.Enqueue(job.ID)
		switch {
		case err == nil:
		case errors.Is(err, ErrQueueFull):
			overflow = append(overflow, job.ID)
		default:
			d.logger.Error("failed to requeue pending job",
				"job_id", job.ID,
				"error", err)
		}
	}

	if len(overflow) > 0 {
		d.logger.Info("queue full during recovery, requeueing the rest as slots free up",
			"overflow_count", len(overflow))
		d.wg.Add(1)
		go d.requeue(overflow)
	}

	for _, job := range processing {
		d.failJob(ctx, job.ID, msgInterrupted)
	}

	return nil
}

// requeue feeds ids into the queue as capacity frees up. Ids still waiting
// when the dispatcher stops stay pending for the next recovery.
func (d *Dispatcher) requeue(ids []uuid.UUID) {
	defer d.wg.Done()

	ctx, cancel := context.WithCancel(d.ctx)
	defer cancel()
	go func() {
		select {
		case <-d.quit:
			cancel()
		case <-ctx.Done():
		}
	}()

	for i, id := range ids {
		err := retry.Do(ctx, retry.NewConstant(requeueInterval), func(ctx context.Context) error {
			err := d.queue.Enqueue(id)
			if errors.Is(err, ErrQueueFull) {
				return retry.RetryableError(err)
			}
			return err
		})
		if err != nil {
			d.logger.Warn("stopped requeueing recovered jobs",
				"remaining", len(ids)-i,
				"error", err)
			return
		}
	}
	d.logger.Info("recovered jobs requeued", "count", len(ids))
}

// stuckJobMonitor periodically fails jobs that have been processing
// without progress for longer than StuckJobAge.
func (d *Dispatcher) stuckJobMonitor() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.StuckJobCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.quit:
			return
		case <-d.ctx.Done():
			return
		case <-ticker.C:
			d.failStuckJobs(d.ctx)
		}
	}
}

func (d *Dispatcher) failStuckJobs(ctx context.Context) {
	stuck, err := d.jobs.ListByStatus(ctx, domain.JobStatusProcessing, d.config.StuckJobAge)
	if err != nil {
		d.logger.Error("failed to check for stuck jobs", "error", err)
		return
	}
	if len(stuck) == 0 {
		return
	}

	d.logger.Info("found stuck jobs", "count", len(stuck))
	for _, job := range stuck {
		d.failJob(ctx, job.ID, msgStuck)

		d.mu.Lock()
		state, owned := d.running[job.ID]
		d.mu.Unlock()
		if owned {
			state.requestCancel()
		}
	}
}

func (d *Dispatcher) failJob(ctx context.Context, id uuid.UUID, message string) {
	_, err := d.jobs.Transition(ctx, id,
		[]domain.JobStatus{domain.JobStatusProcessing},
		domain.JobUpdate{To: domain.JobStatusFailed, ErrorMessage: message})
	if err != nil {
		d.logger.Error("failed to fail job",
			"job_id", id,
			"reason", message,
			"error", err)
		return
	}
	d.logger.Warn("job failed by dispatcher", "job_id", id, "reason", message)
}

func cancelUpdate() domain.JobUpdate {
	msg := msgCancelled
	return domain.JobUpdate{To: domain.JobStatusCancelled, ProgressMessage: &msg}
}
