package task

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Common errors returned by the JobQueue
var (
	ErrQueueClosed = errors.New("job queue is closed")
	ErrQueueFull   = errors.New("job queue is full")
)

// JobQueue is a bounded FIFO of job ids. Capacity covers both queued ids
// and outstanding reservations, so a successful Reserve guarantees the
// following Commit cannot overflow.
type JobQueue struct {
	mu       sync.Mutex
	ids      chan uuid.UUID
	reserved int
	closed   bool
	logger   *slog.Logger
}

// NewJobQueue creates a new job queue with the specified capacity
func NewJobQueue(size int, logger *slog.Logger) *JobQueue {
	if size <= 0 {
		size = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &JobQueue{
		ids:    make(chan uuid.UUID, size),
		logger: logger,
	}
}

// Reserve claims a slot without blocking. Every successful Reserve must be
// followed by exactly one Commit or Release.
func (q *JobQueue) Reserve() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}
	if q.reserved+len(q.ids) >= cap(q.ids) {
		return fmt.Errorf("%w: queue capacity %d reached", ErrQueueFull, cap(q.ids))
	}
	q.reserved++
	return nil
}

// Commit enqueues id into a previously reserved slot.
func (q *JobQueue) Commit(id uuid.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.reserved--
	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.ids <- id:
		q.logger.Debug("job enqueued",
			"job_id", id,
			"queue_len", len(q.ids),
			"queue_cap", cap(q.ids))
		return nil
	default:
		return fmt.Errorf("%w: queue capacity %d reached", ErrQueueFull, cap(q.ids))
	}
}

// Release returns a reserved slot that will not be committed.
func (q *JobQueue) Release() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.reserved--
}

// Enqueue adds id to the queue for processing.
// Returns an error if the queue is full or closed.
func (q *JobQueue) Enqueue(id uuid.UUID) error {
	if err := q.Reserve(); err != nil {
		return err
	}
	return q.Commit(id)
}

// Len returns the number of queued ids.
func (q *JobQueue) Len() int {
	return len(q.ids)
}

// Cap returns the queue capacity.
func (q *JobQueue) Cap() int {
	return cap(q.ids)
}

// Close closes the job queue, preventing further submission. Ids already
// queued can still be drained from GetChannel.
func (q *JobQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.closed = true
		close(q.ids)
		q.logger.Info("job queue closed")
	}
}

// GetChannel returns a read-only channel for consuming job ids
func (q *JobQueue) GetChannel() <-chan uuid.UUID {
	return q.ids
}
