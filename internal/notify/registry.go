package notify

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// DefaultSubscriberBuffer is the channel capacity of a subscription.
const DefaultSubscriberBuffer = 16

// Subscription receives the messages of one job. C is closed after the
// terminal message or when the subscription is closed.
type Subscription struct {
	C <-chan Message

	ch     chan Message
	jobID  uuid.UUID
	reg    *Registry
	last   Message
	seen   bool
	closed bool
}

// Close detaches the subscription. It is safe to call more than once.
func (s *Subscription) Close() {
	s.reg.mu.Lock()
	defer s.reg.mu.Unlock()
	s.reg.detachLocked(s)
}

// JobID returns the job this subscription follows.
func (s *Subscription) JobID() uuid.UUID {
	return s.jobID
}

// Registry maps job ids to broadcast groups. All state is guarded by one
// mutex; delivery never blocks while holding it.
type Registry struct {
	mu         sync.Mutex
	groups     map[uuid.UUID]map[*Subscription]struct{}
	bufferSize int
	logger     *slog.Logger
}

// NewRegistry creates an empty Registry. A bufferSize of zero or less
// uses DefaultSubscriberBuffer.
func NewRegistry(bufferSize int, logger *slog.Logger) *Registry {
	if bufferSize <= 0 {
		bufferSize = DefaultSubscriberBuffer
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		groups:     make(map[uuid.UUID]map[*Subscription]struct{}),
		bufferSize: bufferSize,
		logger:     logger.With(slog.String("component", "notify_registry")),
	}
}

// Attach adds a subscriber to the job's group.
func (r *Registry) Attach(jobID uuid.UUID) *Subscription {
	ch := make(chan Message, r.bufferSize)
	sub := &Subscription{C: ch, ch: ch, jobID: jobID, reg: r}

	r.mu.Lock()
	defer r.mu.Unlock()

	group, ok := r.groups[jobID]
	if !ok {
		group = make(map[*Subscription]struct{})
		r.groups[jobID] = group
	}
	group[sub] = struct{}{}
	return sub
}

// Prime delivers msg to a single subscriber, subject to its ordering
// filter. A terminal msg closes the subscription.
func (r *Registry) Prime(sub *Subscription, msg Message) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sub.closed {
		return
	}
	r.deliverLocked(sub, msg)
	if msg.IsTerminal() {
		r.detachLocked(sub)
	}
}

// Broadcast delivers msg to every subscriber of its job. A terminal msg
// closes every subscriber and discards the group.
func (r *Registry) Broadcast(msg Message) {
	r.mu.Lock()
	defer r.mu.Unlock()

	group := r.groups[msg.JobID]
	for sub := range group {
		r.deliverLocked(sub, msg)
	}

	if msg.IsTerminal() {
		for sub := range group {
			r.detachLocked(sub)
		}
		delete(r.groups, msg.JobID)
	}
}

// Subscribers returns the number of live subscribers of a job.
func (r *Registry) Subscribers(jobID uuid.UUID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.groups[jobID])
}

// deliverLocked sends msg if it supersedes what the subscriber has seen.
// A non-terminal message is dropped when the buffer is full; a terminal
// message evicts the oldest buffered message instead.
func (r *Registry) deliverLocked(sub *Subscription, msg Message) {
	if sub.closed {
		return
	}
	if sub.seen && !msg.supersedes(sub.last) {
		return
	}

	select {
	case sub.ch <- msg:
	default:
		if !msg.IsTerminal() {
			r.logger.Debug("subscriber buffer full, dropping status message",
				"job_id", msg.JobID,
				"progress", msg.ProgressPercent)
			return
		}
		select {
		case <-sub.ch:
		default:
		}
		sub.ch <- msg
	}
	sub.last = msg
	sub.seen = true
}

func (r *Registry) detachLocked(sub *Subscription) {
	if sub.closed {
		return
	}
	sub.closed = true
	close(sub.ch)

	group := r.groups[sub.jobID]
	delete(group, sub)
	if len(group) == 0 {
		delete(r.groups, sub.jobID)
	}
}
