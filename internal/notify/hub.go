package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-practice/internal/domain"
	"github.com/phrazzld/scry-practice/internal/events"
)

// JobReader reads the committed snapshot of a job.
type JobReader interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Job, error)
}

// WebhookSender accepts terminal snapshots for webhook delivery.
type WebhookSender interface {
	Enqueue(job *domain.Job) error
}

// Hub routes committed transitions to push subscribers and webhooks.
type Hub struct {
	jobs     JobReader
	registry *Registry
	webhooks WebhookSender
	logger   *slog.Logger
}

var _ events.EventHandler = (*Hub)(nil)

// NewHub creates a Hub. webhooks may be nil to disable webhook delivery.
func NewHub(jobs JobReader, registry *Registry, webhooks WebhookSender, logger *slog.Logger) *Hub {
	if jobs == nil {
		panic("job reader cannot be nil")
	}
	if registry == nil {
		panic("registry cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		jobs:     jobs,
		registry: registry,
		webhooks: webhooks,
		logger:   logger.With(slog.String("component", "notify_hub")),
	}
}

// HandleEvent implements events.EventHandler. Webhook enqueue failures are
// logged and never returned: delivery problems must not affect the job.
func (h *Hub) HandleEvent(ctx context.Context, event *events.JobTransitionEvent) error {
	job := event.Job
	h.registry.Broadcast(MessageFromJob(job))

	if job.Status.IsTerminal() && job.WebhookURL != "" && h.webhooks != nil {
		if err := h.webhooks.Enqueue(job); err != nil {
			h.logger.WarnContext(ctx, "webhook not queued",
				"job_id", job.ID,
				"status", job.Status,
				"error", err)
		}
	}
	return nil
}

// Subscribe attaches to the job's broadcast group and then primes the
// subscription with the current snapshot, so no transition committed after
// the call is missed. For a job already in a terminal state the
// subscription yields that terminal message once and closes.
func (h *Hub) Subscribe(ctx context.Context, jobID uuid.UUID) (*Subscription, error) {
	sub := h.registry.Attach(jobID)

	job, err := h.jobs.Get(ctx, jobID)
	if err != nil {
		sub.Close()
		return nil, fmt.Errorf("failed to load job for subscription: %w", err)
	}

	h.registry.Prime(sub, MessageFromJob(job))
	return sub, nil
}
