package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/phrazzld/scry-practice/internal/domain"
	"golang.org/x/sync/semaphore"
)

// ErrDelivery is returned when a webhook cannot be queued or delivered.
var ErrDelivery = errors.New("webhook delivery failed")

// Webhook headers
const (
	HeaderEvent    = "X-Scry-Event"
	HeaderDelivery = "X-Scry-Delivery"
)

// Delivery outcomes reported to WebhookConfig.Observe
const (
	OutcomeDelivered = "delivered"
	OutcomeFailed    = "failed"
	OutcomeDropped   = "dropped"
)

// WebhookConfig configures a WebhookDispatcher.
type WebhookConfig struct {
	// Timeout bounds a single delivery
	Timeout time.Duration
	// Concurrency bounds in-flight deliveries
	Concurrency int64
	// QueueSize bounds deliveries waiting for a slot
	QueueSize int
	// Observe, when set, is called once per delivery attempt
	Observe func(event, outcome string)
}

// DefaultWebhookConfig returns a WebhookConfig with reasonable defaults
func DefaultWebhookConfig() WebhookConfig {
	return WebhookConfig{
		Timeout:     10 * time.Second,
		Concurrency: 8,
		QueueSize:   256,
	}
}

// WebhookPayload is the JSON body of a webhook request.
type WebhookPayload struct {
	Event     string      `json:"event"`
	Timestamp time.Time   `json:"timestamp"`
	Data      WebhookData `json:"data"`
}

// WebhookData describes the finished job.
type WebhookData struct {
	JobID     uuid.UUID        `json:"job_id"`
	LearnerID uuid.UUID        `json:"learner_id"`
	Status    domain.JobStatus `json:"status"`
	Result    domain.JobResult `json:"result,omitempty"`
	Error     string           `json:"error,omitempty"`
}

type delivery struct {
	id      string
	url     string
	payload WebhookPayload
}

// WebhookDispatcher posts terminal job snapshots to their webhook URL.
// Each delivery is attempted once; failures are logged and counted.
type WebhookDispatcher struct {
	client *http.Client
	queue  chan delivery
	sem    *semaphore.Weighted
	config WebhookConfig
	logger *slog.Logger

	mu      sync.RWMutex
	closed  bool
	ctx     context.Context
	cancel  context.CancelFunc
	loop    sync.WaitGroup
	flights sync.WaitGroup
}

// NewWebhookDispatcher creates a dispatcher. client may be nil.
func NewWebhookDispatcher(client *http.Client, config WebhookConfig, logger *slog.Logger) *WebhookDispatcher {
	defaults := DefaultWebhookConfig()
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.Concurrency <= 0 {
		config.Concurrency = defaults.Concurrency
	}
	if config.QueueSize <= 0 {
		config.QueueSize = defaults.QueueSize
	}
	if client == nil {
		client = &http.Client{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &WebhookDispatcher{
		client: client,
		queue:  make(chan delivery, config.QueueSize),
		sem:    semaphore.NewWeighted(config.Concurrency),
		config: config,
		logger: logger.With(slog.String("component", "webhook_dispatcher")),
		ctx:    ctx,
		cancel: cancel,
	}
}

// EventName returns the webhook event for a terminal job.
func EventName(job *domain.Job) string {
	prefix := "job"
	if job.Type == domain.JobTypePracticeGeneration {
		prefix = "practice.assignment"
	}
	return fmt.Sprintf("%s.%s", prefix, job.Status)
}

// Start begins draining the queue.
func (d *WebhookDispatcher) Start() {
	d.loop.Add(1)
	go d.run()
}

// Enqueue schedules a delivery without blocking. Non-terminal snapshots
// and jobs without a webhook URL are ignored.
func (d *WebhookDispatcher) Enqueue(job *domain.Job) error {
	if job.WebhookURL == "" || !job.Status.IsTerminal() {
		return nil
	}

	del := delivery{
		id:  ulid.Make().String(),
		url: job.WebhookURL,
		payload: WebhookPayload{
			Event:     EventName(job),
			Timestamp: time.Now().UTC(),
			Data: WebhookData{
				JobID:     job.ID,
				LearnerID: job.LearnerID,
				Status:    job.Status,
				Result:    job.Result,
				Error:     job.ErrorMessage,
			},
		},
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.observe(del.payload.Event, OutcomeDropped)
		return fmt.Errorf("%w: dispatcher stopped", ErrDelivery)
	}

	select {
	case d.queue <- del:
		return nil
	default:
		d.observe(del.payload.Event, OutcomeDropped)
		return fmt.Errorf("%w: queue full", ErrDelivery)
	}
}

// Stop stops accepting deliveries and waits for queued and in-flight ones
// until ctx expires, after which in-flight requests are cancelled.
func (d *WebhookDispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.loop.Wait()
		d.flights.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	d.cancel()
	<-done
	return err
}

func (d *WebhookDispatcher) run() {
	defer d.loop.Done()

	for del := range d.queue {
		if err := d.sem.Acquire(d.ctx, 1); err != nil {
			d.observe(del.payload.Event, OutcomeDropped)
			continue
		}
		d.flights.Add(1)
		go func(del delivery) {
			defer d.flights.Done()
			defer d.sem.Release(1)
			_ = d.deliver(d.ctx, del)
		}(del)
	}
}

// deliver performs a single POST. The job status is never touched here.
func (d *WebhookDispatcher) deliver(ctx context.Context, del delivery) error {
	log := d.logger.With(
		"delivery_id", del.id,
		"job_id", del.payload.Data.JobID,
		"event", del.payload.Event,
	)

	ctx, cancel := context.WithTimeout(ctx, d.config.Timeout)
	defer cancel()

	err := d.post(ctx, del)
	if err != nil {
		d.observe(del.payload.Event, OutcomeFailed)
		log.Warn("webhook delivery failed", "error", err)
		return err
	}

	d.observe(del.payload.Event, OutcomeDelivered)
	log.Debug("webhook delivered")
	return nil
}

func (d *WebhookDispatcher) post(ctx context.Context, del delivery) error {
	body, err := json.Marshal(del.payload)
	if err != nil {
		return fmt.Errorf("%w: encode payload: %v", ErrDelivery, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, del.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: build request: %v", ErrDelivery, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderEvent, del.payload.Event)
	req.Header.Set(HeaderDelivery, del.id)

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDelivery, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: endpoint returned %d", ErrDelivery, resp.StatusCode)
	}
	return nil
}

func (d *WebhookDispatcher) observe(event, outcome string) {
	if d.config.Observe != nil {
		d.config.Observe(event, outcome)
	}
}
