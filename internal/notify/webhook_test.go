package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-practice/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func terminalJob(url string, status domain.JobStatus) *domain.Job {
	job := &domain.Job{
		ID:         uuid.New(),
		Type:       domain.JobTypePracticeGeneration,
		Status:     status,
		LearnerID:  uuid.New(),
		WebhookURL: url,
	}
	if status == domain.JobStatusFailed {
		job.ErrorMessage = "boom"
	}
	return job
}

func TestEventName(t *testing.T) {
	assert.Equal(t, "practice.assignment.completed", EventName(terminalJob("", domain.JobStatusCompleted)))
	assert.Equal(t, "practice.assignment.failed", EventName(terminalJob("", domain.JobStatusFailed)))
	assert.Equal(t, "practice.assignment.cancelled", EventName(terminalJob("", domain.JobStatusCancelled)))
}

func TestWebhookDispatcher_Delivers(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		hits.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	var delivered atomic.Int32
	d := NewWebhookDispatcher(server.Client(), WebhookConfig{
		Concurrency: 2,
		Observe: func(event, outcome string) {
			if outcome == OutcomeDelivered {
				delivered.Add(1)
			}
		},
	}, nil)
	d.Start()

	for i := 0; i < 5; i++ {
		require.NoError(t, d.Enqueue(terminalJob(server.URL, domain.JobStatusCompleted)))
	}
	require.NoError(t, d.Stop(context.Background()), "stop drains queued deliveries")

	assert.Equal(t, int32(5), hits.Load())
	assert.Equal(t, int32(5), delivered.Load())
}

func TestWebhookDispatcher_IgnoresNonTerminal(t *testing.T) {
	d := NewWebhookDispatcher(nil, WebhookConfig{QueueSize: 1}, nil)

	assert.NoError(t, d.Enqueue(terminalJob("http://example.invalid", domain.JobStatusProcessing)))
	assert.NoError(t, d.Enqueue(terminalJob("", domain.JobStatusCompleted)))
	assert.Empty(t, d.queue)
}

func TestWebhookDispatcher_QueueFull(t *testing.T) {
	var dropped atomic.Int32
	d := NewWebhookDispatcher(nil, WebhookConfig{
		QueueSize: 1,
		Observe: func(event, outcome string) {
			if outcome == OutcomeDropped {
				dropped.Add(1)
			}
		},
	}, nil)

	require.NoError(t, d.Enqueue(terminalJob("http://example.invalid", domain.JobStatusFailed)))
	err := d.Enqueue(terminalJob("http://example.invalid", domain.JobStatusFailed))
	assert.ErrorIs(t, err, ErrDelivery)
	assert.Equal(t, int32(1), dropped.Load())

	require.NoError(t, d.Stop(context.Background()))
	assert.ErrorIs(t, d.Enqueue(terminalJob("http://example.invalid", domain.JobStatusFailed)), ErrDelivery)
}

func TestWebhookDispatcher_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	d := NewWebhookDispatcher(server.Client(), WebhookConfig{Timeout: 20 * time.Millisecond}, nil)

	start := time.Now()
	err := d.deliver(context.Background(), delivery{
		id:  "01HZZZZZZZZZZZZZZZZZZZZZZZ",
		url: server.URL,
		payload: WebhookPayload{
			Event: "practice.assignment.completed",
		},
	})
	assert.ErrorIs(t, err, ErrDelivery)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestWebhookDispatcher_StopDeadlineDropsQueued(t *testing.T) {
	release := make(chan struct{})
	arrived := make(chan struct{}, 3)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		arrived <- struct{}{}
		select {
		case <-release:
		case <-r.Context().Done():
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()
	defer close(release)

	var dropped, failed atomic.Int32
	d := NewWebhookDispatcher(server.Client(), WebhookConfig{
		Concurrency: 1,
		Timeout:     5 * time.Second,
		Observe: func(event, outcome string) {
			switch outcome {
			case OutcomeDropped:
				dropped.Add(1)
			case OutcomeFailed:
				failed.Add(1)
			}
		},
	}, nil)
	d.Start()

	for i := 0; i < 3; i++ {
		require.NoError(t, d.Enqueue(terminalJob(server.URL, domain.JobStatusCompleted)))
	}
	select {
	case <-arrived:
	case <-time.After(5 * time.Second):
		t.Fatal("first delivery never arrived")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Stop(ctx), context.DeadlineExceeded)

	assert.Equal(t, int32(1), failed.Load(), "the in-flight delivery is cancelled")
	assert.Equal(t, int32(2), dropped.Load(), "queued deliveries are dropped")
}
