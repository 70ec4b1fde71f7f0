package service_test

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/phrazzld/scry-practice/internal/events"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingHandler captures every emitted event.
type recordingHandler struct {
	mu     sync.Mutex
	events []*events.JobTransitionEvent
	err    error
}

func (h *recordingHandler) HandleEvent(ctx context.Context, event *events.JobTransitionEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
	return h.err
}

func (h *recordingHandler) recorded() []*events.JobTransitionEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*events.JobTransitionEvent(nil), h.events...)
}
