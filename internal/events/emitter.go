package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// InMemoryEventEmitter fans committed job transitions out to its handlers
// synchronously, in registration order. Handlers run on the goroutine that
// committed the transition, so they must not block.
type InMemoryEventEmitter struct {
	mu       sync.RWMutex
	handlers []EventHandler
	logger   *slog.Logger
}

var _ EventEmitter = (*InMemoryEventEmitter)(nil)

// NewInMemoryEventEmitter creates an emitter with no handlers.
func NewInMemoryEventEmitter(logger *slog.Logger) *InMemoryEventEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &InMemoryEventEmitter{
		logger: logger.With("component", "job_event_emitter"),
	}
}

// RegisterHandler subscribes handler to every later transition.
func (e *InMemoryEventEmitter) RegisterHandler(handler EventHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers = append(e.handlers, handler)
	e.logger.Debug("registered job event handler",
		"handler", fmt.Sprintf("%T", handler),
		"handler_count", len(e.handlers))
}

// EmitEvent delivers event to every handler, even after one fails or
// panics. The returned error joins every handler failure.
func (e *InMemoryEventEmitter) EmitEvent(ctx context.Context, event *JobTransitionEvent) error {
	e.mu.RLock()
	handlers := append([]EventHandler(nil), e.handlers...)
	e.mu.RUnlock()

	level := slog.LevelDebug
	if event.IsTerminal() {
		level = slog.LevelInfo
	}
	e.logger.Log(ctx, level, "job transition",
		"event_id", event.ID,
		"job_id", event.Job.ID,
		"job_type", event.Job.Type,
		"from", event.From,
		"to", event.Job.Status,
		"progress_percent", event.Job.ProgressPercent)

	var errs []error
	for _, handler := range handlers {
		if err := e.dispatch(ctx, handler, event); err != nil {
			e.logger.ErrorContext(ctx, "job event handler failed",
				"handler", fmt.Sprintf("%T", handler),
				"event_id", event.ID,
				"job_id", event.Job.ID,
				"error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// dispatch runs one handler, converting a panic into an error so the
// remaining handlers still see the transition.
func (e *InMemoryEventEmitter) dispatch(ctx context.Context, handler EventHandler, event *JobTransitionEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler %T panicked: %v", handler, r)
		}
	}()
	return handler.HandleEvent(ctx, event)
}
