package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInMemoryEventEmitter(t *testing.T) {
	// Create a minimal logger that discards output
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("emit event with no handlers", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(logger)

		err := emitter.EmitEvent(context.Background(), NewJobTransitionEvent("", testJob(t)))
		assert.NoError(t, err)
	})

	t.Run("emit event with successful handlers", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(logger)

		handler1 := &MockEventHandler{}
		handler2 := &MockEventHandler{}
		emitter.RegisterHandler(handler1)
		emitter.RegisterHandler(handler2)

		event := NewJobTransitionEvent("", testJob(t))
		err := emitter.EmitEvent(context.Background(), event)
		assert.NoError(t, err)

		assert.Equal(t, 1, handler1.HandledCount)
		assert.Equal(t, 1, handler2.HandledCount)
		assert.Equal(t, event, handler1.LastEvent)
		assert.Equal(t, event, handler2.LastEvent)
	})

	t.Run("emit event with failing handler", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(logger)

		successHandler := &MockEventHandler{}
		failingHandler := &MockEventHandler{
			HandlerError: errors.New("handler error"),
		}
		emitter.RegisterHandler(failingHandler)
		emitter.RegisterHandler(successHandler)

		err := emitter.EmitEvent(context.Background(), NewJobTransitionEvent("", testJob(t)))
		assert.EqualError(t, err, "handler error")

		// Both handlers should still have received the event
		assert.Equal(t, 1, successHandler.HandledCount)
		assert.Equal(t, 1, failingHandler.HandledCount)
	})

	t.Run("panicking handler does not stop delivery", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(logger)

		after := &MockEventHandler{}
		emitter.RegisterHandler(EventHandlerFunc(func(ctx context.Context, e *JobTransitionEvent) error {
			panic("subscriber bug")
		}))
		emitter.RegisterHandler(after)

		err := emitter.EmitEvent(context.Background(), NewJobTransitionEvent("", testJob(t)))
		assert.ErrorContains(t, err, "subscriber bug")
		assert.Equal(t, 1, after.HandledCount)
	})

	t.Run("every handler failure is reported", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(logger)

		first := errors.New("first")
		second := errors.New("second")
		emitter.RegisterHandler(&MockEventHandler{HandlerError: first})
		emitter.RegisterHandler(&MockEventHandler{HandlerError: second})

		err := emitter.EmitEvent(context.Background(), NewJobTransitionEvent("", testJob(t)))
		assert.ErrorIs(t, err, first)
		assert.ErrorIs(t, err, second)
	})

	t.Run("handler func adapter", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(logger)

		var seen *JobTransitionEvent
		emitter.RegisterHandler(EventHandlerFunc(func(ctx context.Context, e *JobTransitionEvent) error {
			seen = e
			return nil
		}))

		event := NewJobTransitionEvent("", testJob(t))
		assert.NoError(t, emitter.EmitEvent(context.Background(), event))
		assert.Same(t, event, seen)
	})
}
