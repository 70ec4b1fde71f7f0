package generation_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/phrazzld/scry-practice/internal/domain"
	"github.com/phrazzld/scry-practice/internal/generation"
	"github.com/phrazzld/scry-practice/internal/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var retryReq = generation.Request{Subject: "Algebra", Difficulty: 5, Count: 2}

type outcomes struct {
	mu   sync.Mutex
	seen []string
}

func (o *outcomes) observe(outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.seen = append(o.seen, outcome)
}

func TestRetryingGenerator_RetriesTransient(t *testing.T) {
	t.Parallel()

	echo := mocks.NewEchoGenerator()
	calls := 0
	inner := &mocks.MockGenerator{
		GenerateFn: func(ctx context.Context, req generation.Request) ([]domain.PracticeItem, error) {
			calls++
			if calls < 3 {
				return nil, generation.ErrTransientFailure
			}
			return echo.GenerateFn(ctx, req)
		},
	}
	seen := &outcomes{}

	g := generation.NewRetryingGenerator(inner, generation.RetryPolicy{
		MaxRetries: 3,
		Backoff:    time.Millisecond,
		Observe:    seen.observe,
	}, nil)

	items, err := g.Generate(context.Background(), retryReq)
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Equal(t, 3, inner.CallCount())
	assert.Equal(t, []string{
		generation.OutcomeTransient, generation.OutcomeTransient, generation.OutcomeSuccess,
	}, seen.seen)
}

func TestRetryingGenerator_Exhausted(t *testing.T) {
	t.Parallel()

	inner := mocks.NewMockGeneratorWithError(generation.ErrTransientFailure)
	g := generation.NewRetryingGenerator(inner, generation.RetryPolicy{
		MaxRetries: 2,
		Backoff:    time.Millisecond,
	}, nil)

	_, err := g.Generate(context.Background(), retryReq)
	require.Error(t, err)
	assert.ErrorIs(t, err, generation.ErrTransientFailure)
	assert.Equal(t, 3, inner.CallCount(), "first attempt plus two retries")
}

func TestRetryingGenerator_TerminalNotRetried(t *testing.T) {
	t.Parallel()

	inner := mocks.NewMockGeneratorWithError(generation.ErrContentBlocked)
	g := generation.NewRetryingGenerator(inner, generation.RetryPolicy{
		MaxRetries: 5,
		Backoff:    time.Millisecond,
	}, nil)

	_, err := g.Generate(context.Background(), retryReq)
	assert.ErrorIs(t, err, generation.ErrContentBlocked)
	assert.Equal(t, 1, inner.CallCount())
}

func TestRetryingGenerator_CallTimeout(t *testing.T) {
	t.Parallel()

	inner := &mocks.MockGenerator{
		GenerateFn: func(ctx context.Context, req generation.Request) ([]domain.PracticeItem, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	g := generation.NewRetryingGenerator(inner, generation.RetryPolicy{
		MaxRetries:  1,
		Backoff:     time.Millisecond,
		CallTimeout: 10 * time.Millisecond,
	}, nil)

	_, err := g.Generate(context.Background(), retryReq)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 2, inner.CallCount())
}

func TestRetryingGenerator_CallerCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	inner := &mocks.MockGenerator{
		GenerateFn: func(ctx context.Context, req generation.Request) ([]domain.PracticeItem, error) {
			cancel()
			return nil, generation.ErrTransientFailure
		},
	}
	g := generation.NewRetryingGenerator(inner, generation.RetryPolicy{
		MaxRetries: 5,
		Backoff:    time.Millisecond,
	}, nil)

	_, err := g.Generate(ctx, retryReq)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, inner.CallCount())
}
