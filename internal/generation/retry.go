package generation

import (
	"context"
	"log/slog"
	"time"

	"github.com/phrazzld/scry-practice/internal/domain"
	"github.com/sethvargo/go-retry"
)

// Attempt outcomes reported to RetryPolicy.Observe
const (
	OutcomeSuccess   = "success"
	OutcomeTransient = "transient"
	OutcomeTerminal  = "terminal"
)

// RetryPolicy configures NewRetryingGenerator.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the first attempt
	MaxRetries int
	// Backoff is the base delay of the exponential backoff
	Backoff time.Duration
	// CallTimeout bounds each individual attempt. Zero means no bound
	// beyond the caller's context.
	CallTimeout time.Duration
	// Observe, when set, is called once per attempt with its outcome
	Observe func(outcome string)
}

// RetryingGenerator retries transient failures of another Generator with
// exponential backoff. Terminal failures and caller cancellation are
// returned immediately.
type RetryingGenerator struct {
	next   Generator
	policy RetryPolicy
	logger *slog.Logger
}

var _ Generator = (*RetryingGenerator)(nil)

// NewRetryingGenerator wraps next with policy.
func NewRetryingGenerator(next Generator, policy RetryPolicy, logger *slog.Logger) *RetryingGenerator {
	if next == nil {
		panic("generator cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if policy.Backoff <= 0 {
		policy.Backoff = 500 * time.Millisecond
	}
	if policy.MaxRetries < 0 {
		policy.MaxRetries = 0
	}
	return &RetryingGenerator{
		next:   next,
		policy: policy,
		logger: logger.With(slog.String("component", "retrying_generator")),
	}
}

// Generate implements Generator. When retries are exhausted the last
// transient error is returned.
func (g *RetryingGenerator) Generate(ctx context.Context, req Request) ([]domain.PracticeItem, error) {
	backoff := retry.NewExponential(g.policy.Backoff)
	backoff = retry.WithJitterPercent(10, backoff)
	backoff = retry.WithMaxRetries(uint64(g.policy.MaxRetries), backoff)

	var items []domain.PracticeItem
	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		callCtx, cancel := g.callContext(ctx)
		defer cancel()

		var err error
		items, err = g.next.Generate(callCtx, req)
		switch {
		case err == nil:
			g.observe(OutcomeSuccess)
			return nil
		case ctx.Err() != nil:
			return ctx.Err()
		case IsTransient(err):
			g.observe(OutcomeTransient)
			g.logger.WarnContext(ctx, "transient generation failure",
				slog.Int("attempt", attempt),
				slog.Int("max_retries", g.policy.MaxRetries),
				slog.String("error", err.Error()))
			return retry.RetryableError(err)
		default:
			g.observe(OutcomeTerminal)
			return err
		}
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (g *RetryingGenerator) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.policy.CallTimeout > 0 {
		return context.WithTimeout(ctx, g.policy.CallTimeout)
	}
	return context.WithCancel(ctx)
}

func (g *RetryingGenerator) observe(outcome string) {
	if g.policy.Observe != nil {
		g.policy.Observe(outcome)
	}
}
