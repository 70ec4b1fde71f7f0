package selector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-practice/internal/domain"
	"github.com/phrazzld/scry-practice/internal/platform/logger"
	"github.com/phrazzld/scry-practice/internal/store"
)

// ErrInvalidRequest is returned for requests that cannot be served.
var ErrInvalidRequest = errors.New("invalid selection request")

// Request describes what to select.
type Request struct {
	LearnerID uuid.UUID
	Subject   string
	Topic     string
	NumItems  int
	GoalTags  []string
	// JobID links the generation audit to a job; nil for synchronous requests
	JobID *uuid.UUID
}

// RequestFromParams converts job params into a selection request.
func RequestFromParams(jobID *uuid.UUID, p *domain.PracticeGenerationParams) Request {
	return Request{
		LearnerID: p.LearnerID,
		Subject:   p.Subject,
		Topic:     p.Topic,
		NumItems:  p.NumItems,
		GoalTags:  p.GoalTags,
		JobID:     jobID,
	}
}

// Hooks let the caller observe and interrupt a selection.
type Hooks struct {
	// Checkpoint runs before every bank query and generation call. A non-nil
	// error stops the selection and is returned from Select unchanged.
	Checkpoint func(ctx context.Context) error

	// Progress runs after every step with a non-decreasing percentage.
	Progress func(ctx context.Context, percent int, message string)
}

// Selection is the outcome of a selection run.
type Selection struct {
	Items            []domain.PracticeItem
	Requested        int
	LearnerRating    int
	TargetDifficulty int
	// GenerationErr holds the transient error that ended synthesis early,
	// if any. It is informational: the selection itself succeeded.
	GenerationErr error
}

// Result converts the selection into a job result.
func (s *Selection) Result() *domain.PracticeGenerationResult {
	return domain.NewPracticeGenerationResult(s.Items, s.Requested, s.LearnerRating, s.TargetDifficulty)
}

// Selector runs the strategy chain for a learner.
type Selector struct {
	ratings    store.SkillRatingStore
	audits     store.AuditStore
	strategies []Strategy
	logger     *slog.Logger
}

// NewSelector creates a Selector with the given strategy chain. audits may
// be nil, in which case generated batches are not recorded.
func NewSelector(
	ratings store.SkillRatingStore,
	audits store.AuditStore,
	strategies []Strategy,
	logger *slog.Logger,
) *Selector {
	if ratings == nil {
		panic("skill rating store cannot be nil")
	}
	if len(strategies) == 0 {
		panic("selector needs at least one strategy")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Selector{
		ratings:    ratings,
		audits:     audits,
		strategies: strategies,
		logger:     logger.With(slog.String("component", "selector")),
	}
}

// Select fills req from the strategy chain.
func (s *Selector) Select(ctx context.Context, req Request, hooks Hooks) (*Selection, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if req.LearnerID == uuid.Nil || req.Subject == "" {
		return nil, fmt.Errorf("%w: learner and subject are required", ErrInvalidRequest)
	}
	if req.NumItems < 1 || req.NumItems > domain.MaxPracticeItems {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, domain.ErrInvalidItemCount)
	}

	rating, err := s.ratings.Get(ctx, req.LearnerID, req.Subject)
	if err != nil {
		return nil, fmt.Errorf("failed to read skill rating: %w", err)
	}

	st := newState(req, rating.Rating, hooks)
	st.progress(ctx, "Read learner rating")

	for _, strategy := range s.strategies {
		if st.Remaining() == 0 {
			break
		}
		found, err := strategy.Apply(ctx, st)
		if err != nil {
			return nil, err
		}
		log.DebugContext(ctx, "strategy applied",
			slog.String("strategy", strategy.Name()),
			slog.Int("found", found),
			slog.Int("remaining", st.Remaining()))
	}

	sel := &Selection{
		Items:            st.selected,
		Requested:        req.NumItems,
		LearnerRating:    st.Rating,
		TargetDifficulty: st.Target,
		GenerationErr:    st.generationErr,
	}
	if sel.Items == nil {
		sel.Items = []domain.PracticeItem{}
	}

	result := sel.Result()
	if result.GeneratedCount > 0 {
		s.recordAudit(ctx, req, result)
	}

	log.InfoContext(ctx, "practice items selected",
		slog.String("learner_id", req.LearnerID.String()),
		slog.String("subject", req.Subject),
		slog.Int("rating", st.Rating),
		slog.Int("target_difficulty", st.Target),
		slog.Int("requested", req.NumItems),
		slog.Int("bank", result.BankCount),
		slog.Int("generated", result.GeneratedCount),
		slog.Bool("shortfall", result.Shortfall))

	return sel, nil
}

// recordAudit failures are logged only; they never fail the selection.
func (s *Selector) recordAudit(ctx context.Context, req Request, result *domain.PracticeGenerationResult) {
	if s.audits == nil {
		return
	}
	audit := domain.NewGenerationAudit(req.JobID, req.LearnerID, req.Subject, result)
	if err := s.audits.Record(ctx, audit); err != nil {
		logger.FromContextOrDefault(ctx, s.logger).WarnContext(ctx, "failed to record generation audit",
			slog.String("learner_id", req.LearnerID.String()),
			slog.String("error", err.Error()))
	}
}
