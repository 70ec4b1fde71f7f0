package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-practice/internal/domain"
	"github.com/phrazzld/scry-practice/internal/domain/elo"
	"github.com/phrazzld/scry-practice/internal/platform/logger"
	"github.com/phrazzld/scry-practice/internal/platform/metrics"
	"github.com/phrazzld/scry-practice/internal/store"
	"github.com/sethvargo/go-retry"
)

const (
	// MaxRatingConflictRetries is how many times a conflicting rating update
	// is retried before giving up.
	MaxRatingConflictRetries = 5

	ratingRetryBase = 10 * time.Millisecond
)

// Rating update outcomes reported to metrics.
const (
	RatingOutcomeUpdated  = "updated"
	RatingOutcomeConflict = "conflict"
	RatingOutcomeError    = "error"
)

// CompletionInput is one practice attempt to apply to a learner's rating.
type CompletionInput struct {
	LearnerID  uuid.UUID `json:"learner_id" validate:"required"`
	Subject    string    `json:"subject" validate:"required"`
	ItemRating int       `json:"item_rating" validate:"required,gt=0"`
	// Performance is 1 for a correct answer and 0 for an incorrect one
	Performance float64 `json:"performance" validate:"gte=0,lte=1"`
}

// Validate checks the input fields.
func (in CompletionInput) Validate() error {
	if in.LearnerID == uuid.Nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, domain.ErrEmptyLearnerID)
	}
	if strings.TrimSpace(in.Subject) == "" {
		return fmt.Errorf("%w: %v", domain.ErrValidation, domain.ErrEmptySubject)
	}
	if in.ItemRating <= 0 {
		return fmt.Errorf("%w: item rating must be positive", domain.ErrValidation)
	}
	if in.Performance < 0 || in.Performance > 1 {
		return fmt.Errorf("%w: %v", domain.ErrValidation, domain.ErrInvalidScore)
	}
	return nil
}

// CompletionResult reports the rating change caused by one attempt.
type CompletionResult struct {
	LearnerID     uuid.UUID `json:"learner_id"`
	Subject       string    `json:"subject"`
	OldRating     int       `json:"old_rating"`
	NewRating     int       `json:"new_rating"`
	ExpectedScore float64   `json:"expected_score"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// RatingService applies practice outcomes to skill ratings.
type RatingService struct {
	ratings store.SkillRatingStore
	logger  *slog.Logger
}

// NewRatingService creates a RatingService.
func NewRatingService(ratings store.SkillRatingStore, logger *slog.Logger) *RatingService {
	if ratings == nil {
		panic("ratings cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RatingService{
		ratings: ratings,
		logger:  logger.With(slog.String("component", "rating_service")),
	}
}

// Get returns the learner's current rating in subject.
func (s *RatingService) Get(ctx context.Context, learnerID uuid.UUID, subject string) (*domain.SkillRating, error) {
	return s.ratings.Get(ctx, learnerID, subject)
}

// Complete applies one attempt to the learner's rating. The store
// serializes concurrent updates of the same learner and subject; updates
// aborted by a concurrent writer are retried.
//
// Callers are responsible for not submitting the same attempt twice.
func (s *RatingService) Complete(ctx context.Context, in CompletionInput) (*CompletionResult, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := in.Validate(); err != nil {
		return nil, err
	}

	var (
		old      int
		expected float64
		updated  *domain.SkillRating
	)

	backoff := retry.WithMaxRetries(MaxRatingConflictRetries, retry.NewExponential(ratingRetryBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		rating, err := s.ratings.Update(ctx, in.LearnerID, in.Subject, func(current int) (int, error) {
			old = current
			expected = elo.ExpectedScore(current, in.ItemRating)
			return elo.NewRating(current, in.ItemRating, in.Performance)
		})
		if err != nil {
			if errors.Is(err, store.ErrRatingConflict) {
				metrics.ObserveRatingUpdate(RatingOutcomeConflict)
				log.DebugContext(ctx, "rating update conflict, retrying",
					slog.String("learner_id", in.LearnerID.String()),
					slog.String("subject", in.Subject))
				return retry.RetryableError(err)
			}
			return err
		}
		updated = rating
		return nil
	})
	if err != nil {
		metrics.ObserveRatingUpdate(RatingOutcomeError)
		if errors.Is(err, store.ErrRatingConflict) {
			return nil, fmt.Errorf("%w: %v", ErrRatingRetriesExhausted, err)
		}
		if errors.Is(err, domain.ErrInvalidScore) {
			return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
		}
		return nil, NewServiceError("complete", "failed to update skill rating", err)
	}

	metrics.ObserveRatingUpdate(RatingOutcomeUpdated)
	log.InfoContext(ctx, "skill rating updated",
		slog.String("learner_id", in.LearnerID.String()),
		slog.String("subject", in.Subject),
		slog.Int("old_rating", old),
		slog.Int("new_rating", updated.Rating))

	return &CompletionResult{
		LearnerID:     in.LearnerID,
		Subject:       in.Subject,
		OldRating:     old,
		NewRating:     updated.Rating,
		ExpectedScore: expected,
		UpdatedAt:     updated.UpdatedAt,
	}, nil
}
