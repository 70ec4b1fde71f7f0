package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-practice/internal/domain"
)

// RatingUpdateFn computes the next rating from the current one.
type RatingUpdateFn func(current int) (int, error)

// SkillRatingStore defines the interface for learner skill ratings.
type SkillRatingStore interface {
	// Get returns the learner's rating in subject, or a rating of
	// domain.DefaultSkillRating when none has been stored yet.
	Get(ctx context.Context, learnerID uuid.UUID, subject string) (*domain.SkillRating, error)

	// Update performs an atomic read-modify-write of the rating for
	// (learnerID, subject), creating it with the default rating first if
	// needed. Concurrent updates of the same key are serialized; none is lost.
	// Returns ErrRatingConflict when the database aborts the update because
	// of a concurrent writer; the caller may retry.
	Update(ctx context.Context, learnerID uuid.UUID, subject string, fn RatingUpdateFn) (*domain.SkillRating, error)
}
