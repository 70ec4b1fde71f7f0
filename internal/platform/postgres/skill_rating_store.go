package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-practice/internal/domain"
	"github.com/phrazzld/scry-practice/internal/platform/logger"
	"github.com/phrazzld/scry-practice/internal/store"
)

// PostgresSkillRatingStore implements store.SkillRatingStore.
// Updates run in their own transaction, so it needs the pool rather than a DBTX.
type PostgresSkillRatingStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresSkillRatingStore creates a new PostgreSQL implementation of the
// SkillRatingStore interface. If logger is nil, a default logger will be used.
func NewPostgresSkillRatingStore(db *sql.DB, logger *slog.Logger) *PostgresSkillRatingStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresSkillRatingStore{
		db:     db,
		logger: logger.With(slog.String("component", "skill_rating_store")),
	}
}

// Ensure PostgresSkillRatingStore implements store.SkillRatingStore interface
var _ store.SkillRatingStore = (*PostgresSkillRatingStore)(nil)

// Get implements store.SkillRatingStore.Get
func (s *PostgresSkillRatingStore) Get(
	ctx context.Context,
	learnerID uuid.UUID,
	subject string,
) (*domain.SkillRating, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT rating, updated_at
		FROM skill_ratings
		WHERE learner_id = $1 AND subject = $2
	`

	rating := domain.NewSkillRating(learnerID, subject)
	err := s.db.QueryRowContext(ctx, query, learnerID, subject).Scan(&rating.Rating, &rating.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rating, nil
		}
		log.Error("failed to get skill rating",
			slog.String("error", err.Error()),
			slog.String("learner_id", learnerID.String()),
			slog.String("subject", subject))
		return nil, err
	}

	return rating, nil
}

// Update implements store.SkillRatingStore.Update.
// The row is created with the default rating if missing and then locked
// with SELECT ... FOR UPDATE, so concurrent updates of one key queue behind
// each other instead of overwriting each other.
func (s *PostgresSkillRatingStore) Update(
	ctx context.Context,
	learnerID uuid.UUID,
	subject string,
	fn store.RatingUpdateFn,
) (*domain.SkillRating, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	rating := &domain.SkillRating{LearnerID: learnerID, Subject: subject}

	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		now := time.Now().UTC()

		_, err := tx.ExecContext(ctx, `
			INSERT INTO skill_ratings (learner_id, subject, rating, updated_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (learner_id, subject) DO NOTHING
		`, learnerID, subject, domain.DefaultSkillRating, now)
		if err != nil {
			return err
		}

		var current int
		err = tx.QueryRowContext(ctx, `
			SELECT rating
			FROM skill_ratings
			WHERE learner_id = $1 AND subject = $2
			FOR UPDATE
		`, learnerID, subject).Scan(&current)
		if err != nil {
			return err
		}

		next, err := fn(current)
		if err != nil {
			return err
		}

		result, err := tx.ExecContext(ctx, `
			UPDATE skill_ratings
			SET rating = $3, updated_at = $4
			WHERE learner_id = $1 AND subject = $2
		`, learnerID, subject, next, now)
		if err != nil {
			return err
		}
		if err := requireRowUpdated(result, "skill rating"); err != nil {
			return err
		}

		rating.Rating = next
		rating.UpdatedAt = now
		return nil
	})
	if err != nil {
		err = MapError(err)
		if errors.Is(err, store.ErrRatingConflict) {
			log.Warn("skill rating update conflicted with a concurrent writer",
				slog.String("learner_id", learnerID.String()),
				slog.String("subject", subject))
			return nil, err
		}
		log.Error("failed to update skill rating",
			slog.String("error", err.Error()),
			slog.String("learner_id", learnerID.String()),
			slog.String("subject", subject))
		return nil, err
	}

	return rating, nil
}
