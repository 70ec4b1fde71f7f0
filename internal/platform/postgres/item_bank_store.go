package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/phrazzld/scry-practice/internal/domain"
	"github.com/phrazzld/scry-practice/internal/platform/logger"
	"github.com/phrazzld/scry-practice/internal/store"
)

// PostgresItemBank implements store.ItemBank over the practice_items table.
type PostgresItemBank struct {
	db     store.DBTX
	types  *pgtype.Map
	logger *slog.Logger
}

// NewPostgresItemBank creates a new PostgreSQL item bank.
// If logger is nil, a default logger will be used.
func NewPostgresItemBank(db store.DBTX, logger *slog.Logger) *PostgresItemBank {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresItemBank{
		db:     db,
		types:  pgtype.NewMap(),
		logger: logger.With(slog.String("component", "item_bank")),
	}
}

// Ensure PostgresItemBank implements store.ItemBank interface
var _ store.ItemBank = (*PostgresItemBank)(nil)

// Find implements store.ItemBank.Find
func (b *PostgresItemBank) Find(ctx context.Context, q store.ItemQuery) ([]domain.PracticeItem, error) {
	log := logger.FromContextOrDefault(ctx, b.logger)

	excluded := make([]string, 0, len(q.ExcludeIDs))
	for _, id := range q.ExcludeIDs {
		excluded = append(excluded, id.String())
	}
	tags := make([]string, 0, len(q.Tags))
	for _, tag := range q.Tags {
		tags = append(tags, strings.ToLower(tag))
	}

	query := `
		SELECT id, subject, topic, question, answer, choices, tags, difficulty, difficulty_rating
		FROM practice_items
		WHERE lower(subject) = lower($1)
			AND difficulty BETWEEN $2 AND $3
			AND ($4::text = '' OR lower(topic) = lower($4::text))
			AND NOT (id = ANY($5::uuid[]))
			AND (cardinality($6::text[]) = 0
				OR EXISTS (SELECT 1 FROM unnest(tags) AS t(tag) WHERE lower(t.tag) = ANY($6::text[])))
		ORDER BY abs(difficulty - $7), created_at, id
		LIMIT $8
	`

	rows, err := b.db.QueryContext(ctx, query,
		q.Subject,
		q.MinDifficulty,
		q.MaxDifficulty,
		q.Topic,
		excluded,
		tags,
		q.Target,
		q.Limit,
	)
	if err != nil {
		log.Error("failed to query item bank",
			slog.String("error", err.Error()),
			slog.String("subject", q.Subject))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	items := make([]domain.PracticeItem, 0, q.Limit)
	for rows.Next() {
		var item domain.PracticeItem
		err := rows.Scan(
			&item.ID,
			&item.Subject,
			&item.Topic,
			&item.Question,
			&item.Answer,
			b.types.SQLScanner(&item.Choices),
			b.types.SQLScanner(&item.Tags),
			&item.Difficulty,
			&item.DifficultyRating,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan practice item: %w", err)
		}
		item.Source = domain.ItemSourceBank
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating practice items: %w", err)
	}

	log.Debug("item bank query",
		slog.String("subject", q.Subject),
		slog.Int("min_difficulty", q.MinDifficulty),
		slog.Int("max_difficulty", q.MaxDifficulty),
		slog.Int("found", len(items)))
	return items, nil
}

// Add implements store.ItemBank.Add
func (b *PostgresItemBank) Add(ctx context.Context, items []domain.PracticeItem) (int, error) {
	log := logger.FromContextOrDefault(ctx, b.logger)

	query := `
		INSERT INTO practice_items (id, subject, topic, question, answer, choices, tags,
			difficulty, difficulty_rating, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING
	`

	inserted := 0
	now := time.Now().UTC()
	for _, item := range items {
		if err := item.Validate(); err != nil {
			return inserted, fmt.Errorf("%w: item %s: %v", store.ErrInvalidEntity, item.ID, err)
		}

		result, err := b.db.ExecContext(ctx, query,
			item.ID,
			item.Subject,
			item.Topic,
			item.Question,
			item.Answer,
			nonNil(item.Choices),
			nonNil(item.Tags),
			item.Difficulty,
			domain.RatingForDifficulty(item.Difficulty),
			now,
		)
		if err != nil {
			log.Error("failed to insert practice item",
				slog.String("error", err.Error()),
				slog.String("item_id", item.ID.String()))
			return inserted, MapError(err)
		}
		if n, err := result.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	return inserted, nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
