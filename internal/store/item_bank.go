package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-practice/internal/domain"
)

// ItemQuery describes a difficulty band search of the item bank.
type ItemQuery struct {
	Subject string
	// Topic restricts results to one topic when set
	Topic string
	// MinDifficulty and MaxDifficulty bound the band, inclusive
	MinDifficulty int
	MaxDifficulty int
	// Target orders results by distance from this difficulty
	Target int
	// Tags, when set, restricts results to items sharing at least one tag
	Tags       []string
	ExcludeIDs []uuid.UUID
	Limit      int
}

// ItemBank defines the interface for the curated practice item bank.
type ItemBank interface {
	// Find returns up to q.Limit bank items in the difficulty band.
	// Items closest to q.Target come first. Returns an empty slice if
	// nothing matches.
	Find(ctx context.Context, q ItemQuery) ([]domain.PracticeItem, error)

	// Add inserts items into the bank, skipping ids that already exist.
	// Returns the number of items inserted.
	Add(ctx context.Context, items []domain.PracticeItem) (int, error)
}

// AuditStore records result batches that include generated items.
type AuditStore interface {
	// Record saves an audit entry.
	Record(ctx context.Context, audit *domain.GenerationAudit) error
}
