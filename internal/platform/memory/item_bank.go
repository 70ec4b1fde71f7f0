package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-practice/internal/domain"
	"github.com/phrazzld/scry-practice/internal/store"
)

// ItemBank holds practice items in insertion order.
type ItemBank struct {
	mu    sync.RWMutex
	items []domain.PracticeItem
	ids   map[uuid.UUID]struct{}

	// FindHook, when set, runs before every Find. Returning an error fails
	// the query with that error.
	FindHook func(q store.ItemQuery) error
}

// NewItemBank creates a bank seeded with items.
func NewItemBank(items ...domain.PracticeItem) *ItemBank {
	b := &ItemBank{ids: make(map[uuid.UUID]struct{})}
	_, _ = b.Add(context.Background(), items)
	return b
}

var _ store.ItemBank = (*ItemBank)(nil)

// Add implements store.ItemBank.
func (b *ItemBank) Add(ctx context.Context, items []domain.PracticeItem) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	inserted := 0
	for _, item := range items {
		if err := item.Validate(); err != nil {
			return inserted, fmt.Errorf("%w: item %s: %v", store.ErrInvalidEntity, item.ID, err)
		}
		if _, exists := b.ids[item.ID]; exists {
			continue
		}
		item.Source = domain.ItemSourceBank
		item.Flagged = false
		item.DifficultyRating = domain.RatingForDifficulty(item.Difficulty)
		b.items = append(b.items, item)
		b.ids[item.ID] = struct{}{}
		inserted++
	}
	return inserted, nil
}

// Find implements store.ItemBank.
func (b *ItemBank) Find(ctx context.Context, q store.ItemQuery) ([]domain.PracticeItem, error) {
	if b.FindHook != nil {
		if err := b.FindHook(q); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	excluded := make(map[uuid.UUID]struct{}, len(q.ExcludeIDs))
	for _, id := range q.ExcludeIDs {
		excluded[id] = struct{}{}
	}

	b.mu.RLock()
	matched := make([]domain.PracticeItem, 0)
	for _, item := range b.items {
		if !strings.EqualFold(item.Subject, q.Subject) {
			continue
		}
		if item.Difficulty < q.MinDifficulty || item.Difficulty > q.MaxDifficulty {
			continue
		}
		if q.Topic != "" && !strings.EqualFold(item.Topic, q.Topic) {
			continue
		}
		if len(q.Tags) > 0 && !sharesTag(item.Tags, q.Tags) {
			continue
		}
		if _, skip := excluded[item.ID]; skip {
			continue
		}
		matched = append(matched, item)
	}
	b.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return abs(matched[i].Difficulty-q.Target) < abs(matched[j].Difficulty-q.Target)
	})

	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}
	return matched, nil
}

func sharesTag(tags, wanted []string) bool {
	for _, t := range tags {
		for _, w := range wanted {
			if strings.EqualFold(t, w) {
				return true
			}
		}
	}
	return false
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
