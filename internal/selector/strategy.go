package selector

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-practice/internal/domain"
	"github.com/phrazzld/scry-practice/internal/generation"
	"github.com/phrazzld/scry-practice/internal/store"
)

// Band widths of the default bank tiers
const (
	DefaultBandWidth = 1
	WideBandWidth    = 3
	// FullScaleWidth covers every difficulty from any target
	FullScaleWidth = domain.MaxDifficulty - domain.MinDifficulty
)

// DefaultGenerationBatchSize caps the items requested per generation call.
const DefaultGenerationBatchSize = 10

// Strategy is one tier of the selection chain.
type Strategy interface {
	// Name identifies the strategy in logs and progress messages
	Name() string

	// Apply adds items to st and returns how many it added. Errors abort
	// the whole selection.
	Apply(ctx context.Context, st *State) (int, error)
}

// DefaultChain returns the bank tiers ±1, ±3 and full scale followed by
// generation.
func DefaultChain(bank store.ItemBank, gen generation.Generator, batchSize int) []Strategy {
	return []Strategy{
		&BankBandStrategy{Bank: bank, Width: DefaultBandWidth},
		&BankBandStrategy{Bank: bank, Width: WideBandWidth},
		&BankBandStrategy{Bank: bank, Width: FullScaleWidth},
		&GenerationStrategy{Generator: gen, BatchSize: batchSize},
	}
}

// BankBandStrategy draws items from the bank within Width of the target
// difficulty, closest first.
type BankBandStrategy struct {
	Bank  store.ItemBank
	Width int
}

// Name implements Strategy.
func (s *BankBandStrategy) Name() string {
	if s.Width >= FullScaleWidth {
		return "bank_full_scale"
	}
	return fmt.Sprintf("bank_band_%d", s.Width)
}

// Apply implements Strategy.
func (s *BankBandStrategy) Apply(ctx context.Context, st *State) (int, error) {
	if err := st.Checkpoint(ctx); err != nil {
		return 0, err
	}

	items, err := s.Bank.Find(ctx, store.ItemQuery{
		Subject:       st.Request.Subject,
		Topic:         st.Request.Topic,
		MinDifficulty: domain.ClampDifficulty(st.Target - s.Width),
		MaxDifficulty: domain.ClampDifficulty(st.Target + s.Width),
		Target:        st.Target,
		Tags:          st.Request.GoalTags,
		ExcludeIDs:    st.SelectedIDs(),
		Limit:         st.Remaining(),
	})
	if err != nil {
		return 0, fmt.Errorf("item bank query (%s) failed: %w", s.Name(), err)
	}

	added := st.Add(items)
	st.progress(ctx, fmt.Sprintf("Found %d bank items (%s)", added, s.Name()))
	return added, nil
}

// GenerationStrategy synthesizes whatever is still missing, BatchSize items
// per call. A transient failure that survives the generator's own retries
// ends synthesis with a shortfall; any other failure aborts the selection.
type GenerationStrategy struct {
	Generator generation.Generator
	BatchSize int
}

// Name implements Strategy.
func (s *GenerationStrategy) Name() string { return "generation" }

// Apply implements Strategy.
func (s *GenerationStrategy) Apply(ctx context.Context, st *State) (int, error) {
	if s.Generator == nil {
		return 0, nil
	}
	batchSize := s.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultGenerationBatchSize
	}

	total := 0
	for st.Remaining() > 0 {
		if err := st.Checkpoint(ctx); err != nil {
			return total, err
		}

		count := min(st.Remaining(), batchSize)
		items, err := s.Generator.Generate(ctx, generation.Request{
			Subject:    st.Request.Subject,
			Topic:      st.Request.Topic,
			Difficulty: st.Target,
			Count:      count,
			Tags:       st.Request.GoalTags,
			Avoid:      st.SelectedQuestions(),
		})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return total, ctxErr
			}
			if generation.IsTransient(err) {
				st.generationErr = err
				st.progress(ctx, "Generation unavailable, returning partial results")
				return total, nil
			}
			return total, fmt.Errorf("practice item generation failed: %w", err)
		}

		added := st.Add(normalizeGenerated(items, st.Target))
		total += added
		st.progress(ctx, fmt.Sprintf("Generated %d items", added))

		if added == 0 {
			st.generationErr = errors.New("generator returned no usable items")
			return total, nil
		}
	}
	return total, nil
}

// normalizeGenerated enforces the provenance of synthesized items whatever
// the generator returned.
func normalizeGenerated(items []domain.PracticeItem, target int) []domain.PracticeItem {
	out := make([]domain.PracticeItem, 0, len(items))
	for _, item := range items {
		if item.ID == uuid.Nil {
			item.ID = uuid.New()
		}
		item.Source = domain.ItemSourceAIGenerated
		item.Flagged = true
		if item.Difficulty == 0 {
			item.Difficulty = target
		}
		item.DifficultyRating = domain.RatingForDifficulty(item.Difficulty)
		if item.Validate() != nil {
			continue
		}
		out = append(out, item)
	}
	return out
}
