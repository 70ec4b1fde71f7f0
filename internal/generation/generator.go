package generation

import (
	"context"
	"fmt"
	"strings"

	"github.com/phrazzld/scry-practice/internal/domain"
)

// Request describes a batch of practice items to synthesize.
type Request struct {
	Subject    string
	Topic      string
	Difficulty int
	Count      int
	Tags       []string
	// Avoid lists questions already selected for the learner, so the model
	// does not repeat them
	Avoid []string
}

// Validate checks the request before it is sent to a model.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Subject) == "" {
		return fmt.Errorf("%w: subject cannot be empty", ErrInvalidRequest)
	}
	if r.Count < 1 {
		return fmt.Errorf("%w: count must be positive", ErrInvalidRequest)
	}
	if r.Difficulty < domain.MinDifficulty || r.Difficulty > domain.MaxDifficulty {
		return fmt.Errorf("%w: difficulty %d out of range", ErrInvalidRequest, r.Difficulty)
	}
	return nil
}

// Generator synthesizes practice items.
type Generator interface {
	// Generate returns up to req.Count items at req.Difficulty. Every item is
	// marked ai_generated and flagged for review. Errors wrap one of the
	// sentinels in errors.go so callers can decide whether to retry.
	Generate(ctx context.Context, req Request) ([]domain.PracticeItem, error)
}
