package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// MaxPracticeItems caps the number of items a single request may ask for.
const MaxPracticeItems = 50

// Validation errors for job payloads
var (
	ErrEmptyLearnerID   = errors.New("learner ID cannot be empty")
	ErrEmptySubject     = errors.New("subject cannot be empty")
	ErrInvalidItemCount = fmt.Errorf("num_items must be between 1 and %d", MaxPracticeItems)
)

// JobParams is the typed input of a job. Each job type has exactly one
// variant; the variant is recovered from storage with DecodeJobParams.
type JobParams interface {
	// Type returns the job type this variant belongs to
	Type() JobType

	// Learner returns the learner the job acts on behalf of
	Learner() uuid.UUID

	// Validate checks the variant's fields
	Validate() error
}

// JobResult is the typed output of a completed job, keyed by job type.
type JobResult interface {
	// Type returns the job type this variant belongs to
	Type() JobType
}

// PracticeGenerationParams is the input of a practice_generation job.
type PracticeGenerationParams struct {
	LearnerID uuid.UUID `json:"learner_id"`
	Subject   string    `json:"subject"`
	NumItems  int       `json:"num_items"`
	Topic     string    `json:"topic,omitempty"`
	GoalTags  []string  `json:"goal_tags,omitempty"`
}

// Type implements JobParams.
func (p *PracticeGenerationParams) Type() JobType { return JobTypePracticeGeneration }

// Learner implements JobParams.
func (p *PracticeGenerationParams) Learner() uuid.UUID { return p.LearnerID }

// Validate implements JobParams.
func (p *PracticeGenerationParams) Validate() error {
	if p.LearnerID == uuid.Nil {
		return fmt.Errorf("%w: %v", ErrValidation, ErrEmptyLearnerID)
	}
	if strings.TrimSpace(p.Subject) == "" {
		return fmt.Errorf("%w: %v", ErrValidation, ErrEmptySubject)
	}
	if p.NumItems < 1 || p.NumItems > MaxPracticeItems {
		return fmt.Errorf("%w: %v", ErrValidation, ErrInvalidItemCount)
	}
	return nil
}

// Composition summarizes where the items of a result came from.
type Composition string

// Composition values
const (
	CompositionAllBank      Composition = "all_bank"
	CompositionMixed        Composition = "mixed"
	CompositionAllGenerated Composition = "all_generated"
	CompositionEmpty        Composition = "empty"
)

// PracticeGenerationResult is the output of a practice_generation job.
type PracticeGenerationResult struct {
	Items            []PracticeItem `json:"items"`
	Requested        int            `json:"requested"`
	Shortfall        bool           `json:"shortfall"`
	ShortfallCount   int            `json:"shortfall_count"`
	Composition      Composition    `json:"composition"`
	BankCount        int            `json:"bank_count"`
	GeneratedCount   int            `json:"generated_count"`
	LearnerRating    int            `json:"learner_rating"`
	TargetDifficulty int            `json:"target_difficulty"`
}

// Type implements JobResult.
func (r *PracticeGenerationResult) Type() JobType { return JobTypePracticeGeneration }

// NewPracticeGenerationResult assembles a result from the selected items,
// deriving the counts, composition and shortfall indicator.
func NewPracticeGenerationResult(items []PracticeItem, requested, rating, difficulty int) *PracticeGenerationResult {
	result := &PracticeGenerationResult{
		Items:            items,
		Requested:        requested,
		LearnerRating:    rating,
		TargetDifficulty: difficulty,
	}
	if result.Items == nil {
		result.Items = []PracticeItem{}
	}

	for _, item := range items {
		if item.Source == ItemSourceAIGenerated {
			result.GeneratedCount++
		} else {
			result.BankCount++
		}
	}

	if len(items) < requested {
		result.Shortfall = true
		result.ShortfallCount = requested - len(items)
	}

	switch {
	case len(items) == 0:
		result.Composition = CompositionEmpty
	case result.GeneratedCount == 0:
		result.Composition = CompositionAllBank
	case result.BankCount == 0:
		result.Composition = CompositionAllGenerated
	default:
		result.Composition = CompositionMixed
	}

	return result
}

// DecodeJobParams restores the params variant for a job type.
func DecodeJobParams(jobType JobType, data []byte) (JobParams, error) {
	switch jobType {
	case JobTypePracticeGeneration:
		var p PracticeGenerationParams
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("%w: practice generation params: %v", ErrInvalidFormat, err)
		}
		return &p, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidJobType, jobType)
	}
}

// DecodeJobResult restores the result variant for a job type.
// An empty payload decodes to a nil result.
func DecodeJobResult(jobType JobType, data []byte) (JobResult, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}

	switch jobType {
	case JobTypePracticeGeneration:
		var r PracticeGenerationResult
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("%w: practice generation result: %v", ErrInvalidFormat, err)
		}
		return &r, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidJobType, jobType)
	}
}
