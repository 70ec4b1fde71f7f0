package domain

import (
	"errors"
	"math"
	"strings"

	"github.com/google/uuid"
)

// Difficulty scale bounds. Items carry both a band difficulty on this scale
// and the Elo rating it corresponds to.
const (
	MinDifficulty = 1
	MaxDifficulty = 10

	// difficultyBase is the Elo rating of a difficulty 1 item
	difficultyBase = 200
	// difficultyStep is the Elo width of a single difficulty band
	difficultyStep = 200
)

// ItemSource records where a practice item came from
type ItemSource string

// Item sources
const (
	ItemSourceBank        ItemSource = "bank"
	ItemSourceAIGenerated ItemSource = "ai_generated"
)

// Practice item validation errors
var (
	ErrEmptyQuestion     = errors.New("question cannot be empty")
	ErrEmptyAnswer       = errors.New("answer cannot be empty")
	ErrInvalidItemSource = errors.New("invalid item source")
	ErrUnexpectedFlag    = errors.New("only generated items may be flagged")
)

// PracticeItem is a single exercise with a fixed difficulty.
type PracticeItem struct {
	ID               uuid.UUID  `json:"id"`
	Subject          string     `json:"subject"`
	Topic            string     `json:"topic,omitempty"`
	Question         string     `json:"question"`
	Answer           string     `json:"answer"`
	Choices          []string   `json:"choices,omitempty"`
	Tags             []string   `json:"tags,omitempty"`
	Difficulty       int        `json:"difficulty"`
	DifficultyRating int        `json:"difficulty_rating"`
	Source           ItemSource `json:"source"`
	Flagged          bool       `json:"flagged"`
}

// NewGeneratedItem builds an ai_generated item. Generated items are always
// flagged for review.
func NewGeneratedItem(subject, topic, question, answer string, choices, tags []string, difficulty int) (*PracticeItem, error) {
	d := ClampDifficulty(difficulty)
	item := &PracticeItem{
		ID:               uuid.New(),
		Subject:          subject,
		Topic:            topic,
		Question:         strings.TrimSpace(question),
		Answer:           strings.TrimSpace(answer),
		Choices:          choices,
		Tags:             tags,
		Difficulty:       d,
		DifficultyRating: RatingForDifficulty(d),
		Source:           ItemSourceAIGenerated,
		Flagged:          true,
	}

	if err := item.Validate(); err != nil {
		return nil, err
	}
	return item, nil
}

// Validate checks the item's fields.
func (i *PracticeItem) Validate() error {
	if i.ID == uuid.Nil {
		return ErrInvalidID
	}
	if strings.TrimSpace(i.Subject) == "" {
		return ErrEmptySubject
	}
	if strings.TrimSpace(i.Question) == "" {
		return ErrEmptyQuestion
	}
	if strings.TrimSpace(i.Answer) == "" {
		return ErrEmptyAnswer
	}
	if i.Difficulty < MinDifficulty || i.Difficulty > MaxDifficulty {
		return ErrInvalidDifficulty
	}
	switch i.Source {
	case ItemSourceBank:
		if i.Flagged {
			return ErrUnexpectedFlag
		}
	case ItemSourceAIGenerated:
	default:
		return ErrInvalidItemSource
	}
	return nil
}

// ClampDifficulty limits d to the difficulty scale.
func ClampDifficulty(d int) int {
	if d < MinDifficulty {
		return MinDifficulty
	}
	if d > MaxDifficulty {
		return MaxDifficulty
	}
	return d
}

// DifficultyForRating maps an Elo rating onto the 1-10 difficulty scale.
// A default rating of 1000 maps to 5.
func DifficultyForRating(rating int) int {
	d := int(math.Round(float64(rating-difficultyBase)/difficultyStep)) + 1
	return ClampDifficulty(d)
}

// RatingForDifficulty is the Elo rating of an item at difficulty d.
func RatingForDifficulty(d int) int {
	return difficultyBase + (ClampDifficulty(d)-1)*difficultyStep
}
