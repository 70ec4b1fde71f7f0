package domain

import (
	"time"

	"github.com/google/uuid"
)

// DefaultSkillRating is assumed for any learner and subject without a stored rating.
const DefaultSkillRating = 1000

// SkillRating is a learner's Elo rating in one subject.
type SkillRating struct {
	LearnerID uuid.UUID `json:"learner_id"`
	Subject   string    `json:"subject"`
	Rating    int       `json:"rating"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSkillRating returns the default rating for a learner and subject.
func NewSkillRating(learnerID uuid.UUID, subject string) *SkillRating {
	return &SkillRating{
		LearnerID: learnerID,
		Subject:   subject,
		Rating:    DefaultSkillRating,
		UpdatedAt: time.Now().UTC(),
	}
}
