package domain

import (
	"time"

	"github.com/google/uuid"
)

// GenerationAudit records a result batch that contains generated items.
// JobID is nil for synchronous requests.
type GenerationAudit struct {
	ID             uuid.UUID   `json:"id"`
	JobID          *uuid.UUID  `json:"job_id,omitempty"`
	LearnerID      uuid.UUID   `json:"learner_id"`
	Subject        string      `json:"subject"`
	BankCount      int         `json:"bank_count"`
	GeneratedCount int         `json:"generated_count"`
	Composition    Composition `json:"composition"`
	CreatedAt      time.Time   `json:"created_at"`
}

// NewGenerationAudit builds an audit record from a practice result.
func NewGenerationAudit(jobID *uuid.UUID, learnerID uuid.UUID, subject string, result *PracticeGenerationResult) *GenerationAudit {
	return &GenerationAudit{
		ID:             uuid.New(),
		JobID:          jobID,
		LearnerID:      learnerID,
		Subject:        subject,
		BankCount:      result.BankCount,
		GeneratedCount: result.GeneratedCount,
		Composition:    result.Composition,
		CreatedAt:      time.Now().UTC(),
	}
}
