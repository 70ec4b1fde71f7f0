package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-practice/internal/domain"
)

// AssignPracticeRequest is the payload of both practice assignment endpoints.
// webhook_url is ignored by the synchronous endpoint.
type AssignPracticeRequest struct {
	LearnerID  uuid.UUID `json:"learner_id"  validate:"required"`
	Subject    string    `json:"subject"     validate:"required,max=200"`
	NumItems   int       `json:"num_items"   validate:"required,min=1,max=50"`
	Topic      string    `json:"topic"       validate:"max=200"`
	GoalTags   []string  `json:"goal_tags"   validate:"max=20,dive,max=100"`
	WebhookURL string    `json:"webhook_url" validate:"omitempty,url,startswith=http"`
}

// Params converts the request to job params.
func (r AssignPracticeRequest) Params() *domain.PracticeGenerationParams {
	return &domain.PracticeGenerationParams{
		LearnerID: r.LearnerID,
		Subject:   r.Subject,
		NumItems:  r.NumItems,
		Topic:     r.Topic,
		GoalTags:  r.GoalTags,
	}
}

// AssignAsyncResponse is returned with 202 Accepted once a job is queued.
type AssignAsyncResponse struct {
	JobID        uuid.UUID        `json:"job_id"`
	Status       domain.JobStatus `json:"status"`
	StatusURL    string           `json:"status_url"`
	WebSocketURL string           `json:"websocket_url"`
}

// JobResponse is the public view of a job.
type JobResponse struct {
	JobID           uuid.UUID        `json:"job_id"`
	JobType         domain.JobType   `json:"job_type"`
	Status          domain.JobStatus `json:"status"`
	ProgressPercent int              `json:"progress_percent"`
	ProgressMessage string           `json:"progress_message"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
	Result          domain.JobResult `json:"result,omitempty"`
	Error           string           `json:"error,omitempty"`
}

// JobListResponse wraps a page of jobs.
type JobListResponse struct {
	Jobs   []JobResponse `json:"jobs"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

// CompletePracticeRequest records one practice attempt.
type CompletePracticeRequest struct {
	LearnerID   uuid.UUID `json:"learner_id"   validate:"required"`
	Subject     string    `json:"subject"      validate:"required,max=200"`
	ItemRating  int       `json:"item_rating"  validate:"required,gt=0"`
	Performance *float64  `json:"performance"  validate:"required,gte=0,lte=1"`
}

func jobToResponse(job *domain.Job) JobResponse {
	return JobResponse{
		JobID:           job.ID,
		JobType:         job.Type,
		Status:          job.Status,
		ProgressPercent: job.ProgressPercent,
		ProgressMessage: job.ProgressMessage,
		CreatedAt:       job.CreatedAt,
		UpdatedAt:       job.UpdatedAt,
		Result:          job.Result,
		Error:           job.ErrorMessage,
	}
}
