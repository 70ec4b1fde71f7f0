package notify

import (
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-practice/internal/domain"
)

// MessageType classifies a push message.
type MessageType string

// Message types. Every non-terminal transition is a status message.
const (
	MessageStatus    MessageType = "status"
	MessageCompleted MessageType = "completed"
	MessageFailed    MessageType = "failed"
	MessageCancelled MessageType = "cancelled"
)

// Message is a single push frame describing a job snapshot.
type Message struct {
	Type            MessageType      `json:"type"`
	JobID           uuid.UUID        `json:"job_id"`
	Status          domain.JobStatus `json:"status"`
	ProgressPercent int              `json:"progress_percent"`
	ProgressMessage string           `json:"progress_message"`
	Result          domain.JobResult `json:"result,omitempty"`
	Error           string           `json:"error,omitempty"`
	Timestamp       time.Time        `json:"timestamp"`
}

// MessageFromJob builds the message for a committed snapshot.
func MessageFromJob(job *domain.Job) Message {
	msg := Message{
		Type:            MessageStatus,
		JobID:           job.ID,
		Status:          job.Status,
		ProgressPercent: job.ProgressPercent,
		ProgressMessage: job.ProgressMessage,
		Timestamp:       job.UpdatedAt,
	}

	switch job.Status {
	case domain.JobStatusCompleted:
		msg.Type = MessageCompleted
		msg.Result = job.Result
	case domain.JobStatusFailed:
		msg.Type = MessageFailed
		msg.Error = job.ErrorMessage
	case domain.JobStatusCancelled:
		msg.Type = MessageCancelled
	}
	return msg
}

// IsTerminal reports whether no message can follow this one.
func (m Message) IsTerminal() bool {
	return m.Status.IsTerminal()
}

// supersedes reports whether m is strictly newer than prev. Status rank
// never goes down; within processing, progress never goes down.
func (m Message) supersedes(prev Message) bool {
	if m.Status.Rank() != prev.Status.Rank() {
		return m.Status.Rank() > prev.Status.Rank()
	}
	if m.IsTerminal() {
		return false
	}
	if m.ProgressPercent != prev.ProgressPercent {
		return m.ProgressPercent > prev.ProgressPercent
	}
	return m.ProgressMessage != prev.ProgressMessage && !m.Timestamp.Before(prev.Timestamp)
}
