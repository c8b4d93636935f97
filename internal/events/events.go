package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/tokensmith/internal/domain"
)

// TopicJobTerminal receives one JobTerminal per terminal transition.
const TopicJobTerminal = "jobs.terminal"

// JobTerminal is published when a job succeeds, fails or is canceled.
type JobTerminal struct {
	JobID      uuid.UUID        `json:"job_id"`
	Type       domain.JobType   `json:"type"`
	Status     domain.JobStatus `json:"status"`
	SubjectID  *uuid.UUID       `json:"subject_id,omitempty"`
	BatchID    *uuid.UUID       `json:"batch_id,omitempty"`
	Error      string           `json:"error,omitempty"`
	RetryCount int              `json:"retry_count"`
	OccurredAt time.Time        `json:"occurred_at"`
}

// NewJobTerminal builds the event for a terminal job.
func NewJobTerminal(job *domain.Job) JobTerminal {
	ev := JobTerminal{
		JobID:      job.ID,
		Type:       job.Type,
		Status:     job.Status,
		BatchID:    job.BatchID,
		Error:      job.Error,
		RetryCount: job.RetryCount,
		OccurredAt: job.UpdatedAt,
	}
	if job.SubjectID != uuid.Nil {
		id := job.SubjectID
		ev.SubjectID = &id
	}
	return ev
}

// DecodeJobTerminal parses a message payload.
func DecodeJobTerminal(payload []byte) (JobTerminal, error) {
	var ev JobTerminal
	if err := json.Unmarshal(payload, &ev); err != nil {
		return ev, fmt.Errorf("failed to decode job terminal event: %w", err)
	}
	return ev, nil
}
