package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the lifecycle state of a job
type JobStatus string

// Possible job status values
const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCanceled  JobStatus = "canceled"
)

// IsTerminal reports whether no transition is defined out of the status.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusSucceeded || s == JobStatusFailed || s == JobStatusCanceled
}

// IsActive reports whether the job still occupies its (subject, type) slot.
func (s JobStatus) IsActive() bool {
	return s == JobStatusQueued || s == JobStatusRunning
}

// Valid reports whether s is one of the known statuses.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusQueued, JobStatusRunning, JobStatusSucceeded, JobStatusFailed, JobStatusCanceled:
		return true
	}
	return false
}

// ActiveJobStatuses lists the statuses covered by the one-active-job-per-subject rule.
var ActiveJobStatuses = []JobStatus{JobStatusQueued, JobStatusRunning}

// JobType identifies which work function applies to a job
type JobType string

// Job type values
const (
	JobTypeNameRepair        JobType = "name_repair"
	JobTypeAssetGeneration   JobType = "asset_generation"
	JobTypeAnalysis          JobType = "analysis"
	JobTypePreviewGeneration JobType = "preview_generation"
	JobTypeBatchItem         JobType = "batch_item"
)

// Valid reports whether t is one of the known job types.
func (t JobType) Valid() bool {
	switch t {
	case JobTypeNameRepair, JobTypeAssetGeneration, JobTypeAnalysis,
		JobTypePreviewGeneration, JobTypeBatchItem:
		return true
	}
	return false
}

// DedupGroup returns the job types that conflict with t for the same subject.
// A subject with an active job of any type in the group must not receive a
// new job of type t.
func (t JobType) DedupGroup() []JobType {
	switch t {
	case JobTypeAssetGeneration, JobTypePreviewGeneration:
		return []JobType{JobTypeAssetGeneration, JobTypePreviewGeneration}
	default:
		return []JobType{t}
	}
}

// DedupKey names the dedup group of t. Storage enforces at most one active
// job per (subject, dedup key).
func (t JobType) DedupKey() string {
	switch t {
	case JobTypeAssetGeneration, JobTypePreviewGeneration:
		return "assets"
	default:
		return string(t)
	}
}

// DefaultMaxRetries is the retry budget used when none is supplied.
const DefaultMaxRetries = 3

// Job validation errors
var (
	ErrEmptyJobID           = errors.New("job ID cannot be empty")
	ErrInvalidJobType       = errors.New("invalid job type")
	ErrInvalidJobStatus     = errors.New("invalid job status")
	ErrInvalidMaxRetries    = errors.New("max retries must be at least 1")
	ErrInvalidJobInput      = errors.New("job input must be valid JSON")
	ErrRetryBudgetExceeded  = errors.New("retry count exceeds max retries")
	ErrInvalidProgress      = errors.New("progress must be between 0 and 100")
	ErrOutputWithoutSuccess = errors.New("output is only allowed on succeeded jobs")
)

// Job is a persisted, retryable, cancelable unit of asynchronous work.
// Input is immutable once the job is created.
type Job struct {
	ID              uuid.UUID       `json:"id"`
	Type            JobType         `json:"type"`
	Status          JobStatus       `json:"status"`
	Input           json.RawMessage `json:"input"`
	Output          json.RawMessage `json:"output,omitempty"`
	Progress        int             `json:"progress"`
	ProgressMessage string          `json:"progress_message"`
	Error           string          `json:"error,omitempty"`
	RetryCount      int             `json:"retry_count"`
	MaxRetries      int             `json:"max_retries"`
	SubjectID       uuid.UUID       `json:"subject_id"`
	BatchID         *uuid.UUID      `json:"batch_id,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	StartedAt       *time.Time      `json:"started_at,omitempty"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
}

// NewJob creates a queued job with zero progress and an unused retry budget.
// A nil input is stored as an empty JSON object.
func NewJob(jobType JobType, subjectID uuid.UUID, input json.RawMessage, maxRetries int) (*Job, error) {
	if len(input) == 0 {
		input = json.RawMessage(`{}`)
	}
	if maxRetries == 0 {
		maxRetries = DefaultMaxRetries
	}

	now := time.Now().UTC()
	job := &Job{
		ID:         uuid.New(),
		Type:       jobType,
		Status:     JobStatusQueued,
		Input:      input,
		MaxRetries: maxRetries,
		SubjectID:  subjectID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := job.Validate(); err != nil {
		return nil, err
	}
	return job, nil
}

// Validate checks the invariants a stored job must satisfy.
func (j *Job) Validate() error {
	if j.ID == uuid.Nil {
		return ErrEmptyJobID
	}
	if !j.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidJobType, j.Type)
	}
	if !j.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidJobStatus, j.Status)
	}
	if j.MaxRetries < 1 {
		return ErrInvalidMaxRetries
	}
	if j.RetryCount < 0 || j.RetryCount > j.MaxRetries {
		return ErrRetryBudgetExceeded
	}
	if j.Progress < 0 || j.Progress > 100 {
		return ErrInvalidProgress
	}
	if !json.Valid(j.Input) {
		return ErrInvalidJobInput
	}
	if len(j.Output) > 0 && j.Status != JobStatusSucceeded {
		return ErrOutputWithoutSuccess
	}
	return nil
}

// CanCancel reports whether a cancel request would change the job.
func (j *Job) CanCancel() bool {
	return j.Status.IsActive()
}

// CanRetry is the operator-facing retry flag: only failed jobs with budget left.
func (j *Job) CanRetry() bool {
	return j.Status == JobStatusFailed && j.RetryCount < j.MaxRetries
}

// CanRequeue reports whether a manual retry is permitted. Canceled jobs may
// be retried as well as failed ones, within the same budget.
func (j *Job) CanRequeue() bool {
	return (j.Status == JobStatusFailed || j.Status == JobStatusCanceled) &&
		j.RetryCount < j.MaxRetries
}

// HasBudget reports whether a failed attempt may be followed by another one.
func (j *Job) HasBudget() bool {
	return j.RetryCount < j.MaxRetries
}

// BackoffDelay returns the delay before the next attempt given the retry
// count after the most recent failure: base * 2^(retryCount-1).
func BackoffDelay(base time.Duration, retryCount int) time.Duration {
	if retryCount < 1 {
		return base
	}
	// Cap the shift so absurd budgets cannot overflow.
	shift := retryCount - 1
	if shift > 30 {
		shift = 30
	}
	return base * time.Duration(1<<uint(shift))
}

// ClampProgress bounds a progress report from a running work function.
// 100 is reserved for the succeeded transition.
func ClampProgress(percent int) int {
	if percent < 0 {
		return 0
	}
	if percent > 99 {
		return 99
	}
	return percent
}

// CanTransition reports whether the state machine allows from -> to.
func CanTransition(from, to JobStatus) bool {
	switch from {
	case JobStatusQueued:
		return to == JobStatusRunning || to == JobStatusCanceled
	case JobStatusRunning:
		return to == JobStatusSucceeded || to == JobStatusFailed ||
			to == JobStatusQueued || to == JobStatusCanceled
	case JobStatusFailed, JobStatusCanceled:
		// manual retry re-enters the machine at queued
		return to == JobStatusQueued
	}
	return false
}

// JobView is the status/progress projection exposed to operators and UIs.
type JobView struct {
	ID              uuid.UUID       `json:"id"`
	Type            JobType         `json:"type"`
	Status          JobStatus       `json:"status"`
	Progress        int             `json:"progress"`
	ProgressMessage string          `json:"progress_message"`
	Error           string          `json:"error,omitempty"`
	Output          json.RawMessage `json:"output,omitempty"`
	RetryCount      int             `json:"retry_count"`
	MaxRetries      int             `json:"max_retries"`
	SubjectID       *uuid.UUID      `json:"subject_id,omitempty"`
	BatchID         *uuid.UUID      `json:"batch_id,omitempty"`
	CanRetry        bool            `json:"can_retry"`
	CanCancel       bool            `json:"can_cancel"`
	CreatedAt       time.Time       `json:"created_at"`
	StartedAt       *time.Time      `json:"started_at,omitempty"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
}

// View derives the projection purely from stored fields.
func (j *Job) View() JobView {
	v := JobView{
		ID:              j.ID,
		Type:            j.Type,
		Status:          j.Status,
		Progress:        j.Progress,
		ProgressMessage: j.ProgressMessage,
		Error:           j.Error,
		Output:          j.Output,
		RetryCount:      j.RetryCount,
		MaxRetries:      j.MaxRetries,
		BatchID:         j.BatchID,
		CanRetry:        j.CanRetry(),
		CanCancel:       j.CanCancel(),
		CreatedAt:       j.CreatedAt,
		StartedAt:       j.StartedAt,
		CompletedAt:     j.CompletedAt,
	}
	if j.SubjectID != uuid.Nil {
		id := j.SubjectID
		v.SubjectID = &id
	}
	return v
}

// Clone returns a deep copy so callers can hold a snapshot.
func (j *Job) Clone() *Job {
	c := *j
	c.Input = append(json.RawMessage(nil), j.Input...)
	if j.Output != nil {
		c.Output = append(json.RawMessage(nil), j.Output...)
	}
	if j.BatchID != nil {
		id := *j.BatchID
		c.BatchID = &id
	}
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}
