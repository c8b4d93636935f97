package store

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/phrazzld/tokensmith/internal/domain"
)

// StatusUpdate carries the optional fields written alongside a status change.
// Nil pointers leave the stored value untouched.
type StatusUpdate struct {
	Progress        *int
	ProgressMessage *string
	// Output is written only when non-nil. Stores clear the output on any
	// non-succeeded status so that output exists iff the job succeeded.
	Output json.RawMessage
	Error  *string
	// ClearError resets the stored error (used when a job is re-queued by hand).
	ClearError bool
	// Expected turns the update into a compare-and-set: when non-empty the
	// update applies only if the current status is one of these, otherwise
	// ErrStatusConflict is returned.
	Expected []domain.JobStatus
}

// JobStore defines the interface for job data persistence.
// Every method is an atomic single-row operation.
type JobStore interface {
	// Create saves a new job.
	// Returns ErrActiveJobExists if the subject already has a queued or
	// running job of the same type.
	Create(ctx context.Context, job *domain.Job) error

	// GetByID retrieves a job by its unique ID.
	// Returns ErrJobNotFound if the job does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error)

	// UpdateStatus moves a job to status and writes the fields in update.
	// startedAt is set on the first transition to running and completedAt on
	// every terminal transition. Returns the updated job.
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.JobStatus, update StatusUpdate) (*domain.Job, error)

	// UpdateProgress writes progress fields only while the job is running.
	// Returns ErrStatusConflict otherwise.
	UpdateProgress(ctx context.Context, id uuid.UUID, progress int, message string) error

	// IncrementRetry adds one to the retry count without exceeding the budget.
	IncrementRetry(ctx context.Context, id uuid.UUID) (*domain.Job, error)

	// ListActive returns queued and running jobs, oldest first.
	ListActive(ctx context.Context) ([]*domain.Job, error)

	// ListBySubject returns every job concerning a subject, newest first.
	ListBySubject(ctx context.Context, subjectID uuid.UUID) ([]*domain.Job, error)

	// ListRecent returns up to limit jobs, newest first.
	ListRecent(ctx context.Context, limit int) ([]*domain.Job, error)

	// MarkBatchReported flips the job's batch-reported flag and reports
	// whether this call was the one that flipped it.
	MarkBatchReported(ctx context.Context, id uuid.UUID) (bool, error)
}

// BatchStore defines the interface for batch persistence.
type BatchStore interface {
	// CreateBatch saves a new batch.
	CreateBatch(ctx context.Context, batch *domain.Batch) error

	// GetBatch retrieves a batch by ID.
	// Returns ErrBatchNotFound if the batch does not exist.
	GetBatch(ctx context.Context, id uuid.UUID) (*domain.Batch, error)

	// UpdateBatchProgress atomically applies the deltas and re-derives the
	// batch status. Returns domain.ErrBatchOverflow if the counters would
	// exceed the total.
	UpdateBatchProgress(ctx context.Context, id uuid.UUID, completedDelta, failedDelta int) (*domain.Batch, error)
}

// ContainsStatus reports whether status is in statuses.
func ContainsStatus(statuses []domain.JobStatus, status domain.JobStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}
