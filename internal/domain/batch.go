package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// BatchStatus is derived from a batch's counters and never set directly.
type BatchStatus string

// Possible batch status values
const (
	BatchStatusRunning   BatchStatus = "running"
	BatchStatusSucceeded BatchStatus = "succeeded"
	BatchStatusFailed    BatchStatus = "failed"
)

// IsTerminal reports whether the batch has accounted for every item.
func (s BatchStatus) IsTerminal() bool {
	return s == BatchStatusSucceeded || s == BatchStatusFailed
}

// Batch validation errors
var (
	ErrEmptyBatchID       = errors.New("batch ID cannot be empty")
	ErrInvalidBatchTotal  = errors.New("batch must contain at least one item")
	ErrNegativeBatchDelta = errors.New("batch progress deltas cannot be negative")
	ErrBatchOverflow      = errors.New("batch progress exceeds total items")
)

// Batch groups jobs created together, e.g. a bulk import.
type Batch struct {
	ID             uuid.UUID   `json:"id"`
	Name           string      `json:"name"`
	TotalItems     int         `json:"total_items"`
	CompletedItems int         `json:"completed_items"`
	FailedItems    int         `json:"failed_items"`
	Status         BatchStatus `json:"status"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
	CompletedAt    *time.Time  `json:"completed_at,omitempty"`
}

// NewBatch creates a running batch with zero completed and failed items.
func NewBatch(name string, totalItems int) (*Batch, error) {
	if totalItems < 1 {
		return nil, ErrInvalidBatchTotal
	}
	now := time.Now().UTC()
	return &Batch{
		ID:         uuid.New(),
		Name:       name,
		TotalItems: totalItems,
		Status:     BatchStatusRunning,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// DeriveBatchStatus computes the batch status from its counters.
func DeriveBatchStatus(total, completed, failed int) BatchStatus {
	if completed+failed < total {
		return BatchStatusRunning
	}
	if failed == total {
		return BatchStatusFailed
	}
	return BatchStatusSucceeded
}

// ApplyProgress adds the deltas and re-derives the status. It is the only
// mutation path after creation. The batch is left untouched on error.
func (b *Batch) ApplyProgress(completedDelta, failedDelta int, now time.Time) error {
	if completedDelta < 0 || failedDelta < 0 {
		return ErrNegativeBatchDelta
	}
	completed := b.CompletedItems + completedDelta
	failed := b.FailedItems + failedDelta
	if completed+failed > b.TotalItems {
		return fmt.Errorf("%w: %d+%d > %d", ErrBatchOverflow, completed, failed, b.TotalItems)
	}

	b.CompletedItems = completed
	b.FailedItems = failed
	b.UpdatedAt = now

	// counters only grow, so a terminal status can never regress
	status := DeriveBatchStatus(b.TotalItems, completed, failed)
	if status.IsTerminal() && !b.Status.IsTerminal() {
		b.CompletedAt = &now
	}
	b.Status = status
	return nil
}

// Validate checks the counter invariant.
func (b *Batch) Validate() error {
	if b.ID == uuid.Nil {
		return ErrEmptyBatchID
	}
	if b.TotalItems < 1 {
		return ErrInvalidBatchTotal
	}
	if b.CompletedItems < 0 || b.FailedItems < 0 {
		return ErrNegativeBatchDelta
	}
	if b.CompletedItems+b.FailedItems > b.TotalItems {
		return ErrBatchOverflow
	}
	return nil
}
