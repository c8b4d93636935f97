package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/tokensmith/internal/domain"
	"github.com/phrazzld/tokensmith/internal/store"
)

// BatchStore implements store.BatchStore.
type BatchStore struct {
	mu      sync.Mutex
	batches map[uuid.UUID]*domain.Batch
}

var _ store.BatchStore = (*BatchStore)(nil)

// NewBatchStore creates an empty batch store.
func NewBatchStore() *BatchStore {
	return &BatchStore{batches: make(map[uuid.UUID]*domain.Batch)}
}

// CreateBatch implements store.BatchStore.
func (s *BatchStore) CreateBatch(ctx context.Context, batch *domain.Batch) error {
	if err := batch.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.batches[batch.ID]; exists {
		return store.ErrDuplicate
	}
	c := *batch
	s.batches[batch.ID] = &c
	return nil
}

// GetBatch implements store.BatchStore.
func (s *BatchStore) GetBatch(ctx context.Context, id uuid.UUID) (*domain.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch, ok := s.batches[id]
	if !ok {
		return nil, store.ErrBatchNotFound
	}
	c := *batch
	return &c, nil
}

// UpdateBatchProgress implements store.BatchStore.
func (s *BatchStore) UpdateBatchProgress(
	ctx context.Context,
	id uuid.UUID,
	completedDelta, failedDelta int,
) (*domain.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch, ok := s.batches[id]
	if !ok {
		return nil, store.ErrBatchNotFound
	}

	next := *batch
	if err := next.ApplyProgress(completedDelta, failedDelta, time.Now().UTC()); err != nil {
		return nil, err
	}
	*batch = next
	return &next, nil
}
