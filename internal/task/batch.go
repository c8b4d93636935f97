package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/tokensmith/internal/domain"
	"github.com/phrazzld/tokensmith/internal/platform/logger"
	"github.com/phrazzld/tokensmith/internal/store"
)

// BatchItemInput is the input of a batch_item job: one image to import.
type BatchItemInput struct {
	ImageKey string `json:"imageKey"`
	Name     string `json:"name,omitempty"`
}

// BatchService creates batches of import jobs and folds their outcomes into
// the batch counters.
type BatchService struct {
	batches  store.BatchStore
	jobs     store.JobStore
	enqueuer Enqueuer
	logger   *slog.Logger
}

// NewBatchService creates a BatchService. Register OnTerminal with the
// Runner so that outcomes are counted.
func NewBatchService(batches store.BatchStore, jobs store.JobStore, enqueuer Enqueuer, log *slog.Logger) *BatchService {
	if log == nil {
		log = slog.Default()
	}
	return &BatchService{
		batches:  batches,
		jobs:     jobs,
		enqueuer: enqueuer,
		logger:   log.With(slog.String("component", "batch_service")),
	}
}

// CreateBatch creates a running batch and enqueues one batch_item job per
// item. Items that fail to enqueue are counted as failed immediately so the
// batch can still complete.
func (s *BatchService) CreateBatch(ctx context.Context, name string, items []BatchItemInput) (*domain.Batch, error) {
	batch, err := domain.NewBatch(name, len(items))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	for i, item := range items {
		if item.ImageKey == "" {
			return nil, fmt.Errorf("%w: item %d has no image key", domain.ErrValidation, i)
		}
	}
	if err := s.batches.CreateBatch(ctx, batch); err != nil {
		return nil, fmt.Errorf("failed to create batch: %w", err)
	}

	log := logger.FromContextOrDefault(ctx, s.logger).With(slog.String("batch_id", batch.ID.String()))
	batchID := batch.ID
	rejected := 0
	for _, item := range items {
		input, err := json.Marshal(item)
		if err == nil {
			_, err = s.enqueuer.Enqueue(ctx, EnqueueRequest{
				Type:    domain.JobTypeBatchItem,
				BatchID: &batchID,
				Input:   input,
			})
		}
		if err != nil {
			rejected++
			log.Error("failed to enqueue batch item",
				slog.String("image_key", item.ImageKey),
				slog.String("error", err.Error()))
		}
	}

	if rejected > 0 {
		if batch, err = s.batches.UpdateBatchProgress(ctx, batchID, 0, rejected); err != nil {
			return nil, fmt.Errorf("failed to record rejected batch items: %w", err)
		}
	}

	log.Info("batch created",
		slog.Int("total_items", batch.TotalItems),
		slog.Int("rejected", rejected))
	return batch, nil
}

// OnTerminal counts a terminal batch job exactly once: succeeded as
// completed, failed or canceled as failed.
func (s *BatchService) OnTerminal(ctx context.Context, job *domain.Job) {
	if job.BatchID == nil || !job.Status.IsTerminal() {
		return
	}
	log := logger.FromContextOrDefault(ctx, s.logger).With(
		slog.String("batch_id", job.BatchID.String()),
		slog.String("job_id", job.ID.String()))

	first, err := s.jobs.MarkBatchReported(ctx, job.ID)
	if err != nil {
		log.Error("failed to mark batch job reported", slog.String("error", err.Error()))
		return
	}
	if !first {
		log.Debug("batch job outcome already counted")
		return
	}

	completed, failed := 0, 1
	if job.Status == domain.JobStatusSucceeded {
		completed, failed = 1, 0
	}

	batch, err := s.batches.UpdateBatchProgress(ctx, *job.BatchID, completed, failed)
	if err != nil {
		if errors.Is(err, domain.ErrBatchOverflow) {
			log.Error("batch progress overflow, dropping outcome", slog.String("error", err.Error()))
			return
		}
		log.Error("failed to update batch progress", slog.String("error", err.Error()))
		return
	}

	log.Debug("batch progress updated",
		slog.String("status", string(batch.Status)),
		slog.Int("completed", batch.CompletedItems),
		slog.Int("failed", batch.FailedItems))
}

// Get returns a batch by id.
func (s *BatchService) Get(ctx context.Context, id uuid.UUID) (*domain.Batch, error) {
	return s.batches.GetBatch(ctx, id)
}
