package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/tokensmith/internal/domain"
	"github.com/phrazzld/tokensmith/internal/platform/logger"
	"github.com/phrazzld/tokensmith/internal/store"
)

const batchColumns = `id, name, total_items, completed_items, failed_items, status,
	created_at, updated_at, completed_at`

// PostgresBatchStore implements the store.BatchStore interface.
// Progress updates lock the batch row inside a transaction, so it needs the
// pool rather than a DBTX.
type PostgresBatchStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresBatchStore creates a new PostgreSQL implementation of the BatchStore interface.
func NewPostgresBatchStore(db *sql.DB, logger *slog.Logger) *PostgresBatchStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresBatchStore{
		db:     db,
		logger: logger.With(slog.String("component", "batch_store")),
	}
}

var _ store.BatchStore = (*PostgresBatchStore)(nil)

func scanBatch(row rowScanner) (*domain.Batch, error) {
	var (
		batch  domain.Batch
		doneAt sql.NullTime
	)
	err := row.Scan(
		&batch.ID,
		&batch.Name,
		&batch.TotalItems,
		&batch.CompletedItems,
		&batch.FailedItems,
		&batch.Status,
		&batch.CreatedAt,
		&batch.UpdatedAt,
		&doneAt,
	)
	if err != nil {
		return nil, err
	}
	if doneAt.Valid {
		t := doneAt.Time.UTC()
		batch.CompletedAt = &t
	}
	return &batch, nil
}

// CreateBatch implements store.BatchStore.CreateBatch
func (s *PostgresBatchStore) CreateBatch(ctx context.Context, batch *domain.Batch) error {
	if err := batch.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO batches (id, name, total_items, completed_items, failed_items, status,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.ExecContext(ctx, query,
		batch.ID,
		batch.Name,
		batch.TotalItems,
		batch.CompletedItems,
		batch.FailedItems,
		string(batch.Status),
		batch.CreatedAt,
		batch.UpdatedAt,
	)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to create batch",
			slog.String("error", err.Error()),
			slog.String("batch_id", batch.ID.String()))
		return MapError(err)
	}
	return nil
}

// GetBatch implements store.BatchStore.GetBatch
func (s *PostgresBatchStore) GetBatch(ctx context.Context, id uuid.UUID) (*domain.Batch, error) {
	query := `SELECT ` + batchColumns + ` FROM batches WHERE id = $1`
	batch, err := scanBatch(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrBatchNotFound
		}
		return nil, MapError(err)
	}
	return batch, nil
}

// UpdateBatchProgress implements store.BatchStore.UpdateBatchProgress
// The row is locked with SELECT ... FOR UPDATE and the counters are applied
// by domain.Batch.ApplyProgress, so concurrent hooks serialize on the row.
func (s *PostgresBatchStore) UpdateBatchProgress(
	ctx context.Context,
	id uuid.UUID,
	completedDelta, failedDelta int,
) (*domain.Batch, error) {
	var updated *domain.Batch

	err := store.RunInTransaction(ctx, s.db, "batch", "update_progress", func(ctx context.Context, tx *sql.Tx) error {
		query := `SELECT ` + batchColumns + ` FROM batches WHERE id = $1 FOR UPDATE`
		batch, err := scanBatch(tx.QueryRowContext(ctx, query, id))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return store.ErrBatchNotFound
			}
			return MapError(err)
		}

		if err := batch.ApplyProgress(completedDelta, failedDelta, time.Now().UTC()); err != nil {
			return err
		}

		update := `
			UPDATE batches
			SET completed_items = $2, failed_items = $3, status = $4,
				updated_at = $5, completed_at = $6
			WHERE id = $1
		`
		var completedAt sql.NullTime
		if batch.CompletedAt != nil {
			completedAt = sql.NullTime{Time: *batch.CompletedAt, Valid: true}
		}
		if _, err := tx.ExecContext(ctx, update,
			batch.ID,
			batch.CompletedItems,
			batch.FailedItems,
			string(batch.Status),
			batch.UpdatedAt,
			completedAt,
		); err != nil {
			return MapError(err)
		}

		updated = batch
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
