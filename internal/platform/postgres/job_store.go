package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/tokensmith/internal/domain"
	"github.com/phrazzld/tokensmith/internal/platform/logger"
	"github.com/phrazzld/tokensmith/internal/store"
)

// jobColumns is the column list shared by every job query, in scan order.
const jobColumns = `id, type, status, input, output, progress, progress_message,
	error_message, retry_count, max_retries, subject_id, batch_id,
	created_at, updated_at, started_at, completed_at`

// activeJobConstraint is the partial unique index enforcing one active job
// per subject and dedup group.
const activeJobConstraint = "jobs_active_subject_dedup_idx"

// PostgresJobStore implements the store.JobStore interface
// using a PostgreSQL database as the storage backend.
type PostgresJobStore struct {
	db     store.DBTX
	logger *slog.Logger
	now    func() time.Time
}

// NewPostgresJobStore creates a new PostgreSQL implementation of the JobStore interface.
// If logger is nil, a default logger will be used.
func NewPostgresJobStore(db store.DBTX, logger *slog.Logger) *PostgresJobStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresJobStore{
		db:     db,
		logger: logger.With(slog.String("component", "job_store")),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Ensure PostgresJobStore implements store.JobStore interface
var _ store.JobStore = (*PostgresJobStore)(nil)

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*domain.Job, error) {
	var (
		job       domain.Job
		input     []byte
		output    []byte
		subjectID uuid.NullUUID
		batchID   uuid.NullUUID
		startedAt sql.NullTime
		doneAt    sql.NullTime
		errMsg    sql.NullString
	)
	err := row.Scan(
		&job.ID,
		&job.Type,
		&job.Status,
		&input,
		&output,
		&job.Progress,
		&job.ProgressMessage,
		&errMsg,
		&job.RetryCount,
		&job.MaxRetries,
		&subjectID,
		&batchID,
		&job.CreatedAt,
		&job.UpdatedAt,
		&startedAt,
		&doneAt,
	)
	if err != nil {
		return nil, err
	}

	job.Input = json.RawMessage(input)
	if len(output) > 0 {
		job.Output = json.RawMessage(output)
	}
	job.Error = errMsg.String
	if subjectID.Valid {
		job.SubjectID = subjectID.UUID
	}
	if batchID.Valid {
		id := batchID.UUID
		job.BatchID = &id
	}
	if startedAt.Valid {
		t := startedAt.Time.UTC()
		job.StartedAt = &t
	}
	if doneAt.Valid {
		t := doneAt.Time.UTC()
		job.CompletedAt = &t
	}
	return &job, nil
}

func nullableSubject(id uuid.UUID) uuid.NullUUID {
	return uuid.NullUUID{UUID: id, Valid: id != uuid.Nil}
}

func nullableBatch(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

// Create implements store.JobStore.Create
// Returns store.ErrActiveJobExists if the active-job index rejects the row.
func (s *PostgresJobStore) Create(ctx context.Context, job *domain.Job) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := job.Validate(); err != nil {
		log.Warn("job validation failed during create",
			slog.String("error", err.Error()),
			slog.String("job_id", job.ID.String()))
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO jobs (id, type, status, input, progress, progress_message,
			error_message, retry_count, max_retries, subject_id, dedup_key, batch_id,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := s.db.ExecContext(ctx, query,
		job.ID,
		string(job.Type),
		string(job.Status),
		[]byte(job.Input),
		job.Progress,
		job.ProgressMessage,
		job.Error,
		job.RetryCount,
		job.MaxRetries,
		nullableSubject(job.SubjectID),
		job.Type.DedupKey(),
		nullableBatch(job.BatchID),
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			log.Debug("active job already exists",
				slog.String("subject_id", job.SubjectID.String()),
				slog.String("job_type", string(job.Type)))
			return MapError(err)
		}
		log.Error("failed to create job",
			slog.String("error", err.Error()),
			slog.String("job_id", job.ID.String()))
		return MapError(err)
	}

	log.Debug("job created",
		slog.String("job_id", job.ID.String()),
		slog.String("job_type", string(job.Type)))
	return nil
}

// GetByID implements store.JobStore.GetByID
func (s *PostgresJobStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`

	job, err := scanJob(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrJobNotFound
		}
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to get job",
			slog.String("error", err.Error()),
			slog.String("job_id", id.String()))
		return nil, MapError(err)
	}
	return job, nil
}

// UpdateStatus implements store.JobStore.UpdateStatus
// The whole update is a single statement; a non-empty update.Expected becomes
// part of the WHERE clause.
func (s *PostgresJobStore) UpdateStatus(
	ctx context.Context,
	id uuid.UUID,
	status domain.JobStatus,
	update store.StatusUpdate,
) (*domain.Job, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidJobStatus, status)
	}

	var progress sql.NullInt64
	if update.Progress != nil {
		progress = sql.NullInt64{Int64: int64(*update.Progress), Valid: true}
	}
	var message, errMsg sql.NullString
	if update.ProgressMessage != nil {
		message = sql.NullString{String: *update.ProgressMessage, Valid: true}
	}
	if update.Error != nil {
		errMsg = sql.NullString{String: *update.Error, Valid: true}
	}
	var output []byte
	if update.Output != nil {
		output = update.Output
	}

	args := []any{
		id,
		string(status),
		s.now(),
		progress,
		message,
		errMsg,
		update.ClearError,
		output,
	}

	var expected string
	if len(update.Expected) > 0 {
		placeholders := make([]string, 0, len(update.Expected))
		for _, st := range update.Expected {
			args = append(args, string(st))
			placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
		}
		expected = " AND status IN (" + strings.Join(placeholders, ", ") + ")"
	}

	query := `
		UPDATE jobs SET
			status = $2::text,
			updated_at = $3,
			started_at = CASE WHEN $2::text = 'running' AND started_at IS NULL THEN $3 ELSE started_at END,
			completed_at = CASE WHEN $2::text IN ('succeeded', 'failed', 'canceled') THEN $3 ELSE NULL END,
			progress = COALESCE($4::int, progress),
			progress_message = COALESCE($5::text, progress_message),
			error_message = CASE
				WHEN $6::text IS NOT NULL THEN $6::text
				WHEN $7::bool THEN NULL
				ELSE error_message END,
			output = CASE WHEN $2::text = 'succeeded' THEN COALESCE($8::jsonb, output) ELSE NULL END
		WHERE id = $1` + expected + `
		RETURNING ` + jobColumns

	job, err := scanJob(s.db.QueryRowContext(ctx, query, args...))
	if err == nil {
		return job, nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		current, getErr := s.GetByID(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		return nil, fmt.Errorf("%w: job %s is %s", store.ErrStatusConflict, id, current.Status)
	}
	if IsUniqueViolation(err) {
		return nil, MapError(err)
	}

	log.Error("failed to update job status",
		slog.String("error", err.Error()),
		slog.String("job_id", id.String()),
		slog.String("status", string(status)))
	return nil, MapError(err)
}

// UpdateProgress implements store.JobStore.UpdateProgress
func (s *PostgresJobStore) UpdateProgress(ctx context.Context, id uuid.UUID, progress int, message string) error {
	query := `
		UPDATE jobs
		SET progress = $2, progress_message = $3, updated_at = $4
		WHERE id = $1 AND status = 'running'
	`
	result, err := s.db.ExecContext(ctx, query, id, progress, message, s.now())
	if err != nil {
		return MapError(err)
	}

	if err := CheckRowsAffected(result, store.ErrStatusConflict); err != nil {
		if _, getErr := s.GetByID(ctx, id); getErr != nil {
			return getErr
		}
		return err
	}
	return nil
}

// IncrementRetry implements store.JobStore.IncrementRetry
func (s *PostgresJobStore) IncrementRetry(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	query := `
		UPDATE jobs
		SET retry_count = retry_count + 1, updated_at = $2
		WHERE id = $1 AND retry_count < max_retries
		RETURNING ` + jobColumns

	job, err := scanJob(s.db.QueryRowContext(ctx, query, id, s.now()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if _, getErr := s.GetByID(ctx, id); getErr != nil {
				return nil, getErr
			}
			return nil, domain.ErrRetryBudgetExceeded
		}
		return nil, MapError(err)
	}
	return job, nil
}

// ListActive implements store.JobStore.ListActive
func (s *PostgresJobStore) ListActive(ctx context.Context) ([]*domain.Job, error) {
	query := `SELECT ` + jobColumns + `
		FROM jobs
		WHERE status IN ('queued', 'running')
		ORDER BY created_at ASC`
	return s.list(ctx, query)
}

// ListBySubject implements store.JobStore.ListBySubject
func (s *PostgresJobStore) ListBySubject(ctx context.Context, subjectID uuid.UUID) ([]*domain.Job, error) {
	query := `SELECT ` + jobColumns + `
		FROM jobs
		WHERE subject_id = $1
		ORDER BY created_at DESC, id`
	return s.list(ctx, query, subjectID)
}

// ListRecent implements store.JobStore.ListRecent
func (s *PostgresJobStore) ListRecent(ctx context.Context, limit int) ([]*domain.Job, error) {
	query := `SELECT ` + jobColumns + `
		FROM jobs
		ORDER BY created_at DESC, id
		LIMIT $1`
	return s.list(ctx, query, limit)
}

// MarkBatchReported implements store.JobStore.MarkBatchReported
func (s *PostgresJobStore) MarkBatchReported(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE jobs SET batch_reported = TRUE
		WHERE id = $1 AND batch_reported = FALSE
	`
	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, MapError(err)
	}
	if err := CheckRowsAffected(result, nil); err != nil {
		if _, getErr := s.GetByID(ctx, id); getErr != nil {
			return false, getErr
		}
		return false, nil
	}
	return true, nil
}

func (s *PostgresJobStore) list(ctx context.Context, query string, args ...any) ([]*domain.Job, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query jobs", slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	jobs := []*domain.Job{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			log.Error("failed to scan job row", slog.String("error", err.Error()))
			return nil, store.NewStoreError("job", "list", "failed to scan job row", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("job", "list", "error iterating job rows", err)
	}
	return jobs, nil
}
