package postgres_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/phrazzld/tokensmith/internal/domain"
	"github.com/phrazzld/tokensmith/internal/platform/postgres"
	"github.com/phrazzld/tokensmith/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var jobColumnNames = []string{
	"id", "type", "status", "input", "output", "progress", "progress_message",
	"error_message", "retry_count", "max_retries", "subject_id", "batch_id",
	"created_at", "updated_at", "started_at", "completed_at",
}

func TestPostgresJobStore_CreateMapsActiveConflict(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	job, err := domain.NewJob(domain.JobTypeNameRepair, uuid.New(), nil, 3)
	require.NoError(t, err)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO jobs")).
		WillReturnError(newPgError("23505", "jobs_active_subject_dedup_idx"))

	s := postgres.NewPostgresJobStore(db, nil)
	err = s.Create(context.Background(), job)
	assert.ErrorIs(t, err, store.ErrActiveJobExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresJobStore_CreateRejectsInvalidJob(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	job := &domain.Job{ID: uuid.New(), Type: "bogus", Status: domain.JobStatusQueued, MaxRetries: 1}
	err = postgres.NewPostgresJobStore(db, nil).Create(context.Background(), job)
	assert.ErrorIs(t, err, store.ErrInvalidEntity)
	assert.NoError(t, mock.ExpectationsWereMet(), "no query for invalid jobs")
}

func TestPostgresJobStore_GetByID(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	id := uuid.New()
	subject := uuid.New()
	now := time.Now().UTC().Truncate(time.Second)

	mock.ExpectQuery(regexp.QuoteMeta("FROM jobs WHERE id = $1")).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(jobColumnNames).AddRow(
			id.String(), "analysis", "succeeded", []byte(`{"a":1}`), []byte(`{"ok":true}`), 100, "done",
			nil, 1, 3, subject.String(), nil,
			now, now, now, now,
		))

	job, err := postgres.NewPostgresJobStore(db, nil).GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, domain.JobTypeAnalysis, job.Type)
	assert.Equal(t, domain.JobStatusSucceeded, job.Status)
	assert.Equal(t, subject, job.SubjectID)
	assert.Nil(t, job.BatchID)
	assert.JSONEq(t, `{"ok":true}`, string(job.Output))
	assert.Equal(t, 1, job.RetryCount)
	require.NotNil(t, job.CompletedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresJobStore_GetByIDNotFound(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(regexp.QuoteMeta("FROM jobs WHERE id = $1")).
		WillReturnRows(sqlmock.NewRows(jobColumnNames))

	_, err = postgres.NewPostgresJobStore(db, nil).GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, store.ErrJobNotFound)
}

func TestPostgresJobStore_UpdateStatusConflict(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	id := uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE jobs SET")).
		WillReturnRows(sqlmock.NewRows(jobColumnNames))
	mock.ExpectQuery(regexp.QuoteMeta("FROM jobs WHERE id = $1")).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(jobColumnNames).AddRow(
			id.String(), "analysis", "canceled", []byte(`{}`), nil, 10, "",
			nil, 0, 3, nil, nil,
			now, now, nil, now,
		))

	_, err = postgres.NewPostgresJobStore(db, nil).UpdateStatus(context.Background(), id,
		domain.JobStatusSucceeded, store.StatusUpdate{
			Expected: []domain.JobStatus{domain.JobStatusRunning},
		})
	assert.ErrorIs(t, err, store.ErrStatusConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresJobStore_UpdateProgressNotRunning(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	id := uuid.New()
	now := time.Now().UTC()

	mock.ExpectExec(regexp.QuoteMeta("status = 'running'")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("FROM jobs WHERE id = $1")).
		WillReturnRows(sqlmock.NewRows(jobColumnNames).AddRow(
			id.String(), "analysis", "canceled", []byte(`{}`), nil, 10, "",
			nil, 0, 3, nil, nil,
			now, now, nil, now,
		))

	err = postgres.NewPostgresJobStore(db, nil).UpdateProgress(context.Background(), id, 50, "late")
	assert.ErrorIs(t, err, store.ErrStatusConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresJobStore_MarkBatchReported(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	id := uuid.New()
	now := time.Now().UTC()

	mock.ExpectExec(regexp.QuoteMeta("SET batch_reported = TRUE")).
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("SET batch_reported = TRUE")).
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("FROM jobs WHERE id = $1")).
		WillReturnRows(sqlmock.NewRows(jobColumnNames).AddRow(
			id.String(), "batch_item", "succeeded", []byte(`{}`), nil, 100, "",
			nil, 0, 3, nil, nil,
			now, now, now, now,
		))

	s := postgres.NewPostgresJobStore(db, nil)
	first, err := s.MarkBatchReported(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, first)

	second, err := s.MarkBatchReported(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, second)
	assert.NoError(t, mock.ExpectationsWereMet())
}
