package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJob(t *testing.T) {
	t.Parallel()

	subjectID := uuid.New()

	t.Run("starts queued with zero progress", func(t *testing.T) {
		t.Parallel()

		job, err := NewJob(JobTypeAnalysis, subjectID, json.RawMessage(`{"style_id":"x"}`), 3)
		require.NoError(t, err)

		assert.NotEqual(t, uuid.Nil, job.ID)
		assert.Equal(t, JobStatusQueued, job.Status)
		assert.Equal(t, 0, job.Progress)
		assert.Equal(t, 0, job.RetryCount)
		assert.Equal(t, 3, job.MaxRetries)
		assert.Equal(t, subjectID, job.SubjectID)
		assert.Nil(t, job.Output)
		assert.Nil(t, job.StartedAt)
		assert.Nil(t, job.CompletedAt)
	})

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()

		job, err := NewJob(JobTypeNameRepair, uuid.Nil, nil, 0)
		require.NoError(t, err)
		assert.Equal(t, DefaultMaxRetries, job.MaxRetries)
		assert.JSONEq(t, `{}`, string(job.Input))
	})

	t.Run("rejects unknown type", func(t *testing.T) {
		t.Parallel()

		_, err := NewJob(JobType("bogus"), subjectID, nil, 3)
		assert.ErrorIs(t, err, ErrInvalidJobType)
	})

	t.Run("rejects negative budget", func(t *testing.T) {
		t.Parallel()

		_, err := NewJob(JobTypeAnalysis, subjectID, nil, -1)
		assert.ErrorIs(t, err, ErrInvalidMaxRetries)
	})

	t.Run("rejects invalid input", func(t *testing.T) {
		t.Parallel()

		_, err := NewJob(JobTypeAnalysis, subjectID, json.RawMessage(`{"broken`), 3)
		assert.ErrorIs(t, err, ErrInvalidJobInput)
	})
}

func TestJob_Validate(t *testing.T) {
	t.Parallel()

	base := func() *Job {
		job, err := NewJob(JobTypeAnalysis, uuid.New(), nil, 3)
		require.NoError(t, err)
		return job
	}

	tests := []struct {
		name    string
		mutate  func(j *Job)
		wantErr error
	}{
		{"valid", func(j *Job) {}, nil},
		{"retry count above budget", func(j *Job) { j.RetryCount = 4 }, ErrRetryBudgetExceeded},
		{"progress above 100", func(j *Job) { j.Progress = 101 }, ErrInvalidProgress},
		{"output on running job", func(j *Job) {
			j.Status = JobStatusRunning
			j.Output = json.RawMessage(`{}`)
		}, ErrOutputWithoutSuccess},
		{"output on succeeded job", func(j *Job) {
			j.Status = JobStatusSucceeded
			j.Output = json.RawMessage(`{}`)
		}, nil},
		{"unknown status", func(j *Job) { j.Status = "paused" }, ErrInvalidJobStatus},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			job := base()
			tc.mutate(job)
			err := job.Validate()
			if tc.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tc.wantErr)
			}
		})
	}
}

func TestJob_View(t *testing.T) {
	t.Parallel()

	job, err := NewJob(JobTypeAssetGeneration, uuid.New(), nil, 3)
	require.NoError(t, err)

	tests := []struct {
		status     JobStatus
		retryCount int
		canRetry   bool
		canCancel  bool
	}{
		{JobStatusQueued, 0, false, true},
		{JobStatusRunning, 1, false, true},
		{JobStatusSucceeded, 0, false, false},
		{JobStatusFailed, 1, true, false},
		{JobStatusFailed, 3, false, false},
		{JobStatusCanceled, 0, false, false},
	}

	for _, tc := range tests {
		job.Status = tc.status
		job.RetryCount = tc.retryCount
		view := job.View()

		assert.Equal(t, tc.status, view.Status)
		assert.Equal(t, tc.canRetry, view.CanRetry, "canRetry for %s/%d", tc.status, tc.retryCount)
		assert.Equal(t, tc.canCancel, view.CanCancel, "canCancel for %s", tc.status)
		require.NotNil(t, view.SubjectID)
		assert.Equal(t, job.SubjectID, *view.SubjectID)
	}

	job.SubjectID = uuid.Nil
	assert.Nil(t, job.View().SubjectID)
}

func TestJob_CanRequeue(t *testing.T) {
	t.Parallel()

	job := &Job{MaxRetries: 2}

	job.Status, job.RetryCount = JobStatusCanceled, 0
	assert.True(t, job.CanRequeue())

	job.Status, job.RetryCount = JobStatusFailed, 1
	assert.True(t, job.CanRequeue())

	job.Status, job.RetryCount = JobStatusFailed, 2
	assert.False(t, job.CanRequeue())

	job.Status, job.RetryCount = JobStatusRunning, 0
	assert.False(t, job.CanRequeue())
}

func TestBackoffDelay(t *testing.T) {
	t.Parallel()

	base := 100 * time.Millisecond

	assert.Equal(t, 100*time.Millisecond, BackoffDelay(base, 1))
	assert.Equal(t, 200*time.Millisecond, BackoffDelay(base, 2))
	assert.Equal(t, 400*time.Millisecond, BackoffDelay(base, 3))

	// strictly increasing for k >= 1
	prev := BackoffDelay(base, 1)
	for k := 2; k <= 12; k++ {
		next := BackoffDelay(base, k)
		assert.Greater(t, next, prev, "delay before attempt %d", k+1)
		prev = next
	}
}

func TestClampProgress(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, ClampProgress(-5))
	assert.Equal(t, 42, ClampProgress(42))
	assert.Equal(t, 99, ClampProgress(99))
	assert.Equal(t, 99, ClampProgress(100))
	assert.Equal(t, 99, ClampProgress(250))
}

func TestCanTransition(t *testing.T) {
	t.Parallel()

	allowed := map[[2]JobStatus]bool{
		{JobStatusQueued, JobStatusRunning}:     true,
		{JobStatusQueued, JobStatusCanceled}:    true,
		{JobStatusRunning, JobStatusSucceeded}:  true,
		{JobStatusRunning, JobStatusFailed}:     true,
		{JobStatusRunning, JobStatusQueued}:     true,
		{JobStatusRunning, JobStatusCanceled}:   true,
		{JobStatusFailed, JobStatusQueued}:      true,
		{JobStatusCanceled, JobStatusQueued}:    true,
	}

	statuses := []JobStatus{
		JobStatusQueued, JobStatusRunning, JobStatusSucceeded, JobStatusFailed, JobStatusCanceled,
	}
	for _, from := range statuses {
		for _, to := range statuses {
			assert.Equal(t, allowed[[2]JobStatus{from, to}], CanTransition(from, to), "%s -> %s", from, to)
		}
	}

	// nothing leaves succeeded
	for _, to := range statuses {
		assert.False(t, CanTransition(JobStatusSucceeded, to))
	}
}

func TestJobType_DedupGroup(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []JobType{JobTypeNameRepair}, JobTypeNameRepair.DedupGroup())
	assert.ElementsMatch(t,
		[]JobType{JobTypeAssetGeneration, JobTypePreviewGeneration},
		JobTypeAssetGeneration.DedupGroup())
}

func TestJob_Clone(t *testing.T) {
	t.Parallel()

	batchID := uuid.New()
	now := time.Now()
	job := &Job{
		ID:        uuid.New(),
		Input:     json.RawMessage(`{"a":1}`),
		Output:    json.RawMessage(`{"b":2}`),
		BatchID:   &batchID,
		StartedAt: &now,
	}

	clone := job.Clone()
	clone.Input[2] = 'z'
	*clone.BatchID = uuid.New()

	assert.Equal(t, `{"a":1}`, string(job.Input))
	assert.Equal(t, batchID, *job.BatchID)
}
