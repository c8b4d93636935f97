package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBatch(t *testing.T) {
	t.Parallel()

	batch, err := NewBatch("spring import", 3)
	require.NoError(t, err)
	assert.Equal(t, BatchStatusRunning, batch.Status)
	assert.Equal(t, 0, batch.CompletedItems)
	assert.Equal(t, 0, batch.FailedItems)
	assert.Nil(t, batch.CompletedAt)

	_, err = NewBatch("empty", 0)
	assert.ErrorIs(t, err, ErrInvalidBatchTotal)
}

func TestDeriveBatchStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		total, completed, failed int
		want                     BatchStatus
	}{
		{3, 0, 0, BatchStatusRunning},
		{3, 2, 0, BatchStatusRunning},
		{3, 3, 0, BatchStatusSucceeded},
		{3, 1, 2, BatchStatusSucceeded},
		{3, 0, 3, BatchStatusFailed},
		{1, 0, 1, BatchStatusFailed},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, DeriveBatchStatus(tc.total, tc.completed, tc.failed),
			"total=%d completed=%d failed=%d", tc.total, tc.completed, tc.failed)
	}
}

func TestBatch_ApplyProgress(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("accumulates until terminal", func(t *testing.T) {
		t.Parallel()

		batch, err := NewBatch("b", 3)
		require.NoError(t, err)

		require.NoError(t, batch.ApplyProgress(1, 0, now))
		assert.Equal(t, BatchStatusRunning, batch.Status)

		require.NoError(t, batch.ApplyProgress(0, 1, now))
		assert.Equal(t, BatchStatusRunning, batch.Status)

		require.NoError(t, batch.ApplyProgress(1, 0, now))
		assert.Equal(t, BatchStatusSucceeded, batch.Status)
		require.NotNil(t, batch.CompletedAt)
		assert.Equal(t, now, *batch.CompletedAt)
	})

	t.Run("all failed", func(t *testing.T) {
		t.Parallel()

		batch, err := NewBatch("b", 2)
		require.NoError(t, err)
		require.NoError(t, batch.ApplyProgress(0, 2, now))
		assert.Equal(t, BatchStatusFailed, batch.Status)
	})

	t.Run("overflow leaves batch unchanged", func(t *testing.T) {
		t.Parallel()

		batch, err := NewBatch("b", 2)
		require.NoError(t, err)
		require.NoError(t, batch.ApplyProgress(2, 0, now))

		err = batch.ApplyProgress(1, 0, now)
		assert.ErrorIs(t, err, ErrBatchOverflow)
		assert.Equal(t, 2, batch.CompletedItems)
		assert.Equal(t, BatchStatusSucceeded, batch.Status)
	})

	t.Run("negative delta", func(t *testing.T) {
		t.Parallel()

		batch, err := NewBatch("b", 2)
		require.NoError(t, err)
		assert.ErrorIs(t, batch.ApplyProgress(-1, 0, now), ErrNegativeBatchDelta)
	})

	t.Run("zero delta on terminal batch does not regress", func(t *testing.T) {
		t.Parallel()

		batch, err := NewBatch("b", 1)
		require.NoError(t, err)
		require.NoError(t, batch.ApplyProgress(1, 0, now))
		completedAt := *batch.CompletedAt

		require.NoError(t, batch.ApplyProgress(0, 0, now.Add(time.Hour)))
		assert.Equal(t, BatchStatusSucceeded, batch.Status)
		assert.Equal(t, completedAt, *batch.CompletedAt)
	})
}
