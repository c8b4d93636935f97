package task

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/tokensmith/internal/domain"
	"github.com/phrazzld/tokensmith/internal/store"
)

// ProgressFunc is handed to work functions for progress reports. It is safe
// to call at any time, including after the attempt has timed out.
type ProgressFunc func(percent int, message string)

// progressReporter serializes the progress writes of one attempt. Once
// closed, reports are dropped, and close waits for a write in flight, so no
// write can land after the runner moves the job on. The store's
// status=running guard covers transitions made by other actors.
type progressReporter struct {
	mu     sync.Mutex
	closed bool
	ctx    context.Context
	jobs   store.JobStore
	jobID  uuid.UUID
	logger *slog.Logger
}

func newProgressReporter(ctx context.Context, jobs store.JobStore, jobID uuid.UUID, logger *slog.Logger) *progressReporter {
	return &progressReporter{
		ctx:    context.WithoutCancel(ctx),
		jobs:   jobs,
		jobID:  jobID,
		logger: logger,
	}
}

func (r *progressReporter) report(percent int, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	err := r.jobs.UpdateProgress(r.ctx, r.jobID, domain.ClampProgress(percent), message)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrStatusConflict):
		r.logger.Debug("dropped progress report for job that is no longer running")
	default:
		r.logger.Warn("failed to record job progress", slog.String("error", err.Error()))
	}
}

func (r *progressReporter) close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
}
