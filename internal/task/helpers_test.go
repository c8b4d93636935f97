package task

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/tokensmith/internal/domain"
	"github.com/phrazzld/tokensmith/internal/platform/logger"
	"github.com/phrazzld/tokensmith/internal/store/memory"
	"github.com/stretchr/testify/require"
)

func testLogger(t *testing.T) *slog.Logger {
	t.Helper()
	l, _ := logger.GetTestLogger(t)
	return l
}

// recordingSleep records requested delays and returns immediately. onSleep,
// when set, runs before returning.
type recordingSleep struct {
	mu      sync.Mutex
	delays  []time.Duration
	onSleep func(ctx context.Context)
}

func (s *recordingSleep) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	if s.onSleep != nil {
		s.onSleep(ctx)
	}
	return ctx.Err()
}

func (s *recordingSleep) Delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}

// hookRecorder collects terminal hook invocations.
type hookRecorder struct {
	mu   sync.Mutex
	jobs []*domain.Job
}

func (h *hookRecorder) Hook(_ context.Context, job *domain.Job) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.jobs = append(h.jobs, job.Clone())
}

func (h *hookRecorder) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.jobs)
}

func createJob(t *testing.T, jobs *memory.JobStore, maxRetries int) *domain.Job {
	t.Helper()
	job, err := domain.NewJob(domain.JobTypeAnalysis, uuid.New(), json.RawMessage(`{"n":1}`), maxRetries)
	require.NoError(t, err)
	require.NoError(t, jobs.Create(context.Background(), job))
	return job
}

func waitForStatus(t *testing.T, jobs *memory.JobStore, id uuid.UUID, status domain.JobStatus) *domain.Job {
	t.Helper()
	var job *domain.Job
	require.Eventually(t, func() bool {
		var err error
		job, err = jobs.GetByID(context.Background(), id)
		return err == nil && job.Status == status
	}, 2*time.Second, 2*time.Millisecond, "job %s never reached %s", id, status)
	return job
}

func succeed(output string) WorkFunc {
	return func(context.Context, json.RawMessage, ProgressFunc) (json.RawMessage, error) {
		return json.RawMessage(output), nil
	}
}
