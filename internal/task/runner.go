package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/tokensmith/internal/domain"
	"github.com/phrazzld/tokensmith/internal/platform/logger"
	"github.com/phrazzld/tokensmith/internal/store"
)

// ErrAttemptTimeout is recorded when an attempt outlives its timeout.
var ErrAttemptTimeout = errors.New("timed out")

// EmptyOutput is stored for a successful attempt that returned no output, so
// that a succeeded job always carries one.
var EmptyOutput = json.RawMessage(`null`)

// Progress messages written by the runner.
const (
	MessageStarting  = "Starting..."
	MessageCompleted = "Completed"
	MessageCanceled  = "Canceled"
)

// WorkFunc performs one attempt of a job. ctx is canceled when the attempt
// times out; work functions should honour it but are not required to, since
// an abandoned attempt's result is discarded.
type WorkFunc func(ctx context.Context, input json.RawMessage, report ProgressFunc) (json.RawMessage, error)

// RunOptions tunes the execution of one job type.
type RunOptions struct {
	// MaxRetries is the attempt budget given to new jobs. The job record's
	// own MaxRetries governs a run.
	MaxRetries int
	// Timeout bounds a single attempt. Zero means no timeout.
	Timeout time.Duration
	// RetryDelay is the base of the exponential backoff between attempts.
	RetryDelay time.Duration
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// TerminalHook observes every terminal transition of a job.
type TerminalHook func(ctx context.Context, job *domain.Job)

// SleepContext is the production SleepFunc.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Runner drives one job through attempts, retries and backoff until it is
// terminal. Work failures are recorded on the job; only store failures and
// context cancellation are returned as errors.
type Runner struct {
	jobs   store.JobStore
	sleep  SleepFunc
	logger *slog.Logger

	mu    sync.RWMutex
	hooks []TerminalHook
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithSleep replaces the backoff sleep, mainly for tests.
func WithSleep(sleep SleepFunc) RunnerOption {
	return func(r *Runner) { r.sleep = sleep }
}

// WithTerminalHook registers a hook at construction.
func WithTerminalHook(h TerminalHook) RunnerOption {
	return func(r *Runner) { r.hooks = append(r.hooks, h) }
}

// NewRunner creates a Runner over jobs.
func NewRunner(jobs store.JobStore, log *slog.Logger, opts ...RunnerOption) *Runner {
	if log == nil {
		log = slog.Default()
	}
	r := &Runner{
		jobs:   jobs,
		sleep:  SleepContext,
		logger: log.With(slog.String("component", "job_runner")),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// OnTerminal registers a hook run after every terminal transition.
func (r *Runner) OnTerminal(h TerminalHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = append(r.hooks, h)
}

// notifyTerminal runs every hook, isolating panics.
func (r *Runner) notifyTerminal(ctx context.Context, job *domain.Job) {
	r.mu.RLock()
	hooks := append([]TerminalHook(nil), r.hooks...)
	r.mu.RUnlock()

	for _, h := range hooks {
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					r.logger.Error("terminal hook panicked",
						slog.String("job_id", job.ID.String()),
						slog.Any("panic", rec))
				}
			}()
			h(ctx, job)
		}()
	}
}

// Run executes the job with the given id until it is terminal, canceled, or
// ctx is done. A job that is not queued when Run starts is returned
// unchanged. If ctx ends mid-attempt the job is left as it is: running for
// recovery, or canceled when Cancel interrupted the run.
func (r *Runner) Run(ctx context.Context, jobID uuid.UUID, work WorkFunc, opts RunOptions) (*domain.Job, error) {
	log := logger.FromContextOrDefault(ctx, r.logger).With(slog.String("job_id", jobID.String()))

	job, err := r.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to load job: %w", err)
	}
	log = log.With(slog.String("job_type", string(job.Type)))

	for {
		if job.Status != domain.JobStatusQueued {
			return job, nil
		}

		zero, starting := 0, MessageStarting
		job, err = r.jobs.UpdateStatus(ctx, jobID, domain.JobStatusRunning, store.StatusUpdate{
			Progress:        &zero,
			ProgressMessage: &starting,
			Expected:        []domain.JobStatus{domain.JobStatusQueued},
		})
		if err != nil {
			return r.settle(ctx, jobID, err)
		}
		log.Info("job attempt started", slog.Int("retry_count", job.RetryCount))

		output, attemptErr := r.attempt(ctx, job, work, opts.Timeout, log)
		if ctx.Err() != nil {
			log.Warn("job run interrupted", slog.String("error", ctx.Err().Error()))
			return job, ctx.Err()
		}

		if attemptErr == nil {
			if len(output) == 0 {
				output = EmptyOutput
			}
			hundred, done := 100, MessageCompleted
			job, err = r.jobs.UpdateStatus(ctx, jobID, domain.JobStatusSucceeded, store.StatusUpdate{
				Progress:        &hundred,
				ProgressMessage: &done,
				Output:          output,
				ClearError:      true,
				Expected:        []domain.JobStatus{domain.JobStatusRunning},
			})
			if err != nil {
				return r.settle(ctx, jobID, err)
			}
			log.Info("job succeeded")
			r.notifyTerminal(ctx, job)
			return job, nil
		}

		log.Warn("job attempt failed", slog.String("error", attemptErr.Error()))

		counted, err := r.jobs.IncrementRetry(ctx, jobID)
		switch {
		case errors.Is(err, domain.ErrRetryBudgetExceeded):
			counted = job
		case err != nil:
			return nil, fmt.Errorf("failed to count retry: %w", err)
		}

		message := attemptErr.Error()
		if counted.RetryCount < counted.MaxRetries {
			delay := domain.BackoffDelay(opts.RetryDelay, counted.RetryCount)
			retrying := fmt.Sprintf("Retrying in %s (attempt %d of %d)", delay, counted.RetryCount+1, counted.MaxRetries)
			job, err = r.jobs.UpdateStatus(ctx, jobID, domain.JobStatusQueued, store.StatusUpdate{
				ProgressMessage: &retrying,
				Error:           &message,
				Expected:        []domain.JobStatus{domain.JobStatusRunning},
			})
			if err != nil {
				return r.settle(ctx, jobID, err)
			}

			if err := r.sleep(ctx, delay); err != nil {
				return job, err
			}
			// observe cancellation that happened during the backoff
			job, err = r.jobs.GetByID(ctx, jobID)
			if err != nil {
				return nil, fmt.Errorf("failed to reload job: %w", err)
			}
			continue
		}

		job, err = r.jobs.UpdateStatus(ctx, jobID, domain.JobStatusFailed, store.StatusUpdate{
			Error:    &message,
			Expected: []domain.JobStatus{domain.JobStatusRunning},
		})
		if err != nil {
			return r.settle(ctx, jobID, err)
		}
		log.Error("job failed permanently",
			slog.Int("retry_count", job.RetryCount),
			slog.String("error", message))
		r.notifyTerminal(ctx, job)
		return job, nil
	}
}

// settle handles a failed guarded transition. A status conflict means another
// actor (usually Cancel) moved the job; the current record is returned.
func (r *Runner) settle(ctx context.Context, jobID uuid.UUID, err error) (*domain.Job, error) {
	if !errors.Is(err, store.ErrStatusConflict) {
		return nil, fmt.Errorf("failed to update job status: %w", err)
	}
	job, getErr := r.jobs.GetByID(ctx, jobID)
	if getErr != nil {
		return nil, fmt.Errorf("failed to reload job: %w", getErr)
	}
	return job, nil
}

type attemptResult struct {
	output json.RawMessage
	err    error
}

// attempt races work against the timeout. The work goroutine writes into a
// buffered channel so an abandoned attempt never blocks.
func (r *Runner) attempt(
	ctx context.Context,
	job *domain.Job,
	work WorkFunc,
	timeout time.Duration,
	log *slog.Logger,
) (json.RawMessage, error) {
	reporter := newProgressReporter(ctx, r.jobs, job.ID, log)
	defer reporter.close()

	var (
		attemptCtx context.Context
		cancel     context.CancelFunc
	)
	if timeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		attemptCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	results := make(chan attemptResult, 1)
	input := append(json.RawMessage(nil), job.Input...)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				results <- attemptResult{err: fmt.Errorf("%w: %v", ErrWorkPanicked, rec)}
			}
		}()
		out, err := work(attemptCtx, input, reporter.report)
		results <- attemptResult{output: out, err: err}
	}()

	select {
	case res := <-results:
		return res.output, res.err
	case <-attemptCtx.Done():
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w after %s", ErrAttemptTimeout, timeout)
	}
}
