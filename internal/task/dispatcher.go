package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/tokensmith/internal/domain"
	"github.com/phrazzld/tokensmith/internal/platform/logger"
	"github.com/phrazzld/tokensmith/internal/store"
)

// ErrDispatcherClosed is returned by Enqueue and Retry after Shutdown.
var ErrDispatcherClosed = errors.New("dispatcher is shut down")

// MessageResetAfterRestart is written on jobs recovered from a dead process.
const MessageResetAfterRestart = "Reset after restart"

// EnqueueRequest describes a new job.
type EnqueueRequest struct {
	Type      domain.JobType
	SubjectID uuid.UUID
	BatchID   *uuid.UUID
	Input     json.RawMessage
}

// JobHook observes a job write made by the dispatcher.
type JobHook func(ctx context.Context, job *domain.Job)

// Enqueuer creates and starts jobs. The scheduler and batch service depend
// on this rather than on *Dispatcher.
type Enqueuer interface {
	Enqueue(ctx context.Context, req EnqueueRequest) (*domain.Job, error)
}

// Dispatcher admits jobs and runs them in the background through the shared
// Limiter and the Runner.
type Dispatcher struct {
	jobs     store.JobStore
	registry *Registry
	runner   *Runner
	limiter  *Limiter
	logger   *slog.Logger

	// base outlives requests; Shutdown cancels it as a last resort.
	base   context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
	runs   map[uuid.UUID]*activeRun
	queued []JobHook
}

// activeRun is a live background Run of one job.
type activeRun struct {
	cancel context.CancelFunc
	done   chan struct{}
}

var _ Enqueuer = (*Dispatcher)(nil)

// NewDispatcher creates a Dispatcher.
func NewDispatcher(
	jobs store.JobStore,
	registry *Registry,
	runner *Runner,
	limiter *Limiter,
	log *slog.Logger,
) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("component", "job_dispatcher"))
	base, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		jobs:     jobs,
		registry: registry,
		runner:   runner,
		limiter:  limiter,
		logger:   log,
		base:     base,
		cancel:   cancel,
		runs:     make(map[uuid.UUID]*activeRun),
	}
}

// OnQueued registers a hook run after a job is created or requeued.
func (d *Dispatcher) OnQueued(h JobHook) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queued = append(d.queued, h)
}

// notifyQueuedLocked runs the queued hooks. d.mu must be held, so hooks must
// not call back into the dispatcher.
func (d *Dispatcher) notifyQueuedLocked(ctx context.Context, job *domain.Job) {
	for _, h := range d.queued {
		h(ctx, job)
	}
}

// Enqueue creates a queued job and starts it in the background. Returns
// store.ErrActiveJobExists if the subject already has an active job in the
// same dedup group.
func (d *Dispatcher) Enqueue(ctx context.Context, req EnqueueRequest) (*domain.Job, error) {
	h, err := d.registry.Lookup(req.Type)
	if err != nil {
		return nil, err
	}

	job, err := domain.NewJob(req.Type, req.SubjectID, req.Input, h.Options.MaxRetries)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	job.BatchID = req.BatchID

	if d.isClosed() {
		return nil, ErrDispatcherClosed
	}
	if err := d.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	log := logger.FromContextOrDefault(ctx, d.logger).With(
		slog.String("job_id", job.ID.String()),
		slog.String("job_type", string(job.Type)))

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		log.Warn("dispatcher shut down after job creation, leaving job queued for recovery")
		return job, nil
	}
	log.Info("job enqueued", slog.String("subject_id", job.SubjectID.String()))
	d.notifyQueuedLocked(ctx, job)
	d.dispatchLocked(job.ID, h)
	return job, nil
}

func (d *Dispatcher) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// dispatchLocked starts a background run. d.mu must be held so that
// Shutdown cannot begin waiting between the closed check and wg.Add.
func (d *Dispatcher) dispatchLocked(jobID uuid.UUID, h Handler) {
	ctx, cancel := context.WithCancel(d.base)
	run := &activeRun{cancel: cancel, done: make(chan struct{})}
	d.runs[jobID] = run

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			cancel()
			d.mu.Lock()
			if d.runs[jobID] == run {
				delete(d.runs, jobID)
			}
			d.mu.Unlock()
			close(run.done)
		}()

		err := d.limiter.Do(ctx, func(ctx context.Context) error {
			_, err := d.runner.Run(ctx, jobID, h.Work, h.Options)
			return err
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			d.logger.Error("background job run failed",
				slog.String("job_id", jobID.String()),
				slog.String("error", err.Error()))
		}
	}()
}

// interrupt cancels the live run of a job, if any.
func (d *Dispatcher) interrupt(jobID uuid.UUID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if run, ok := d.runs[jobID]; ok {
		run.cancel()
	}
}

// awaitRun interrupts the live run of jobID, if any, and waits for it to
// exit. A job never has two runs at once.
func (d *Dispatcher) awaitRun(ctx context.Context, jobID uuid.UUID) error {
	d.mu.Lock()
	run, ok := d.runs[jobID]
	d.mu.Unlock()
	if !ok {
		return nil
	}
	run.cancel()
	select {
	case <-run.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: previous run of job %s is still finishing", domain.ErrNotRetryable, jobID)
	}
}

// Cancel moves a queued or running job to canceled. A terminal job is
// returned unchanged and no hooks run. The job's run is interrupted: its
// attempt context is canceled and a result the work function still
// produces is discarded.
func (d *Dispatcher) Cancel(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	job, err := d.jobs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !job.CanCancel() {
		return job, nil
	}

	message := MessageCanceled
	updated, err := d.jobs.UpdateStatus(ctx, id, domain.JobStatusCanceled, store.StatusUpdate{
		ProgressMessage: &message,
		Expected:        domain.ActiveJobStatuses,
	})
	if errors.Is(err, store.ErrStatusConflict) {
		// it reached a terminal state concurrently
		return d.jobs.GetByID(ctx, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to cancel job: %w", err)
	}

	d.interrupt(id)
	logger.FromContextOrDefault(ctx, d.logger).Info("job canceled", slog.String("job_id", id.String()))
	d.runner.notifyTerminal(ctx, updated)
	return updated, nil
}

// Retry re-queues a failed or canceled job that still has retry budget,
// clears its error, counts the retry and resumes execution.
func (d *Dispatcher) Retry(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	job, err := d.jobs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !job.CanRequeue() {
		return nil, fmt.Errorf("%w: job %s is %s with %d of %d retries used",
			domain.ErrNotRetryable, id, job.Status, job.RetryCount, job.MaxRetries)
	}
	h, err := d.registry.Lookup(job.Type)
	if err != nil {
		return nil, err
	}
	if err := d.awaitRun(ctx, id); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrDispatcherClosed
	}
	if _, ok := d.runs[id]; ok {
		return nil, fmt.Errorf("%w: job %s is being retried concurrently", domain.ErrNotRetryable, id)
	}

	zero, message := 0, "Queued for retry"
	if _, err := d.jobs.UpdateStatus(ctx, id, domain.JobStatusQueued, store.StatusUpdate{
		Progress:        &zero,
		ProgressMessage: &message,
		ClearError:      true,
		Expected:        []domain.JobStatus{domain.JobStatusFailed, domain.JobStatusCanceled},
	}); err != nil {
		if errors.Is(err, store.ErrStatusConflict) {
			return nil, fmt.Errorf("%w: %v", domain.ErrNotRetryable, err)
		}
		return nil, fmt.Errorf("failed to requeue job: %w", err)
	}

	updated, err := d.jobs.IncrementRetry(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to count retry: %w", err)
	}

	logger.FromContextOrDefault(ctx, d.logger).Info("job retried manually",
		slog.String("job_id", id.String()),
		slog.Int("retry_count", updated.RetryCount))

	d.notifyQueuedLocked(ctx, updated)
	d.dispatchLocked(id, h)
	return updated, nil
}

// Status returns the observability projection of a job.
func (d *Dispatcher) Status(ctx context.Context, id uuid.UUID) (domain.JobView, error) {
	job, err := d.jobs.GetByID(ctx, id)
	if err != nil {
		return domain.JobView{}, err
	}
	return job.View(), nil
}

// Recover resets jobs left running by a previous process to queued and
// dispatches every queued job. Jobs of unregistered types are failed.
// Returns the number of jobs dispatched.
func (d *Dispatcher) Recover(ctx context.Context) (int, error) {
	active, err := d.jobs.ListActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list active jobs: %w", err)
	}

	log := logger.FromContextOrDefault(ctx, d.logger)
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0, ErrDispatcherClosed
	}

	dispatched := 0
	for _, job := range active {
		jobLog := log.With(slog.String("job_id", job.ID.String()), slog.String("job_type", string(job.Type)))

		h, err := d.registry.Lookup(job.Type)
		if err != nil {
			message := err.Error()
			failed, updErr := d.jobs.UpdateStatus(ctx, job.ID, domain.JobStatusFailed, store.StatusUpdate{
				Error:    &message,
				Expected: domain.ActiveJobStatuses,
			})
			if updErr != nil {
				jobLog.Error("failed to fail unrecoverable job", slog.String("error", updErr.Error()))
				continue
			}
			jobLog.Error("failed job with unknown type during recovery")
			d.runner.notifyTerminal(ctx, failed)
			continue
		}

		if job.Status == domain.JobStatusRunning {
			message := MessageResetAfterRestart
			reset, err := d.jobs.UpdateStatus(ctx, job.ID, domain.JobStatusQueued, store.StatusUpdate{
				ProgressMessage: &message,
				Expected:        []domain.JobStatus{domain.JobStatusRunning},
			})
			if err != nil {
				jobLog.Error("failed to reset interrupted job", slog.String("error", err.Error()))
				continue
			}
			d.notifyQueuedLocked(ctx, reset)
		}

		d.dispatchLocked(job.ID, h)
		dispatched++
	}

	log.Info("recovered unfinished jobs",
		slog.Int("active_count", len(active)),
		slog.Int("dispatched", dispatched))
	return dispatched, nil
}

// Shutdown stops admitting jobs and waits for background runs to finish.
// When ctx ends first, the remaining runs are interrupted (their jobs stay
// queued or running for Recover) and ctx.Err() is returned.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return ctx.Err()
	}
}
