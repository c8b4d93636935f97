package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/phrazzld/tokensmith/internal/platform/logger"
	"github.com/phrazzld/tokensmith/internal/store"
	"github.com/phrazzld/tokensmith/internal/task"
)

// Defaults for Config.
const (
	DefaultInitialDelay = 10 * time.Second
	DefaultInterval     = 5 * time.Minute
)

// ErrCycleInProgress is returned by RunCycle while another cycle runs.
var ErrCycleInProgress = errors.New("scheduler cycle already in progress")

// State is the lifecycle state of a Scheduler.
type State string

// Scheduler states
const (
	StateStopped State = "stopped"
	StateRunning State = "running"
)

// Config tunes the cycle timing.
type Config struct {
	InitialDelay time.Duration
	Interval     time.Duration
}

// CycleSummary counts what one cycle did with its candidates.
type CycleSummary struct {
	Discovered   int `json:"discovered"`
	Dispatched   int `json:"dispatched"`
	Deduplicated int `json:"deduplicated"`
	Failed       int `json:"failed"`
}

type outcome int

const (
	outcomeDispatched outcome = iota
	outcomeDeduplicated
	outcomeFailed
)

// Scheduler owns the maintenance timer. It only enqueues; jobs run on the
// dispatcher and outlive Stop.
type Scheduler struct {
	jobs        store.JobStore
	enqueuer    task.Enqueuer
	discoverers []Discoverer
	cfg         Config
	logger      *slog.Logger

	cycling atomic.Bool

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a stopped Scheduler. Zero durations in cfg select the defaults.
func New(
	jobs store.JobStore,
	enqueuer task.Enqueuer,
	cfg Config,
	log *slog.Logger,
	discoverers ...Discoverer,
) *Scheduler {
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = DefaultInitialDelay
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		jobs:        jobs,
		enqueuer:    enqueuer,
		discoverers: discoverers,
		cfg:         cfg,
		logger:      log.With(slog.String("component", "scheduler")),
		state:       StateStopped,
	}
}

// State returns the current lifecycle state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start begins the cycle loop. Starting a running scheduler is a no-op.
// The loop ends when ctx is done or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateRunning {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.state = StateRunning
	s.cancel = cancel
	s.done = done

	s.logger.Info("scheduler started",
		slog.Duration("initial_delay", s.cfg.InitialDelay),
		slog.Duration("interval", s.cfg.Interval))
	go s.loop(loopCtx, done)
}

// Stop cancels the timer and waits for the loop and any in-flight cycle to
// return. Jobs already enqueued keep running.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.state == StateStopped {
		s.mu.Unlock()
		return
	}
	cancel, done := s.cancel, s.done
	s.state = StateStopped
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	cancel()
	<-done
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	var cycles sync.WaitGroup
	defer close(done)
	defer cycles.Wait()

	timer := time.NewTimer(s.cfg.InitialDelay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		timer.Reset(s.cfg.Interval)

		cycles.Add(1)
		go func() {
			defer cycles.Done()
			if _, err := s.RunCycle(ctx); errors.Is(err, ErrCycleInProgress) {
				s.logger.Warn("previous cycle still running, skipping tick")
			}
		}()
	}
}

// RunCycle discovers candidates and enqueues one job per candidate that has
// no active job in its dedup group. Per-candidate failures are counted and
// logged, never returned.
func (s *Scheduler) RunCycle(ctx context.Context) (CycleSummary, error) {
	if !s.cycling.CompareAndSwap(false, true) {
		return CycleSummary{}, ErrCycleInProgress
	}
	defer s.cycling.Store(false)

	log := logger.FromContextOrDefault(ctx, s.logger)
	start := time.Now()

	var candidates []Candidate
	for _, d := range s.discoverers {
		found, err := s.discover(ctx, d)
		if err != nil {
			log.Error("discovery failed",
				slog.String("discoverer", d.Name()),
				slog.String("error", err.Error()))
			continue
		}
		candidates = append(candidates, found...)
	}

	summary := CycleSummary{Discovered: len(candidates)}
	for _, c := range candidates {
		if ctx.Err() != nil {
			break
		}
		switch s.dispatch(ctx, c, log) {
		case outcomeDispatched:
			summary.Dispatched++
		case outcomeDeduplicated:
			summary.Deduplicated++
		default:
			summary.Failed++
		}
	}

	log.Info("scheduler cycle completed",
		slog.Int("discovered", summary.Discovered),
		slog.Int("dispatched", summary.Dispatched),
		slog.Int("deduplicated", summary.Deduplicated),
		slog.Int("failed", summary.Failed),
		slog.Duration("duration", time.Since(start)))
	return summary, nil
}

func (s *Scheduler) discover(ctx context.Context, d Discoverer) (found []Candidate, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("discoverer panicked: %v", rec)
		}
	}()
	return d.Discover(ctx)
}

func (s *Scheduler) dispatch(ctx context.Context, c Candidate, log *slog.Logger) (result outcome) {
	log = log.With(
		slog.String("job_type", string(c.Type)),
		slog.String("subject_id", c.SubjectID.String()))

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("candidate dispatch panicked", slog.Any("panic", rec))
			result = outcomeFailed
		}
	}()

	active, err := s.hasActiveJob(ctx, c)
	if err != nil {
		// the storage guard still applies on enqueue
		log.Warn("dedup lookup failed", slog.String("error", err.Error()))
	}
	if active {
		log.Debug("subject already has an active job")
		return outcomeDeduplicated
	}

	job, err := s.enqueuer.Enqueue(ctx, task.EnqueueRequest{
		Type:      c.Type,
		SubjectID: c.SubjectID,
		Input:     c.Input,
	})
	switch {
	case errors.Is(err, store.ErrActiveJobExists):
		log.Debug("enqueue lost the race to another job")
		return outcomeDeduplicated
	case err != nil:
		log.Error("failed to enqueue candidate", slog.String("error", err.Error()))
		return outcomeFailed
	}
	log.Debug("candidate enqueued", slog.String("job_id", job.ID.String()))
	return outcomeDispatched
}

func (s *Scheduler) hasActiveJob(ctx context.Context, c Candidate) (bool, error) {
	jobs, err := s.jobs.ListBySubject(ctx, c.SubjectID)
	if err != nil {
		return false, err
	}
	group := c.Type.DedupGroup()
	for _, j := range jobs {
		if j.Status.IsActive() && slices.Contains(group, j.Type) {
			return true, nil
		}
	}
	return false, nil
}
