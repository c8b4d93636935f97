package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/tokensmith/internal/domain"
	"github.com/phrazzld/tokensmith/internal/store"
)

// JobStore implements store.JobStore over a mutex-guarded map.
type JobStore struct {
	mu       sync.Mutex
	jobs     map[uuid.UUID]*domain.Job
	reported map[uuid.UUID]bool
	now      func() time.Time

	// CreateFn, when set, runs before the default Create and may reject it.
	CreateFn func(ctx context.Context, job *domain.Job) error
}

var _ store.JobStore = (*JobStore)(nil)

// NewJobStore creates an empty job store.
func NewJobStore() *JobStore {
	return &JobStore{
		jobs:     make(map[uuid.UUID]*domain.Job),
		reported: make(map[uuid.UUID]bool),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Create implements store.JobStore.
func (s *JobStore) Create(ctx context.Context, job *domain.Job) error {
	if s.CreateFn != nil {
		if err := s.CreateFn(ctx, job); err != nil {
			return err
		}
	}
	if err := job.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.ID]; exists {
		return store.ErrDuplicate
	}
	if job.SubjectID != uuid.Nil && job.Status.IsActive() {
		for _, other := range s.jobs {
			if other.SubjectID == job.SubjectID &&
				other.Type.DedupKey() == job.Type.DedupKey() &&
				other.Status.IsActive() {
				return store.ErrActiveJobExists
			}
		}
	}

	s.jobs[job.ID] = job.Clone()
	return nil
}

// GetByID implements store.JobStore.
func (s *JobStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, store.ErrJobNotFound
	}
	return job.Clone(), nil
}

// UpdateStatus implements store.JobStore.
func (s *JobStore) UpdateStatus(
	ctx context.Context,
	id uuid.UUID,
	status domain.JobStatus,
	update store.StatusUpdate,
) (*domain.Job, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidJobStatus, status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, store.ErrJobNotFound
	}
	if len(update.Expected) > 0 && !store.ContainsStatus(update.Expected, job.Status) {
		return nil, fmt.Errorf("%w: job %s is %s", store.ErrStatusConflict, id, job.Status)
	}

	// a requeue must not collide with another active job for the subject
	if status.IsActive() && !job.Status.IsActive() && job.SubjectID != uuid.Nil {
		for otherID, other := range s.jobs {
			if otherID != id && other.SubjectID == job.SubjectID &&
				other.Type.DedupKey() == job.Type.DedupKey() && other.Status.IsActive() {
				return nil, store.ErrActiveJobExists
			}
		}
	}

	now := s.now()
	job.Status = status
	job.UpdatedAt = now
	if status == domain.JobStatusRunning && job.StartedAt == nil {
		job.StartedAt = &now
	}
	if status.IsTerminal() {
		job.CompletedAt = &now
	} else {
		job.CompletedAt = nil
	}
	if update.Progress != nil {
		job.Progress = *update.Progress
	}
	if update.ProgressMessage != nil {
		job.ProgressMessage = *update.ProgressMessage
	}
	if update.ClearError {
		job.Error = ""
	}
	if update.Error != nil {
		job.Error = *update.Error
	}
	if status == domain.JobStatusSucceeded {
		if update.Output != nil {
			job.Output = append(json.RawMessage(nil), update.Output...)
		}
	} else {
		job.Output = nil
	}

	return job.Clone(), nil
}

// UpdateProgress implements store.JobStore.
func (s *JobStore) UpdateProgress(ctx context.Context, id uuid.UUID, progress int, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return store.ErrJobNotFound
	}
	if job.Status != domain.JobStatusRunning {
		return fmt.Errorf("%w: job %s is %s", store.ErrStatusConflict, id, job.Status)
	}
	job.Progress = progress
	job.ProgressMessage = message
	job.UpdatedAt = s.now()
	return nil
}

// IncrementRetry implements store.JobStore.
func (s *JobStore) IncrementRetry(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, store.ErrJobNotFound
	}
	if job.RetryCount >= job.MaxRetries {
		return nil, domain.ErrRetryBudgetExceeded
	}
	job.RetryCount++
	job.UpdatedAt = s.now()
	return job.Clone(), nil
}

// ListActive implements store.JobStore.
func (s *JobStore) ListActive(ctx context.Context) ([]*domain.Job, error) {
	jobs := s.filter(func(j *domain.Job) bool { return j.Status.IsActive() })
	sort.SliceStable(jobs, func(a, b int) bool { return jobs[a].CreatedAt.Before(jobs[b].CreatedAt) })
	return jobs, nil
}

// ListBySubject implements store.JobStore.
func (s *JobStore) ListBySubject(ctx context.Context, subjectID uuid.UUID) ([]*domain.Job, error) {
	jobs := s.filter(func(j *domain.Job) bool { return j.SubjectID == subjectID })
	sortNewestFirst(jobs)
	return jobs, nil
}

// ListRecent implements store.JobStore.
func (s *JobStore) ListRecent(ctx context.Context, limit int) ([]*domain.Job, error) {
	jobs := s.filter(func(*domain.Job) bool { return true })
	sortNewestFirst(jobs)
	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

// MarkBatchReported implements store.JobStore.
func (s *JobStore) MarkBatchReported(ctx context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[id]; !ok {
		return false, store.ErrJobNotFound
	}
	if s.reported[id] {
		return false, nil
	}
	s.reported[id] = true
	return true, nil
}

func (s *JobStore) filter(keep func(*domain.Job) bool) []*domain.Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*domain.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		if keep(job) {
			out = append(out, job.Clone())
		}
	}
	return out
}

func sortNewestFirst(jobs []*domain.Job) {
	sort.SliceStable(jobs, func(a, b int) bool {
		if jobs[a].CreatedAt.Equal(jobs[b].CreatedAt) {
			return jobs[a].ID.String() < jobs[b].ID.String()
		}
		return jobs[a].CreatedAt.After(jobs[b].CreatedAt)
	})
}
