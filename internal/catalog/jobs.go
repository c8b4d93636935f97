package catalog

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/phrazzld/tokensmith/internal/cache"
	"github.com/phrazzld/tokensmith/internal/domain"
	"github.com/phrazzld/tokensmith/internal/store"
)

// DefaultRecentJobsTTL keeps the recent-jobs listing briefly fresh.
const DefaultRecentJobsTTL = 5 * time.Second

const recentJobsPrefix = "jobs:recent:"

// RecentJobs caches the newest-first job listing shown to operators.
type RecentJobs struct {
	jobs  store.JobStore
	cache *cache.Ephemeral[[]domain.JobView]
	ttl   time.Duration
}

// NewRecentJobs creates a RecentJobs listing.
func NewRecentJobs(jobs store.JobStore, ttl time.Duration) *RecentJobs {
	if ttl <= 0 {
		ttl = DefaultRecentJobsTTL
	}
	return &RecentJobs{
		jobs:  jobs,
		cache: cache.NewEphemeral[[]domain.JobView](ttl),
		ttl:   ttl,
	}
}

// List returns up to limit job views, newest first.
func (r *RecentJobs) List(ctx context.Context, limit int) ([]domain.JobView, error) {
	key := recentJobsPrefix + strconv.Itoa(limit)
	if v, ok := r.cache.Get(key); ok {
		return v, nil
	}

	jobs, err := r.jobs.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent jobs: %w", err)
	}
	views := make([]domain.JobView, len(jobs))
	for i, j := range jobs {
		views[i] = j.View()
	}
	r.cache.Set(key, views, r.ttl)
	return views, nil
}

// Invalidate drops every cached listing.
func (r *RecentJobs) Invalidate() {
	r.cache.DeletePrefix(recentJobsPrefix)
}

// JobQueued drops the cached listings after a job is created or requeued.
// Its signature matches task.JobHook.
func (r *RecentJobs) JobQueued(context.Context, *domain.Job) {
	r.Invalidate()
}
