package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/phrazzld/tokensmith/internal/api/shared"
	"github.com/phrazzld/tokensmith/internal/domain"
	"github.com/phrazzld/tokensmith/internal/platform/logger"
	"github.com/phrazzld/tokensmith/internal/task"
)

// JobService is the job control surface the API needs. *task.Dispatcher
// implements it.
type JobService interface {
	task.Enqueuer
	Status(ctx context.Context, id uuid.UUID) (domain.JobView, error)
	Cancel(ctx context.Context, id uuid.UUID) (*domain.Job, error)
	Retry(ctx context.Context, id uuid.UUID) (*domain.Job, error)
}

// RecentJobLister lists the newest jobs.
type RecentJobLister interface {
	List(ctx context.Context, limit int) ([]domain.JobView, error)
}

// SubjectJobLister lists the jobs of one subject.
type SubjectJobLister interface {
	ListBySubject(ctx context.Context, subjectID uuid.UUID) ([]*domain.Job, error)
}

// JobHandler handles job status and control requests.
type JobHandler struct {
	jobs     JobService
	recent   RecentJobLister
	subjects SubjectJobLister
	logger   *slog.Logger
}

// NewJobHandler creates a JobHandler.
func NewJobHandler(jobs JobService, recent RecentJobLister, subjects SubjectJobLister, log *slog.Logger) *JobHandler {
	if log == nil {
		log = slog.Default()
	}
	return &JobHandler{
		jobs:     jobs,
		recent:   recent,
		subjects: subjects,
		logger:   log.With(slog.String("component", "job_handler")),
	}
}

// List handles GET /v1/jobs.
func (h *JobHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	views, err := h.recent.List(r.Context(), limit)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list jobs")
		return
	}
	if views == nil {
		views = []domain.JobView{}
	}
	shared.RespondWithJSON(w, r, http.StatusOK, JobListResponse{Jobs: views})
}

// Get handles GET /v1/jobs/{id}.
func (h *JobHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	view, err := h.jobs.Status(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get job")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, view)
}

// Cancel handles POST /v1/jobs/{id}/cancel. Canceling a terminal job returns
// it unchanged.
func (h *JobHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	job, err := h.jobs.Cancel(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to cancel job")
		return
	}

	subject, _ := shared.GetSubject(r.Context())
	logger.FromContextOrDefault(r.Context(), h.logger).Info("job cancel requested",
		slog.String("job_id", id.String()),
		slog.String("operator", subject),
		slog.String("status", string(job.Status)))
	shared.RespondWithJSON(w, r, http.StatusOK, job.View())
}

// Retry handles POST /v1/jobs/{id}/retry.
func (h *JobHandler) Retry(w http.ResponseWriter, r *http.Request) {
	id, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	job, err := h.jobs.Retry(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to retry job")
		return
	}

	subject, _ := shared.GetSubject(r.Context())
	logger.FromContextOrDefault(r.Context(), h.logger).Info("job retry requested",
		slog.String("job_id", id.String()),
		slog.String("operator", subject),
		slog.Int("retry_count", job.RetryCount))
	shared.RespondWithJSON(w, r, http.StatusAccepted, job.View())
}

// ListBySubject handles GET /v1/subjects/{id}/jobs.
func (h *JobHandler) ListBySubject(w http.ResponseWriter, r *http.Request) {
	id, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	jobs, err := h.subjects.ListBySubject(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list jobs")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, JobListResponse{Jobs: jobViews(jobs)})
}
