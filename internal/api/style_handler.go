package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/phrazzld/tokensmith/internal/api/shared"
	"github.com/phrazzld/tokensmith/internal/domain"
	"github.com/phrazzld/tokensmith/internal/platform/logger"
	"github.com/phrazzld/tokensmith/internal/task"
)

// StyleCatalog is the cached style read path. *catalog.Catalog implements it.
type StyleCatalog interface {
	ListStyles(ctx context.Context, limit int) ([]*domain.Style, error)
	GetStyle(ctx context.Context, id uuid.UUID) (*domain.Style, error)
}

// StyleHandler serves styles and enqueues style jobs.
type StyleHandler struct {
	catalog StyleCatalog
	jobs    task.Enqueuer
	logger  *slog.Logger
}

// NewStyleHandler creates a StyleHandler.
func NewStyleHandler(catalog StyleCatalog, jobs task.Enqueuer, log *slog.Logger) *StyleHandler {
	if log == nil {
		log = slog.Default()
	}
	return &StyleHandler{
		catalog: catalog,
		jobs:    jobs,
		logger:  log.With(slog.String("component", "style_handler")),
	}
}

// List handles GET /v1/styles.
func (h *StyleHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	styles, err := h.catalog.ListStyles(r.Context(), limit)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list styles")
		return
	}
	if styles == nil {
		styles = []*domain.Style{}
	}
	shared.RespondWithJSON(w, r, http.StatusOK, StyleListResponse{Styles: styles})
}

// Get handles GET /v1/styles/{id}.
func (h *StyleHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	style, err := h.catalog.GetStyle(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get style")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, style)
}

// Analyze handles POST /v1/styles/{id}/analyze.
func (h *StyleHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	h.enqueue(w, r, domain.JobTypeAnalysis, nil)
}

// CreateJob handles POST /v1/styles/{id}/jobs, which enqueues any
// style-scoped job type.
func (h *StyleHandler) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req StyleJobRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil {
		if errors.Is(err, shared.ErrEmptyBody) {
			HandleAPIError(w, r, err, "")
			return
		}
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
			return
		}
		HandleAPIError(w, r, err, "")
		return
	}
	h.enqueue(w, r, req.Type, req.Kinds)
}

func (h *StyleHandler) enqueue(w http.ResponseWriter, r *http.Request, jobType domain.JobType, kinds []domain.AssetKind) {
	id, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	if _, err := h.catalog.GetStyle(r.Context(), id); err != nil {
		HandleAPIError(w, r, err, "Failed to get style")
		return
	}

	job, err := h.jobs.Enqueue(r.Context(), task.EnqueueRequest{
		Type:      jobType,
		SubjectID: id,
		Input:     domain.StyleJobInput{StyleID: id, Kinds: kinds}.Encode(),
	})
	if err != nil {
		HandleAPIError(w, r, err, "Failed to enqueue job")
		return
	}

	subject, _ := shared.GetSubject(r.Context())
	logger.FromContextOrDefault(r.Context(), h.logger).Info("style job enqueued",
		slog.String("style_id", id.String()),
		slog.String("job_id", job.ID.String()),
		slog.String("job_type", string(jobType)),
		slog.String("operator", subject))
	shared.RespondWithJSON(w, r, http.StatusAccepted, job.View())
}
