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

// BatchService creates and reads batches. *task.BatchService implements it.
type BatchService interface {
	CreateBatch(ctx context.Context, name string, items []task.BatchItemInput) (*domain.Batch, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Batch, error)
}

// BatchHandler handles bulk import requests.
type BatchHandler struct {
	batches BatchService
	logger  *slog.Logger
}

// NewBatchHandler creates a BatchHandler.
func NewBatchHandler(batches BatchService, log *slog.Logger) *BatchHandler {
	if log == nil {
		log = slog.Default()
	}
	return &BatchHandler{
		batches: batches,
		logger:  log.With(slog.String("component", "batch_handler")),
	}
}

// Create handles POST /v1/batches.
func (h *BatchHandler) Create(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var req CreateBatchRequest
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

	items := make([]task.BatchItemInput, len(req.Items))
	for i, it := range req.Items {
		items[i] = task.BatchItemInput{ImageKey: it.ImageKey, Name: it.Name}
	}

	batch, err := h.batches.CreateBatch(r.Context(), req.Name, items)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to create batch")
		return
	}

	subject, _ := shared.GetSubject(r.Context())
	log.Info("batch created",
		slog.String("batch_id", batch.ID.String()),
		slog.String("operator", subject),
		slog.Int("items", batch.TotalItems))
	shared.RespondWithJSON(w, r, http.StatusAccepted, batch)
}

// Get handles GET /v1/batches/{id}.
func (h *BatchHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	batch, err := h.batches.Get(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get batch")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, batch)
}
