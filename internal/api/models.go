package api

import (
	"github.com/phrazzld/tokensmith/internal/domain"
)

// BatchItemRequest is one image of a bulk import.
type BatchItemRequest struct {
	ImageKey string `json:"image_key" validate:"required,max=512"`
	Name     string `json:"name,omitempty" validate:"max=200"`
}

// CreateBatchRequest is the body of POST /v1/batches.
type CreateBatchRequest struct {
	Name  string             `json:"name" validate:"max=200"`
	Items []BatchItemRequest `json:"items" validate:"required,min=1,max=500,dive"`
}

// StyleJobRequest is the body of POST /v1/styles/{id}/jobs.
type StyleJobRequest struct {
	Type  domain.JobType     `json:"type" validate:"required,oneof=name_repair asset_generation analysis preview_generation"`
	Kinds []domain.AssetKind `json:"kinds,omitempty" validate:"max=8,dive,oneof=palette typography components"`
}

// JobListResponse wraps a list of job views.
type JobListResponse struct {
	Jobs []domain.JobView `json:"jobs"`
}

// StyleListResponse wraps a list of styles.
type StyleListResponse struct {
	Styles []*domain.Style `json:"styles"`
}

func jobViews(jobs []*domain.Job) []domain.JobView {
	views := make([]domain.JobView, 0, len(jobs))
	for _, j := range jobs {
		views = append(views, j.View())
	}
	return views
}
