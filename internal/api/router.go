package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/tokensmith/internal/api/middleware"
	"github.com/phrazzld/tokensmith/internal/api/shared"
)

// RouterDeps are the services behind the HTTP API.
type RouterDeps struct {
	Jobs       JobService
	RecentJobs RecentJobLister
	Subjects   SubjectJobLister
	Batches    BatchService
	Catalog    StyleCatalog
	Tokens     middleware.TokenValidator
	Logger     *slog.Logger
}

// NewRouter builds the chi router for every API route.
func NewRouter(deps RouterDeps) http.Handler {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	jobHandler := NewJobHandler(deps.Jobs, deps.RecentJobs, deps.Subjects, log)
	batchHandler := NewBatchHandler(deps.Batches, log)
	styleHandler := NewStyleHandler(deps.Catalog, deps.Jobs, log)
	authMiddleware := middleware.NewAuthMiddleware(deps.Tokens)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewTraceMiddleware(log))
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		shared.RespondWithJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Get("/jobs", jobHandler.List)
		r.Get("/jobs/{id}", jobHandler.Get)
		r.Get("/subjects/{id}/jobs", jobHandler.ListBySubject)
		r.Get("/batches/{id}", batchHandler.Get)
		r.Get("/styles", styleHandler.List)
		r.Get("/styles/{id}", styleHandler.Get)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)
			r.Post("/jobs/{id}/cancel", jobHandler.Cancel)
			r.Post("/jobs/{id}/retry", jobHandler.Retry)
			r.Post("/batches", batchHandler.Create)
			r.Post("/styles/{id}/analyze", styleHandler.Analyze)
			r.Post("/styles/{id}/jobs", styleHandler.CreateJob)
		})
	})

	return r
}
