package orchestrator

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/valid8/valid8/internal/httpapi"
	"github.com/valid8/valid8/internal/jobstore"
	"github.com/valid8/valid8/internal/monitoring"
	"github.com/valid8/valid8/internal/tabular"
)

const maxUploadBytes = 32 << 20

// Handler exposes the orchestrator over HTTP.
type Handler struct {
	store     jobstore.Store
	pipeline  *Pipeline
	collector *monitoring.Collector
}

// NewHandler builds the orchestrator HTTP surface.
func NewHandler(store jobstore.Store, pipeline *Pipeline) *Handler {
	return &Handler{
		store:     store,
		pipeline:  pipeline,
		collector: monitoring.NewCollector(store),
	}
}

// Routes mounts the service endpoints.
func (h *Handler) Routes() chi.Router {
	r := httpapi.NewRouter()
	r.Get("/health", h.health)
	r.Get("/metrics", h.metrics)
	r.Post("/start-job", h.startJob)
	r.Get("/status/{job_id}", h.status)
	r.Get("/jobs", h.listJobs)
	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	httpapi.JSON(w, http.StatusOK, map[string]any{
		"status":  "healthy",
		"service": "valid8-orchestrator",
	})
}

func (h *Handler) metrics(w http.ResponseWriter, r *http.Request) {
	snap, err := h.collector.Collect(r.Context())
	if err != nil {
		zap.L().Error("metrics collection failed", zap.Error(err))
		httpapi.Error(w, http.StatusInternalServerError, "metrics collection failed")
		return
	}
	httpapi.JSON(w, http.StatusOK, snap)
}

func (h *Handler) startJob(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		httpapi.Error(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		httpapi.Error(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		httpapi.Error(w, http.StatusBadRequest, "failed to read upload")
		return
	}

	if err := VetUpload(header.Filename, data); err != nil {
		var ie *tabular.InputError
		if errors.As(err, &ie) {
			httpapi.Error(w, http.StatusBadRequest, ie.Reason)
			return
		}
		httpapi.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	job, err := h.store.Create(r.Context())
	if err != nil {
		zap.L().Error("job creation failed", zap.Error(err))
		httpapi.Error(w, http.StatusInternalServerError, "failed to create job")
		return
	}

	// The pipeline outlives the request; detach from its context.
	go h.pipeline.Run(context.WithoutCancel(r.Context()), job.ID, header.Filename, data)

	httpapi.JSON(w, http.StatusAccepted, map[string]string{
		"job_id":  job.ID,
		"status":  string(job.Status),
		"message": "Batch accepted for processing",
	})
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")

	job, err := h.store.Get(r.Context(), jobID)
	if errors.Is(err, jobstore.ErrNotFound) {
		httpapi.Error(w, http.StatusNotFound, "Invalid job_id")
		return
	}
	if err != nil {
		zap.L().Error("job lookup failed", zap.String("job_id", jobID), zap.Error(err))
		httpapi.Error(w, http.StatusInternalServerError, "failed to load job")
		return
	}

	httpapi.JSON(w, http.StatusOK, job)
}

func (h *Handler) listJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.store.List(r.Context(), 100)
	if err != nil {
		zap.L().Error("job list failed", zap.Error(err))
		httpapi.Error(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}
	httpapi.JSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}
