package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/localpros/hub/internal/api/response"
	"github.com/localpros/hub/internal/api/validation"
	"github.com/localpros/hub/internal/huberrors"
	"github.com/localpros/hub/internal/models"
	"github.com/localpros/hub/internal/observability"
)

// JobsRepository defines the job store surface the handler needs.
type JobsRepository interface {
	Create(ctx context.Context, req *models.CreateJobRequest) (*models.Job, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error)
	List(ctx context.Context, filters *models.ListJobsFilters) ([]models.Job, error)
	Count(ctx context.Context, filters *models.ListJobsFilters) (int64, error)
	Cancel(ctx context.Context, id uuid.UUID) (*models.Job, error)
}

// JobLogsRepository reads a job's audit trail.
type JobLogsRepository interface {
	ListByJob(ctx context.Context, jobID uuid.UUID) ([]models.JobLogEntry, error)
}

// JobsHandler handles HTTP requests for job records.
type JobsHandler struct {
	jobs    JobsRepository
	logs    JobLogsRepository
	metrics observability.HubMetrics
}

// NewJobsHandler creates a new jobs handler. metrics may be nil.
func NewJobsHandler(jobs JobsRepository, logs JobLogsRepository, metrics observability.HubMetrics) *JobsHandler {
	return &JobsHandler{
		jobs:    jobs,
		logs:    logs,
		metrics: metrics,
	}
}

// Create handles POST /v1/jobs
// A 409 means a job of the same kind is already pending or processing.
func (h *JobsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.RespondBadRequest(w, "Invalid request body")
		return
	}

	if err := validation.ValidateStruct(&req); err != nil {
		validation.RespondValidationError(w, err)
		return
	}

	job, err := h.jobs.Create(r.Context(), &req)
	if err != nil {
		if errors.Is(err, huberrors.ErrConflict) {
			response.RespondConflict(w, err.Error())
			return
		}
		response.RespondInternalServerError(w, "An unexpected error occurred")
		return
	}

	if h.metrics != nil {
		h.metrics.RecordJobCreated(r.Context(), string(job.Kind))
	}

	response.RespondJSON(w, http.StatusCreated, job)
}

// List handles GET /v1/jobs with optional status/kind filters and pagination.
func (h *JobsHandler) List(w http.ResponseWriter, r *http.Request) {
	filters := &models.ListJobsFilters{}
	if err := validation.ValidateAndDecodeQueryParams(r, filters); err != nil {
		validation.RespondValidationError(w, err)
		return
	}

	if filters.Limit == 0 {
		filters.Limit = 50
	}

	jobs, err := h.jobs.List(r.Context(), filters)
	if err != nil {
		response.RespondInternalServerError(w, "An unexpected error occurred")
		return
	}

	total, err := h.jobs.Count(r.Context(), filters)
	if err != nil {
		response.RespondInternalServerError(w, "An unexpected error occurred")
		return
	}

	response.RespondJSON(w, http.StatusOK, models.ListJobsResponse{
		Data:   jobs,
		Total:  total,
		Limit:  filters.Limit,
		Offset: filters.Offset,
	})
}

// Get handles GET /v1/jobs/{id}
func (h *JobsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := jobID(w, r)
	if !ok {
		return
	}

	job, err := h.jobs.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, huberrors.ErrNotFound) {
			response.RespondNotFound(w, "Job not found")
			return
		}
		response.RespondInternalServerError(w, "An unexpected error occurred")
		return
	}

	response.RespondJSON(w, http.StatusOK, job)
}

// Cancel handles POST /v1/jobs/{id}/cancel
// Only a pending job can be cancelled; a terminal job answers 409 with its
// current state, and a processing job cannot be stopped mid-flight.
func (h *JobsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := jobID(w, r)
	if !ok {
		return
	}

	job, err := h.jobs.Cancel(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, huberrors.ErrNotFound):
			response.RespondNotFound(w, "Job not found")
		case errors.Is(err, huberrors.ErrAlreadyTerminal), errors.Is(err, huberrors.ErrConflict):
			response.RespondConflict(w, err.Error())
		default:
			response.RespondInternalServerError(w, "An unexpected error occurred")
		}
		return
	}

	response.RespondJSON(w, http.StatusOK, job)
}

// Logs handles GET /v1/jobs/{id}/logs
func (h *JobsHandler) Logs(w http.ResponseWriter, r *http.Request) {
	id, ok := jobID(w, r)
	if !ok {
		return
	}

	if _, err := h.jobs.GetByID(r.Context(), id); err != nil {
		if errors.Is(err, huberrors.ErrNotFound) {
			response.RespondNotFound(w, "Job not found")
			return
		}
		response.RespondInternalServerError(w, "An unexpected error occurred")
		return
	}

	entries, err := h.logs.ListByJob(r.Context(), id)
	if err != nil {
		response.RespondInternalServerError(w, "An unexpected error occurred")
		return
	}

	response.RespondJSON(w, http.StatusOK, map[string]any{"data": entries})
}

func jobID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	idStr := r.PathValue("id")
	if idStr == "" {
		response.RespondBadRequest(w, "Job ID is required")
		return uuid.Nil, false
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		response.RespondBadRequest(w, "Invalid UUID format")
		return uuid.Nil, false
	}

	return id, true
}
