package handlers

import (
	"context"
	"net/http"

	"github.com/localpros/hub/internal/api/response"
	"github.com/localpros/hub/internal/jobs"
	"github.com/localpros/hub/internal/models"
)

// JobRunner runs the next eligible job.
type JobRunner interface {
	RunNext(ctx context.Context, kind *models.JobKind) (*jobs.RunReport, error)
}

// RunHandler handles the job execution trigger. Authentication and the
// request budget live in middleware; the handler only runs and reports.
type RunHandler struct {
	runner JobRunner
}

// NewRunHandler creates a new run handler.
func NewRunHandler(runner JobRunner) *RunHandler {
	return &RunHandler{runner: runner}
}

type runResponse struct {
	Ran    bool            `json:"ran"`
	Report *jobs.RunReport `json:"report,omitempty"`
}

// Run handles POST /v1/jobs/run
// Responds 200 with the run report when a job executed, 200 with ran=false
// when nothing was eligible. An optional kind query parameter restricts the
// claim to one kind.
func (h *RunHandler) Run(w http.ResponseWriter, r *http.Request) {
	var kind *models.JobKind
	if raw := r.URL.Query().Get("kind"); raw != "" {
		parsed, ok := models.ParseJobKind(raw)
		if !ok {
			response.RespondBadRequest(w, "Invalid job kind")
			return
		}
		kind = &parsed
	}

	report, err := h.runner.RunNext(r.Context(), kind)
	if err != nil {
		response.RespondInternalServerError(w, "Failed to run job")
		return
	}

	if report == nil {
		response.RespondJSON(w, http.StatusOK, runResponse{Ran: false})
		return
	}

	response.RespondJSON(w, http.StatusOK, runResponse{Ran: true, Report: report})
}
