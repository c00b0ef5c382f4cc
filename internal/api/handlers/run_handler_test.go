package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localpros/hub/internal/api/middleware"
	"github.com/localpros/hub/internal/jobs"
	"github.com/localpros/hub/internal/models"
	"github.com/localpros/hub/internal/observability"
)

type fakeRunner struct {
	report   *jobs.RunReport
	err      error
	lastKind *models.JobKind
}

func (r *fakeRunner) RunNext(ctx context.Context, kind *models.JobKind) (*jobs.RunReport, error) {
	r.lastKind = kind

	return r.report, r.err
}

func TestRunHandlerRunsJob(t *testing.T) {
	runner := &fakeRunner{report: &jobs.RunReport{
		Job:     &models.Job{ID: uuid.New(), Kind: models.JobKindImageEnrichment, Status: models.JobStatusCompleted},
		Outcome: observability.JobOutcomeCompleted,
	}}
	handler := NewRunHandler(runner)

	req := httptest.NewRequest(http.MethodPost, "/v1/jobs/run", nil)
	rec := httptest.NewRecorder()
	handler.Run(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Ran    bool            `json:"ran"`
		Report *jobs.RunReport `json:"report"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Ran)
	require.NotNil(t, resp.Report)
	assert.Equal(t, observability.JobOutcomeCompleted, resp.Report.Outcome)
}

func TestRunHandlerNothingEligible(t *testing.T) {
	handler := NewRunHandler(&fakeRunner{})

	req := httptest.NewRequest(http.MethodPost, "/v1/jobs/run", nil)
	rec := httptest.NewRecorder()
	handler.Run(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ran":false`)
}

func TestRunHandlerKindFilter(t *testing.T) {
	runner := &fakeRunner{}
	handler := NewRunHandler(runner)

	req := httptest.NewRequest(http.MethodPost, "/v1/jobs/run?kind=review_enrichment", nil)
	rec := httptest.NewRecorder()
	handler.Run(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, runner.lastKind)
	assert.Equal(t, models.JobKindReviewEnrichment, *runner.lastKind)
}

func TestRunHandlerRejectsUnknownKind(t *testing.T) {
	handler := NewRunHandler(&fakeRunner{})

	req := httptest.NewRequest(http.MethodPost, "/v1/jobs/run?kind=bogus", nil)
	rec := httptest.NewRecorder()
	handler.Run(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRunHandlerRunnerError(t *testing.T) {
	handler := NewRunHandler(&fakeRunner{err: errors.New("claim failed")})

	req := httptest.NewRequest(http.MethodPost, "/v1/jobs/run", nil)
	rec := httptest.NewRecorder()
	handler.Run(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRunEndpointSecretAndBudget(t *testing.T) {
	handler := NewRunHandler(&fakeRunner{})
	// Secret check runs before the budget so unauthenticated probes cannot
	// starve the scheduler.
	guarded := middleware.RunnerSecret("runner-secret")(
		middleware.RateLimit(60, 2)(http.HandlerFunc(handler.Run)))

	t.Run("missing secret", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/jobs/run", nil)
		rec := httptest.NewRecorder()
		guarded.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong secret", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/jobs/run", nil)
		req.Header.Set(middleware.RunnerSecretHeader, "runner-secret-but-wrong")
		rec := httptest.NewRecorder()
		guarded.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("budget exhausted", func(t *testing.T) {
		statuses := make([]int, 0, 3)
		for range 3 {
			req := httptest.NewRequest(http.MethodPost, "/v1/jobs/run", nil)
			req.Header.Set(middleware.RunnerSecretHeader, "runner-secret")
			rec := httptest.NewRecorder()
			guarded.ServeHTTP(rec, req)
			statuses = append(statuses, rec.Code)
		}

		assert.Equal(t, http.StatusOK, statuses[0])
		assert.Equal(t, http.StatusOK, statuses[1])
		assert.Equal(t, http.StatusTooManyRequests, statuses[2])
	})
}
