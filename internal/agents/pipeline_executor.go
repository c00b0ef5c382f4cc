package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/localpros/hub/internal/jobs"
	"github.com/localpros/hub/internal/models"
)

// PipelineExecutor runs the content pipeline for contractor_enrichment jobs.
// The job's own id doubles as the run id, so a job re-run after a crash
// resumes from the last checkpointed stage.
type PipelineExecutor struct {
	orchestrator *Orchestrator
	runs         pipelineRunStore
}

// NewPipelineExecutor creates the executor.
func NewPipelineExecutor(orchestrator *Orchestrator, runs pipelineRunStore) *PipelineExecutor {
	return &PipelineExecutor{orchestrator: orchestrator, runs: runs}
}

// Execute runs the full pipeline for the job's contractor.
func (e *PipelineExecutor) Execute(ctx context.Context, job *models.Job) (*jobs.ExecutionResult, error) {
	var payload models.ContractorEnrichmentPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return nil, fmt.Errorf("invalid contractor enrichment payload: %w", err)
	}

	pctx := &models.PipelineContext{
		RunID:        job.ID,
		ContractorID: payload.ContractorID,
		Topic:        payload.Topic,
	}

	if err := e.orchestrator.Run(ctx, pctx); err != nil {
		// Returning the error fails the job for good. Any retry runs under a
		// fresh job id, so this run's checkpoint can never be resumed.
		if delErr := e.runs.Delete(ctx, job.ID); delErr != nil {
			slog.Warn("failed to remove checkpoint of failed pipeline run",
				"run_id", job.ID,
				"error", delErr,
			)
		}

		return nil, err
	}

	return &jobs.ExecutionResult{
		Note: fmt.Sprintf("published page %s", pctx.PublishedSlug),
	}, nil
}
