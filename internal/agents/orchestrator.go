package agents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/localpros/hub/internal/huberrors"
	"github.com/localpros/hub/internal/models"
)

// pipelineRunStore persists the checkpoint after each completed stage.
type pipelineRunStore interface {
	Get(ctx context.Context, id uuid.UUID) (*models.PipelineRun, error)
	SaveStage(ctx context.Context, id, contractorID uuid.UUID, stage models.AgentType, snapshot []byte) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// Orchestrator runs the pipeline stages in fixed order over one context.
// It sequences, checkpoints, and short-circuits; every piece of domain work
// lives inside the agents.
type Orchestrator struct {
	registry *Registry
	runs     pipelineRunStore
}

// NewOrchestrator builds an orchestrator over a complete roster. An
// incomplete registry is a deployment error and fails construction with
// MisconfiguredPipelineError rather than failing the first run.
func NewOrchestrator(registry *Registry, runs pipelineRunStore) (*Orchestrator, error) {
	if missing := registry.ValidatePipeline(); len(missing) > 0 {
		return nil, &MisconfiguredPipelineError{Missing: missing}
	}

	return &Orchestrator{
		registry: registry,
		runs:     runs,
	}, nil
}

// Run executes the pipeline for pctx. A run that previously checkpointed a
// stage resumes from the stage after it, restoring the checkpointed context.
// On stage failure the remaining stages never execute and the error names
// the failing stage; the checkpoint stays, and the caller decides whether
// the run will be resumed or its checkpoint removed.
func (o *Orchestrator) Run(ctx context.Context, pctx *models.PipelineContext) error {
	start, err := o.resume(ctx, pctx)
	if err != nil {
		return err
	}

	for i := start; i < len(models.PipelineOrder); i++ {
		stage := models.PipelineOrder[i]

		agent, ok := o.registry.Resolve(stage)
		if !ok {
			// Unreachable after the construction-time roster check.
			return &StageError{Stage: stage, Err: fmt.Errorf("agent not registered")}
		}

		stageStart := time.Now()
		if err := agent.Execute(ctx, pctx); err != nil {
			slog.Error("pipeline stage failed",
				"run_id", pctx.RunID,
				"stage", stage,
				"error", err,
			)

			return &StageError{Stage: stage, Err: err}
		}

		if err := o.checkpoint(ctx, pctx, stage); err != nil {
			return err
		}

		slog.Info("pipeline stage completed",
			"run_id", pctx.RunID,
			"stage", stage,
			"duration", time.Since(stageStart),
		)
	}

	if err := o.runs.Delete(ctx, pctx.RunID); err != nil {
		slog.Warn("failed to remove pipeline checkpoint", "run_id", pctx.RunID, "error", err)
	}

	return nil
}

// resume returns the index of the first stage still to run, restoring the
// checkpointed context when one exists.
func (o *Orchestrator) resume(ctx context.Context, pctx *models.PipelineContext) (int, error) {
	run, err := o.runs.Get(ctx, pctx.RunID)
	if err != nil {
		if errors.Is(err, huberrors.ErrNotFound) {
			return 0, nil
		}

		return 0, fmt.Errorf("load pipeline run %s: %w", pctx.RunID, err)
	}

	if run.CompletedStage == nil {
		return 0, nil
	}

	for i, stage := range models.PipelineOrder {
		if stage != *run.CompletedStage {
			continue
		}

		if len(run.Context) > 0 {
			if err := json.Unmarshal(run.Context, pctx); err != nil {
				return 0, fmt.Errorf("restore pipeline context for run %s: %w", pctx.RunID, err)
			}
		}

		slog.Info("resuming pipeline run",
			"run_id", pctx.RunID,
			"completed_stage", stage,
		)

		return i + 1, nil
	}

	return 0, fmt.Errorf("pipeline run %s checkpointed unknown stage %q", pctx.RunID, *run.CompletedStage)
}

func (o *Orchestrator) checkpoint(ctx context.Context, pctx *models.PipelineContext, stage models.AgentType) error {
	snapshot, err := json.Marshal(pctx)
	if err != nil {
		return fmt.Errorf("snapshot pipeline context: %w", err)
	}

	if err := o.runs.SaveStage(ctx, pctx.RunID, pctx.ContractorID, stage, snapshot); err != nil {
		return fmt.Errorf("checkpoint stage %s for run %s: %w", stage, pctx.RunID, err)
	}

	return nil
}
