package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/localpros/hub/internal/huberrors"
	"github.com/localpros/hub/internal/models"
)

// PipelineRunsRepository persists orchestrator progress: one row per run,
// updated after each completed stage so a crash mid-pipeline resumes from the
// last completed stage instead of redoing earlier work.
type PipelineRunsRepository struct {
	db *pgxpool.Pool
}

// NewPipelineRunsRepository creates a new pipeline runs repository.
func NewPipelineRunsRepository(db *pgxpool.Pool) *PipelineRunsRepository {
	return &PipelineRunsRepository{db: db}
}

// Get retrieves a run by id.
func (r *PipelineRunsRepository) Get(ctx context.Context, id uuid.UUID) (*models.PipelineRun, error) {
	query := `
		SELECT id, contractor_id, completed_stage, context, created_at, updated_at
		FROM pipeline_runs
		WHERE id = $1
	`

	var run models.PipelineRun
	err := r.db.QueryRow(ctx, query, id).Scan(
		&run.ID, &run.ContractorID, &run.CompletedStage, &run.Context, &run.CreatedAt, &run.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, huberrors.NewNotFoundError("pipeline_run", "")
		}

		return nil, fmt.Errorf("failed to get pipeline run: %w", err)
	}

	return &run, nil
}

// SaveStage upserts the run row with the stage that just completed and the
// context snapshot produced by it.
func (r *PipelineRunsRepository) SaveStage(ctx context.Context, id, contractorID uuid.UUID, stage models.AgentType, snapshot []byte) error {
	query := `
		INSERT INTO pipeline_runs (id, contractor_id, completed_stage, context)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			completed_stage = EXCLUDED.completed_stage,
			context = EXCLUDED.context,
			updated_at = NOW()
	`

	if _, err := r.db.Exec(ctx, query, id, contractorID, stage, snapshot); err != nil {
		return fmt.Errorf("failed to save pipeline stage: %w", err)
	}

	return nil
}

// Delete removes a finished run's checkpoint row.
func (r *PipelineRunsRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM pipeline_runs WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete pipeline run: %w", err)
	}

	return nil
}
