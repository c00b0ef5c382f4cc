package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/localpros/hub/internal/models"
)

// JobLogsRepository handles the append-only audit trail for jobs.
// Entries are never updated or deleted.
type JobLogsRepository struct {
	db *pgxpool.Pool
}

// NewJobLogsRepository creates a new job logs repository.
func NewJobLogsRepository(db *pgxpool.Pool) *JobLogsRepository {
	return &JobLogsRepository{db: db}
}

// Append inserts one log entry for the given job.
func (r *JobLogsRepository) Append(ctx context.Context, jobID uuid.UUID, level models.JobLogLevel, action, message string) error {
	query := `
		INSERT INTO job_logs (id, job_id, level, action, message)
		VALUES ($1, $2, $3, $4, $5)
	`

	id := uuid.Must(uuid.NewV7())

	if _, err := r.db.Exec(ctx, query, id, jobID, level, action, message); err != nil {
		return fmt.Errorf("failed to append job log: %w", err)
	}

	return nil
}

// ListByJob retrieves all log entries for a job, oldest first.
func (r *JobLogsRepository) ListByJob(ctx context.Context, jobID uuid.UUID) ([]models.JobLogEntry, error) {
	query := `
		SELECT id, job_id, level, action, message, created_at
		FROM job_logs
		WHERE job_id = $1
		ORDER BY created_at
	`

	rows, err := r.db.Query(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to list job logs: %w", err)
	}
	defer rows.Close()

	entries := []models.JobLogEntry{}
	for rows.Next() {
		var e models.JobLogEntry
		if err := rows.Scan(&e.ID, &e.JobID, &e.Level, &e.Action, &e.Message, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan job log: %w", err)
		}

		entries = append(entries, e)
	}

	return entries, nil
}
