// Package repository provides pgx-backed data access for the job engine.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/localpros/hub/internal/huberrors"
	"github.com/localpros/hub/internal/models"
)

const uniqueViolationCode = "23505"

const jobColumns = `id, kind, status, payload, scheduled_for, created_by,
	       created_at, started_at, completed_at, result, error`

// JobsRepository handles data access for job records.
//
// The at-most-one-active-job-per-kind invariant is enforced by a partial
// unique index on (kind) WHERE status IN ('pending','processing'), so
// check-and-insert is a single atomic INSERT, never read-then-write.
type JobsRepository struct {
	db *pgxpool.Pool
}

// NewJobsRepository creates a new jobs repository.
func NewJobsRepository(db *pgxpool.Pool) *JobsRepository {
	return &JobsRepository{db: db}
}

// Create inserts a new pending job. When an active (pending or processing)
// job of the same kind already exists, the partial unique index rejects the
// insert and Create returns a ConflictError.
func (r *JobsRepository) Create(ctx context.Context, req *models.CreateJobRequest) (*models.Job, error) {
	scheduledFor := time.Now()
	if req.ScheduledFor != nil {
		scheduledFor = *req.ScheduledFor
	}

	query := `
		INSERT INTO jobs (id, kind, status, payload, scheduled_for, created_by)
		VALUES ($1, $2, 'pending', $3, $4, $5)
		RETURNING ` + jobColumns

	id := uuid.Must(uuid.NewV7())

	job, err := scanJob(r.db.QueryRow(ctx, query, id, req.Kind, req.Payload, scheduledFor, req.CreatedBy))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return nil, huberrors.NewConflictError(
				fmt.Sprintf("an active job of kind %q already exists", req.Kind))
		}

		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	return job, nil
}

// GetByID retrieves a job by id.
func (r *JobsRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`

	job, err := scanJob(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, huberrors.NewNotFoundError("job", "")
		}

		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return job, nil
}

// List retrieves jobs matching the filters, newest first.
func (r *JobsRepository) List(ctx context.Context, filters *models.ListJobsFilters) ([]models.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs`

	where, args := jobFilterConditions(filters)
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	query += " ORDER BY created_at DESC"

	argCount := len(args) + 1
	if filters.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argCount)
		args = append(args, filters.Limit)
		argCount++
	}

	if filters.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argCount)
		args = append(args, filters.Offset)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	jobs := []models.Job{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}

		jobs = append(jobs, *job)
	}

	return jobs, nil
}

// Count returns the total count of jobs matching the filters.
func (r *JobsRepository) Count(ctx context.Context, filters *models.ListJobsFilters) (int64, error) {
	query := `SELECT COUNT(*) FROM jobs`

	where, args := jobFilterConditions(filters)
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	var count int64
	if err := r.db.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count jobs: %w", err)
	}

	return count, nil
}

// ClaimNext atomically selects the oldest eligible pending job, transitions it
// to processing, and returns it. FOR UPDATE SKIP LOCKED guarantees that two
// concurrent claimers never receive the same record; (nil, nil) means no job
// is eligible right now. When kind is non-nil only jobs of that kind are
// considered.
func (r *JobsRepository) ClaimNext(ctx context.Context, kind *models.JobKind) (*models.Job, error) {
	query := `
		UPDATE jobs SET status = 'processing', started_at = NOW()
		WHERE id = (
			SELECT id FROM jobs
			WHERE status = 'pending'
			  AND scheduled_for <= NOW()
			  AND ($1::text IS NULL OR kind = $1)
			ORDER BY created_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + jobColumns

	job, err := scanJob(r.db.QueryRow(ctx, query, kind))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to claim next job: %w", err)
	}

	return job, nil
}

// Complete transitions a processing job to completed with an optional result
// note. Calling it again on a terminal job is an idempotent no-op returning
// the current record.
func (r *JobsRepository) Complete(ctx context.Context, id uuid.UUID, result *string) (*models.Job, error) {
	query := `
		UPDATE jobs SET status = 'completed', completed_at = NOW(), result = $2
		WHERE id = $1 AND status = 'processing'
		RETURNING ` + jobColumns

	return r.terminalTransition(ctx, id, query, result)
}

// Fail transitions a processing job to failed, recording the failure detail.
// Calling it again on a terminal job is an idempotent no-op returning the
// current record.
func (r *JobsRepository) Fail(ctx context.Context, id uuid.UUID, errMsg string) (*models.Job, error) {
	query := `
		UPDATE jobs SET status = 'failed', completed_at = NOW(), error = $2
		WHERE id = $1 AND status = 'processing'
		RETURNING ` + jobColumns

	return r.terminalTransition(ctx, id, query, errMsg)
}

// Cancel transitions a pending job to cancelled. A processing job cannot be
// cancelled mid-flight; a terminal job returns AlreadyTerminalError.
func (r *JobsRepository) Cancel(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	query := `
		UPDATE jobs SET status = 'cancelled', completed_at = NOW()
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + jobColumns

	job, err := scanJob(r.db.QueryRow(ctx, query, id))
	if err == nil {
		return job, nil
	}

	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to cancel job: %w", err)
	}

	current, getErr := r.GetByID(ctx, id)
	if getErr != nil {
		return nil, getErr
	}

	if current.Status.Terminal() {
		return nil, huberrors.NewAlreadyTerminalError(string(current.Status), "")
	}

	return nil, huberrors.NewConflictError(
		fmt.Sprintf("job is %s and cannot be cancelled", current.Status))
}

// terminalTransition runs a conditional processing→terminal UPDATE. Zero rows
// means the job is missing, still pending, or already terminal; already
// terminal is reported as success with the current record so duplicate
// completion signals stay idempotent.
func (r *JobsRepository) terminalTransition(ctx context.Context, id uuid.UUID, query string, arg any) (*models.Job, error) {
	job, err := scanJob(r.db.QueryRow(ctx, query, id, arg))
	if err == nil {
		return job, nil
	}

	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to transition job: %w", err)
	}

	current, getErr := r.GetByID(ctx, id)
	if getErr != nil {
		return nil, getErr
	}

	if current.Status.Terminal() {
		return current, nil
	}

	return nil, huberrors.NewConflictError(
		fmt.Sprintf("job is %s, not processing", current.Status))
}

// jobFilterConditions builds WHERE conditions and args shared by List and Count.
func jobFilterConditions(filters *models.ListJobsFilters) ([]string, []any) {
	var conditions []string
	var args []any
	argCount := 1

	if filters.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argCount))
		args = append(args, *filters.Status)
		argCount++
	}

	if filters.Kind != nil {
		conditions = append(conditions, fmt.Sprintf("kind = $%d", argCount))
		args = append(args, *filters.Kind)
	}

	return conditions, args
}

// rowScanner is satisfied by both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*models.Job, error) {
	var job models.Job
	err := row.Scan(
		&job.ID, &job.Kind, &job.Status, &job.Payload, &job.ScheduledFor, &job.CreatedBy,
		&job.CreatedAt, &job.StartedAt, &job.CompletedAt, &job.Result, &job.Error,
	)
	if err != nil {
		return nil, err
	}

	return &job, nil
}
