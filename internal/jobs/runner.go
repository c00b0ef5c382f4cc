package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/localpros/hub/internal/huberrors"
	"github.com/localpros/hub/internal/models"
	"github.com/localpros/hub/internal/observability"
)

// jobStore is the minimal repository surface the runner needs.
type jobStore interface {
	ClaimNext(ctx context.Context, kind *models.JobKind) (*models.Job, error)
	Create(ctx context.Context, req *models.CreateJobRequest) (*models.Job, error)
	Complete(ctx context.Context, id uuid.UUID, result *string) (*models.Job, error)
	Fail(ctx context.Context, id uuid.UUID, errMsg string) (*models.Job, error)
}

// auditLog appends one immutable entry per job transition.
type auditLog interface {
	Append(ctx context.Context, jobID uuid.UUID, level models.JobLogLevel, action, message string) error
}

// FailureNotifier is told about permanent job failures. Implementations are
// fire-and-forget; they must never block or fail the job transition.
type FailureNotifier interface {
	NotifyJobFailed(ctx context.Context, job *models.Job, detail string)
}

// RunReport describes one executed job for the trigger endpoint and poller.
type RunReport struct {
	Job            *models.Job `json:"job"`
	Outcome        string      `json:"outcome"`
	ContinuationID *uuid.UUID  `json:"continuation_id,omitempty"`
}

// Runner drives a single job through claim → execute → complete/fail, turning
// rate-limited executions into scheduled continuation jobs instead of in-place
// retries. Safe for concurrent use: all mutual exclusion lives in ClaimNext.
type Runner struct {
	store    jobStore
	logs     auditLog
	registry *Registry
	backoff  *Backoff
	timeout  time.Duration
	metrics  observability.HubMetrics
	notifier FailureNotifier
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithExecutionTimeout bounds a single job execution.
func WithExecutionTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) {
		r.timeout = d
	}
}

// WithMetrics wires job metrics. metrics may be nil when disabled.
func WithMetrics(metrics observability.HubMetrics) RunnerOption {
	return func(r *Runner) {
		r.metrics = metrics
	}
}

// WithFailureNotifier wires permanent-failure notifications.
func WithFailureNotifier(notifier FailureNotifier) RunnerOption {
	return func(r *Runner) {
		r.notifier = notifier
	}
}

const defaultExecutionTimeout = 5 * time.Minute

// NewRunner creates a runner over the given store, audit log, and registry.
func NewRunner(store jobStore, logs auditLog, registry *Registry, backoff *Backoff, opts ...RunnerOption) *Runner {
	r := &Runner{
		store:    store,
		logs:     logs,
		registry: registry,
		backoff:  backoff,
		timeout:  defaultExecutionTimeout,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// RunNext claims and executes the oldest eligible job. It returns (nil, nil)
// when no job is eligible. kind restricts the claim to one kind when non-nil.
func (r *Runner) RunNext(ctx context.Context, kind *models.JobKind) (*RunReport, error) {
	job, err := r.store.ClaimNext(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("claim next job: %w", err)
	}

	if job == nil {
		return nil, nil
	}

	r.appendLog(ctx, job.ID, models.JobLogLevelInfo, models.JobLogActionClaimed, "job claimed for execution")

	if r.metrics != nil {
		r.metrics.RecordJobClaimed(ctx, string(job.Kind))
	}

	executor, ok := r.registry.Resolve(job.Kind)
	if !ok {
		// Structural failure: no executor can ever run this kind in this
		// deployment, so the job fails rather than being rescheduled.
		detail := fmt.Sprintf("no executor registered for kind %q", job.Kind)

		return r.failJob(ctx, job, detail, 0)
	}

	start := time.Now()

	execCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	result, execErr := executor.Execute(execCtx, job)
	duration := time.Since(start)

	if execErr != nil {
		return r.failJob(ctx, job, execErr.Error(), duration)
	}

	if result != nil && result.RateLimited {
		return r.scheduleContinuation(ctx, job, result, duration)
	}

	var note *string
	if result != nil && result.Note != "" {
		note = &result.Note
	}

	completed, err := r.store.Complete(ctx, job.ID, note)
	if err != nil {
		return nil, fmt.Errorf("complete job %s: %w", job.ID, err)
	}

	r.appendLog(ctx, job.ID, models.JobLogLevelInfo, models.JobLogActionCompleted, valueOr(note, "job completed"))

	if r.metrics != nil {
		r.metrics.RecordJobFinished(ctx, string(job.Kind), observability.JobOutcomeCompleted, duration)
	}

	slog.Info("job completed", "job_id", job.ID, "kind", job.Kind, "duration", duration)

	return &RunReport{Job: completed, Outcome: observability.JobOutcomeCompleted}, nil
}

// scheduleContinuation turns a rate-limited execution into a new pending job
// of the retry kind and completes the original. The original record's history
// stays linear; a retry is always a new record.
func (r *Runner) scheduleContinuation(ctx context.Context, job *models.Job, result *ExecutionResult, duration time.Duration) (*RunReport, error) {
	cont := result.Continuation
	if cont == nil {
		// Rate limited with nothing left to do: the job still completed all
		// its work, so finish it normally.
		note := "rate limited with no remainder"
		completed, err := r.store.Complete(ctx, job.ID, &note)
		if err != nil {
			return nil, fmt.Errorf("complete job %s: %w", job.ID, err)
		}

		return &RunReport{Job: completed, Outcome: observability.JobOutcomeCompleted}, nil
	}

	delay, ok := r.backoff.Delay(cont.Attempt)
	if !ok {
		detail := fmt.Sprintf("rate limited after %d attempts; remainder permanently failed", r.backoff.MaxAttempts())

		return r.failJob(ctx, job, detail, duration)
	}

	scheduledFor := time.Now().Add(delay)
	retryKind := models.RetryKind(job.Kind)

	continuation, err := r.store.Create(ctx, &models.CreateJobRequest{
		Kind:         retryKind,
		Payload:      cont.Payload,
		ScheduledFor: &scheduledFor,
	})
	if err != nil {
		if !errors.Is(err, huberrors.ErrConflict) {
			// No continuation exists anywhere; completing the original now
			// would silently drop the remainder and falsify the audit trail.
			detail := fmt.Sprintf("rate limited; failed to schedule continuation: %v", err)

			return r.failJob(ctx, job, detail, duration)
		}

		// An active continuation of this kind already exists (e.g. two lanes
		// hit the rate limit back to back). The remainder is already queued,
		// so the original still completes.
		slog.Warn("continuation already queued",
			"job_id", job.ID,
			"retry_kind", retryKind,
			"error", err,
		)
	}

	var continuationID *uuid.UUID
	note := fmt.Sprintf("rate limited; continuation scheduled for %s (attempt %d)",
		scheduledFor.Format(time.RFC3339), cont.Attempt)

	if continuation != nil {
		continuationID = &continuation.ID

		r.appendLog(ctx, job.ID, models.JobLogLevelWarn, models.JobLogActionContinuationScheduled,
			fmt.Sprintf("continuation %s scheduled for %s", continuation.ID, scheduledFor.Format(time.RFC3339)))
	}

	completed, err := r.store.Complete(ctx, job.ID, &note)
	if err != nil {
		return nil, fmt.Errorf("complete rate-limited job %s: %w", job.ID, err)
	}

	r.appendLog(ctx, job.ID, models.JobLogLevelInfo, models.JobLogActionCompleted, note)

	if r.metrics != nil {
		r.metrics.RecordJobFinished(ctx, string(job.Kind), observability.JobOutcomeRateLimit, duration)
		r.metrics.RecordJobContinuation(ctx, string(retryKind), cont.Attempt)
	}

	slog.Warn("job rate limited, continuation scheduled",
		"job_id", job.ID,
		"kind", job.Kind,
		"attempt", cont.Attempt,
		"scheduled_for", scheduledFor,
	)

	return &RunReport{Job: completed, Outcome: observability.JobOutcomeRateLimit, ContinuationID: continuationID}, nil
}

// failJob records a terminal failure, appends the audit entry, and notifies.
func (r *Runner) failJob(ctx context.Context, job *models.Job, detail string, duration time.Duration) (*RunReport, error) {
	failed, err := r.store.Fail(ctx, job.ID, detail)
	if err != nil {
		return nil, fmt.Errorf("fail job %s: %w", job.ID, err)
	}

	r.appendLog(ctx, job.ID, models.JobLogLevelError, models.JobLogActionFailed, detail)

	if r.metrics != nil {
		r.metrics.RecordJobFinished(ctx, string(job.Kind), observability.JobOutcomeFailed, duration)
	}

	if r.notifier != nil {
		r.notifier.NotifyJobFailed(ctx, failed, detail)
	}

	slog.Error("job failed", "job_id", job.ID, "kind", job.Kind, "error", detail)

	return &RunReport{Job: failed, Outcome: observability.JobOutcomeFailed}, nil
}

// appendLog writes an audit entry; audit failures are logged, never propagated.
func (r *Runner) appendLog(ctx context.Context, jobID uuid.UUID, level models.JobLogLevel, action, message string) {
	if err := r.logs.Append(ctx, jobID, level, action, message); err != nil {
		slog.Error("failed to append job log", "job_id", jobID, "action", action, "error", err)
	}
}

func valueOr(s *string, fallback string) string {
	if s != nil && *s != "" {
		return *s
	}

	return fallback
}
