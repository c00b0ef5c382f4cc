package models

import (
	"time"

	"github.com/google/uuid"
)

// JobLogLevel is the severity of a job log entry.
type JobLogLevel string

const (
	JobLogLevelInfo  JobLogLevel = "info"
	JobLogLevelWarn  JobLogLevel = "warn"
	JobLogLevelError JobLogLevel = "error"
)

// JobLogEntry is one immutable audit-trail entry for a job transition.
// Entries are append-only; the admin UI reads them for progress display.
type JobLogEntry struct {
	ID        uuid.UUID   `json:"id"`
	JobID     uuid.UUID   `json:"job_id"`
	Level     JobLogLevel `json:"level"`
	Action    string      `json:"action"`
	Message   string      `json:"message"`
	CreatedAt time.Time   `json:"created_at"`
}

// Job log actions recorded by the runner, one per transition.
const (
	JobLogActionClaimed               = "claimed"
	JobLogActionCompleted             = "completed"
	JobLogActionFailed                = "failed"
	JobLogActionCancelled             = "cancelled"
	JobLogActionContinuationScheduled = "continuation_scheduled"
)

// ListJobLogsResponse represents the response for listing a job's log entries.
type ListJobLogsResponse struct {
	Data []JobLogEntry `json:"data"`
}
