package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// JobKind identifies the type of background work a job performs.
type JobKind string

const (
	JobKindImageEnrichment      JobKind = "image_enrichment"
	JobKindImageEnrichmentRetry JobKind = "image_enrichment_retry"
	JobKindContractorEnrichment JobKind = "contractor_enrichment"
	JobKindReviewEnrichment     JobKind = "review_enrichment"
)

// validJobKinds is the closed set of kinds accepted at creation time.
var validJobKinds = map[JobKind]struct{}{
	JobKindImageEnrichment:      {},
	JobKindImageEnrichmentRetry: {},
	JobKindContractorEnrichment: {},
	JobKindReviewEnrichment:     {},
}

// ParseJobKind validates a raw kind string. The legacy name
// "reviewer_image_retry" is accepted as an alias for image_enrichment_retry.
func ParseJobKind(s string) (JobKind, bool) {
	if s == "reviewer_image_retry" {
		return JobKindImageEnrichmentRetry, true
	}

	k := JobKind(s)
	_, ok := validJobKinds[k]

	return k, ok
}

// UnmarshalJSON decodes a kind, normalizing legacy names. Unknown values are
// kept as-is so the request validator can report them.
func (k *JobKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	if parsed, ok := ParseJobKind(s); ok {
		*k = parsed
		return nil
	}

	*k = JobKind(s)

	return nil
}

// IsValid reports whether the kind is one of the accepted job kinds.
func (k JobKind) IsValid() bool {
	_, ok := validJobKinds[k]

	return ok
}

// RetryKind returns the kind used for a rate-limit continuation of the given kind.
// Retry kinds map to themselves so a continuation of a continuation stays in the
// same queue lane.
func RetryKind(kind JobKind) JobKind {
	switch kind {
	case JobKindImageEnrichment, JobKindImageEnrichmentRetry:
		return JobKindImageEnrichmentRetry
	default:
		return kind + "_retry"
	}
}

// JobStatus is the lifecycle state of a job record.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// Terminal reports whether the status is final. Terminal records are never mutated;
// a retry is always a new record.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// ParseJobStatus validates a raw status string.
func ParseJobStatus(s string) (JobStatus, bool) {
	switch st := JobStatus(s); st {
	case JobStatusPending, JobStatusProcessing, JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return st, true
	default:
		return "", false
	}
}

// Job is one durable unit of background work and its lifecycle.
// At most one job of a given kind may be pending or processing at any time;
// the jobs table enforces this with a partial unique index, not application code.
type Job struct {
	ID           uuid.UUID       `json:"id"`
	Kind         JobKind         `json:"kind"`
	Status       JobStatus       `json:"status"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	ScheduledFor time.Time       `json:"scheduled_for"`
	CreatedBy    *string         `json:"created_by,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	StartedAt    *time.Time      `json:"started_at,omitempty"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
	Result       *string         `json:"result,omitempty"`
	Error        *string         `json:"error,omitempty"`
}

// CreateJobRequest represents the request to create a job.
type CreateJobRequest struct {
	Kind         JobKind         `json:"kind" validate:"required,job_kind"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	CreatedBy    *string         `json:"created_by,omitempty" validate:"omitempty,no_null_bytes,max=255"`
	ScheduledFor *time.Time      `json:"scheduled_for,omitempty"`
}

// ListJobsFilters represents filters for listing jobs.
type ListJobsFilters struct {
	Status *JobStatus `form:"status" validate:"omitempty"`
	Kind   *JobKind   `form:"kind" validate:"omitempty"`
	Limit  int        `form:"limit" validate:"omitempty,min=1,max=1000"`
	Offset int        `form:"offset" validate:"omitempty,min=0"`
}

// ListJobsResponse represents the response for listing jobs.
type ListJobsResponse struct {
	Data   []Job `json:"data"`
	Total  int64 `json:"total"`
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
}

// ImageItem is one reviewer image awaiting download: the external source URL
// plus the review row it belongs to.
type ImageItem struct {
	ReviewID  uuid.UUID `json:"review_id"`
	SourceURL string    `json:"source_url"`
}

// ImageEnrichmentPayload is the payload for image_enrichment and
// image_enrichment_retry jobs. AttemptNumber is 0 for the initial job and
// increments on each rate-limit continuation.
type ImageEnrichmentPayload struct {
	ContractorID  uuid.UUID   `json:"contractor_id"`
	Images        []ImageItem `json:"images"`
	AttemptNumber int         `json:"attemptNumber"`
}

// ContractorEnrichmentPayload is the payload for contractor_enrichment jobs,
// which run the content-generation agent pipeline.
type ContractorEnrichmentPayload struct {
	ContractorID uuid.UUID `json:"contractor_id"`
	Topic        string    `json:"topic,omitempty"`
}

// ReviewEnrichmentPayload is the payload for review_enrichment jobs.
type ReviewEnrichmentPayload struct {
	ContractorID uuid.UUID `json:"contractor_id"`
}
