// Package jobs implements the background job engine: the executor registry,
// retry backoff, and the runner that drives a job through its state machine.
package jobs

import (
	"context"
	"encoding/json"

	"github.com/localpros/hub/internal/models"
)

// Executor performs the work for one job kind.
type Executor interface {
	// Execute runs the job to completion or failure. A rate-limited run is
	// not an error: it is reported through ExecutionResult.RateLimited with
	// the unfinished remainder in Continuation, so callers cannot swallow it
	// with a generic error check.
	Execute(ctx context.Context, job *models.Job) (*ExecutionResult, error)
}

// ExecutionResult is the outcome of a successful or rate-limited execution.
type ExecutionResult struct {
	// Note is recorded on the job's result column.
	Note string

	// RateLimited reports that the external source signalled a rate limit
	// and Continuation carries the remainder.
	RateLimited bool

	// Continuation is the unfinished remainder to carry into a new job of
	// the retry kind. Only set when RateLimited is true.
	Continuation *Continuation
}

// Continuation is the rate-limit remainder of a batch: the payload for the
// follow-up job plus the attempt number the follow-up represents (1-based).
type Continuation struct {
	Payload json.RawMessage
	Attempt int
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, job *models.Job) (*ExecutionResult, error)

// Execute implements Executor.
func (f ExecutorFunc) Execute(ctx context.Context, job *models.Job) (*ExecutionResult, error) {
	return f(ctx, job)
}
