// Package worker provides the background workers of the Hub job engine.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/localpros/hub/internal/jobs"
	"github.com/localpros/hub/internal/models"
)

// JobRunner runs the next eligible job, reporting nil when none was due.
type JobRunner interface {
	RunNext(ctx context.Context, kind *models.JobKind) (*jobs.RunReport, error)
}

// Poller is a background worker that periodically drains eligible jobs.
// It runs jobs one at a time: the repository's claim query is the only
// point of mutual exclusion, so multiple pollers (or a poller racing the
// manual trigger endpoint) are safe.
type Poller struct {
	runner       JobRunner
	pollInterval time.Duration
	maxPerTick   int
}

// NewPoller creates a job poller.
func NewPoller(runner JobRunner, pollInterval time.Duration, maxPerTick int) *Poller {
	if pollInterval <= 0 {
		pollInterval = 1 * time.Minute
	}
	if maxPerTick <= 0 {
		maxPerTick = 10
	}

	return &Poller{
		runner:       runner,
		pollInterval: pollInterval,
		maxPerTick:   maxPerTick,
	}
}

// Start begins the poll loop. It runs until the context is cancelled.
func (w *Poller) Start(ctx context.Context) {
	slog.Info("job poller started",
		"poll_interval", w.pollInterval,
		"max_per_tick", w.maxPerTick,
	)

	// Run immediately on startup
	w.runOnce(ctx)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("job poller stopped")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

// runOnce runs eligible jobs until the queue is drained or the per-tick
// bound is reached.
func (w *Poller) runOnce(ctx context.Context) {
	for ran := 0; ran < w.maxPerTick; ran++ {
		if ctx.Err() != nil {
			return
		}

		report, err := w.runner.RunNext(ctx, nil)
		if err != nil {
			slog.Error("failed to run next job", "error", err)
			return
		}

		if report == nil {
			if ran > 0 {
				slog.Debug("job queue drained", "ran", ran)
			}
			return
		}

		slog.Info("poller ran job",
			"job_id", report.Job.ID,
			"kind", report.Job.Kind,
			"outcome", report.Outcome,
		)
	}

	slog.Warn("poller hit per-tick bound with jobs still eligible", "max_per_tick", w.maxPerTick)
}
