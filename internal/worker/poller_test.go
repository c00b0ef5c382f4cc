package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/localpros/hub/internal/jobs"
	"github.com/localpros/hub/internal/models"
	"github.com/localpros/hub/internal/observability"
)

type scriptedRunner struct {
	mu      sync.Mutex
	reports []*jobs.RunReport
	err     error
	calls   int
}

func (r *scriptedRunner) RunNext(ctx context.Context, kind *models.JobKind) (*jobs.RunReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls++
	if r.err != nil {
		return nil, r.err
	}

	if len(r.reports) == 0 {
		return nil, nil
	}

	report := r.reports[0]
	r.reports = r.reports[1:]

	return report, nil
}

func (r *scriptedRunner) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.calls
}

func report() *jobs.RunReport {
	return &jobs.RunReport{
		Job:     &models.Job{ID: uuid.New(), Kind: models.JobKindImageEnrichment},
		Outcome: observability.JobOutcomeCompleted,
	}
}

func TestPollerDrainsQueue(t *testing.T) {
	runner := &scriptedRunner{reports: []*jobs.RunReport{report(), report(), report()}}
	poller := NewPoller(runner, time.Minute, 10)

	poller.runOnce(context.Background())

	// Three jobs plus the empty claim that ends the tick.
	assert.Equal(t, 4, runner.callCount())
}

func TestPollerRespectsPerTickBound(t *testing.T) {
	runner := &scriptedRunner{reports: []*jobs.RunReport{report(), report(), report(), report()}}
	poller := NewPoller(runner, time.Minute, 2)

	poller.runOnce(context.Background())

	assert.Equal(t, 2, runner.callCount())
}

func TestPollerStopsTickOnError(t *testing.T) {
	runner := &scriptedRunner{err: errors.New("database unavailable")}
	poller := NewPoller(runner, time.Minute, 10)

	poller.runOnce(context.Background())

	assert.Equal(t, 1, runner.callCount())
}

func TestPollerStopsOnContextCancel(t *testing.T) {
	runner := &scriptedRunner{}
	poller := NewPoller(runner, 10*time.Millisecond, 10)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		poller.Start(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop after context cancellation")
	}

	assert.GreaterOrEqual(t, runner.callCount(), 1)
}
