package agents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localpros/hub/internal/models"
)

func enrichmentJob(t *testing.T, contractorID uuid.UUID, topic string) *models.Job {
	t.Helper()

	payload, err := json.Marshal(models.ContractorEnrichmentPayload{
		ContractorID: contractorID,
		Topic:        topic,
	})
	require.NoError(t, err)

	return &models.Job{
		ID:      uuid.New(),
		Kind:    models.JobKindContractorEnrichment,
		Status:  models.JobStatusProcessing,
		Payload: payload,
	}
}

func TestPipelineExecutorReportsPublishedSlug(t *testing.T) {
	registry, _ := fullRoster(map[models.AgentType]func(*models.PipelineContext) error{
		models.AgentTypeProjectManager: func(pctx *models.PipelineContext) error {
			pctx.PublishedSlug = fmt.Sprintf("contractor-%s", pctx.ContractorID)
			return nil
		},
	})
	store := newFakeRunStore()

	orchestrator, err := NewOrchestrator(registry, store)
	require.NoError(t, err)

	executor := NewPipelineExecutor(orchestrator, store)
	job := enrichmentJob(t, uuid.New(), "roof repair in Austin")

	result, err := executor.Execute(context.Background(), job)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Contains(t, result.Note, "published page contractor-")
	assert.Empty(t, store.runs)
}

func TestPipelineExecutorRemovesCheckpointOfFailedRun(t *testing.T) {
	// A failed run's job never gets this id again, so its checkpoint would
	// otherwise sit in the store forever.
	registry, _ := fullRoster(map[models.AgentType]func(*models.PipelineContext) error{
		models.AgentTypeWriter: func(pctx *models.PipelineContext) error {
			return errors.New("draft generation failed")
		},
	})
	store := newFakeRunStore()

	orchestrator, err := NewOrchestrator(registry, store)
	require.NoError(t, err)

	executor := NewPipelineExecutor(orchestrator, store)
	job := enrichmentJob(t, uuid.New(), "")

	_, err = executor.Execute(context.Background(), job)
	require.Error(t, err)

	var stageError *StageError
	require.ErrorAs(t, err, &stageError)
	assert.Equal(t, models.AgentTypeWriter, stageError.Stage)

	_, kept := store.runs[job.ID]
	assert.False(t, kept, "failed run leaves no checkpoint behind")
}

func TestPipelineExecutorRejectsMalformedPayload(t *testing.T) {
	registry, _ := fullRoster(nil)
	store := newFakeRunStore()

	orchestrator, err := NewOrchestrator(registry, store)
	require.NoError(t, err)

	executor := NewPipelineExecutor(orchestrator, store)
	job := &models.Job{
		ID:      uuid.New(),
		Kind:    models.JobKindContractorEnrichment,
		Payload: json.RawMessage(`{"contractor_id":`),
	}

	_, err = executor.Execute(context.Background(), job)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid contractor enrichment payload")
}
