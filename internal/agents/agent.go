// Package agents implements the fixed-order content-generation pipeline:
// Research, Writer, SEO, QA, and ProjectManager stages run in sequence over
// one shared context, checkpointed after every stage.
package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/localpros/hub/internal/models"
)

// Agent is one pipeline stage.
type Agent interface {
	Type() models.AgentType
	Execute(ctx context.Context, pctx *models.PipelineContext) error
}

// StageError wraps a stage failure with the identity of the failing stage.
// Later stages never run after one of these.
type StageError struct {
	Stage models.AgentType
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("pipeline stage %s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// MisconfiguredPipelineError reports the agent types missing from the
// registry. It is returned at orchestrator construction so a partial roster
// never starts serving.
type MisconfiguredPipelineError struct {
	Missing []models.AgentType
}

func (e *MisconfiguredPipelineError) Error() string {
	names := make([]string, len(e.Missing))
	for i, t := range e.Missing {
		names[i] = string(t)
	}

	return fmt.Sprintf("pipeline is missing agents: %s", strings.Join(names, ", "))
}
