package agents

import (
	"context"
	"fmt"

	"github.com/localpros/hub/internal/content"
	"github.com/localpros/hub/internal/models"
)

const writerSystemPrompt = "You write profile pages for a local contractor directory. " +
	"Given research notes, write a warm, factual page in Markdown with a short introduction, " +
	"a services section, and a closing call to action. Do not invent credentials or prices."

// WriterAgent turns the research notes into a page draft.
type WriterAgent struct {
	generator content.Generator
}

// NewWriterAgent creates the writer stage.
func NewWriterAgent(generator content.Generator) *WriterAgent {
	return &WriterAgent{generator: generator}
}

func (a *WriterAgent) Type() models.AgentType {
	return models.AgentTypeWriter
}

// Execute fills pctx.Draft from the research notes.
func (a *WriterAgent) Execute(ctx context.Context, pctx *models.PipelineContext) error {
	if pctx.ResearchNotes == "" {
		return fmt.Errorf("no research notes to write from")
	}

	draft, err := a.generator.Complete(ctx, content.CompletionRequest{
		System: writerSystemPrompt,
		Prompt: fmt.Sprintf("Topic: %s\n\nResearch notes:\n%s", pctx.Topic, pctx.ResearchNotes),
	})
	if err != nil {
		return fmt.Errorf("generate draft: %w", err)
	}

	pctx.Draft = draft

	return nil
}
