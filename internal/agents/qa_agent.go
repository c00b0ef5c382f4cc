package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/localpros/hub/internal/content"
	"github.com/localpros/hub/internal/models"
)

const qaSystemPrompt = "You review contractor profile pages before publication. " +
	"Check the draft against the research notes for invented facts, broken tone, and " +
	"missing sections. Respond with APPROVED on the first line if the page may publish, " +
	"or REJECTED on the first line if it may not, followed by your findings."

// QAAgent reviews the draft and records the verdict. A rejection is a normal
// stage outcome, not a stage failure: the report and verdict land in the
// context and the project manager decides what to do with them.
type QAAgent struct {
	generator content.Generator
}

// NewQAAgent creates the QA stage.
func NewQAAgent(generator content.Generator) *QAAgent {
	return &QAAgent{generator: generator}
}

func (a *QAAgent) Type() models.AgentType {
	return models.AgentTypeQA
}

// Execute fills pctx.QAReport and pctx.QAApproved.
func (a *QAAgent) Execute(ctx context.Context, pctx *models.PipelineContext) error {
	if pctx.Draft == "" {
		return fmt.Errorf("no draft to review")
	}

	report, err := a.generator.Complete(ctx, content.CompletionRequest{
		System: qaSystemPrompt,
		Prompt: fmt.Sprintf("Research notes:\n%s\n\nDraft:\n%s\n\nSEO title: %s\nSEO description: %s",
			pctx.ResearchNotes, pctx.Draft, pctx.SEOTitle, pctx.SEODescription),
	})
	if err != nil {
		return fmt.Errorf("generate qa review: %w", err)
	}

	pctx.QAReport = report
	pctx.QAApproved = strings.HasPrefix(strings.ToUpper(strings.TrimSpace(report)), "APPROVED")

	return nil
}
