package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/localpros/hub/internal/content"
	"github.com/localpros/hub/internal/models"
)

const seoSystemPrompt = "You are an SEO specialist for a local contractor directory. " +
	"Given a page draft, respond with only a JSON object of the form " +
	`{"title": "...", "description": "...", "keywords": ["..."]}. ` +
	"The title is at most 60 characters, the description at most 155, and keywords " +
	"are 3 to 8 local search phrases."

type seoOutput struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Keywords    []string `json:"keywords"`
}

// SEOAgent derives the page's search metadata from the draft.
type SEOAgent struct {
	generator content.Generator
}

// NewSEOAgent creates the SEO stage.
func NewSEOAgent(generator content.Generator) *SEOAgent {
	return &SEOAgent{generator: generator}
}

func (a *SEOAgent) Type() models.AgentType {
	return models.AgentTypeSEO
}

// Execute fills the SEO title, description, and keywords.
func (a *SEOAgent) Execute(ctx context.Context, pctx *models.PipelineContext) error {
	if pctx.Draft == "" {
		return fmt.Errorf("no draft to optimize")
	}

	raw, err := a.generator.Complete(ctx, content.CompletionRequest{
		System: seoSystemPrompt,
		Prompt: fmt.Sprintf("Topic: %s\n\nDraft:\n%s", pctx.Topic, pctx.Draft),
	})
	if err != nil {
		return fmt.Errorf("generate seo metadata: %w", err)
	}

	var out seoOutput
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &out); err != nil {
		return fmt.Errorf("parse seo metadata: %w", err)
	}

	if out.Title == "" || out.Description == "" {
		return fmt.Errorf("seo metadata missing title or description")
	}

	pctx.SEOTitle = out.Title
	pctx.SEODescription = out.Description
	pctx.Keywords = out.Keywords

	return nil
}

// stripCodeFence unwraps a ```json fenced block when the model adds one.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")

	return strings.TrimSpace(s)
}
