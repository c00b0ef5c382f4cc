package agents

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"github.com/localpros/hub/internal/models"
)

type pageContentStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Contractor, error)
	SetPageContent(ctx context.Context, contractorID uuid.UUID, content string) error
}

// ProjectManagerAgent is the final stage: it refuses to publish a page QA did
// not approve, assembles the final document from the accumulated context, and
// persists it on the contractor row.
type ProjectManagerAgent struct {
	contractors pageContentStore
}

// NewProjectManagerAgent creates the project-manager stage.
func NewProjectManagerAgent(contractors pageContentStore) *ProjectManagerAgent {
	return &ProjectManagerAgent{contractors: contractors}
}

func (a *ProjectManagerAgent) Type() models.AgentType {
	return models.AgentTypeProjectManager
}

// Execute publishes the page. A QA rejection fails this stage so the run
// surfaces the report instead of silently publishing.
func (a *ProjectManagerAgent) Execute(ctx context.Context, pctx *models.PipelineContext) error {
	if !pctx.QAApproved {
		return fmt.Errorf("qa rejected the draft: %s", firstLine(pctx.QAReport))
	}

	contractor, err := a.contractors.GetByID(ctx, pctx.ContractorID)
	if err != nil {
		return fmt.Errorf("load contractor %s: %w", pctx.ContractorID, err)
	}

	pctx.PublishedSlug = Slugify(contractor.Name + " " + contractor.City)
	pctx.FinalContent = assemblePage(pctx)

	if err := a.contractors.SetPageContent(ctx, contractor.ID, pctx.FinalContent); err != nil {
		return fmt.Errorf("store page content for contractor %s: %w", contractor.ID, err)
	}

	return nil
}

func assemblePage(pctx *models.PipelineContext) string {
	var b strings.Builder

	b.WriteString("---\n")
	fmt.Fprintf(&b, "title: %q\n", pctx.SEOTitle)
	fmt.Fprintf(&b, "description: %q\n", pctx.SEODescription)
	if len(pctx.Keywords) > 0 {
		fmt.Fprintf(&b, "keywords: [%s]\n", strings.Join(pctx.Keywords, ", "))
	}
	fmt.Fprintf(&b, "slug: %s\n", pctx.PublishedSlug)
	b.WriteString("---\n\n")
	b.WriteString(strings.TrimSpace(pctx.Draft))
	b.WriteString("\n")

	return b.String()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}

	return strings.TrimSpace(s)
}

// Slugify lowercases s and collapses every non-alphanumeric run into a
// single hyphen.
func Slugify(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	lastHyphen := true
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastHyphen = false
			continue
		}

		if !lastHyphen {
			b.WriteByte('-')
			lastHyphen = true
		}
	}

	return strings.TrimSuffix(b.String(), "-")
}
