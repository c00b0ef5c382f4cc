package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/localpros/hub/internal/content"
	"github.com/localpros/hub/internal/models"
	"github.com/localpros/hub/pkg/cache"
)

const researchSystemPrompt = "You are a research assistant for a local contractor directory. " +
	"Given a contractor profile and customer reviews, produce concise research notes for a " +
	"marketing writer: the contractor's strengths, specialties, service area, and anything " +
	"reviewers consistently mention. Bullet points, facts only."

type contractorSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Contractor, error)
	ListReviews(ctx context.Context, contractorID uuid.UUID) ([]models.Review, error)
}

// ResearchAgent gathers everything the later stages need about the
// contractor. Contractor rows are read through the loader cache since the
// same contractor is often enriched repeatedly in one poller window.
type ResearchAgent struct {
	contractors contractorSource
	cache       *cache.LoaderCache[uuid.UUID, *models.Contractor]
	generator   content.Generator
}

// NewResearchAgent creates the research stage.
func NewResearchAgent(contractors contractorSource, loaderCache *cache.LoaderCache[uuid.UUID, *models.Contractor], generator content.Generator) *ResearchAgent {
	return &ResearchAgent{
		contractors: contractors,
		cache:       loaderCache,
		generator:   generator,
	}
}

func (a *ResearchAgent) Type() models.AgentType {
	return models.AgentTypeResearch
}

// Execute fills pctx.ResearchNotes and defaults the topic when the job did
// not supply one.
func (a *ResearchAgent) Execute(ctx context.Context, pctx *models.PipelineContext) error {
	contractor, err := a.cache.Get(ctx, pctx.ContractorID, a.contractors.GetByID)
	if err != nil {
		return fmt.Errorf("load contractor %s: %w", pctx.ContractorID, err)
	}

	reviews, err := a.contractors.ListReviews(ctx, contractor.ID)
	if err != nil {
		return fmt.Errorf("list reviews for contractor %s: %w", contractor.ID, err)
	}

	if pctx.Topic == "" {
		pctx.Topic = fmt.Sprintf("%s services by %s in %s", contractor.Trade, contractor.Name, contractor.City)
	}

	notes, err := a.generator.Complete(ctx, content.CompletionRequest{
		System: researchSystemPrompt,
		Prompt: researchPrompt(contractor, reviews, pctx.Topic),
	})
	if err != nil {
		return fmt.Errorf("generate research notes: %w", err)
	}

	pctx.ResearchNotes = notes

	return nil
}

func researchPrompt(contractor *models.Contractor, reviews []models.Review, topic string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Topic: %s\n\n", topic)
	fmt.Fprintf(&b, "Contractor: %s\nTrade: %s\nCity: %s\n", contractor.Name, contractor.Trade, contractor.City)
	if contractor.Description != "" {
		fmt.Fprintf(&b, "Profile description: %s\n", contractor.Description)
	}
	if contractor.ReviewSummary != nil {
		fmt.Fprintf(&b, "Existing review summary: %s\n", *contractor.ReviewSummary)
	}

	if len(reviews) > 0 {
		b.WriteString("\nReviews:\n")
		for _, review := range reviews {
			fmt.Fprintf(&b, "- %d/5 from %s: %s\n", review.Rating, review.Author, review.Body)
		}
	}

	return b.String()
}
