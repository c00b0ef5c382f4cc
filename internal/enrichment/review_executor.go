package enrichment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/localpros/hub/internal/content"
	"github.com/localpros/hub/internal/jobs"
	"github.com/localpros/hub/internal/models"
)

const reviewSummarySystemPrompt = "You summarize customer reviews for a local contractor directory. " +
	"Write a neutral two to three sentence summary of the reviews you are given. " +
	"Mention recurring praise and recurring complaints. Do not invent details."

type reviewSummaryStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Contractor, error)
	ListReviews(ctx context.Context, contractorID uuid.UUID) ([]models.Review, error)
	SetReviewSummary(ctx context.Context, contractorID uuid.UUID, summary string) error
}

// ReviewEnrichmentExecutor generates a short natural-language summary of a
// contractor's reviews and stores it on the contractor row.
type ReviewEnrichmentExecutor struct {
	contractors reviewSummaryStore
	generator   content.Generator
}

// NewReviewEnrichmentExecutor creates the executor.
func NewReviewEnrichmentExecutor(contractors reviewSummaryStore, generator content.Generator) *ReviewEnrichmentExecutor {
	return &ReviewEnrichmentExecutor{
		contractors: contractors,
		generator:   generator,
	}
}

// Execute summarizes the contractor's reviews. A contractor with no reviews
// completes with nothing to do rather than failing.
func (e *ReviewEnrichmentExecutor) Execute(ctx context.Context, job *models.Job) (*jobs.ExecutionResult, error) {
	var payload models.ReviewEnrichmentPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return nil, fmt.Errorf("invalid review enrichment payload: %w", err)
	}

	contractor, err := e.contractors.GetByID(ctx, payload.ContractorID)
	if err != nil {
		return nil, fmt.Errorf("load contractor %s: %w", payload.ContractorID, err)
	}

	reviews, err := e.contractors.ListReviews(ctx, contractor.ID)
	if err != nil {
		return nil, fmt.Errorf("list reviews for contractor %s: %w", contractor.ID, err)
	}

	if len(reviews) == 0 {
		return &jobs.ExecutionResult{Note: "no reviews to summarize"}, nil
	}

	summary, err := e.generator.Complete(ctx, content.CompletionRequest{
		System: reviewSummarySystemPrompt,
		Prompt: reviewPrompt(contractor, reviews),
	})
	if err != nil {
		return nil, fmt.Errorf("generate review summary: %w", err)
	}

	if err := e.contractors.SetReviewSummary(ctx, contractor.ID, summary); err != nil {
		return nil, fmt.Errorf("store review summary: %w", err)
	}

	return &jobs.ExecutionResult{
		Note: fmt.Sprintf("summarized %d reviews", len(reviews)),
	}, nil
}

func reviewPrompt(contractor *models.Contractor, reviews []models.Review) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Contractor: %s, a %s in %s.\n\nReviews:\n", contractor.Name, contractor.Trade, contractor.City)

	for _, review := range reviews {
		fmt.Fprintf(&b, "- %d/5 from %s: %s\n", review.Rating, review.Author, review.Body)
	}

	return b.String()
}
