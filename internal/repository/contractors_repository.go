package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/localpros/hub/internal/huberrors"
	"github.com/localpros/hub/internal/models"
)

// ContractorsRepository reads and enriches the slice of the contractor schema
// the job engine touches. Profile CRUD is owned by the directory API, not here.
type ContractorsRepository struct {
	db *pgxpool.Pool
}

// NewContractorsRepository creates a new contractors repository.
func NewContractorsRepository(db *pgxpool.Pool) *ContractorsRepository {
	return &ContractorsRepository{db: db}
}

// GetByID retrieves a contractor by id.
func (r *ContractorsRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Contractor, error) {
	query := `
		SELECT id, name, trade, city, description, review_summary, page_content, created_at, updated_at
		FROM contractors
		WHERE id = $1
	`

	var c models.Contractor
	err := r.db.QueryRow(ctx, query, id).Scan(
		&c.ID, &c.Name, &c.Trade, &c.City, &c.Description, &c.ReviewSummary, &c.PageContent,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, huberrors.NewNotFoundError("contractor", "")
		}

		return nil, fmt.Errorf("failed to get contractor: %w", err)
	}

	return &c, nil
}

// ListReviews retrieves all reviews for a contractor, newest first.
func (r *ContractorsRepository) ListReviews(ctx context.Context, contractorID uuid.UUID) ([]models.Review, error) {
	query := `
		SELECT id, contractor_id, author, body, rating, reviewer_image_url, created_at
		FROM reviews
		WHERE contractor_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.Query(ctx, query, contractorID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	defer rows.Close()

	reviews := []models.Review{}
	for rows.Next() {
		var rev models.Review
		err := rows.Scan(&rev.ID, &rev.ContractorID, &rev.Author, &rev.Body, &rev.Rating,
			&rev.ReviewerImageURL, &rev.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}

		reviews = append(reviews, rev)
	}

	return reviews, nil
}

// SetReviewerImageURL records the stored public URL for a review's reviewer image.
func (r *ContractorsRepository) SetReviewerImageURL(ctx context.Context, reviewID uuid.UUID, url string) error {
	result, err := r.db.Exec(ctx,
		`UPDATE reviews SET reviewer_image_url = $2 WHERE id = $1`, reviewID, url)
	if err != nil {
		return fmt.Errorf("failed to set reviewer image url: %w", err)
	}

	if result.RowsAffected() == 0 {
		return huberrors.NewNotFoundError("review", "")
	}

	return nil
}

// SetReviewSummary stores the generated review summary on the contractor row.
func (r *ContractorsRepository) SetReviewSummary(ctx context.Context, contractorID uuid.UUID, summary string) error {
	result, err := r.db.Exec(ctx,
		`UPDATE contractors SET review_summary = $2, updated_at = NOW() WHERE id = $1`, contractorID, summary)
	if err != nil {
		return fmt.Errorf("failed to set review summary: %w", err)
	}

	if result.RowsAffected() == 0 {
		return huberrors.NewNotFoundError("contractor", "")
	}

	return nil
}

// SetPageContent stores the generated directory page content on the contractor row.
func (r *ContractorsRepository) SetPageContent(ctx context.Context, contractorID uuid.UUID, content string) error {
	result, err := r.db.Exec(ctx,
		`UPDATE contractors SET page_content = $2, updated_at = NOW() WHERE id = $1`, contractorID, content)
	if err != nil {
		return fmt.Errorf("failed to set page content: %w", err)
	}

	if result.RowsAffected() == 0 {
		return huberrors.NewNotFoundError("contractor", "")
	}

	return nil
}
