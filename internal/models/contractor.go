package models

import (
	"time"

	"github.com/google/uuid"
)

// Contractor is the slice of the directory's contractor row the job engine
// reads and enriches. The full schema (profile fields, service areas, plan
// tier) is owned by the CRUD layer and not modelled here.
type Contractor struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Trade         string    `json:"trade"`
	City          string    `json:"city"`
	Description   string    `json:"description,omitempty"`
	ReviewSummary *string   `json:"review_summary,omitempty"`
	PageContent   *string   `json:"page_content,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Review is one contractor review; the engine only touches the reviewer image.
type Review struct {
	ID               uuid.UUID `json:"id"`
	ContractorID     uuid.UUID `json:"contractor_id"`
	Author           string    `json:"author"`
	Body             string    `json:"body"`
	Rating           int       `json:"rating"`
	ReviewerImageURL *string   `json:"reviewer_image_url,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}
