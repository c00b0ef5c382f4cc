package models

import (
	"time"

	"github.com/google/uuid"
)

// AgentType identifies one stage of the content-generation pipeline.
type AgentType string

const (
	AgentTypeResearch       AgentType = "research"
	AgentTypeWriter         AgentType = "writer"
	AgentTypeSEO            AgentType = "seo"
	AgentTypeQA             AgentType = "qa"
	AgentTypeProjectManager AgentType = "project_manager"
)

// PipelineOrder is the fixed execution order of the content pipeline.
var PipelineOrder = []AgentType{
	AgentTypeResearch,
	AgentTypeWriter,
	AgentTypeSEO,
	AgentTypeQA,
	AgentTypeProjectManager,
}

// PipelineContext is the shared work item passed between agent stages.
// It is owned exclusively by one orchestrator run and mutated in place;
// it is never shared across concurrent runs.
type PipelineContext struct {
	RunID        uuid.UUID `json:"run_id"`
	ContractorID uuid.UUID `json:"contractor_id"`
	Topic        string    `json:"topic"`

	// Stage outputs, filled in pipeline order.
	ResearchNotes   string   `json:"research_notes,omitempty"`
	Draft           string   `json:"draft,omitempty"`
	SEOTitle        string   `json:"seo_title,omitempty"`
	SEODescription  string   `json:"seo_description,omitempty"`
	Keywords        []string `json:"keywords,omitempty"`
	QAReport        string   `json:"qa_report,omitempty"`
	QAApproved      bool     `json:"qa_approved"`
	PublishedSlug   string   `json:"published_slug,omitempty"`
	FinalContent    string   `json:"final_content,omitempty"`
}

// PipelineRun records the persisted progress of one orchestrator run:
// the last completed stage and a snapshot of the context after it.
// A crash mid-pipeline resumes from here instead of redoing earlier stages.
type PipelineRun struct {
	ID             uuid.UUID  `json:"id"`
	ContractorID   uuid.UUID  `json:"contractor_id"`
	CompletedStage *AgentType `json:"completed_stage,omitempty"`
	Context        []byte     `json:"context,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}
