package agents

import (
	"log/slog"

	"github.com/localpros/hub/internal/models"
)

// Registry maps agent types to agent instances. Populated once at startup,
// read-only afterwards.
type Registry struct {
	agents map[models.AgentType]Agent
}

// NewRegistry creates an empty agent registry.
func NewRegistry() *Registry {
	return &Registry{
		agents: make(map[models.AgentType]Agent),
	}
}

// Register binds an agent. Re-registering a type is a silent skip.
func (r *Registry) Register(agent Agent) {
	if _, exists := r.agents[agent.Type()]; exists {
		slog.Debug("agent already registered, skipping", "agent_type", agent.Type())
		return
	}

	r.agents[agent.Type()] = agent
	slog.Info("registered pipeline agent", "agent_type", agent.Type())
}

// Resolve returns the agent for the given type.
func (r *Registry) Resolve(agentType models.AgentType) (Agent, bool) {
	agent, ok := r.agents[agentType]

	return agent, ok
}

// ValidatePipeline returns the pipeline stages that have no agent bound.
func (r *Registry) ValidatePipeline() []models.AgentType {
	var missing []models.AgentType
	for _, agentType := range models.PipelineOrder {
		if _, ok := r.agents[agentType]; !ok {
			missing = append(missing, agentType)
		}
	}

	return missing
}
