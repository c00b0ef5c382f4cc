package jobs

import (
	"log/slog"

	"github.com/localpros/hub/internal/models"
)

// Registry maps job kinds to executors. It is populated once during startup
// and read-only afterwards, so concurrent reads need no locking. It is passed
// by reference into the runner rather than living as a package-level global.
type Registry struct {
	executors map[models.JobKind]Executor
}

// NewRegistry creates an empty executor registry.
func NewRegistry() *Registry {
	return &Registry{
		executors: make(map[models.JobKind]Executor),
	}
}

// Register binds an executor to a kind. Re-registering an already-bound kind
// is a silent skip, not an error: process restarts re-run the startup
// sequence and must stay idempotent.
func (r *Registry) Register(kind models.JobKind, executor Executor) {
	if _, exists := r.executors[kind]; exists {
		slog.Debug("executor already registered, skipping", "kind", kind)
		return
	}

	r.executors[kind] = executor
	slog.Info("registered job executor", "kind", kind)
}

// Resolve returns the executor for kind.
func (r *Registry) Resolve(kind models.JobKind) (Executor, bool) {
	executor, ok := r.executors[kind]

	return executor, ok
}

// ValidateComplete returns the required kinds that have no executor bound.
// Startup checks this before accepting any job so a misconfigured deployment
// fails fast instead of failing jobs one by one.
func (r *Registry) ValidateComplete(required []models.JobKind) []models.JobKind {
	var missing []models.JobKind
	for _, kind := range required {
		if _, ok := r.executors[kind]; !ok {
			missing = append(missing, kind)
		}
	}

	return missing
}

// Kinds returns all registered kinds.
func (r *Registry) Kinds() []models.JobKind {
	kinds := make([]models.JobKind, 0, len(r.executors))
	for kind := range r.executors {
		kinds = append(kinds, kind)
	}

	return kinds
}
