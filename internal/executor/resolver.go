package executor

import (
	"context"
	"fmt"

	"github.com/example/wavefront/internal/domain"
	"github.com/example/wavefront/internal/storage"
)

// ResolveInputs loads the output artifacts of a task's dependencies,
// keyed by each dependency's declared artifact name. Dependencies without
// an artifact name are skipped. A dependency whose artifact is missing
// makes the resolution fail with a *domain.MissingArtifactError.
func ResolveInputs(
	ctx context.Context,
	store storage.ArtifactStore,
	planID string,
	task *domain.Task,
	lookup func(id string) *domain.Task,
) (map[string]any, error) {
	if len(task.Dependencies) == 0 {
		return map[string]any{}, nil
	}

	resolved := make(map[string]any)
	var missing []string
	for _, depID := range task.Dependencies {
		dep := lookup(depID)
		if dep == nil {
			continue
		}
		name := dep.ArtifactName()
		if name == "" {
			continue
		}
		value, err := store.GetArtifact(ctx, planID, depID)
		if err != nil {
			return nil, fmt.Errorf("load artifact for dependency %s: %w", depID, err)
		}
		if value == nil {
			missing = append(missing, fmt.Sprintf("%s (artifact: %s)", depID, name))
			continue
		}
		resolved[name] = value
	}

	if len(missing) > 0 {
		return nil, &domain.MissingArtifactError{TaskID: task.ID, Missing: missing}
	}
	return resolved, nil
}
