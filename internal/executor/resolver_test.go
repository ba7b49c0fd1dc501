package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/example/wavefront/internal/domain"
)

// memArtifacts is a map-backed ArtifactStore for resolver tests.
type memArtifacts struct {
	data map[string]map[string]any
}

func newMemArtifacts() *memArtifacts {
	return &memArtifacts{data: make(map[string]map[string]any)}
}

func (m *memArtifacts) key(planID, taskID string) string { return planID + "/" + taskID }

func (m *memArtifacts) GetArtifact(ctx context.Context, planID, taskID string) (map[string]any, error) {
	return m.data[m.key(planID, taskID)], nil
}

func (m *memArtifacts) PutArtifact(ctx context.Context, planID, taskID string, data map[string]any) error {
	m.data[m.key(planID, taskID)] = data
	return nil
}

func (m *memArtifacts) DeleteArtifact(ctx context.Context, planID, taskID string) error {
	delete(m.data, m.key(planID, taskID))
	return nil
}

func resolverFixture() (map[string]*domain.Task, func(string) *domain.Task) {
	tasks := map[string]*domain.Task{
		"a": {ID: "a", OutputSpec: &domain.OutputSpec{Artifact: "analysis", Format: "JSON"}},
		"b": {ID: "b", OutputSpec: &domain.OutputSpec{Artifact: "report", Format: "markdown"}},
		"c": {ID: "c"}, // no output spec, produces no artifact
	}
	lookup := func(id string) *domain.Task { return tasks[id] }
	return tasks, lookup
}

func TestResolveInputsKeysByArtifactName(t *testing.T) {
	_, lookup := resolverFixture()
	store := newMemArtifacts()
	ctx := context.Background()
	store.PutArtifact(ctx, "p1", "a", map[string]any{"content": "A"})
	store.PutArtifact(ctx, "p1", "b", map[string]any{"content": "B"})

	task := &domain.Task{ID: "d", Dependencies: []string{"a", "b"}}
	resolved, err := ResolveInputs(ctx, store, "p1", task, lookup)
	if err != nil {
		t.Fatalf("ResolveInputs: %v", err)
	}
	if len(resolved) != 2 {
		t.Fatalf("resolved = %v, want 2 entries", resolved)
	}
	if resolved["analysis"] == nil || resolved["report"] == nil {
		t.Errorf("inputs not keyed by artifact name: %v", resolved)
	}
}

func TestResolveInputsSkipsArtifactlessDeps(t *testing.T) {
	_, lookup := resolverFixture()
	store := newMemArtifacts()
	ctx := context.Background()
	store.PutArtifact(ctx, "p1", "a", map[string]any{"content": "A"})

	// c has no output spec, "ghost" is not in the plan at all.
	task := &domain.Task{ID: "d", Dependencies: []string{"a", "c", "ghost"}}
	resolved, err := ResolveInputs(ctx, store, "p1", task, lookup)
	if err != nil {
		t.Fatalf("ResolveInputs: %v", err)
	}
	if len(resolved) != 1 {
		t.Fatalf("resolved = %v, want only a's artifact", resolved)
	}
}

func TestResolveInputsMissingArtifact(t *testing.T) {
	_, lookup := resolverFixture()
	store := newMemArtifacts()
	ctx := context.Background()
	store.PutArtifact(ctx, "p1", "a", map[string]any{"content": "A"})

	task := &domain.Task{ID: "d", Dependencies: []string{"a", "b"}}
	_, err := ResolveInputs(ctx, store, "p1", task, lookup)
	var missing *domain.MissingArtifactError
	if !errors.As(err, &missing) {
		t.Fatalf("err = %v, want *domain.MissingArtifactError", err)
	}
	if missing.TaskID != "d" {
		t.Errorf("TaskID = %q, want d", missing.TaskID)
	}
	if len(missing.Missing) != 1 || missing.Missing[0] != "b (artifact: report)" {
		t.Errorf("Missing = %v", missing.Missing)
	}
}

func TestResolveInputsNoDependencies(t *testing.T) {
	_, lookup := resolverFixture()
	resolved, err := ResolveInputs(context.Background(), newMemArtifacts(), "p1", &domain.Task{ID: "a"}, lookup)
	if err != nil {
		t.Fatalf("ResolveInputs: %v", err)
	}
	if len(resolved) != 0 {
		t.Errorf("resolved = %v, want empty", resolved)
	}
}
