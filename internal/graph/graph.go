// Package graph holds the run-scoped execution graph: the task list for the
// current run plus the derived indices the scheduler drives from: forward
// and reverse dependency maps and the pending/running/completed membership
// sets.
//
// The graph source guarantees acyclicity; the graph does not re-verify it.
// ExecutionGraph is not internally synchronized: the scheduler guards every
// mutation (and every read that races a mutation) with its membership lock.
package graph

import "github.com/example/wavefront/internal/domain"

// ExecutionGraph is rebuilt at the start of every run. Its topology is
// immutable for the run; statuses, membership sets, and failure counts
// change as units progress.
type ExecutionGraph struct {
	// Order preserves the task order supplied by the graph source.
	Order []string

	// Tasks maps id to the caller's mutable task record. The graph aliases
	// the slice passed to Build, so status updates survive the run and a
	// later resume sees prior progress.
	Tasks map[string]*domain.Task

	// ReverseDeps maps a task id to the ids that depend on it.
	ReverseDeps map[string][]string

	// Membership sets. Disjoint, modulo brief transition windows inside
	// the scheduler's lock.
	Pending   map[string]struct{}
	Running   map[string]struct{}
	Completed map[string]struct{}

	// FailureCount tracks execute+validate failures per task for the
	// current run; cleared on success and on rollback.
	FailureCount map[string]int
}

// Build constructs the graph and its derived indices from the task list.
// Every task starts out pending. Unknown dependency ids are ignored when
// building the reverse index, matching the graph source contract that all
// referenced ids exist.
func Build(tasks []domain.Task) *ExecutionGraph {
	g := &ExecutionGraph{
		Order:        make([]string, 0, len(tasks)),
		Tasks:        make(map[string]*domain.Task, len(tasks)),
		ReverseDeps:  make(map[string][]string, len(tasks)),
		Pending:      make(map[string]struct{}, len(tasks)),
		Running:      make(map[string]struct{}),
		Completed:    make(map[string]struct{}),
		FailureCount: make(map[string]int),
	}

	for i := range tasks {
		t := &tasks[i]
		g.Order = append(g.Order, t.ID)
		g.Tasks[t.ID] = t
		g.Pending[t.ID] = struct{}{}
		g.ReverseDeps[t.ID] = nil
	}

	for _, id := range g.Order {
		for _, dep := range g.Tasks[id].Dependencies {
			if _, ok := g.ReverseDeps[dep]; ok {
				g.ReverseDeps[dep] = append(g.ReverseDeps[dep], id)
			}
		}
	}

	return g
}

// Len returns the number of tasks in the graph.
func (g *ExecutionGraph) Len() int { return len(g.Order) }

// Task returns the task with the given id, or nil.
func (g *ExecutionGraph) Task(id string) *domain.Task {
	return g.Tasks[id]
}

// DependenciesSatisfied reports whether every dependency of t is completed.
// Vacuously true for tasks with no dependencies.
func (g *ExecutionGraph) DependenciesSatisfied(t *domain.Task) bool {
	for _, dep := range t.Dependencies {
		if _, ok := g.Completed[dep]; !ok {
			return false
		}
	}
	return true
}

// ReadyTasks returns every pending task that is neither running nor
// completed and whose dependencies are all satisfied, in graph order.
func (g *ExecutionGraph) ReadyTasks() []*domain.Task {
	var ready []*domain.Task
	for _, id := range g.Order {
		if _, ok := g.Pending[id]; !ok {
			continue
		}
		if _, ok := g.Running[id]; ok {
			continue
		}
		if _, ok := g.Completed[id]; ok {
			continue
		}
		if t := g.Tasks[id]; t != nil && g.DependenciesSatisfied(t) {
			ready = append(ready, t)
		}
	}
	return ready
}

// Dependents returns the direct dependents of a task.
func (g *ExecutionGraph) Dependents(id string) []string {
	return g.ReverseDeps[id]
}

// DownstreamClosure returns id plus every transitive dependent of id.
func (g *ExecutionGraph) DownstreamClosure(id string) map[string]struct{} {
	closure := map[string]struct{}{id: {}}
	g.collectDownstream(id, closure, map[string]struct{}{})
	return closure
}

func (g *ExecutionGraph) collectDownstream(id string, closure, visited map[string]struct{}) {
	if _, ok := visited[id]; ok {
		return
	}
	visited[id] = struct{}{}
	for _, dep := range g.ReverseDeps[id] {
		closure[dep] = struct{}{}
		g.collectDownstream(dep, closure, visited)
	}
}

// RollbackClosure computes the set of tasks invalidated by a terminal
// failure of t: the task itself, its direct dependencies, and every
// transitive dependent of the task and of those dependencies. Anything
// downstream of an undone task is unreliable and must be undone too.
func (g *ExecutionGraph) RollbackClosure(t *domain.Task) map[string]struct{} {
	closure := map[string]struct{}{t.ID: {}}
	for _, dep := range t.Dependencies {
		closure[dep] = struct{}{}
	}

	visited := map[string]struct{}{}
	for _, dep := range t.Dependencies {
		g.collectDownstream(dep, closure, visited)
	}
	g.collectDownstream(t.ID, closure, visited)

	return closure
}

// MarkRunning moves a task into the running set.
func (g *ExecutionGraph) MarkRunning(id string) {
	g.Running[id] = struct{}{}
}

// MarkCompleted moves a task into the completed set and out of the others.
func (g *ExecutionGraph) MarkCompleted(id string) {
	delete(g.Running, id)
	delete(g.Pending, id)
	g.Completed[id] = struct{}{}
}

// Requeue returns a task to the pending set, discarding any running or
// completed membership. Used by retry and rollback.
func (g *ExecutionGraph) Requeue(id string) {
	delete(g.Running, id)
	delete(g.Completed, id)
	g.Pending[id] = struct{}{}
}

// TaskStates returns the broadcastable per-task view, in graph order.
func (g *ExecutionGraph) TaskStates() []domain.TaskState {
	states := make([]domain.TaskState, 0, len(g.Order))
	for _, id := range g.Order {
		if t := g.Tasks[id]; t != nil {
			states = append(states, domain.TaskState{TaskID: t.ID, Status: t.Status})
		}
	}
	return states
}

// SnapshotTasks returns deep copies of the tasks in graph order, suitable
// for handing to the snapshot persister outside the scheduler lock.
func (g *ExecutionGraph) SnapshotTasks() []domain.Task {
	tasks := make([]domain.Task, 0, len(g.Order))
	for _, id := range g.Order {
		if t := g.Tasks[id]; t != nil {
			tasks = append(tasks, t.Clone())
		}
	}
	return tasks
}
