package domain

import "fmt"

// TaskStatus describes the lifecycle state of a Task during a run.
// The string values are the persisted wire format of the snapshot store.
type TaskStatus string

const (
	TaskStatusUndone           TaskStatus = "undone"
	TaskStatusDoing            TaskStatus = "doing"
	TaskStatusValidating       TaskStatus = "validating"
	TaskStatusDone             TaskStatus = "done"
	TaskStatusExecutionFailed  TaskStatus = "execution-failed"
	TaskStatusValidationFailed TaskStatus = "validation-failed"
)

// Valid reports whether s is one of the known statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusUndone, TaskStatusDoing, TaskStatusValidating,
		TaskStatusDone, TaskStatusExecutionFailed, TaskStatusValidationFailed:
		return true
	}
	return false
}

// IsFailed reports whether s is one of the two failure states.
func (s TaskStatus) IsFailed() bool {
	return s == TaskStatusExecutionFailed || s == TaskStatusValidationFailed
}

// ValidTaskStatusTransition checks if a status transition is allowed.
// Any status may return to undone: that is the rollback/reset edge.
func ValidTaskStatusTransition(from, to TaskStatus) bool {
	if to == TaskStatusUndone {
		return true
	}
	switch from {
	case TaskStatusUndone:
		return to == TaskStatusDoing
	case TaskStatusDoing:
		return to == TaskStatusValidating || to == TaskStatusExecutionFailed
	case TaskStatusValidating:
		return to == TaskStatusDone || to == TaskStatusValidationFailed
	case TaskStatusExecutionFailed, TaskStatusValidationFailed:
		return to == TaskStatusDoing
	default:
		return false
	}
}

// OutputSpec declares the artifact a task produces.
type OutputSpec struct {
	Artifact string `json:"artifact"`
	Format   string `json:"format,omitempty"`
}

// Task is one atomic unit of work in the execution graph.
//
// Everything except Status is a read-only snapshot supplied by the graph
// source; Status is owned by the scheduler for the lifetime of a run.
type Task struct {
	ID             string         `json:"task_id"`
	Dependencies   []string       `json:"dependencies"`
	Description    string         `json:"description,omitempty"`
	InputSpec      map[string]any `json:"input,omitempty"`
	OutputSpec     *OutputSpec    `json:"output,omitempty"`
	ValidationSpec map[string]any `json:"validation,omitempty"`
	Status         TaskStatus     `json:"status"`
}

// SetStatus transitions the task to a new status.
func (t *Task) SetStatus(newStatus TaskStatus) error {
	if !ValidTaskStatusTransition(t.Status, newStatus) {
		return fmt.Errorf("%w: cannot transition task %s from %s to %s",
			ErrInvalidState, t.ID, t.Status, newStatus)
	}
	t.Status = newStatus
	return nil
}

// ForceStatus sets the status without transition validation. Used only by
// the compatibility saturation fallback, which fabricates a terminal status
// outside the normal state machine.
func (t *Task) ForceStatus(newStatus TaskStatus) {
	t.Status = newStatus
}

// Clone returns a deep copy of the task. Scheduling units receive owned
// copies so that reads of spec fields never race with graph mutation.
func (t *Task) Clone() Task {
	c := *t
	if t.Dependencies != nil {
		c.Dependencies = append([]string(nil), t.Dependencies...)
	}
	if t.InputSpec != nil {
		c.InputSpec = make(map[string]any, len(t.InputSpec))
		for k, v := range t.InputSpec {
			c.InputSpec[k] = v
		}
	}
	if t.OutputSpec != nil {
		spec := *t.OutputSpec
		c.OutputSpec = &spec
	}
	if t.ValidationSpec != nil {
		c.ValidationSpec = make(map[string]any, len(t.ValidationSpec))
		for k, v := range t.ValidationSpec {
			c.ValidationSpec[k] = v
		}
	}
	return c
}

// ArtifactName returns the declared output artifact name, or "" when the
// task has no output spec.
func (t *Task) ArtifactName() string {
	if t.OutputSpec == nil {
		return ""
	}
	return t.OutputSpec.Artifact
}

// TaskState is the minimal per-task view broadcast to observers.
type TaskState struct {
	TaskID string     `json:"task_id"`
	Status TaskStatus `json:"status"`
}

// Layout is the opaque visual layout supplied alongside the task graph.
// The scheduler never interprets it; it is stored and re-broadcast for UIs.
type Layout map[string]any

// Snapshot is the persisted, recoverable view of a run: the ordered task
// list with current statuses.
type Snapshot struct {
	Tasks []Task `json:"tasks"`
}
