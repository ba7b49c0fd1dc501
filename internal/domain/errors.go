package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState is returned when a status transition is not allowed.
	ErrInvalidState = errors.New("invalid state transition")

	// ErrRunActive is returned when an operation requires no run in progress.
	ErrRunActive = errors.New("execution is already running")

	// ErrRunNotActive is returned when an operation requires an active run.
	ErrRunNotActive = errors.New("no execution is running")

	// ErrNoGraph is returned by start when no task graph has been set.
	ErrNoGraph = errors.New("no execution graph set")

	// ErrNoLayout is returned by start when no layout has been set.
	ErrNoLayout = errors.New("no execution layout set")

	// ErrStopped signals a user-initiated abort. It is cooperative
	// cancellation, never counted as an execution failure.
	ErrStopped = errors.New("execution stopped by user")

	// ErrPoolSaturated is returned when no worker slot frees up within the
	// acquisition retry bound.
	ErrPoolSaturated = errors.New("worker pool saturated")

	// ErrNotRetryable is returned by retry-task when the task is not in a
	// failed state.
	ErrNotRetryable = errors.New("task is not in a retryable state")

	// ErrMissingOutputSpec is a structural task error: execution cannot
	// produce an artifact without an output spec.
	ErrMissingOutputSpec = errors.New("task has no output spec")
)

// MissingArtifactError reports dependency outputs that are not yet available
// when resolving a task's inputs.
type MissingArtifactError struct {
	TaskID  string
	Missing []string
}

func (e *MissingArtifactError) Error() string {
	return fmt.Sprintf("task %s depends on outputs not ready: %s",
		e.TaskID, strings.Join(e.Missing, ", "))
}
