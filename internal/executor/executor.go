// Package executor defines the task execution and validation contracts, a
// mock implementation for local runs, and a gRPC-backed remote runner.
package executor

import (
	"context"

	"github.com/example/wavefront/internal/domain"
)

// ThinkingFunc receives streamed progress chunks during an operation.
// Operation is "Execute" or "Validate".
type ThinkingFunc func(ctx context.Context, chunk, operation string) error

// Request carries everything an executor needs to run one task.
type Request struct {
	Task           *domain.Task
	ResolvedInputs map[string]any
	PlanID         string
	OnThinking     ThinkingFunc
}

func (r *Request) thinking(ctx context.Context, chunk, operation string) error {
	if r.OnThinking == nil {
		return nil
	}
	return r.OnThinking(ctx, chunk, operation)
}

// Executor produces a task's output artifact.
type Executor interface {
	Execute(ctx context.Context, req *Request) (map[string]any, error)
}

// Validation is the outcome of checking a task's output.
type Validation struct {
	Passed bool
	Report string
}

// Validator checks a task's output against its output spec.
type Validator interface {
	Validate(ctx context.Context, output map[string]any, req *Request) (*Validation, error)
}
