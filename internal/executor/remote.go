package executor

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	executeMethod  = "/wavefront.v1.TaskRunner/Execute"
	validateMethod = "/wavefront.v1.TaskRunner/Validate"
)

// invoker is the subset of grpc.ClientConn the runner needs. Tests inject a
// fake.
type invoker interface {
	Invoke(ctx context.Context, method string, args, reply any, opts ...grpc.CallOption) error
}

// RemoteRunner executes and validates tasks against a remote TaskRunner
// gRPC service. Requests and responses travel as structpb structs so the
// runner stays decoupled from any generated client.
type RemoteRunner struct {
	conn    *grpc.ClientConn
	invoker invoker
}

// NewRemoteRunner connects to the given runner address.
func NewRemoteRunner(addr string) (*RemoteRunner, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	return &RemoteRunner{conn: conn, invoker: conn}, nil
}

// NewRemoteRunnerWithInvoker allows injecting a custom transport for testing.
func NewRemoteRunnerWithInvoker(inv invoker) *RemoteRunner {
	return &RemoteRunner{invoker: inv}
}

// Close closes the underlying gRPC connection.
func (r *RemoteRunner) Close() error {
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

func (r *RemoteRunner) Execute(ctx context.Context, req *Request) (map[string]any, error) {
	in, err := structpb.NewStruct(executeRequestBody(req))
	if err != nil {
		return nil, fmt.Errorf("encode execute request: %w", err)
	}

	out := &structpb.Struct{}
	if err := r.invoker.Invoke(ctx, executeMethod, in, out); err != nil {
		return nil, err
	}

	result := out.AsMap()
	if errMsg, ok := result["error"].(string); ok && errMsg != "" {
		return nil, fmt.Errorf("remote execution failed for task %s: %s", req.Task.ID, errMsg)
	}
	output, _ := result["output"].(map[string]any)
	if output == nil {
		output = map[string]any{}
	}
	return output, nil
}

func (r *RemoteRunner) Validate(ctx context.Context, output map[string]any, req *Request) (*Validation, error) {
	body := executeRequestBody(req)
	body["output"] = output
	in, err := structpb.NewStruct(body)
	if err != nil {
		return nil, fmt.Errorf("encode validate request: %w", err)
	}

	out := &structpb.Struct{}
	if err := r.invoker.Invoke(ctx, validateMethod, in, out); err != nil {
		return nil, err
	}

	result := out.AsMap()
	passed, _ := result["passed"].(bool)
	report, _ := result["report"].(string)
	return &Validation{Passed: passed, Report: report}, nil
}

func executeRequestBody(req *Request) map[string]any {
	body := map[string]any{
		"plan_id":     req.PlanID,
		"task_id":     req.Task.ID,
		"description": req.Task.Description,
	}
	if req.Task.InputSpec != nil {
		body["input"] = req.Task.InputSpec
	}
	if spec := req.Task.OutputSpec; spec != nil {
		body["output_spec"] = map[string]any{"artifact": spec.Artifact, "format": spec.Format}
	}
	if len(req.ResolvedInputs) > 0 {
		body["resolved_inputs"] = req.ResolvedInputs
	}
	return body
}

var _ Executor = (*RemoteRunner)(nil)
var _ Validator = (*RemoteRunner)(nil)
