package executor

import (
	"context"
	"strings"
	"testing"

	"github.com/example/wavefront/internal/domain"
)

func checkReq(task *domain.Task) *Request {
	return &Request{Task: task, PlanID: "plan-test"}
}

func jsonTask() *domain.Task {
	return &domain.Task{
		ID:         "t1",
		OutputSpec: &domain.OutputSpec{Artifact: "result", Format: "JSON object"},
	}
}

func TestCheckValidatorJSONOutputPasses(t *testing.T) {
	v := NewCheckValidator()
	output := map[string]any{"content": "hello", "count": 3}

	res, err := v.Validate(context.Background(), output, checkReq(jsonTask()))
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !res.Passed {
		t.Fatalf("expected pass, report:\n%s", res.Report)
	}
	if !strings.Contains(res.Report, "- Output format (JSON): PASS") {
		t.Errorf("report missing JSON format line:\n%s", res.Report)
	}
	if !strings.Contains(res.Report, "**Result: PASS**") {
		t.Errorf("report missing verdict:\n%s", res.Report)
	}
}

func TestCheckValidatorUnmarshalableJSONFails(t *testing.T) {
	v := NewCheckValidator()
	output := map[string]any{"bad": make(chan int)}

	res, err := v.Validate(context.Background(), output, checkReq(jsonTask()))
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if res.Passed {
		t.Fatal("expected failure for unmarshalable output")
	}
	if !strings.Contains(res.Report, "- Output format (JSON): FAIL") {
		t.Errorf("report should flag the format check:\n%s", res.Report)
	}
	if !strings.Contains(res.Report, "**Result: FAIL**") {
		t.Errorf("report missing FAIL verdict:\n%s", res.Report)
	}
}

func TestCheckValidatorMarkdownRequiresContent(t *testing.T) {
	task := &domain.Task{
		ID:         "t2",
		OutputSpec: &domain.OutputSpec{Artifact: "notes", Format: "markdown"},
	}
	v := NewCheckValidator()

	res, err := v.Validate(context.Background(), map[string]any{"content": "   "}, checkReq(task))
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if res.Passed {
		t.Fatal("blank content should fail the format check")
	}

	res, err = v.Validate(context.Background(), map[string]any{"content": "# Notes"}, checkReq(task))
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !res.Passed {
		t.Fatalf("non-empty content should pass, report:\n%s", res.Report)
	}
}

func TestCheckValidatorEmptyOutputFailsContentCheck(t *testing.T) {
	task := &domain.Task{ID: "t3", OutputSpec: &domain.OutputSpec{Artifact: "out", Format: "text"}}
	v := NewCheckValidator()

	res, err := v.Validate(context.Background(), map[string]any{}, checkReq(task))
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if res.Passed {
		t.Fatal("empty output should fail")
	}
	if !strings.Contains(res.Report, "- Content completeness: FAIL") {
		t.Errorf("report should flag content completeness:\n%s", res.Report)
	}
}

func TestCheckValidatorStreamsReport(t *testing.T) {
	v := NewCheckValidator()
	var got strings.Builder
	var ops []string
	req := checkReq(jsonTask())
	req.OnThinking = func(ctx context.Context, chunk, operation string) error {
		got.WriteString(chunk)
		ops = append(ops, operation)
		return nil
	}

	res, err := v.Validate(context.Background(), map[string]any{"content": "x"}, req)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if got.String() != res.Report {
		t.Errorf("streamed chunks do not reassemble the report\nstreamed: %q\nreport:   %q", got.String(), res.Report)
	}
	for _, op := range ops {
		if op != "Validate" {
			t.Fatalf("unexpected operation %q", op)
		}
	}
}
