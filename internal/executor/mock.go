package executor

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

const mockChunkSize = 20

// MockConfig tunes the simulated executor and validator.
type MockConfig struct {
	ExecutionPassProbability  float64
	ValidationPassProbability float64
	ExecutionLatency          time.Duration
	ChunkDelay                time.Duration
	Seed                      int64
}

// MockExecutor simulates task execution with configurable failure rates and
// a streamed thinking trace.
type MockExecutor struct {
	cfg MockConfig

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewMockExecutor creates a mock executor. A zero Seed seeds from the clock.
func NewMockExecutor(cfg MockConfig) *MockExecutor {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &MockExecutor{cfg: cfg, rnd: rand.New(rand.NewSource(seed))}
}

func (m *MockExecutor) roll() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rnd.Float64()
}

func (m *MockExecutor) Execute(ctx context.Context, req *Request) (map[string]any, error) {
	thinking := fmt.Sprintf(
		"# Executing Task %s\n\nDescription: %s\n\nResolving %d input artifact(s)...\nProducing output %q...\n",
		req.Task.ID, req.Task.Description, len(req.ResolvedInputs), req.Task.ArtifactName(),
	)
	if err := streamChunks(ctx, req, thinking, "Execute", m.cfg.ChunkDelay); err != nil {
		return nil, err
	}

	if m.cfg.ExecutionLatency > 0 {
		if err := sleepCtx(ctx, m.cfg.ExecutionLatency); err != nil {
			return nil, err
		}
	}

	if m.roll() >= m.cfg.ExecutionPassProbability {
		return nil, fmt.Errorf("simulated execution failure for task %s", req.Task.ID)
	}

	return map[string]any{
		"content":  fmt.Sprintf("Mock output for task %s", req.Task.ID),
		"task_id":  req.Task.ID,
		"artifact": req.Task.ArtifactName(),
	}, nil
}

// MockValidator simulates validation, streaming a markdown report in chunks.
type MockValidator struct {
	cfg MockConfig

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewMockValidator creates a mock validator. A zero Seed seeds from the clock.
func NewMockValidator(cfg MockConfig) *MockValidator {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &MockValidator{cfg: cfg, rnd: rand.New(rand.NewSource(seed))}
}

func (m *MockValidator) Validate(ctx context.Context, output map[string]any, req *Request) (*Validation, error) {
	m.mu.Lock()
	passed := m.rnd.Float64() < m.cfg.ValidationPassProbability
	m.mu.Unlock()

	verdict := "FAIL"
	if passed {
		verdict = "PASS"
	}
	report := fmt.Sprintf(
		"# Validating Task %s\n\n"+
			"Checking output against criteria...\n\n"+
			"- Criterion 1: Output format ✓\n"+
			"- Criterion 2: Content completeness ✓\n"+
			"- Criterion 3: Alignment with spec ✓\n\n"+
			"**Result: %s**\n\n"+
			"(Mock validation mode)",
		req.Task.ID, verdict,
	)

	if err := streamChunks(ctx, req, report, "Validate", m.cfg.ChunkDelay); err != nil {
		return nil, err
	}

	return &Validation{Passed: passed, Report: report}, nil
}

// streamChunks delivers s to the request's thinking callback in fixed-size
// rune chunks with a delay between chunks.
func streamChunks(ctx context.Context, req *Request, s, operation string, delay time.Duration) error {
	runes := []rune(s)
	for start := 0; start < len(runes); start += mockChunkSize {
		end := start + mockChunkSize
		if end > len(runes) {
			end = len(runes)
		}
		if err := req.thinking(ctx, string(runes[start:end]), operation); err != nil {
			return err
		}
		if delay > 0 {
			if err := sleepCtx(ctx, delay); err != nil {
				return err
			}
		}
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
