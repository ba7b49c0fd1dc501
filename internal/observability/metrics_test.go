package observability

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestCounterAndGauge(t *testing.T) {
	c := NewCounter()
	c.Inc()
	c.Add(4)
	if got := c.Get(); got != 5 {
		t.Errorf("counter = %d, want 5", got)
	}

	g := NewAtomicGauge()
	g.Set(7)
	g.Inc()
	g.Dec()
	g.Dec()
	if got := g.Get(); got != 6 {
		t.Errorf("gauge = %d, want 6", got)
	}
}

func TestHistogramPercentiles(t *testing.T) {
	h := NewHistogram()
	for i := 1; i <= 100; i++ {
		h.Observe(time.Duration(i) * time.Millisecond)
	}

	snap := h.Snapshot()
	if snap.Count != 100 {
		t.Fatalf("count = %d, want 100", snap.Count)
	}
	if snap.Max != 100*time.Millisecond {
		t.Errorf("max = %v, want 100ms", snap.Max)
	}
	// 1..100ms uniformly: the median interpolates midway between 50 and 51.
	if snap.P50 < 50*time.Millisecond || snap.P50 > 51*time.Millisecond {
		t.Errorf("p50 = %v, want ~50.5ms", snap.P50)
	}
	if snap.P95 < 95*time.Millisecond || snap.P95 > 96*time.Millisecond {
		t.Errorf("p95 = %v, want ~95ms", snap.P95)
	}
	if snap.Mean < 50*time.Millisecond || snap.Mean > 51*time.Millisecond {
		t.Errorf("mean = %v, want ~50.5ms", snap.Mean)
	}
}

func TestHistogramEmptySnapshot(t *testing.T) {
	snap := NewHistogram().Snapshot()
	if snap.Count != 0 || snap.Max != 0 {
		t.Errorf("empty snapshot = %+v", snap)
	}
}

func TestHistogramConcurrentObserve(t *testing.T) {
	h := NewHistogram()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				h.Observe(time.Millisecond)
			}
		}()
	}
	wg.Wait()
	if got := h.Snapshot().Count; got != 800 {
		t.Errorf("count = %d, want 800", got)
	}
}

func TestServeHTTPTextFormat(t *testing.T) {
	m := NewMetrics()
	m.TasksCompleted().Add(3)
	m.SlotWaitTime().Observe(2 * time.Millisecond)

	w := httptest.NewRecorder()
	m.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))

	body := w.Body.String()
	if !strings.Contains(body, "Tasks Completed: 3") {
		t.Errorf("text output missing counter:\n%s", body)
	}
	if !strings.Contains(body, "Slot Wait Time: count=1") {
		t.Errorf("text output missing histogram:\n%s", body)
	}
	if !strings.Contains(body, "Validate Phase Duration: no data") {
		t.Errorf("text output missing empty histogram line:\n%s", body)
	}
}

func TestServeHTTPJSONFormat(t *testing.T) {
	m := NewMetrics()
	m.RollbackCascades().Inc()

	w := httptest.NewRecorder()
	m.ServeHTTP(w, httptest.NewRequest("GET", "/metrics?format=json", nil))

	if got := w.Header().Get("Content-Type"); got != "application/json" {
		t.Fatalf("content type = %q", got)
	}
	var snap MetricsSnapshot
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.RollbackCascades != 1 {
		t.Errorf("rollback cascades = %d, want 1", snap.RollbackCascades)
	}
}
