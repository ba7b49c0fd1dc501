package observability

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics holds all performance metrics for the Wavefront scheduler.
type Metrics struct {
	// Scheduler metrics
	slotWaitTime          *Histogram
	executePhaseDuration  *Histogram
	validatePhaseDuration *Histogram
	taskRetries           *Counter
	tasksCompleted        *Counter
	runningTasks          *AtomicGauge

	// Rollback metrics
	rollbackCascades   *Counter
	rollbackTasksReset *Counter

	// Persistence and event metrics
	snapshotWrites     *Counter
	snapshotsCoalesced *Counter
	eventsDropped      *Counter
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
func NewMetrics() *Metrics {
	return &Metrics{
		slotWaitTime:          NewHistogram(),
		executePhaseDuration:  NewHistogram(),
		validatePhaseDuration: NewHistogram(),
		taskRetries:           NewCounter(),
		tasksCompleted:        NewCounter(),
		runningTasks:          NewAtomicGauge(),

		rollbackCascades:   NewCounter(),
		rollbackTasksReset: NewCounter(),

		snapshotWrites:     NewCounter(),
		snapshotsCoalesced: NewCounter(),
		eventsDropped:      NewCounter(),
	}
}

// Scheduler metrics accessors
func (m *Metrics) SlotWaitTime() *Histogram          { return m.slotWaitTime }
func (m *Metrics) ExecutePhaseDuration() *Histogram  { return m.executePhaseDuration }
func (m *Metrics) ValidatePhaseDuration() *Histogram { return m.validatePhaseDuration }
func (m *Metrics) TaskRetries() *Counter             { return m.taskRetries }
func (m *Metrics) TasksCompleted() *Counter          { return m.tasksCompleted }
func (m *Metrics) RunningTasks() *AtomicGauge        { return m.runningTasks }

// Rollback metrics accessors
func (m *Metrics) RollbackCascades() *Counter   { return m.rollbackCascades }
func (m *Metrics) RollbackTasksReset() *Counter { return m.rollbackTasksReset }

// Persistence and event metrics accessors
func (m *Metrics) SnapshotWrites() *Counter     { return m.snapshotWrites }
func (m *Metrics) SnapshotsCoalesced() *Counter { return m.snapshotsCoalesced }
func (m *Metrics) EventsDropped() *Counter      { return m.eventsDropped }

// Snapshot returns a point-in-time snapshot of all metrics for reporting.
func (m *Metrics) Snapshot() *MetricsSnapshot {
	return &MetricsSnapshot{
		SlotWaitTime:          m.slotWaitTime.Snapshot(),
		ExecutePhaseDuration:  m.executePhaseDuration.Snapshot(),
		ValidatePhaseDuration: m.validatePhaseDuration.Snapshot(),
		TaskRetries:           m.taskRetries.Get(),
		TasksCompleted:        m.tasksCompleted.Get(),
		RunningTasks:          m.runningTasks.Get(),

		RollbackCascades:   m.rollbackCascades.Get(),
		RollbackTasksReset: m.rollbackTasksReset.Get(),

		SnapshotWrites:     m.snapshotWrites.Get(),
		SnapshotsCoalesced: m.snapshotsCoalesced.Get(),
		EventsDropped:      m.eventsDropped.Get(),
	}
}

// MetricsSnapshot holds a point-in-time snapshot of all metrics.
type MetricsSnapshot struct {
	SlotWaitTime          HistogramSnapshot `json:"slot_wait_time"`
	ExecutePhaseDuration  HistogramSnapshot `json:"execute_phase_duration"`
	ValidatePhaseDuration HistogramSnapshot `json:"validate_phase_duration"`
	TaskRetries           int64             `json:"task_retries"`
	TasksCompleted        int64             `json:"tasks_completed"`
	RunningTasks          int64             `json:"running_tasks"`

	RollbackCascades   int64 `json:"rollback_cascades"`
	RollbackTasksReset int64 `json:"rollback_tasks_reset"`

	SnapshotWrites     int64 `json:"snapshot_writes"`
	SnapshotsCoalesced int64 `json:"snapshots_coalesced"`
	EventsDropped      int64 `json:"events_dropped"`
}

// Histogram tracks the distribution of duration measurements.
// Thread-safe for concurrent observations.
type Histogram struct {
	mu     sync.RWMutex
	values []float64 // Stored in microseconds for precision
}

// NewHistogram creates a new histogram.
func NewHistogram() *Histogram {
	return &Histogram{
		values: make([]float64, 0, 1000),
	}
}

// Observe records a duration measurement.
func (h *Histogram) Observe(d time.Duration) {
	micros := float64(d.Microseconds())
	h.mu.Lock()
	h.values = append(h.values, micros)
	h.mu.Unlock()
}

// Snapshot returns a point-in-time snapshot with percentiles calculated.
func (h *Histogram) Snapshot() HistogramSnapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.values) == 0 {
		return HistogramSnapshot{}
	}

	sorted := make([]float64, len(h.values))
	copy(sorted, h.values)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	mean := sum / float64(len(sorted))

	return HistogramSnapshot{
		Count: len(sorted),
		Mean:  time.Duration(mean) * time.Microsecond,
		P50:   time.Duration(percentile(sorted, 0.50)) * time.Microsecond,
		P95:   time.Duration(percentile(sorted, 0.95)) * time.Microsecond,
		P99:   time.Duration(percentile(sorted, 0.99)) * time.Microsecond,
		Max:   time.Duration(sorted[len(sorted)-1]) * time.Microsecond,
	}
}

// HistogramSnapshot holds calculated statistics for a histogram.
type HistogramSnapshot struct {
	Count int           `json:"count"`
	Mean  time.Duration `json:"mean"`
	P50   time.Duration `json:"p50"`
	P95   time.Duration `json:"p95"`
	P99   time.Duration `json:"p99"`
	Max   time.Duration `json:"max"`
}

// percentile calculates the p-th percentile from sorted values.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := p * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))

	if lower == upper {
		return sorted[lower]
	}

	// Linear interpolation
	weight := rank - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

// Counter is a monotonically increasing counter using atomic operations.
type Counter struct {
	value int64
}

// NewCounter creates a new counter.
func NewCounter() *Counter {
	return &Counter{}
}

// Inc increments the counter by 1.
func (c *Counter) Inc() {
	atomic.AddInt64(&c.value, 1)
}

// Add adds the given value to the counter.
func (c *Counter) Add(delta int64) {
	atomic.AddInt64(&c.value, delta)
}

// Get returns the current value.
func (c *Counter) Get() int64 {
	return atomic.LoadInt64(&c.value)
}

// AtomicGauge is a gauge that can be set and read atomically.
type AtomicGauge struct {
	value int64
}

// NewAtomicGauge creates a new atomic gauge.
func NewAtomicGauge() *AtomicGauge {
	return &AtomicGauge{}
}

// Set sets the gauge to the given value.
func (g *AtomicGauge) Set(val int64) {
	atomic.StoreInt64(&g.value, val)
}

// Inc increments the gauge by 1.
func (g *AtomicGauge) Inc() {
	atomic.AddInt64(&g.value, 1)
}

// Dec decrements the gauge by 1.
func (g *AtomicGauge) Dec() {
	atomic.AddInt64(&g.value, -1)
}

// Get returns the current value.
func (g *AtomicGauge) Get() int64 {
	return atomic.LoadInt64(&g.value)
}

// ServeHTTP implements http.Handler for metrics exposition.
func (m *Metrics) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	snapshot := m.Snapshot()

	format := r.URL.Query().Get("format")
	if format == "json" || r.Header.Get("Accept") == "application/json" {
		w.Header().Set("Content-Type", "application/json")
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		encoder.Encode(snapshot)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	fmt.Fprintf(w, "# Wavefront Performance Metrics\n\n")

	fmt.Fprintf(w, "## Scheduler Metrics\n\n")
	writeHistogramSummary(w, "Slot Wait Time", snapshot.SlotWaitTime)
	writeHistogramSummary(w, "Execute Phase Duration", snapshot.ExecutePhaseDuration)
	writeHistogramSummary(w, "Validate Phase Duration", snapshot.ValidatePhaseDuration)
	fmt.Fprintf(w, "Task Retries: %d\n", snapshot.TaskRetries)
	fmt.Fprintf(w, "Tasks Completed: %d\n", snapshot.TasksCompleted)
	fmt.Fprintf(w, "Running Tasks: %d\n\n", snapshot.RunningTasks)

	fmt.Fprintf(w, "## Rollback Metrics\n\n")
	fmt.Fprintf(w, "Rollback Cascades: %d\n", snapshot.RollbackCascades)
	fmt.Fprintf(w, "Rollback Tasks Reset: %d\n\n", snapshot.RollbackTasksReset)

	fmt.Fprintf(w, "## Persistence Metrics\n\n")
	fmt.Fprintf(w, "Snapshot Writes: %d\n", snapshot.SnapshotWrites)
	fmt.Fprintf(w, "Snapshots Coalesced: %d\n", snapshot.SnapshotsCoalesced)
	fmt.Fprintf(w, "Events Dropped: %d\n", snapshot.EventsDropped)
}

func writeHistogramSummary(w io.Writer, name string, h HistogramSnapshot) {
	if h.Count == 0 {
		fmt.Fprintf(w, "%s: no data\n", name)
		return
	}
	fmt.Fprintf(w, "%s: count=%d mean=%v p50=%v p95=%v p99=%v max=%v\n",
		name, h.Count, h.Mean, h.P50, h.P95, h.P99, h.Max)
}
