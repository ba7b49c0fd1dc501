// Package pool implements the fixed-capacity worker slot table. A task
// occupies exactly one slot from the start of execution through the end of
// validation; the number of bound slots equals the number of running tasks.
package pool

import "sync"

// SlotStatus describes the state of a single worker slot.
type SlotStatus string

const (
	SlotIdle       SlotStatus = "idle"
	SlotBusy       SlotStatus = "busy"
	SlotValidating SlotStatus = "validating"
	SlotFailed     SlotStatus = "failed"
)

func (s SlotStatus) valid() bool {
	switch s {
	case SlotIdle, SlotBusy, SlotValidating, SlotFailed:
		return true
	}
	return false
}

// Slot is one unit of execution capacity.
type Slot struct {
	ID     int        `json:"id"`
	Status SlotStatus `json:"status"`
	TaskID string     `json:"taskId,omitempty"`
}

// Stats holds per-status slot counts.
type Stats struct {
	Total      int `json:"total"`
	Busy       int `json:"busy"`
	Validating int `json:"validating"`
	Idle       int `json:"idle"`
	Failed     int `json:"failed"`
}

// WorkerPool is a fixed-capacity table of slots. It is safe for concurrent
// use; the scheduler additionally serializes assign/release with its
// membership lock so that slot bindings and the running set stay consistent.
type WorkerPool struct {
	mu       sync.Mutex
	capacity int
	slots    []Slot
}

// New creates a pool with the given capacity. Capacities below one are
// clamped to one.
func New(capacity int) *WorkerPool {
	p := &WorkerPool{}
	p.Initialize(capacity)
	return p
}

// Initialize resets every slot to idle with the given capacity, dropping any
// task bindings. There is no handoff across resets.
func (p *WorkerPool) Initialize(capacity int) {
	if capacity < 1 {
		capacity = 1
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.capacity = capacity
	p.reset()
}

// reset rebuilds the slot table. Caller must hold p.mu.
func (p *WorkerPool) reset() {
	p.slots = make([]Slot, p.capacity)
	for i := range p.slots {
		p.slots[i] = Slot{ID: i + 1, Status: SlotIdle}
	}
}

// Capacity returns the configured slot count.
func (p *WorkerPool) Capacity() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.capacity
}

// Assign binds the first idle slot to taskID and marks it busy. The scan is
// deterministic: under contention lower-numbered slots are consistently
// preferred. Returns the slot id, or ok=false if the pool is saturated.
func (p *WorkerPool) Assign(taskID string) (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.slots {
		if p.slots[i].Status == SlotIdle {
			p.slots[i].Status = SlotBusy
			p.slots[i].TaskID = taskID
			return p.slots[i].ID, true
		}
	}
	return 0, false
}

// ReleaseByTask resets the slot bound to taskID back to idle if it is busy,
// validating, or failed. Idempotent: a task without a slot is a no-op.
// Returns the slot id and whether a bound slot was found.
func (p *WorkerPool) ReleaseByTask(taskID string) (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.slots {
		if p.slots[i].TaskID == taskID {
			switch p.slots[i].Status {
			case SlotBusy, SlotValidating, SlotFailed:
				p.slots[i].Status = SlotIdle
				p.slots[i].TaskID = ""
			}
			return p.slots[i].ID, true
		}
	}
	return 0, false
}

// SetStatus sets the status of a slot by id. Used for observability
// transitions (busy -> validating, or a brief failed display before release).
func (p *WorkerPool) SetStatus(slotID int, status SlotStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.slots {
		if p.slots[i].ID == slotID {
			p.slots[i].Status = status
			return
		}
	}
}

// SetStatusByTask sets the status of the slot bound to taskID.
func (p *WorkerPool) SetStatusByTask(taskID string, status SlotStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.slots {
		if p.slots[i].TaskID == taskID {
			p.slots[i].Status = status
			return
		}
	}
}

// Snapshot returns a copy of the slot table.
func (p *WorkerPool) Snapshot() []Slot {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Slot, len(p.slots))
	copy(out, p.slots)
	return out
}

// Stats returns per-status counts. If the counts do not sum to capacity the
// table has drifted out of its invariant and the pool reinitializes itself
// before reporting; self-healing, not a normal path.
func (p *WorkerPool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := range p.slots {
		if !p.slots[i].Status.valid() {
			p.slots[i].Status = SlotIdle
			p.slots[i].TaskID = ""
		}
	}

	var s Stats
	s.Total = p.capacity
	for i := range p.slots {
		switch p.slots[i].Status {
		case SlotBusy:
			s.Busy++
		case SlotValidating:
			s.Validating++
		case SlotIdle:
			s.Idle++
		case SlotFailed:
			s.Failed++
		}
	}

	if s.Busy+s.Validating+s.Idle+s.Failed != p.capacity {
		p.reset()
		return Stats{Total: p.capacity, Idle: p.capacity}
	}
	return s
}
