package pool

import (
	"fmt"
	"sync"
	"testing"
)

func TestAssignPrefersLowestIdleSlot(t *testing.T) {
	p := New(3)

	id1, ok := p.Assign("a")
	if !ok || id1 != 1 {
		t.Fatalf("first assign: got (%d, %v), want (1, true)", id1, ok)
	}
	id2, ok := p.Assign("b")
	if !ok || id2 != 2 {
		t.Fatalf("second assign: got (%d, %v), want (2, true)", id2, ok)
	}

	// Freeing slot 1 makes it the next pick again.
	if _, found := p.ReleaseByTask("a"); !found {
		t.Fatal("release did not find task a")
	}
	id3, ok := p.Assign("c")
	if !ok || id3 != 1 {
		t.Fatalf("assign after release: got (%d, %v), want (1, true)", id3, ok)
	}
}

func TestAssignSaturated(t *testing.T) {
	p := New(2)
	p.Assign("a")
	p.Assign("b")

	if id, ok := p.Assign("c"); ok {
		t.Fatalf("expected saturation, got slot %d", id)
	}
}

func TestReleaseByTaskIdempotent(t *testing.T) {
	p := New(2)
	p.Assign("a")

	if _, found := p.ReleaseByTask("a"); !found {
		t.Fatal("first release should find the slot")
	}
	if _, found := p.ReleaseByTask("a"); found {
		t.Fatal("second release should find nothing")
	}
	if _, found := p.ReleaseByTask("ghost"); found {
		t.Fatal("unknown task should find nothing")
	}
}

func TestInitializeClampsCapacity(t *testing.T) {
	p := New(0)
	if p.Capacity() != 1 {
		t.Errorf("capacity = %d, want 1", p.Capacity())
	}

	p.Initialize(-5)
	if p.Capacity() != 1 {
		t.Errorf("capacity after negative init = %d, want 1", p.Capacity())
	}
}

func TestInitializeDropsBindings(t *testing.T) {
	p := New(2)
	p.Assign("a")
	p.Initialize(2)

	stats := p.Stats()
	if stats.Idle != 2 || stats.Busy != 0 {
		t.Errorf("stats after reinit = %+v, want all idle", stats)
	}
}

func TestStatsCounts(t *testing.T) {
	p := New(4)
	p.Assign("a")
	p.Assign("b")
	p.SetStatusByTask("b", SlotValidating)
	p.Assign("c")
	p.SetStatusByTask("c", SlotFailed)

	stats := p.Stats()
	want := Stats{Total: 4, Busy: 1, Validating: 1, Idle: 1, Failed: 1}
	if stats != want {
		t.Errorf("stats = %+v, want %+v", stats, want)
	}
}

func TestStatsSelfHeals(t *testing.T) {
	p := New(3)
	p.Assign("a")

	// Corrupt a slot status directly.
	p.mu.Lock()
	p.slots[1].Status = SlotStatus("bogus")
	p.mu.Unlock()

	stats := p.Stats()
	if stats.Total != 3 {
		t.Errorf("total = %d, want 3", stats.Total)
	}
	if stats.Busy+stats.Validating+stats.Idle+stats.Failed != 3 {
		t.Errorf("counts do not sum to capacity: %+v", stats)
	}
}

func TestConcurrentAssignRelease(t *testing.T) {
	p := New(4)
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			task := fmt.Sprintf("task-%d", n)
			if _, ok := p.Assign(task); ok {
				p.ReleaseByTask(task)
			}
		}(i)
	}
	wg.Wait()

	stats := p.Stats()
	if stats.Idle != 4 {
		t.Errorf("idle = %d after all releases, want 4", stats.Idle)
	}
}
