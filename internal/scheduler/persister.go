package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/example/wavefront/internal/domain"
	"github.com/example/wavefront/internal/observability"
	"github.com/example/wavefront/internal/storage"
)

const persistTimeout = 5 * time.Second

// persister is the single writer for run snapshots. Status changes mark the
// snapshot dirty; the writer goroutine collapses bursts of marks into one
// write per flush cycle, so persistence never backpressures the run loop.
type persister struct {
	logger   *slog.Logger
	metrics  *observability.Metrics
	store    storage.SnapshotStore
	planID   string
	snapshot func() *domain.Snapshot

	dirty chan struct{}
	stop  chan struct{}
	done  chan struct{}
}

func newPersister(logger *slog.Logger, metrics *observability.Metrics, store storage.SnapshotStore, planID string, snapshot func() *domain.Snapshot) *persister {
	return &persister{
		logger:   logger,
		metrics:  metrics,
		store:    store,
		planID:   planID,
		snapshot: snapshot,
		dirty:    make(chan struct{}, 1),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (p *persister) Start() {
	go p.loop()
}

// MarkDirty requests a snapshot write. Never blocks; a mark that lands
// while one is already pending coalesces into the pending write.
func (p *persister) MarkDirty() {
	select {
	case p.dirty <- struct{}{}:
	default:
		p.metrics.SnapshotsCoalesced().Inc()
	}
}

// Stop drains any pending write and waits for the writer to exit.
func (p *persister) Stop() {
	close(p.stop)
	<-p.done
}

func (p *persister) loop() {
	defer close(p.done)
	for {
		select {
		case <-p.dirty:
			p.flush()
		case <-p.stop:
			select {
			case <-p.dirty:
				p.flush()
			default:
			}
			return
		}
	}
}

func (p *persister) flush() {
	snap := p.snapshot()

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := p.store.SaveSnapshot(ctx, p.planID, snap); err != nil {
		p.logger.Error("snapshot save failed", "plan_id", p.planID, "error", err)
		return
	}
	p.metrics.SnapshotWrites().Inc()
}
