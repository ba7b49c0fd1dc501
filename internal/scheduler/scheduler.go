// Package scheduler implements the execution engine: it drives a dependency
// graph of tasks through execute and validate phases on a bounded worker
// pool, retries failed attempts against a per-task budget, and rolls back
// the affected subgraph when the budget is exhausted.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/example/wavefront/internal/domain"
	"github.com/example/wavefront/internal/executor"
	"github.com/example/wavefront/internal/graph"
	"github.com/example/wavefront/internal/observability"
	"github.com/example/wavefront/internal/pool"
	"github.com/example/wavefront/internal/storage"
	"github.com/example/wavefront/pkg/id"
)

// Event names broadcast over the notifier.
const (
	EventExecutionStart    = "execution-start"
	EventExecutionLayout   = "execution-layout"
	EventTaskStates        = "task-states-update"
	EventExecutionStats    = "execution-stats-update"
	EventTaskThinking      = "task-thinking"
	EventTaskOutput        = "task-output"
	EventExecutionComplete = "execution-complete"
	EventExecutionError    = "execution-error"
	EventExecutionRollback = "execution-rollback"
)

// Notifier delivers progress events to observers. Emit is fire-and-forget;
// EmitOrdered blocks so order-sensitive streams (thinking chunks) arrive in
// emission order.
type Notifier interface {
	Emit(name string, payload map[string]any)
	EmitOrdered(ctx context.Context, name string, payload map[string]any) error
}

// Config tunes the run loop.
type Config struct {
	// Capacity is the number of worker slots.
	Capacity int
	// MaxFailures is the total attempt budget per task. The budget covers
	// execution and validation failures combined; exhausting it triggers a
	// rollback of the affected subgraph.
	MaxFailures int
	// SlotRetryLimit bounds the slot acquisition loop.
	SlotRetryLimit  int
	SlotBackoffBase time.Duration
	SlotBackoffStep time.Duration
	SlotBackoffMax  time.Duration
	// FailureBackoff is the pause after a failed attempt.
	FailureBackoff time.Duration
	// SlotFailedHold is how long a slot displays as failed before release.
	SlotFailedHold time.Duration
	// CompatSaturationDone restores the legacy behavior of fabricating a
	// done status when the slot acquisition loop exhausts its bound.
	CompatSaturationDone bool
}

// Deps groups the scheduler's collaborators.
type Deps struct {
	Logger    *slog.Logger
	Metrics   *observability.Metrics
	Artifacts storage.ArtifactStore
	Snapshots storage.SnapshotStore
	Reports   storage.ValidationReportStore
	Executor  executor.Executor
	Validator executor.Validator
	Notifier  Notifier
}

// unit is one spawned task attempt chain. It owns a copy of the task's spec
// fields so reads never race graph mutation; status lives in the graph.
type unit struct {
	task   domain.Task
	planID string
	ctx    context.Context
	cancel context.CancelFunc
}

// Scheduler drives one run at a time over the configured worker pool.
type Scheduler struct {
	cfg       Config
	logger    *slog.Logger
	metrics   *observability.Metrics
	pool      *pool.WorkerPool
	artifacts storage.ArtifactStore
	snapshots storage.SnapshotStore
	reports   storage.ValidationReportStore
	exec      executor.Executor
	validator executor.Validator
	notifier  Notifier

	// startMu serializes Start against itself.
	startMu sync.Mutex

	// mu guards graph membership, slot bindings, unit handles, and the
	// running flag as one compound state.
	mu           sync.Mutex
	graph        *graph.ExecutionGraph
	tasks        []domain.Task
	layout       domain.Layout
	planID       string
	running      bool
	runCtx       context.Context
	runCancel    context.CancelFunc
	units        map[string]*unit
	completeCh   chan struct{}
	completeOnce *sync.Once
	doneCh       chan struct{}
	persister    *persister
	wg           sync.WaitGroup
}

// New creates a scheduler. The worker pool is sized lazily at Start so that
// config changes between runs take effect.
func New(cfg Config, deps Deps) *Scheduler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = observability.NewMetrics()
	}
	return &Scheduler{
		cfg:       cfg,
		logger:    logger.With("component", "scheduler"),
		metrics:   metrics,
		pool:      pool.New(cfg.Capacity),
		artifacts: deps.Artifacts,
		snapshots: deps.Snapshots,
		reports:   deps.Reports,
		exec:      deps.Executor,
		validator: deps.Validator,
		notifier:  deps.Notifier,
	}
}

// Pool exposes the worker pool for status reporting.
func (s *Scheduler) Pool() *pool.WorkerPool {
	return s.pool
}

// SetGraph installs a new task graph and layout for the next run and
// returns the plan id. Rejected while a run is active.
func (s *Scheduler) SetGraph(tasks []domain.Task, layout domain.Layout, planID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return "", domain.ErrRunActive
	}
	if planID == "" {
		planID = id.GeneratePlan()
	}

	copies := make([]domain.Task, 0, len(tasks))
	for i := range tasks {
		c := tasks[i].Clone()
		c.Status = domain.TaskStatusUndone
		copies = append(copies, c)
	}
	s.tasks = copies
	s.layout = layout
	s.planID = planID
	s.graph = nil
	return planID, nil
}

// StartOptions controls run startup.
type StartOptions struct {
	// ResumeFromTaskID undoes the named task and its transitive dependents
	// and seeds every other done task into the completed set, so the run
	// picks up from partial prior progress instead of starting cold.
	ResumeFromTaskID string
}

// Start begins executing the installed graph. It returns once the run is
// launched; progress is reported over the notifier and Done().
//
// The run detaches from ctx: cancelling the caller's context does not stop
// the run. Use Stop for that.
func (s *Scheduler) Start(ctx context.Context, opts StartOptions) error {
	s.startMu.Lock()
	defer s.startMu.Unlock()

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return domain.ErrRunActive
	}
	if len(s.tasks) == 0 {
		s.mu.Unlock()
		return domain.ErrNoGraph
	}
	if s.layout == nil {
		s.mu.Unlock()
		return domain.ErrNoLayout
	}

	runCtx, runCancel := context.WithCancel(context.WithoutCancel(ctx))
	s.runCtx = runCtx
	s.runCancel = runCancel
	s.running = true
	s.units = make(map[string]*unit)
	s.completeCh = make(chan struct{})
	s.completeOnce = new(sync.Once)
	s.doneCh = make(chan struct{})
	s.pool.Initialize(s.cfg.Capacity)
	s.graph = graph.Build(s.tasks)

	var staleArtifacts []string
	if opts.ResumeFromTaskID != "" {
		var err error
		staleArtifacts, err = s.applyResumeLocked(opts.ResumeFromTaskID)
		if err != nil {
			s.running = false
			s.graph = nil
			runCancel()
			s.mu.Unlock()
			return err
		}
	} else {
		for _, tid := range s.graph.Order {
			if err := s.graph.Task(tid).SetStatus(domain.TaskStatusUndone); err != nil {
				s.running = false
				s.graph = nil
				runCancel()
				s.mu.Unlock()
				return err
			}
		}
	}

	planID := s.planID
	layout := s.layout
	total := s.graph.Len()
	s.mu.Unlock()

	for _, tid := range staleArtifacts {
		if err := s.artifacts.DeleteArtifact(ctx, planID, tid); err != nil {
			s.logger.Warn("stale artifact delete failed", "task_id", tid, "error", err)
		}
	}

	s.persister = newPersister(s.logger, s.metrics, s.snapshots, planID, s.snapshotState)
	s.persister.Start()
	s.persister.MarkDirty()

	s.notifier.Emit(EventExecutionStart, map[string]any{"plan_id": planID})
	s.notifier.Emit(EventExecutionLayout, map[string]any{"layout": layout})
	s.broadcastTaskStates()
	s.broadcastStats()

	go s.watch()

	s.mu.Lock()
	ready := s.graph.ReadyTasks()
	for _, t := range ready {
		s.spawnLocked(t)
	}
	s.mu.Unlock()
	s.checkComplete()

	s.logger.Info("execution started",
		"plan_id", planID, "tasks", total, "ready", len(ready), "capacity", s.cfg.Capacity)
	return nil
}

// applyResumeLocked resets the resume task and its transitive dependents to
// undone and seeds prior done tasks outside that closure into the completed
// set. Upstream work stays untouched; only the resume task's own downstream
// is suspect. Returns the task ids whose artifacts must be discarded.
func (s *Scheduler) applyResumeLocked(resumeID string) ([]string, error) {
	if s.graph.Task(resumeID) == nil {
		return nil, fmt.Errorf("%w: task %s", domain.ErrNotFound, resumeID)
	}
	closure := s.graph.DownstreamClosure(resumeID)

	var stale []string
	for _, tid := range s.graph.Order {
		gt := s.graph.Task(tid)
		if _, in := closure[tid]; in {
			if err := gt.SetStatus(domain.TaskStatusUndone); err != nil {
				return nil, err
			}
			stale = append(stale, tid)
			continue
		}
		if gt.Status == domain.TaskStatusDone {
			s.graph.MarkCompleted(tid)
			continue
		}
		// Anything mid-flight from the prior run starts over.
		if err := gt.SetStatus(domain.TaskStatusUndone); err != nil {
			return nil, err
		}
	}
	return stale, nil
}

// Stop aborts the active run. Units observe the cancellation cooperatively;
// the watcher emits the terminal event once they wind down.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return domain.ErrRunNotActive
	}
	cancel := s.runCancel
	s.mu.Unlock()

	s.logger.Info("stop requested")
	cancel()
	return nil
}

// RetryTask requeues a single failed task on the active run without
// touching the rest of the graph.
func (s *Scheduler) RetryTask(taskID string) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return domain.ErrRunNotActive
	}
	t := s.graph.Task(taskID)
	if t == nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: task %s", domain.ErrNotFound, taskID)
	}
	if !t.Status.IsFailed() {
		s.mu.Unlock()
		return fmt.Errorf("%w: task %s is %s", domain.ErrNotRetryable, taskID, t.Status)
	}

	if u := s.units[taskID]; u != nil {
		u.cancel()
		delete(s.units, taskID)
	}
	s.pool.ReleaseByTask(taskID)
	if err := t.SetStatus(domain.TaskStatusUndone); err != nil {
		s.mu.Unlock()
		return err
	}
	s.graph.Requeue(taskID)
	delete(s.graph.FailureCount, taskID)
	if s.graph.DependenciesSatisfied(t) {
		s.spawnLocked(t)
	}
	s.mu.Unlock()

	s.logger.Info("task requeued for retry", "task_id", taskID)
	s.afterStateChange()
	return nil
}

// Status is a point-in-time view of the run.
type Status struct {
	Running bool               `json:"running"`
	PlanID  string             `json:"planId,omitempty"`
	Tasks   []domain.TaskState `json:"tasks"`
	Stats   pool.Stats         `json:"stats"`
	Slots   []pool.Slot        `json:"slots"`
}

// Status reports the current run state.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	st := Status{
		Running: s.running,
		PlanID:  s.planID,
	}
	if s.graph != nil {
		st.Tasks = s.graph.TaskStates()
	}
	s.mu.Unlock()

	st.Stats = s.pool.Stats()
	st.Slots = s.pool.Snapshot()
	return st
}

// Done returns a channel closed when the current run finishes. Before any
// run has started it returns a closed channel.
func (s *Scheduler) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doneCh == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return s.doneCh
}

// spawnLocked launches a unit for the task unless one already exists or the
// task is already running or completed. Callers hold s.mu.
func (s *Scheduler) spawnLocked(t *domain.Task) {
	tid := t.ID
	if _, ok := s.units[tid]; ok {
		return
	}
	if _, ok := s.graph.Running[tid]; ok {
		return
	}
	if _, ok := s.graph.Completed[tid]; ok {
		return
	}
	uctx, ucancel := context.WithCancel(s.runCtx)
	u := &unit{task: t.Clone(), planID: s.planID, ctx: uctx, cancel: ucancel}
	s.units[tid] = u
	s.wg.Add(1)
	go s.runUnit(u)
}

// watch finalizes the run: it waits for completion or cancellation, drains
// the units and the persister, and emits the terminal event.
func (s *Scheduler) watch() {
	stopped := false
	select {
	case <-s.completeCh:
	case <-s.runCtx.Done():
		stopped = true
	}
	s.wg.Wait()

	s.persister.MarkDirty()
	s.persister.Stop()

	s.mu.Lock()
	completed := len(s.graph.Completed)
	total := s.graph.Len()
	s.running = false
	cancel := s.runCancel
	doneCh := s.doneCh
	s.mu.Unlock()
	cancel()

	if stopped {
		s.notifier.Emit(EventExecutionError, map[string]any{"error": domain.ErrStopped.Error()})
		s.logger.Info("execution stopped", "completed", completed, "total", total)
	} else {
		s.notifier.Emit(EventExecutionComplete, map[string]any{"completed": completed, "total": total})
		s.logger.Info("execution complete", "completed", completed, "total", total)
	}
	s.broadcastStats()
	close(doneCh)
}

// checkComplete fires the completion signal once every task is completed
// and nothing is mid-flight.
func (s *Scheduler) checkComplete() {
	s.mu.Lock()
	done := s.graph != nil &&
		len(s.graph.Completed) == s.graph.Len() &&
		len(s.graph.Running) == 0
	once := s.completeOnce
	ch := s.completeCh
	s.mu.Unlock()

	if done && once != nil {
		once.Do(func() { close(ch) })
	}
}

// snapshotState builds the persistable view of the run for the persister.
func (s *Scheduler) snapshotState() *domain.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.graph == nil {
		return &domain.Snapshot{}
	}
	return &domain.Snapshot{Tasks: s.graph.SnapshotTasks()}
}

// lookupTask resolves a task id against the active graph for input
// resolution.
func (s *Scheduler) lookupTask(tid string) *domain.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.graph == nil {
		return nil
	}
	return s.graph.Task(tid)
}

func (s *Scheduler) broadcastTaskStates() {
	s.mu.Lock()
	if s.graph == nil {
		s.mu.Unlock()
		return
	}
	states := s.graph.TaskStates()
	running := len(s.graph.Running)
	s.mu.Unlock()

	s.metrics.RunningTasks().Set(int64(running))
	s.notifier.Emit(EventTaskStates, map[string]any{"tasks": states})
}

func (s *Scheduler) broadcastStats() {
	s.notifier.Emit(EventExecutionStats, map[string]any{"stats": s.pool.Stats()})
}

// afterStateChange is the common fan-out for any status mutation.
func (s *Scheduler) afterStateChange() {
	s.broadcastTaskStates()
	s.broadcastStats()
	if s.persister != nil {
		s.persister.MarkDirty()
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
