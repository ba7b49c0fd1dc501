package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/wavefront/internal/domain"
	"github.com/example/wavefront/internal/executor"
	"github.com/example/wavefront/internal/pool"
	"github.com/example/wavefront/internal/storage"
)

type attemptOutcome int

const (
	// attemptSettled means the unit is finished: the task completed, was
	// rolled back, or was abandoned. No further attempts.
	attemptSettled attemptOutcome = iota
	// attemptRetry means the failure budget allows another attempt.
	attemptRetry
)

// runUnit is the goroutine body for one task.
func (s *Scheduler) runUnit(u *unit) {
	defer s.wg.Done()
	err := s.runTask(u)
	if err == nil {
		return
	}
	if isCancel(err) {
		// Cooperative teardown from stop, rollback, or retry. The
		// canceller already repaired the shared state.
		return
	}
	s.handleUnitError(u, err)
}

func (s *Scheduler) runTask(u *unit) error {
	for {
		if err := u.ctx.Err(); err != nil {
			return err
		}
		outcome, err := s.attempt(u)
		if err != nil {
			return err
		}
		if outcome == attemptSettled {
			return nil
		}
	}
}

// attempt drives one full execute+validate pass for the unit's task.
func (s *Scheduler) attempt(u *unit) (attemptOutcome, error) {
	tid := u.task.ID

	slotID, err := s.acquireSlot(u)
	if err != nil {
		if errors.Is(err, domain.ErrPoolSaturated) {
			return s.handleSaturation(u)
		}
		return attemptSettled, err
	}

	// Cancellation (stop, rollback, retry) happens under s.mu, so checking
	// the unit context inside the same critical section makes the bind
	// atomic with respect to cancellers.
	s.mu.Lock()
	if err := u.ctx.Err(); err != nil {
		s.releaseSlotLocked(u)
		s.mu.Unlock()
		return attemptSettled, err
	}
	s.graph.MarkRunning(tid)
	terr := s.graph.Task(tid).SetStatus(domain.TaskStatusDoing)
	s.mu.Unlock()
	if terr != nil {
		return attemptSettled, terr
	}
	s.logger.Debug("task started", "task_id", tid, "slot", slotID)
	s.afterStateChange()

	req := &executor.Request{
		Task:       &u.task,
		PlanID:     u.planID,
		OnThinking: s.thinkingFunc(tid),
	}

	output, execErr := s.executePhase(u, req)
	if execErr != nil {
		if isCancel(execErr) {
			s.releaseSlot(u)
			return attemptSettled, execErr
		}
		var missing *domain.MissingArtifactError
		if errors.As(execErr, &missing) || errors.Is(execErr, domain.ErrMissingOutputSpec) {
			// Structural problem: retrying cannot fix a missing spec or
			// a dependency that never produced its artifact.
			return attemptSettled, execErr
		}
		s.logger.Warn("execution failed", "task_id", tid, "error", execErr)
		return s.failurePhase(u, domain.TaskStatusExecutionFailed)
	}

	s.mu.Lock()
	if err := u.ctx.Err(); err != nil {
		s.releaseSlotLocked(u)
		s.mu.Unlock()
		return attemptSettled, err
	}
	s.pool.SetStatusByTask(tid, pool.SlotValidating)
	terr = s.graph.Task(tid).SetStatus(domain.TaskStatusValidating)
	s.mu.Unlock()
	if terr != nil {
		return attemptSettled, terr
	}
	s.afterStateChange()

	validation, valErr := s.validatePhase(u, req, output)
	if valErr != nil {
		if isCancel(valErr) {
			s.releaseSlot(u)
			return attemptSettled, valErr
		}
		s.logger.Warn("validation errored", "task_id", tid, "error", valErr)
		return s.failurePhase(u, domain.TaskStatusValidationFailed)
	}
	if !validation.Passed {
		s.logger.Warn("validation rejected output", "task_id", tid)
		return s.failurePhase(u, domain.TaskStatusValidationFailed)
	}

	return s.completeTask(u)
}

// acquireSlot binds the task to an idle worker slot, backing off between
// attempts. Returns ErrPoolSaturated when the retry bound is exhausted. The
// cancellation check shares the critical section with the bind: a unit that
// a canceller has already superseded can never take a fresh slot.
func (s *Scheduler) acquireSlot(u *unit) (int, error) {
	tid := u.task.ID
	start := time.Now()
	for attempt := 0; attempt < s.cfg.SlotRetryLimit; attempt++ {
		s.mu.Lock()
		if err := u.ctx.Err(); err != nil {
			s.mu.Unlock()
			return 0, err
		}
		slotID, ok := s.pool.Assign(tid)
		s.mu.Unlock()
		if ok {
			s.metrics.SlotWaitTime().Observe(time.Since(start))
			return slotID, nil
		}

		backoff := s.cfg.SlotBackoffBase + time.Duration(attempt)*s.cfg.SlotBackoffStep
		if backoff > s.cfg.SlotBackoffMax {
			backoff = s.cfg.SlotBackoffMax
		}
		if err := sleepCtx(u.ctx, backoff); err != nil {
			return 0, err
		}
		if (attempt+1)%5 == 0 {
			s.broadcastStats()
		}
	}
	return 0, fmt.Errorf("%w: task %s gave up after %d attempts",
		domain.ErrPoolSaturated, tid, s.cfg.SlotRetryLimit)
}

// executePhase resolves inputs, runs the executor, and persists the output
// artifact. Input resolution and artifact persistence share the execution
// failure domain.
func (s *Scheduler) executePhase(u *unit, req *executor.Request) (map[string]any, error) {
	tid := u.task.ID
	if u.task.ArtifactName() == "" {
		return nil, fmt.Errorf("%w: task %s", domain.ErrMissingOutputSpec, tid)
	}

	resolved, err := executor.ResolveInputs(u.ctx, s.artifacts, u.planID, &u.task, s.lookupTask)
	if err != nil {
		return nil, err
	}
	req.ResolvedInputs = resolved

	start := time.Now()
	output, err := s.exec.Execute(u.ctx, req)
	s.metrics.ExecutePhaseDuration().Observe(time.Since(start))
	if err != nil {
		return nil, err
	}
	if output == nil {
		output = map[string]any{}
	}

	if err := s.artifacts.PutArtifact(u.ctx, u.planID, tid, output); err != nil {
		return nil, fmt.Errorf("save artifact: %w", err)
	}
	s.notifier.Emit(EventTaskOutput, map[string]any{"task_id": tid, "output": output})
	return output, nil
}

// validatePhase runs the validator and records the report.
func (s *Scheduler) validatePhase(u *unit, req *executor.Request, output map[string]any) (*executor.Validation, error) {
	start := time.Now()
	validation, err := s.validator.Validate(u.ctx, output, req)
	s.metrics.ValidatePhaseDuration().Observe(time.Since(start))
	if err != nil {
		return nil, err
	}

	if s.reports != nil {
		report := &storage.ValidationReport{
			PlanID:    u.planID,
			TaskID:    u.task.ID,
			Passed:    validation.Passed,
			Report:    validation.Report,
			CreatedAt: time.Now().UTC(),
		}
		if err := s.reports.SaveValidationReport(u.ctx, report); err != nil && u.ctx.Err() == nil {
			s.logger.Warn("validation report save failed", "task_id", u.task.ID, "error", err)
		}
	}
	return validation, nil
}

// completeTask finalizes a validated task and fans out to newly ready work.
func (s *Scheduler) completeTask(u *unit) (attemptOutcome, error) {
	tid := u.task.ID

	s.mu.Lock()
	if err := u.ctx.Err(); err != nil {
		s.releaseSlotLocked(u)
		s.mu.Unlock()
		return attemptSettled, err
	}
	s.releaseSlotLocked(u)
	if err := s.graph.Task(tid).SetStatus(domain.TaskStatusDone); err != nil {
		s.mu.Unlock()
		return attemptSettled, err
	}
	s.graph.MarkCompleted(tid)
	delete(s.graph.FailureCount, tid)
	ready := s.graph.ReadyTasks()
	for _, t := range ready {
		s.spawnLocked(t)
	}
	s.mu.Unlock()

	s.metrics.TasksCompleted().Inc()
	s.logger.Info("task done", "task_id", tid, "unblocked", len(ready))
	s.afterStateChange()
	s.checkComplete()
	return attemptSettled, nil
}

// failurePhase applies the shared failure bookkeeping for a failed execute
// or validate attempt and decides between retry and rollback.
func (s *Scheduler) failurePhase(u *unit, failStatus domain.TaskStatus) (attemptOutcome, error) {
	tid := u.task.ID

	s.mu.Lock()
	if err := u.ctx.Err(); err != nil {
		s.releaseSlotLocked(u)
		s.mu.Unlock()
		return attemptSettled, err
	}
	terr := s.graph.Task(tid).SetStatus(failStatus)
	s.pool.SetStatusByTask(tid, pool.SlotFailed)
	fcBefore := s.graph.FailureCount[tid]
	s.graph.FailureCount[tid] = fcBefore + 1
	s.mu.Unlock()
	if terr != nil {
		return attemptSettled, terr
	}
	s.afterStateChange()

	// Keep the slot visibly failed for a beat before freeing it.
	if err := sleepCtx(u.ctx, s.cfg.SlotFailedHold); err != nil {
		s.releaseSlot(u)
		return attemptSettled, err
	}
	s.releaseSlot(u)

	if err := sleepCtx(u.ctx, s.cfg.FailureBackoff); err != nil {
		return attemptSettled, err
	}

	s.mu.Lock()
	s.graph.Requeue(tid)
	s.mu.Unlock()

	if fcBefore < s.cfg.MaxFailures-1 {
		s.metrics.TaskRetries().Inc()
		s.logger.Info("retrying task", "task_id", tid, "attempt", fcBefore+2, "budget", s.cfg.MaxFailures)
		return attemptRetry, nil
	}

	s.rollback(u)
	return attemptSettled, nil
}

// handleSaturation settles a unit whose slot acquisition bound ran out.
func (s *Scheduler) handleSaturation(u *unit) (attemptOutcome, error) {
	tid := u.task.ID

	if s.cfg.CompatSaturationDone {
		// Legacy behavior: pretend the task finished so the run drains.
		s.logger.Warn("no slot available, marking task done",
			"task_id", tid, "attempts", s.cfg.SlotRetryLimit)
		s.mu.Lock()
		s.graph.Task(tid).ForceStatus(domain.TaskStatusDone)
		s.graph.MarkCompleted(tid)
		ready := s.graph.ReadyTasks()
		for _, t := range ready {
			s.spawnLocked(t)
		}
		s.mu.Unlock()
		s.afterStateChange()
		s.checkComplete()
		return attemptSettled, nil
	}

	s.logger.Warn("worker pool saturated, counting as failed attempt",
		"task_id", tid, "attempts", s.cfg.SlotRetryLimit)
	s.mu.Lock()
	s.graph.Task(tid).ForceStatus(domain.TaskStatusExecutionFailed)
	fcBefore := s.graph.FailureCount[tid]
	s.graph.FailureCount[tid] = fcBefore + 1
	s.graph.Requeue(tid)
	s.mu.Unlock()
	s.afterStateChange()

	if err := sleepCtx(u.ctx, s.cfg.FailureBackoff); err != nil {
		return attemptSettled, err
	}
	if fcBefore < s.cfg.MaxFailures-1 {
		s.metrics.TaskRetries().Inc()
		return attemptRetry, nil
	}
	s.rollback(u)
	return attemptSettled, nil
}

// handleUnitError settles a unit that failed with a non-retryable error so
// the run can still drain: the task counts as completed-but-failed and its
// dependents get their chance to run (and fail fast on missing inputs).
func (s *Scheduler) handleUnitError(u *unit, err error) {
	tid := u.task.ID

	s.mu.Lock()
	if s.units[tid] != u {
		// A canceller superseded this unit while the error was in flight
		// and already repaired the shared state.
		s.mu.Unlock()
		return
	}
	s.logger.Error("task abandoned", "task_id", tid, "error", err)
	s.pool.ReleaseByTask(tid)
	if t := s.graph.Task(tid); t != nil {
		t.ForceStatus(domain.TaskStatusExecutionFailed)
	}
	s.graph.MarkCompleted(tid)
	ready := s.graph.ReadyTasks()
	for _, t := range ready {
		s.spawnLocked(t)
	}
	s.mu.Unlock()

	s.afterStateChange()
	s.checkComplete()
}

// releaseSlotLocked frees the task's slot only while u is still the task's
// registered unit. A rollback or retry that cancelled u released its slot
// itself and may have already bound a fresh slot for the respawned unit;
// releasing by task id alone would free that one. Callers hold s.mu.
func (s *Scheduler) releaseSlotLocked(u *unit) {
	if s.units[u.task.ID] == u {
		s.pool.ReleaseByTask(u.task.ID)
	}
}

func (s *Scheduler) releaseSlot(u *unit) {
	s.mu.Lock()
	s.releaseSlotLocked(u)
	s.mu.Unlock()
	s.broadcastStats()
}

func (s *Scheduler) thinkingFunc(tid string) executor.ThinkingFunc {
	return func(ctx context.Context, chunk, operation string) error {
		return s.notifier.EmitOrdered(ctx, EventTaskThinking, map[string]any{
			"task_id":   tid,
			"chunk":     chunk,
			"operation": operation,
		})
	}
}

func isCancel(err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, domain.ErrStopped)
}
