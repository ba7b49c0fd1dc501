package scheduler

import (
	"github.com/example/wavefront/internal/domain"
)

// rollback resets the failed task's closure after its failure budget runs
// out: the task itself, its direct dependencies, and every transitive
// dependent of those. Members return to undone with cleared failure counts
// and their artifacts discarded, in-flight members are cancelled, and any
// member whose dependencies still hold immediately respawns.
func (s *Scheduler) rollback(u *unit) {
	tid := u.task.ID
	s.metrics.RollbackCascades().Inc()

	s.mu.Lock()
	t := s.graph.Task(tid)
	if t == nil {
		s.mu.Unlock()
		return
	}
	closure := s.graph.RollbackClosure(t)

	members := make([]string, 0, len(closure))
	for _, gid := range s.graph.Order {
		if _, ok := closure[gid]; ok {
			members = append(members, gid)
		}
	}

	for _, gid := range members {
		if gu := s.units[gid]; gu != nil {
			if gid != tid {
				gu.cancel()
			}
			// The failed unit keeps its live context; dropping its handle
			// lets the respawn below create a fresh one while this
			// goroutine unwinds.
			delete(s.units, gid)
		}
		s.graph.Requeue(gid)
		if gt := s.graph.Task(gid); gt != nil {
			gt.ForceStatus(domain.TaskStatusUndone)
		}
		delete(s.graph.FailureCount, gid)
		s.pool.ReleaseByTask(gid)
	}
	s.mu.Unlock()

	s.metrics.RollbackTasksReset().Add(int64(len(members)))
	s.logger.Warn("rolled back task closure", "task_id", tid, "tasks_reset", len(members))

	// Invalidated outputs go away so reruns resolve fresh inputs.
	for _, gid := range members {
		if err := s.artifacts.DeleteArtifact(u.ctx, u.planID, gid); err != nil && u.ctx.Err() == nil {
			s.logger.Warn("artifact delete failed during rollback", "task_id", gid, "error", err)
		}
	}

	s.notifier.Emit(EventExecutionRollback, map[string]any{
		"task_id": tid,
		"tasks":   members,
	})
	s.afterStateChange()

	s.mu.Lock()
	for _, rt := range s.graph.ReadyTasks() {
		s.spawnLocked(rt)
	}
	s.mu.Unlock()
}
