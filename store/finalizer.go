package store

import (
	"fmt"
	"time"

	"github.com/darianrosebrook/conscious-bot-experiment-sub003/core"
)

// finalizeNewTask is the single choke-point every creation path (direct and
// goal-resolver) funnels through before a task becomes visible outside the
// store. Order matters: executability gate, digest seed, stage cleanup,
// origin stamp, invariant assertions, persist, events, drift lint.
func (s *TaskStore) finalizeNewTask(t *core.Task, sterlingDedupeKey string) error {
	now := time.Now()

	if !t.HasExecutableStep() && t.Metadata.BlockedReason == "" {
		t.Metadata.BlockedReason = "no-executable-plan"
	}

	t.Metadata.Solver.StepsDigest = stepsDigest(t.Steps)

	t.Metadata.Stage = ""

	t.Metadata.Origin = ptrOrigin(inferTaskOrigin(t))

	if err := s.assertFinalizeInvariants(t); err != nil {
		if s.strictFinalize {
			return err
		}
		s.logger.Warn("finalize invariant violation (non-strict mode, continuing)", map[string]interface{}{
			"taskId": t.ID,
			"error":  err.Error(),
		})
	}

	if t.Metadata.BlockedReason != "" && t.Metadata.BlockedAt == nil {
		t.Metadata.BlockedAt = &now
	}

	s.persistNewLocked(t, sterlingDedupeKey)

	s.emit(Event{Type: EventTaskAdded, Task: t})
	if t.Priority >= 0.8 {
		s.emit(Event{Type: EventHighPriorityAdded, Task: t})
	}
	if isBlockedSentinelStep(t.Steps) {
		s.emit(Event{Type: EventSolverUnavailable, Task: t, Reason: t.Metadata.BlockedReason})
	}

	s.lintGoalBindingDrift(t)

	return nil
}

func ptrOrigin(o core.TaskOrigin) *core.TaskOrigin {
	return &o
}

func isBlockedSentinelStep(steps []core.Step) bool {
	return len(steps) == 1 && steps[0].Meta.Blocked
}

// assertFinalizeInvariants checks the invariants finalize is responsible
// for establishing. Callers in non-strict mode log and continue; strict
// mode (PLANNING_STRICT_FINALIZE=1) returns the error to the caller.
func (s *TaskStore) assertFinalizeInvariants(t *core.Task) error {
	if t.Metadata.Origin == nil {
		return fmt.Errorf("finalize invariant violated: origin must be present on task %s", t.ID)
	}
	if t.Metadata.BlockedReason != "" && t.Metadata.BlockedAt == nil {
		// backfilled by the caller immediately after this check; not an error.
	}
	if t.IsGoalBound() && t.Metadata.GoalBinding.GoalKey == "" {
		return fmt.Errorf("finalize invariant violated: goalKey must never be empty on task %s", t.ID)
	}
	return nil
}

// lintGoalBindingDrift flags goal-sourced tasks that finalized without a
// goal binding — almost always a configuration problem (resolver disabled,
// or a type that isn't in the gated-types set).
func (s *TaskStore) lintGoalBindingDrift(t *core.Task) {
	if t.Source != core.SourceGoal || t.IsGoalBound() {
		return
	}

	reason := "resolver_fallthrough"
	switch {
	case s.goalResolver == nil:
		reason = "goal_resolver_disabled"
	case !GoalResolverGatedTypes[t.Type]:
		reason = fmt.Sprintf("type_not_gated:%s", t.Type)
	}

	s.emit(Event{Type: EventGoalBindingDrift, Task: t, Reason: reason})
}

// persistNewLocked inserts a finalized task into every index and seeds its
// history ring. Callers must not hold s.mu.
func (s *TaskStore) persistNewLocked(t *core.Task, sterlingDedupeKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.byID[t.ID] = t

	if parentID := t.Metadata.ParentTaskID; parentID != "" {
		if s.byParentTaskID[parentID] == nil {
			s.byParentTaskID[parentID] = make(map[string]bool)
		}
		s.byParentTaskID[parentID][t.ID] = true
	}
	if key := t.Metadata.SubtaskKey; key != "" {
		s.bySubtaskKey[key] = t.ID
	}
	if sterlingDedupeKey != "" {
		s.bySterlingDedupeKey[sterlingDedupeKey] = t.ID
	}

	s.appendHistory(t.ID, t.Status, t.Progress, t.Metadata.CreatedAt)
}
