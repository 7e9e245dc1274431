package store

import (
	"fmt"
	"time"

	"github.com/darianrosebrook/conscious-bot-experiment-sub003/core"
)

// UpdateTaskMetadata applies patch to a task's metadata, silently stripping
// goalBinding and origin — both are controlled by dedicated APIs
// (updateTaskStatus's goal-binding hook, and the finalizer) and must never
// be set through a generic metadata patch.
func (s *TaskStore) UpdateTaskMetadata(id string, patch map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.byID[id]
	if !ok {
		return core.ErrTaskNotFound
	}

	delete(patch, "goalBinding")
	delete(patch, "origin")

	for key, value := range patch {
		switch key {
		case "tags":
			if tags, ok := value.([]string); ok {
				t.Metadata.Tags = tags
			}
		case "blockedReason":
			if s, ok := value.(string); ok {
				t.Metadata.BlockedReason = s
				if s != "" && t.Metadata.BlockedAt == nil {
					now := time.Now()
					t.Metadata.BlockedAt = &now
				}
				if s == "" {
					t.Metadata.BlockedAt = nil
				}
			}
		case "nextEligibleAt":
			if at, ok := value.(time.Time); ok {
				t.Metadata.NextEligibleAt = &at
			}
		case "verifyFailCount":
			if n, ok := value.(int); ok {
				t.Metadata.VerifyFailCount = n
			}
		case "retryCount":
			if n, ok := value.(int); ok {
				t.Metadata.RetryCount = n
			}
		case "prereqInjectionCount":
			if n, ok := value.(int); ok {
				t.Metadata.PrereqInjectionCount = n
			}
		case "shadowObservationCount":
			if n, ok := value.(int); ok {
				t.Metadata.ShadowObservationCount = n
			}
		case "rigGChecked":
			if b, ok := value.(bool); ok {
				t.Metadata.Solver.RigGChecked = b
			}
		case "failReason":
			if v, ok := value.(string); ok {
				t.Metadata.FailReason = v
			}
		case "failureCode":
			if v, ok := value.(string); ok {
				t.Metadata.FailureCode = v
			}
		case "replanAttempts":
			if n, ok := value.(int); ok {
				t.Metadata.Solver.ReplanAttempts = n
			}
		}
	}
	t.Metadata.UpdatedAt = time.Now()
	return nil
}

// UpdateTaskProgress updates a task's progress. The only status changes
// accepted here are a transition to completed/failed, or active passed
// through as a no-op; any other status must go through UpdateTaskStatus.
func (s *TaskStore) UpdateTaskProgress(id string, progress float64, status *core.TaskStatus) error {
	s.mu.Lock()
	t, ok := s.byID[id]
	if !ok {
		s.mu.Unlock()
		return core.ErrTaskNotFound
	}

	oldProgress := t.Progress
	t.Progress = clamp01(progress)
	t.Metadata.UpdatedAt = time.Now()

	statusChanged := false
	if status != nil {
		switch *status {
		case core.TaskStatusCompleted, core.TaskStatusFailed:
			t.Status = *status
			statusChanged = true
		case core.TaskStatusActive:
			// passthrough no-op.
		default:
			s.mu.Unlock()
			return fmt.Errorf("updateTaskProgress: status %q not allowed, use UpdateTaskStatus", *status)
		}
	}
	s.appendHistory(id, t.Status, t.Progress, t.Metadata.UpdatedAt)
	s.mu.Unlock()

	var effects []SyncEffect
	if s.progressHook != nil {
		effects = s.progressHook.OnTaskProgressUpdated(t, oldProgress, t.Progress)
	}
	s.applyEffects(id, effects)

	s.emit(Event{Type: EventTaskProgressUpdate, Task: t})
	if statusChanged {
		s.emit(Event{Type: EventTaskStatusChanged, Task: t})
		if t.Status.IsTerminal() {
			s.tryUnblockParent(t)
		}
	}
	return nil
}

// StatusOrigin distinguishes who is driving a status transition; only
// origin=runtime tasks run the goal-binding status hook before persist
// (§4.A updateTaskStatus).
type StatusOrigin string

const (
	StatusOriginRuntime StatusOrigin = "runtime"
	StatusOriginManual  StatusOrigin = "manual"
)

// UpdateTaskStatus transitions a task's status. For origin=runtime, the
// goal-binding status hook runs before persist; effects targeting this task
// are applied in-memory before persist, everything else is scheduled on the
// drain after persist and broadcast.
func (s *TaskStore) UpdateTaskStatus(id string, status core.TaskStatus, origin StatusOrigin) error {
	s.mu.Lock()
	t, ok := s.byID[id]
	if !ok {
		s.mu.Unlock()
		return core.ErrTaskNotFound
	}
	oldStatus := t.Status

	var effects []SyncEffect
	if origin == StatusOriginRuntime && s.statusHook != nil {
		effects = s.statusHook.OnTaskStatusChanged(t, oldStatus, status)
	}

	self, rest := partitionSelfEffects(id, effects)
	for _, e := range self {
		applySelfEffect(t, e)
	}

	t.Status = status
	t.Metadata.UpdatedAt = time.Now()
	if status == core.TaskStatusCompleted {
		now := time.Now()
		t.Metadata.CompletedAt = &now
	}
	s.appendHistory(id, t.Status, t.Progress, t.Metadata.UpdatedAt)
	s.mu.Unlock()

	s.emit(Event{Type: EventTaskStatusChanged, Task: t})

	if t.Status.IsTerminal() {
		s.tryUnblockParent(t)
	}

	if len(rest) > 0 && s.drain != nil {
		s.drain.Schedule(rest)
	}
	return nil
}

func (s *TaskStore) applyEffects(taskID string, effects []SyncEffect) {
	if len(effects) == 0 {
		return
	}
	self, rest := partitionSelfEffects(taskID, effects)
	if len(self) > 0 {
		s.mu.Lock()
		if t, ok := s.byID[taskID]; ok {
			for _, e := range self {
				applySelfEffect(t, e)
			}
		}
		s.mu.Unlock()
	}
	if len(rest) > 0 && s.drain != nil {
		s.drain.Schedule(rest)
	}
}

// SetEpisodeHash records an acknowledged Sterling episode report hash under
// the given domain slot and clears the consumed result substrate, so a
// stale substrate from a prior episode is never re-reported (§4.E).
func (s *TaskStore) SetEpisodeHash(id, domain, episodeHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.byID[id]
	if !ok {
		return core.ErrTaskNotFound
	}
	if t.Metadata.Solver.EpisodeHashSlots == nil {
		t.Metadata.Solver.EpisodeHashSlots = make(map[string]string)
	}
	t.Metadata.Solver.EpisodeHashSlots[domain] = episodeHash
	t.Metadata.Solver.BuildingSolveResultSubstrate = nil
	t.Metadata.UpdatedAt = time.Now()
	return nil
}

// SetRigGReplanState records the feasibility-gate replan ladder state
// (attempt count, last digest, next retry time) for a task (§4.F step 13).
func (s *TaskStore) SetRigGReplanState(id string, state *core.RigGReplanState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.byID[id]
	if !ok {
		return core.ErrTaskNotFound
	}
	t.Metadata.Solver.RigGReplan = state
	t.Metadata.UpdatedAt = time.Now()
	return nil
}

// tryUnblockParent clears a parent's waiting_on_prereq block once every
// sibling subtask has reached a terminal state (§4.A).
func (s *TaskStore) tryUnblockParent(child *core.Task) {
	parentID := child.Metadata.ParentTaskID
	if parentID == "" {
		return
	}

	s.mu.Lock()
	parent, ok := s.byID[parentID]
	if !ok || parent.Metadata.BlockedReason != "waiting_on_prereq" {
		s.mu.Unlock()
		return
	}

	siblingIDs := s.byParentTaskID[parentID]
	allTerminal := true
	for sid := range siblingIDs {
		sibling, ok := s.byID[sid]
		if !ok || !sibling.Status.IsTerminal() {
			allTerminal = false
			break
		}
	}
	if allTerminal {
		parent.Metadata.BlockedReason = ""
		parent.Metadata.BlockedAt = nil
		parent.Metadata.UpdatedAt = time.Now()
	}
	s.mu.Unlock()

	if allTerminal {
		s.emit(Event{Type: EventTaskStatusChanged, Task: parent})
	}
}
