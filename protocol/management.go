package protocol

import (
	"fmt"
	"time"

	"github.com/darianrosebrook/conscious-bot-experiment-sub003/core"
	"github.com/darianrosebrook/conscious-bot-experiment-sub003/store"
)

// Manager exposes the task-scoped management actions (pause/resume/cancel).
// Unlike goal-binding holds, these are always task-scoped, never
// goal-scoped, and use reason manual_pause regardless of which action
// triggered them.
type Manager struct {
	store *store.TaskStore
}

// NewManager creates a Manager bound to a task store.
func NewManager(taskStore *store.TaskStore) *Manager {
	return &Manager{store: taskStore}
}

// Pause moves a non-terminal task to paused, recording a manual_pause hold
// when the task is goal-bound (a task that is not goal-bound is paused
// without a hold). A terminal task is rejected before anything is mutated.
// The precondition pattern: snapshot the prior hold, set the new hold, then
// persist the status; if the status update is rejected, the hold is rolled
// back to the snapshot.
func (m *Manager) Pause(taskID, resumeHints string) error {
	t, ok := m.store.Get(taskID)
	if !ok {
		return core.ErrTaskNotFound
	}
	if t.Status.IsTerminal() {
		return fmt.Errorf("cannot pause terminal task %s", taskID)
	}

	now := time.Now()
	hold := &core.Hold{Reason: core.HoldManualPause, HeldAt: now, ResumeHints: resumeHints}

	prior := snapshotHold(t)
	if err := m.applyHoldAndStatus(t, hold, core.TaskStatusPaused); err != nil {
		restoreHold(t, prior)
		return err
	}
	return nil
}

// Resume clears a manual_pause hold and returns the task to pending so the
// executor picks it back up on its next eligibility pass.
func (m *Manager) Resume(taskID string) error {
	t, ok := m.store.Get(taskID)
	if !ok {
		return core.ErrTaskNotFound
	}

	prior := snapshotHold(t)
	if err := m.clearHoldAndStatus(t, core.TaskStatusPending); err != nil {
		restoreHold(t, prior)
		return err
	}
	return nil
}

// Cancel transitions a non-terminal task directly to failed, recording a
// manual_pause hold for audit when the task is goal-bound. A task that is
// already terminal is left unchanged and nil is returned.
func (m *Manager) Cancel(taskID, reason string) error {
	t, ok := m.store.Get(taskID)
	if !ok {
		return core.ErrTaskNotFound
	}
	if t.Status.IsTerminal() {
		return nil
	}

	hold := &core.Hold{Reason: core.HoldManualPause, HeldAt: time.Now()}
	prior := snapshotHold(t)
	if err := m.applyHoldAndStatus(t, hold, core.TaskStatusFailed); err != nil {
		restoreHold(t, prior)
		return err
	}
	return nil
}

func snapshotHold(t *core.Task) *core.Hold {
	if !t.IsGoalBound() || t.Metadata.GoalBinding.Hold == nil {
		return nil
	}
	snap := *t.Metadata.GoalBinding.Hold
	return &snap
}

func restoreHold(t *core.Task, prior *core.Hold) {
	if t.IsGoalBound() {
		t.Metadata.GoalBinding.Hold = prior
	}
}

func (m *Manager) applyHoldAndStatus(t *core.Task, hold *core.Hold, status core.TaskStatus) error {
	if t.IsGoalBound() {
		t.Metadata.GoalBinding.Hold = hold
	}
	return m.store.UpdateTaskStatus(t.ID, status, store.StatusOriginManual)
}

func (m *Manager) clearHoldAndStatus(t *core.Task, status core.TaskStatus) error {
	if t.IsGoalBound() {
		t.Metadata.GoalBinding.Hold = nil
	}
	return m.store.UpdateTaskStatus(t.ID, status, store.StatusOriginManual)
}
