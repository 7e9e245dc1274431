package store

import "github.com/darianrosebrook/conscious-bot-experiment-sub003/core"

// EffectKind names a goal-binding protocol effect (§4.D).
type EffectKind string

const (
	EffectApplyHold        EffectKind = "apply_hold"
	EffectClearHold        EffectKind = "clear_hold"
	EffectUpdateTaskStatus EffectKind = "update_task_status"
	EffectUpdateGoalStatus EffectKind = "update_goal_status"
)

// SyncEffect is one protocol effect produced by a status/progress hook. Only
// the fields relevant to Kind are populated.
type SyncEffect struct {
	Kind   EffectKind
	TaskID string
	Hold   *core.Hold
	Status core.TaskStatus
	GoalID string
	Reason string
}

// StatusHook computes goal-binding protocol effects in response to a task
// status transition. Returned effects targeting taskID itself are applied
// in-memory before persist (self-hold, §4.D); everything else is handed to
// the EffectDrain.
type StatusHook interface {
	OnTaskStatusChanged(task *core.Task, oldStatus, newStatus core.TaskStatus) []SyncEffect
}

// ProgressHook is the progress-side analogue of StatusHook.
type ProgressHook interface {
	OnTaskProgressUpdated(task *core.Task, oldProgress, newProgress float64) []SyncEffect
}

// EffectDrain serializes cross-entity effect application so concurrent
// status mutations from different lifecycle hooks never overlap (§4.D).
type EffectDrain interface {
	Schedule(effects []SyncEffect)
}

func partitionSelfEffects(taskID string, effects []SyncEffect) (self, rest []SyncEffect) {
	for _, e := range effects {
		if e.TaskID == taskID {
			self = append(self, e)
		} else {
			rest = append(rest, e)
		}
	}
	return self, rest
}

func applySelfEffect(t *core.Task, e SyncEffect) {
	switch e.Kind {
	case EffectApplyHold:
		if e.Hold != nil && t.IsGoalBound() {
			t.Metadata.GoalBinding.Hold = e.Hold
		}
	case EffectClearHold:
		if t.IsGoalBound() {
			t.Metadata.GoalBinding.Hold = nil
		}
	case EffectUpdateTaskStatus:
		t.Status = e.Status
	}
}
