package executor

import (
	"context"
	"time"

	"github.com/darianrosebrook/conscious-bot-experiment-sub003/core"
	"github.com/darianrosebrook/conscious-bot-experiment-sub003/store"
)

// nowFunc is overridden in tests for deterministic TTL checks.
var nowFunc = time.Now

// bridgeThreatHolds applies or clears the unsafe hold across active tasks
// and tasks already paused for that reason, via the public status/metadata
// APIs only — it never reaches into store internals (§4.F step 3).
func (e *Executor) bridgeThreatHolds(ctx context.Context) {
	if e.bot == nil {
		return
	}
	signal, err := e.bot.Threat(ctx)
	if err != nil {
		e.logger.Warn("threat signal fetch failed", map[string]interface{}{"error": err.Error()})
		return
	}

	for _, t := range e.store.List() {
		targeted := t.Status == core.TaskStatusActive ||
			(t.Status == core.TaskStatusPaused && t.Metadata.BlockedReason == "unsafe")
		if !targeted {
			continue
		}

		if signal.Unsafe && t.Metadata.BlockedReason != "unsafe" {
			_ = e.store.UpdateTaskMetadata(t.ID, map[string]interface{}{"blockedReason": "unsafe"})
			if t.Status != core.TaskStatusPaused {
				_ = e.store.UpdateTaskStatus(t.ID, core.TaskStatusPaused, store.StatusOriginRuntime)
			}
		} else if !signal.Unsafe && t.Metadata.BlockedReason == "unsafe" {
			_ = e.store.UpdateTaskMetadata(t.ID, map[string]interface{}{"blockedReason": ""})
			_ = e.store.UpdateTaskStatus(t.ID, core.TaskStatusActive, store.StatusOriginRuntime)
		}
	}
}

// autoUnblockShadow clears the shadow_mode block once the executor is
// running live (§4.F step 5).
func (e *Executor) autoUnblockShadow(tasks []*core.Task) {
	if e.mode() != ModeLive {
		return
	}
	for _, t := range tasks {
		if t.Metadata.BlockedReason == "shadow_mode" {
			_ = e.store.UpdateTaskMetadata(t.ID, map[string]interface{}{"blockedReason": ""})
		}
	}
}

// blockedTTL bounds how long a block reason may persist before the task is
// auto-failed. Entries marked exempt never expire on their own (e.g.
// manual_pause requires an explicit resume); every other reason, including
// one absent from this table, is auto-failed after blockTTLDuration.
var blockedTTL = map[string]struct{ exempt bool }{
	"manual_pause":        {exempt: true},
	"unsafe":              {exempt: true},
	"waiting_on_prereq":   {exempt: false},
	"shadow_mode":         {exempt: false},
	"no-executable-plan":  {exempt: false},
}

// blockTTLDuration is the default time a non-exempt block may persist
// before the task is auto-failed.
const blockTTLDuration = 2 * time.Minute

// autoFailTTL transitions tasks blocked longer than their reason's TTL to
// failed (§4.F step 6).
func (e *Executor) autoFailTTL(tasks []*core.Task) {
	now := nowFunc()
	for _, t := range tasks {
		if t.Metadata.BlockedReason == "" || t.Metadata.BlockedAt == nil {
			continue
		}
		if rule, ok := blockedTTL[t.Metadata.BlockedReason]; ok && rule.exempt {
			continue
		}
		if now.Sub(*t.Metadata.BlockedAt) < blockTTLDuration {
			continue
		}
		_ = e.store.UpdateTaskMetadata(t.ID, map[string]interface{}{
			"blockedReason": "ttl-exceeded:" + t.Metadata.BlockedReason,
		})
		_ = e.store.UpdateTaskStatus(t.ID, core.TaskStatusFailed, store.StatusOriginRuntime)
	}
}

// driveRigGReplans fires the pending half of the feasibility-gate replan
// ladder: scheduleRigGReplan only parks a task Unplannable with a
// NextAttemptAt; this is what actually wakes it back up once that time
// passes, calls Replanner.Replan, and either returns the task to pending
// with the regenerated plan or advances the ladder on an identical digest
// (§4.F step 13, §8 boundary scenario 6).
func (e *Executor) driveRigGReplans(ctx context.Context, tasks []*core.Task) {
	if e.sterling == nil {
		return
	}
	now := nowFunc()
	for _, t := range tasks {
		if t.Status != core.TaskStatusUnplannable {
			continue
		}
		state := t.Metadata.Solver.RigGReplan
		if state == nil || state.NextAttemptAt == nil || state.NextAttemptAt.After(now) {
			continue
		}

		steps, err := e.sterling.Replan(ctx, t, map[string]interface{}{
			"failureCode": "RIG_G_INFEASIBLE",
		})
		if err != nil {
			e.logger.Warn("rig_g_replan_call_failed", map[string]interface{}{"taskId": t.ID, "error": err.Error()})
			e.scheduleRigGReplan(t)
			continue
		}

		newDigest := store.StepsDigest(steps)
		if newDigest == state.LastDigest {
			e.logger.Info("rig_g_replan_identical_steps", map[string]interface{}{"taskId": t.ID, "attempt": state.Attempt})
			e.scheduleRigGReplan(t)
			continue
		}

		t.Steps = steps
		_ = e.store.SetRigGReplanState(t.ID, nil)
		_ = e.store.UpdateTaskMetadata(t.ID, map[string]interface{}{
			"blockedReason": "",
			"rigGChecked":   false,
		})
		_ = e.store.UpdateTaskStatus(t.ID, core.TaskStatusPending, store.StatusOriginRuntime)
	}
}
