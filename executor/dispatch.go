package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/darianrosebrook/conscious-bot-experiment-sub003/core"
	"github.com/darianrosebrook/conscious-bot-experiment-sub003/store"
	"github.com/darianrosebrook/conscious-bot-experiment-sub003/telemetry"
)

// maxVerifyFails is the verify-failure backoff ceiling: at this count the
// step is marked done without verification instead of retried again
// (§4.F step 14). Below it, each failure defers the task by
// min(5s*count, 30s).
const maxVerifyFails = 5

// runExecutableStep implements §4.F steps 13-14 for a task with a pending
// executable/leaf step.
func (e *Executor) runExecutableStep(ctx context.Context, t *core.Task, step *core.Step) {
	leaf, args, ok := stepToLeafExecution(step)
	if !ok {
		e.rejectUnknownLeaf(t, step, leaf)
		return
	}

	if contract, has := leafContracts[leaf]; has {
		if err := contract(args); err != nil {
			_ = e.store.UpdateTaskMetadata(t.ID, map[string]interface{}{
				"blockedReason": fmt.Sprintf("invalid-args: %s", err.Error()),
			})
			return
		}
	}

	if leaf == "craft_recipe" && e.prereq != nil {
		if injected, err := e.prereq.InjectForCraft(ctx, t); err == nil && injected {
			return
		}
	}

	if !knownLeaves[leaf] {
		e.rejectUnknownLeaf(t, step, leaf)
		return
	}

	if e.mode() == ModeShadow {
		e.dispatchAndAdvance(ctx, t, step, leaf, args, true)
		return
	}

	if !e.tokens.Take() {
		return // rate-limited this cycle; no dry-run side effects, try again next tick
	}

	if e.rigG != nil && !t.Metadata.Solver.RigGChecked {
		proceed, err := e.rigG.AdviseExecution(ctx, RigGMeta{TaskID: t.ID, StepID: step.ID, StepsDigest: t.Metadata.Solver.StepsDigest})
		_ = e.store.UpdateTaskMetadata(t.ID, map[string]interface{}{"rigGChecked": true})
		if err == nil && !proceed {
			_ = e.store.UpdateTaskStatus(t.ID, core.TaskStatusUnplannable, store.StatusOriginRuntime)
			e.scheduleRigGReplan(t)
			return
		}
	}

	e.dispatchAndAdvance(ctx, t, step, leaf, args, false)
}

func (e *Executor) rejectUnknownLeaf(t *core.Task, step *core.Step, leaf string) {
	step.Meta.Executable = false
	_ = e.store.UpdateTaskMetadata(t.ID, map[string]interface{}{
		"blockedReason": fmt.Sprintf("unknown-leaf:%s", leaf),
	})
	e.logger.Warn("unknown_leaf_rejected", map[string]interface{}{"taskId": t.ID, "leaf": leaf})
}

// dispatchAndAdvance dispatches a step (live or shadow), verifies the
// effect, and applies the deterministic/retry failure policy.
func (e *Executor) dispatchAndAdvance(ctx context.Context, t *core.Task, step *core.Step, leaf string, args map[string]interface{}, dryRun bool) {
	if e.bot == nil {
		return
	}

	ctx, endSpan := telemetry.StartLinkedSpan(ctx, "executor.dispatch_step", t.TraceID, t.ParentSpanID, map[string]string{
		"taskId": t.ID, "stepId": step.ID, "leaf": leaf,
	})
	defer endSpan()

	var baseline core.InventorySnapshot
	if e.verifier != nil {
		baseline, _ = e.verifier.Baseline(ctx, t.ID, step.ID)
	}

	result, err := e.bot.Dispatch(ctx, leaf, args, dryRun)
	if err != nil {
		e.breaker.RecordFailure()
		telemetry.RecordSpanError(ctx, err)
		e.events.AppendEvent(e.worldSeed, t.ID, "dispatch_error", map[string]interface{}{"leaf": leaf, "error": err.Error()})
		return
	}
	e.breaker.RecordSuccess()

	if dryRun {
		e.events.AppendEvent(e.worldSeed, t.ID, "dispatch_shadow", map[string]interface{}{"leaf": leaf})
		return
	}

	if !result.OK {
		e.events.AppendEvent(e.worldSeed, t.ID, "dispatch_failed", map[string]interface{}{"leaf": leaf, "failureCode": result.FailureCode})
		e.handleDispatchFailure(t, result)
		return
	}

	if e.verifier == nil {
		e.events.AppendEvent(e.worldSeed, t.ID, "step_done", map[string]interface{}{"leaf": leaf, "stepId": step.ID})
		e.markStepDone(t, step)
		return
	}

	vr := e.verifier.Verify(ctx, core.VerifyRequest{
		TaskID: t.ID, StepID: step.ID, Leaf: leaf, Args: args, Baseline: baseline,
		IsMineStep: leaf == "acquire_material",
	})
	if vr.Verified {
		e.events.AppendEvent(e.worldSeed, t.ID, "step_verified", map[string]interface{}{"leaf": leaf, "stepId": step.ID})
		e.markStepDone(t, step)
		return
	}

	e.events.AppendEvent(e.worldSeed, t.ID, "verify_failed", map[string]interface{}{"leaf": leaf, "stepId": step.ID})
	e.handleVerifyFailure(t, step)
}

func (e *Executor) markStepDone(t *core.Task, step *core.Step) {
	step.Done = true
	if t.Status != core.TaskStatusActive {
		_ = e.store.UpdateTaskStatus(t.ID, core.TaskStatusActive, store.StatusOriginRuntime)
	}
}

func (e *Executor) handleVerifyFailure(t *core.Task, step *core.Step) {
	count := t.Metadata.VerifyFailCount + 1
	if count >= maxVerifyFails {
		// Force progression rather than stall forever on a verifier that
		// can't confirm the effect.
		e.markStepDone(t, step)
		return
	}
	backoff := time.Duration(count) * 5 * time.Second
	if backoff > 30*time.Second {
		backoff = 30 * time.Second
	}
	_ = e.store.UpdateTaskMetadata(t.ID, map[string]interface{}{
		"verifyFailCount": count,
		"nextEligibleAt":  time.Now().Add(backoff),
	})
}
