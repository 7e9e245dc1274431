package executor

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/darianrosebrook/conscious-bot-experiment-sub003/core"
	"github.com/darianrosebrook/conscious-bot-experiment-sub003/store"
)

// deterministicFailureCodes short-circuit the retry loop entirely — these
// are mapping/contract failures no amount of retrying fixes (§4.F step 15).
var deterministicFailureCodes = map[string]bool{
	"CONTRACT_VIOLATION": true,
	"MAPPING_FAILURE":    true,
	"INVALID_ARGS":       true,
	"UNKNOWN_LEAF":       true,
}

// retryBackoffCapMillis bounds the exponential retry backoff.
const retryBackoffCapMillis = 30_000

// maxRepairAttempts bounds the Sterling repair gate at retry exhaustion.
const maxRepairAttempts = 2

// handleDispatchFailure applies the deterministic fast path or the
// non-deterministic retry/repair policy to a failed leaf dispatch
// (§4.F steps 15-16).
func (e *Executor) handleDispatchFailure(t *core.Task, result core.LeafResult) {
	if deterministicFailureCodes[result.FailureCode] {
		_ = e.store.UpdateTaskMetadata(t.ID, map[string]interface{}{
			"blockedReason": fmt.Sprintf("deterministic-failure:%s", result.FailureCode),
			"failureCode":   result.FailureCode,
		})
		_ = e.store.UpdateTaskStatus(t.ID, core.TaskStatusFailed, store.StatusOriginRuntime)
		return
	}

	e.applyRetryPolicy(context.Background(), t, result)
}

// applyRetryPolicy increments retryCount and backs off exponentially; once
// maxRetries is reached it attempts a bounded Sterling repair before
// failing the task outright.
func (e *Executor) applyRetryPolicy(ctx context.Context, t *core.Task, result core.LeafResult) {
	retryCount := t.Metadata.RetryCount + 1
	maxRetries := t.Metadata.MaxRetries

	if retryCount < maxRetries {
		delayMillis := math.Min(1000*math.Pow(2, float64(retryCount)), retryBackoffCapMillis)
		nextEligible := time.Now().Add(time.Duration(delayMillis) * time.Millisecond)
		_ = e.store.UpdateTaskMetadata(t.ID, map[string]interface{}{
			"retryCount":     retryCount,
			"nextEligibleAt": nextEligible,
		})
		return
	}

	if e.attemptSterlingRepair(ctx, t, result) {
		return
	}

	_ = e.store.UpdateTaskMetadata(t.ID, map[string]interface{}{
		"retryCount":    retryCount,
		"blockedReason": "max-retries-exceeded",
	})
	_ = e.store.UpdateTaskStatus(t.ID, core.TaskStatusFailed, store.StatusOriginRuntime)
}

// attemptSterlingRepair regenerates the plan with failure context attached.
// An identical stepsDigest counts as no repair at all. Returns true if a
// genuinely new plan was produced and the task was kept alive.
func (e *Executor) attemptSterlingRepair(ctx context.Context, t *core.Task, result core.LeafResult) bool {
	if e.sterling == nil || t.Metadata.Solver.ReplanAttempts >= maxRepairAttempts {
		return false
	}

	attempts := t.Metadata.Solver.ReplanAttempts + 1
	steps, err := e.sterling.Replan(ctx, t, map[string]interface{}{
		"failureCode": result.FailureCode,
		"error":       result.Error,
	})
	_ = e.store.UpdateTaskMetadata(t.ID, map[string]interface{}{"replanAttempts": attempts})
	if err != nil {
		return false
	}

	newDigest := store.StepsDigest(steps)
	if newDigest == t.Metadata.Solver.StepsDigest {
		return false // identical plan: no repair happened
	}

	t.Steps = steps
	_ = e.store.UpdateTaskMetadata(t.ID, map[string]interface{}{
		"retryCount":    0,
		"blockedReason": "",
	})
	return true
}

// scheduleRigGReplan implements the feasibility-gate replan ladder: three
// attempts at 5/15/45s delays, tracked by identical-digest comparison so a
// replan that produces the same plan doesn't spin forever (§4.F step 13).
func (e *Executor) scheduleRigGReplan(t *core.Task) {
	state := t.Metadata.Solver.RigGReplan
	attempt := 1
	if state != nil {
		attempt = state.Attempt + 1
	}

	if attempt > 3 {
		_ = e.store.UpdateTaskMetadata(t.ID, map[string]interface{}{
			"blockedReason": "rig_g_replan_exhausted: feasibility gate rejected plan after 3 attempts",
		})
		_ = e.store.UpdateTaskStatus(t.ID, core.TaskStatusFailed, store.StatusOriginRuntime)
		return
	}

	delays := map[int]time.Duration{1: 5 * time.Second, 2: 15 * time.Second, 3: 45 * time.Second}
	nextAt := time.Now().Add(delays[attempt])
	_ = e.store.SetRigGReplanState(t.ID, &core.RigGReplanState{
		Attempt:       attempt,
		LastDigest:    t.Metadata.Solver.StepsDigest,
		NextAttemptAt: &nextAt,
	})
}
