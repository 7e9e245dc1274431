package executor

import (
	"time"

	"github.com/darianrosebrook/conscious-bot-experiment-sub003/core"
)

// IdleReason classifies why no task was eligible this cycle (§4.F step 8).
type IdleReason string

const (
	IdleNoTasks           IdleReason = "no_tasks"
	IdleAllInBackoff      IdleReason = "all_in_backoff"
	IdleCircuitBreakerOpen IdleReason = "circuit_breaker_open"
	IdleBlockedOnPrereq   IdleReason = "blocked_on_prereq"
	IdleManualPause       IdleReason = "manual_pause"
)

// idleEmitThrottle bounds idle_period emission to once per five minutes.
const idleEmitThrottle = 5 * time.Minute

// classifyIdle computes the idle reason from the full active set (not just
// the eligible-set size) and emits a throttled idle_period event.
func (e *Executor) classifyIdle(active []*core.Task) {
	if time.Since(e.lastIdleEmit) < idleEmitThrottle {
		return
	}

	reason := idleReasonFor(active, !e.breaker.CanExecute())
	e.logger.Info("idle_period", map[string]interface{}{"reason": string(reason), "activeCount": len(active)})
	e.lastIdleEmit = time.Now()
}

func idleReasonFor(active []*core.Task, breakerOpen bool) IdleReason {
	if breakerOpen {
		return IdleCircuitBreakerOpen
	}
	if len(active) == 0 {
		return IdleNoTasks
	}

	allBackoff, allPrereq, allManual := true, true, true
	now := time.Now()
	for _, t := range active {
		if !(t.Metadata.NextEligibleAt != nil && t.Metadata.NextEligibleAt.After(now)) {
			allBackoff = false
		}
		if t.Metadata.BlockedReason != "waiting_on_prereq" {
			allPrereq = false
		}
		if t.Metadata.BlockedReason != "manual_pause" {
			allManual = false
		}
	}
	switch {
	case allManual:
		return IdleManualPause
	case allPrereq:
		return IdleBlockedOnPrereq
	case allBackoff:
		return IdleAllInBackoff
	default:
		return IdleNoTasks
	}
}
