// Package protocol implements the goal-binding protocol's cross-entity
// effect application: a single serial drain that applies hold/clear_hold/
// status effects produced by lifecycle hooks, so concurrent status
// mutations from unrelated callers never race each other (§4.D).
package protocol

import (
	"sync"

	"github.com/darianrosebrook/conscious-bot-experiment-sub003/core"
	"github.com/darianrosebrook/conscious-bot-experiment-sub003/store"
)

// Drain is a serial queue of SyncEffects, consumed by a single worker
// goroutine so effects never apply out of order or concurrently with each
// other — the Go equivalent of the spec's conceptual "global Promise.then
// chain". Drain is intentionally global and unpartitioned: effects may
// touch any task or goal, and partitioning by task/goal risks cross-entity
// ordering bugs.
type Drain struct {
	store  *store.TaskStore
	logger core.Logger

	mu      sync.Mutex
	queue   []store.SyncEffect
	running bool
}

// New creates a Drain bound to a task store.
func New(taskStore *store.TaskStore, logger core.Logger) *Drain {
	d := &Drain{store: taskStore, logger: logger}
	if d.logger == nil {
		d.logger = &core.NoOpLogger{}
	}
	if cal, ok := d.logger.(core.ComponentAwareLogger); ok {
		d.logger = cal.WithComponent("planner/protocol")
	}
	return d
}

// Schedule enqueues effects for serial application. Implements
// store.EffectDrain.
func (d *Drain) Schedule(effects []store.SyncEffect) {
	if len(effects) == 0 {
		return
	}
	d.mu.Lock()
	d.queue = append(d.queue, effects...)
	alreadyRunning := d.running
	d.running = true
	d.mu.Unlock()

	if !alreadyRunning {
		go d.drainLoop()
	}
}

func (d *Drain) drainLoop() {
	for {
		d.mu.Lock()
		if len(d.queue) == 0 {
			d.running = false
			d.mu.Unlock()
			return
		}
		next := d.queue[0]
		d.queue = d.queue[1:]
		d.mu.Unlock()

		d.apply(next)
	}
}

func (d *Drain) apply(e store.SyncEffect) {
	switch e.Kind {
	case store.EffectApplyHold:
		if e.Hold != nil {
			if err := d.store.UpdateTaskMetadata(e.TaskID, map[string]interface{}{
				"blockedReason": string(e.Hold.Reason),
			}); err != nil {
				d.logger.Warn("drain: apply_hold failed", map[string]interface{}{
					"taskId": e.TaskID, "error": err.Error(),
				})
			}
		}
	case store.EffectClearHold:
		if err := d.store.UpdateTaskMetadata(e.TaskID, map[string]interface{}{
			"blockedReason": "",
		}); err != nil {
			d.logger.Warn("drain: clear_hold failed", map[string]interface{}{
				"taskId": e.TaskID, "error": err.Error(),
			})
		}
	case store.EffectUpdateTaskStatus:
		if err := d.store.UpdateTaskStatus(e.TaskID, e.Status, store.StatusOriginRuntime); err != nil {
			d.logger.Warn("drain: update_task_status failed", map[string]interface{}{
				"taskId": e.TaskID, "error": err.Error(),
			})
		}
	case store.EffectUpdateGoalStatus:
		d.logger.Debug("drain: update_goal_status", map[string]interface{}{
			"goalId": e.GoalID, "reason": e.Reason,
		})
	}
}
