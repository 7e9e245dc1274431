package executor

import (
	"context"

	"github.com/darianrosebrook/conscious-bot-experiment-sub003/core"
	"github.com/darianrosebrook/conscious-bot-experiment-sub003/verify"
)

// updateInventoryProgress implements §4.F step 12: resolve the task's
// Requirement against a fresh inventory snapshot, update progress, and
// complete the task once satisfied (with an extra output-presence gate for
// craft requirements). Returns true if the task was completed this cycle.
func (e *Executor) updateInventoryProgress(ctx context.Context, t *core.Task) bool {
	req := t.Metadata.Requirement
	if req == nil || e.bot == nil {
		return false
	}

	inv, err := e.bot.Inventory(ctx)
	if err != nil {
		e.logger.Warn("inventory fetch failed during progress update", map[string]interface{}{"taskId": t.ID, "error": err.Error()})
		return false
	}

	names := verify.InventoryNamesForVerification(req.OutputPattern, req.Kind == core.RequirementMine)
	have := 0
	for _, name := range names {
		have += inv.InventoryByName[name]
	}

	progress := 1.0
	if req.Quantity > 0 {
		progress = float64(have) / float64(req.Quantity)
		if progress > 1 {
			progress = 1
		}
	}

	satisfied := have >= req.Quantity
	if satisfied && req.Kind == core.RequirementCraft {
		satisfied = inv.InventoryByName[req.OutputPattern] > 0
	}

	if satisfied {
		completed := core.TaskStatusCompleted
		_ = e.store.UpdateTaskProgress(t.ID, 1.0, &completed)
		return true
	}

	_ = e.store.UpdateTaskProgress(t.ID, progress, nil)
	return false
}
