package executor

import (
	"context"
	"fmt"

	"github.com/darianrosebrook/conscious-bot-experiment-sub003/core"
	"github.com/darianrosebrook/conscious-bot-experiment-sub003/store"
)

// craftingTableScanRadius bounds the nearby-world scan for an existing
// crafting table (§4.F step 11).
const craftingTableScanRadius = 20

// craftingTableDecision is the outcome of evaluating crafting-table
// availability.
type craftingTableDecision string

const (
	decisionUseExisting    craftingTableDecision = "use_existing"
	decisionCraftNew       craftingTableDecision = "craft_new"
	decisionGatherResources craftingTableDecision = "gather_resources"
)

// evaluateCraftingPrereqs implements §4.F step 11. It returns true if the
// parent task was blocked on a newly injected subtask this cycle.
func (e *Executor) evaluateCraftingPrereqs(ctx context.Context, t *core.Task) bool {
	if t.Metadata.BlockedReason == "waiting_on_prereq" {
		return true // already blocked on a prior injection; nothing new to do
	}
	if e.bot == nil {
		return false
	}

	inv, err := e.bot.Inventory(ctx)
	if err != nil {
		e.logger.Warn("inventory fetch failed during crafting prereq check", map[string]interface{}{"taskId": t.ID, "error": err.Error()})
		return false
	}
	if inv.InventoryByName["crafting_table"] > 0 {
		return false // already holding one; nothing to inject
	}

	blocks, err := e.bot.NearbyBlocks(ctx, craftingTableScanRadius)
	if err != nil {
		e.logger.Warn("nearby-block scan failed during crafting prereq check", map[string]interface{}{"taskId": t.ID, "error": err.Error()})
		return false
	}
	for _, b := range blocks {
		if b.Name == "crafting_table" {
			return false // one is reachable in the world; no subtask needed
		}
	}

	decision := decisionGatherResources
	if inv.InventoryByName["planks"] >= 4 {
		decision = decisionCraftNew
	}

	subtaskID := fmt.Sprintf("%s-prereq-craftingtable", t.ID)
	_, err = e.store.AddTask(subtaskID, store.CreateTaskInput{
		Type:         "crafting",
		Source:       core.SourceAutonomous,
		Title:        "acquire crafting table",
		Parameters:   map[string]interface{}{"recipe": "crafting_table", "decision": string(decision)},
		ParentTaskID: t.ID,
	})
	if err != nil {
		e.logger.Warn("crafting table subtask injection failed", map[string]interface{}{"taskId": t.ID, "error": err.Error()})
		return false
	}

	_ = e.store.UpdateTaskMetadata(t.ID, map[string]interface{}{"blockedReason": "waiting_on_prereq"})
	return true
}
