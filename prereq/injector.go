package prereq

import (
	"context"
	"fmt"

	"github.com/darianrosebrook/conscious-bot-experiment-sub003/core"
	"github.com/darianrosebrook/conscious-bot-experiment-sub003/store"
)

// maxInjectionsPerTask caps how many prereq subtasks a single parent task
// may spawn before the executor falls through to its own retry/fail policy
// instead (§4.I, example 5: third injection is the last one allowed).
const maxInjectionsPerTask = 3

// InventorySource reports current holdings for deficit computation. The bot
// interface satisfies this by construction (its Inventory method returns the
// same shape); kept as its own narrow interface so this package doesn't
// depend on executor.
type InventorySource interface {
	Inventory(ctx context.Context) (core.InventorySnapshot, error)
}

// Injector implements the executor's PrereqInjector seam: recipe
// introspection, missing-input computation, and subtask dedupe.
type Injector struct {
	store *store.TaskStore
	bot   InventorySource
}

func New(taskStore *store.TaskStore, bot InventorySource) *Injector {
	return &Injector{store: taskStore, bot: bot}
}

// InjectForCraft inspects parent's craft requirement, computes the missing
// input with the largest deficit, and spawns a subtask for it. Returns false
// (no injection) when the cap is reached, inventory already satisfies the
// recipe, or a non-terminal subtask for the same key already exists.
func (i *Injector) InjectForCraft(ctx context.Context, parent *core.Task) (bool, error) {
	if parent.Metadata.PrereqInjectionCount >= maxInjectionsPerTask {
		return false, nil
	}

	recipeName := craftTargetName(parent)
	recipe, ok := recipeTable[recipeName]
	if !ok {
		return false, nil
	}

	inv, err := i.bot.Inventory(ctx)
	if err != nil {
		return false, err
	}

	missing, deficit := largestDeficit(recipe, inv)
	if missing == "" {
		return false, nil // recipe already satisfiable; nothing to inject
	}

	kind, outputPattern, quantity := subtaskSpecFor(missing, deficit)
	key := core.NewSubtaskKey(kind, outputPattern, quantity, parent.ID)

	if existing, found := i.store.FindBySubtaskKey(key); found && !existing.Status.IsTerminal() {
		return false, nil // already have a live subtask covering this deficit
	}

	subtaskID := fmt.Sprintf("%s-prereq-%s", parent.ID, key[:8])
	_, err = i.store.AddTask(subtaskID, store.CreateTaskInput{
		Type:         kind,
		Source:       core.SourceAutonomous,
		Title:        fmt.Sprintf("acquire %s for %s", outputPattern, recipeName),
		ParentTaskID: parent.ID,
		Metadata: map[string]interface{}{
			"subtaskKey":     key,
			"taskProvenance": "prereq_injector",
		},
	})
	if err != nil {
		return false, err
	}

	count := parent.Metadata.PrereqInjectionCount + 1
	if err := i.store.UpdateTaskMetadata(parent.ID, map[string]interface{}{
		"prereqInjectionCount": count,
		"blockedReason":        "waiting_on_prereq",
	}); err != nil {
		return false, err
	}
	return true, nil
}

// craftTargetName resolves the item a craft-kind requirement or task
// parameters name as the thing being crafted.
func craftTargetName(t *core.Task) string {
	if t.Metadata.Requirement != nil && t.Metadata.Requirement.OutputPattern != "" {
		return t.Metadata.Requirement.OutputPattern
	}
	if recipe, ok := t.Parameters["recipe"].(string); ok {
		return recipe
	}
	return ""
}

// largestDeficit returns the recipe input with the biggest (count-have)
// shortfall, or "" if every input is already satisfied.
func largestDeficit(recipe RecipeInfo, inv core.InventorySnapshot) (item string, deficit int) {
	for _, in := range recipe.Inputs {
		have := inv.InventoryByName[in.Item]
		if d := in.Count - have; d > deficit {
			deficit = d
			item = in.Item
		}
	}
	return item, deficit
}

// subtaskSpecFor decides whether the missing input needs another craft
// subtask, a base-gather subtask, or a crafting-table placement, per §4.I.
func subtaskSpecFor(missing string, deficit int) (kind, outputPattern string, quantity int) {
	if missing == "crafting_table" {
		return "place", "crafting_table", 1
	}
	if isCraftable(missing) {
		return "crafting", missing, deficit
	}
	if mapping, ok := baseGatherMapping[missing]; ok {
		return mapping.TaskType, mapping.OutputPattern, deficit
	}
	return "gathering", missing, deficit
}
