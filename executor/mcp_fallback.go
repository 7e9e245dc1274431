package executor

import (
	"context"

	"github.com/darianrosebrook/conscious-bot-experiment-sub003/core"
)

// mcpFallbackTable maps a task type to the leaf dispatched when the solver
// produced no structured plan at all (§4.F step 18). Used only for task
// types with an unambiguous single-action mapping.
var mcpFallbackTable = map[string]string{
	"gathering": "acquire_material",
	"mining":    "acquire_material",
	"crafting":  "craft_recipe",
}

// runMCPFallback implements §4.F step 18: the same allowlist, shadow,
// rate-limit, snapshot, dispatch, and verify path as the executable-plan
// path, but keyed by task type rather than step meta.
func (e *Executor) runMCPFallback(ctx context.Context, t *core.Task) {
	leaf, ok := mcpFallbackTable[t.Type]
	if !ok {
		return
	}

	args := t.Parameters
	if args == nil {
		args = map[string]interface{}{}
	}

	fallbackStep := &core.Step{ID: t.ID + "-mcp-fallback", Label: leaf}
	e.dispatchLeafWithPolicy(ctx, t, fallbackStep, leaf, args)
}

// dispatchLeafWithPolicy runs the shared shadow/rate-limit/dispatch
// pipeline for a leaf that didn't come from a step (MCP fallback has no
// backing Step to mark done, so the caller decides progression).
func (e *Executor) dispatchLeafWithPolicy(ctx context.Context, t *core.Task, step *core.Step, leaf string, args map[string]interface{}) {
	if !knownLeaves[leaf] {
		e.rejectUnknownLeaf(t, step, leaf)
		return
	}

	if e.mode() == ModeShadow {
		e.dispatchAndAdvance(ctx, t, step, leaf, args, true)
		return
	}

	if !e.tokens.Take() {
		return
	}

	e.dispatchAndAdvance(ctx, t, step, leaf, args, false)
}
