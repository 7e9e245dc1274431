package executor

import (
	"fmt"

	"github.com/darianrosebrook/conscious-bot-experiment-sub003/core"
)

// knownLeaves is the dispatch allowlist (§4.F step 13). Any leaf not in
// this set is rejected before it ever reaches the bot interface.
var knownLeaves = map[string]bool{
	"move_to": true, "step_forward_safely": true, "follow_entity": true,
	"dig_block": true, "pickup_item": true, "collect_items": true,
	"acquire_material": true, "craft_recipe": true, "smelt": true,
	"place_block": true, "place_workstation": true, "place_torch_if_needed": true,
	"consume_food": true, "sense_hostiles": true, "get_light_level": true,
	"wait": true, "look_at": true, "chat": true,
	"building_step": true, "sterling_navigate": true,
}

// leafContract validates a leaf's argument map before dispatch.
type leafContract func(args map[string]interface{}) error

var leafContracts = map[string]leafContract{
	"move_to":          requireKeys("target"),
	"acquire_material":  requireKeys("item"),
	"craft_recipe":      requireKeys("recipe", "qty"),
	"smelt":             requireKeys("input"),
	"place_block":       requireKeys("item"),
	"place_workstation": requireKeys("item"),
	"building_step":     requireKeys("moduleId", "item", "count"),
	"sterling_navigate":  requireKeys("target"),
}

func requireKeys(keys ...string) leafContract {
	return func(args map[string]interface{}) error {
		for _, k := range keys {
			if _, ok := args[k]; !ok {
				return fmt.Errorf("missing required arg %q", k)
			}
		}
		return nil
	}
}

// stepToLeafExecution derives (leafName, args) from a step's meta,
// implementing the canonical extractor and its legacy fallbacks (§4.F.1).
func stepToLeafExecution(step *core.Step) (leaf string, args map[string]interface{}, ok bool) {
	meta := step.Meta
	if meta.Args != nil {
		return meta.Leaf, normalizeLegacyArgs(meta.Leaf, meta.Args), true
	}

	switch meta.Leaf {
	case "dig_block":
		// Legacy dig_block steps are remapped to the atomic mine+collect
		// leaf; a bare dig with no follow-up collect step is not how this
		// plan shape is dispatched anymore.
		item := firstOf(meta.Consumes, meta.Produces)
		return "acquire_material", map[string]interface{}{"item": item}, true

	case "craft_recipe":
		recipe := firstOf(meta.Produces)
		return "craft_recipe", map[string]interface{}{"recipe": recipe, "qty": 1}, true

	case "smelt":
		input := firstOf(meta.Consumes)
		return "smelt", map[string]interface{}{"input": input}, true

	case "place_block", "place_workstation":
		item := meta.ModuleID
		if item == "" {
			item = firstOf(meta.Consumes)
		}
		return meta.Leaf, map[string]interface{}{"item": item}, true

	case "building_step":
		return "building_step", map[string]interface{}{"moduleId": meta.ModuleID}, true

	case "sterling_navigate":
		return "sterling_navigate", map[string]interface{}{}, true

	case "":
		return "", nil, false

	default:
		if !knownLeaves[meta.Leaf] {
			return meta.Leaf, nil, false // unknown leaf with executable flag: fail explicitly, no MCP fallback
		}
		return meta.Leaf, map[string]interface{}{}, true
	}
}

// normalizeLegacyArgs remaps deprecated arg shapes onto current leaf
// contracts (e.g. smelt.item -> smelt.input).
func normalizeLegacyArgs(leaf string, args map[string]interface{}) map[string]interface{} {
	if leaf != "smelt" {
		return args
	}
	if _, hasInput := args["input"]; hasInput {
		return args
	}
	if item, hasItem := args["item"]; hasItem {
		out := make(map[string]interface{}, len(args))
		for k, v := range args {
			out[k] = v
		}
		out["input"] = item
		delete(out, "item")
		return out
	}
	return args
}

func firstOf(lists ...[]string) string {
	for _, l := range lists {
		if len(l) > 0 {
			return l[0]
		}
	}
	return ""
}
