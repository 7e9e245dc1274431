// Package prereq implements dynamic acquisition planning: when a craft step
// is missing inputs, it introspects the recipe, picks the input with the
// largest deficit, and emits a collect/craft/place subtask for it (§4.I).
package prereq

// RecipeInfo is what recipe introspection returns for a craftable item.
type RecipeInfo struct {
	RequiresTable bool
	Inputs        []RecipeInput
}

type RecipeInput struct {
	Item  string
	Count int
}

// recipeTable is a small, hand-maintained subset of the crafting graph
// covering the items the executor's crafting/gathering tasks actually
// reference. Unknown items fall back to the base-gather mapping below.
var recipeTable = map[string]RecipeInfo{
	"wooden_pickaxe": {RequiresTable: true, Inputs: []RecipeInput{{"planks", 3}, {"stick", 2}}},
	"wooden_axe":     {RequiresTable: true, Inputs: []RecipeInput{{"planks", 3}, {"stick", 2}}},
	"stone_pickaxe":  {RequiresTable: true, Inputs: []RecipeInput{{"cobblestone", 3}, {"stick", 2}}},
	"stone_axe":      {RequiresTable: true, Inputs: []RecipeInput{{"cobblestone", 3}, {"stick", 2}}},
	"iron_pickaxe":   {RequiresTable: true, Inputs: []RecipeInput{{"iron_ingot", 3}, {"stick", 2}}},
	"furnace":        {RequiresTable: true, Inputs: []RecipeInput{{"cobblestone", 8}}},
	"crafting_table": {RequiresTable: false, Inputs: []RecipeInput{{"planks", 4}}},
	"planks":         {RequiresTable: false, Inputs: []RecipeInput{{"log", 1}}},
	"stick":          {RequiresTable: false, Inputs: []RecipeInput{{"planks", 2}}},
	"iron_ingot":     {RequiresTable: true, Inputs: []RecipeInput{{"iron_ore", 1}, {"coal", 1}}},
}

// isCraftable reports whether item has a known recipe (vs. needing a raw
// gather/mine subtask).
func isCraftable(item string) bool {
	_, ok := recipeTable[item]
	return ok
}

// baseGatherMapping maps a raw resource name to the {taskType, outputPattern}
// subtask that acquires it when it isn't itself craftable.
var baseGatherMapping = map[string]struct {
	TaskType      string
	OutputPattern string
}{
	"log":         {"gathering", "oak_log"},
	"oak_log":     {"gathering", "oak_log"},
	"cobblestone": {"mining", "stone"},
	"stone":       {"mining", "stone"},
	"iron_ore":    {"mining", "iron_ore"},
	"coal":        {"mining", "coal_ore"},
}
