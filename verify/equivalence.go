// Package verify implements the per-leaf snapshot/delta verification
// contracts the executor consults after dispatching a step (§4.G).
package verify

import "strings"

// oreToDrop maps an ore/resource name to the inventory item names that
// count as evidence of acquiring it — mining an ore often yields a
// differently-named drop (iron_ore -> raw_iron) rather than the block
// itself.
var oreToDrop = map[string][]string{
	"coal_ore":     {"coal_ore", "coal"},
	"iron_ore":     {"iron_ore", "raw_iron"},
	"copper_ore":   {"copper_ore", "raw_copper"},
	"gold_ore":     {"gold_ore", "raw_gold"},
	"diamond_ore":  {"diamond_ore", "diamond"},
	"redstone_ore": {"redstone_ore", "redstone"},
	"lapis_ore":    {"lapis_ore", "lapis_lazuli"},
}

// blockToDrop maps a mined block to the item it drops, distinct from
// oreToDrop's ore-specific naming. Only applied when isMineStep=true —
// craft/smelt verification must not treat stone and cobblestone as
// interchangeable, since that would mask a genuine recipe failure.
var blockToDrop = map[string][]string{
	"stone":     {"stone", "cobblestone"},
	"grass_block": {"grass_block", "dirt"},
}

// InventoryNamesForVerification returns every inventory item name that
// counts as evidence resourceType was acquired (§4.G
// getInventoryNamesForVerification). isMineStep additionally folds in
// block->drop equivalences; it must be false for craft/smelt verification.
func InventoryNamesForVerification(resourceType string, isMineStep bool) []string {
	names := map[string]bool{resourceType: true}

	if equiv, ok := oreToDrop[resourceType]; ok {
		for _, n := range equiv {
			names[n] = true
		}
	}
	if isMineStep {
		if equiv, ok := blockToDrop[resourceType]; ok {
			for _, n := range equiv {
				names[n] = true
			}
		}
	}
	if strings.Contains(resourceType, "log") || resourceType == "wood" {
		names["log"] = true
		names["wood"] = true
	}

	out := make([]string, 0, len(names))
	for n := range names {
		out = append(out, n)
	}
	return out
}
