package verify

import (
	"context"
	"testing"
	"time"

	"github.com/darianrosebrook/conscious-bot-experiment-sub003/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBot struct {
	inv    core.InventorySnapshot
	pos    core.Position
	blocks []core.BlockObservation
}

func (f *fakeBot) Inventory(ctx context.Context) (core.InventorySnapshot, error) { return f.inv, nil }
func (f *fakeBot) Position(ctx context.Context) (core.Position, error)          { return f.pos, nil }
func (f *fakeBot) NearbyBlocks(ctx context.Context, radius int) ([]core.BlockObservation, error) {
	return f.blocks, nil
}

func TestBaseline_StoresSnapshot(t *testing.T) {
	bot := &fakeBot{inv: core.InventorySnapshot{InventoryTotal: 3}}
	e := New(bot)

	snap, err := e.Baseline(context.Background(), "task-1", "step-1")
	require.NoError(t, err)
	assert.Equal(t, 3, snap.InventoryTotal)
}

func TestVerify_MoveTo_PassesOnceDistanceThresholdMet(t *testing.T) {
	bot := &fakeBot{pos: core.Position{X: 1, Y: 0, Z: 0}}
	e := New(bot)
	baseline := core.InventorySnapshot{Position: core.Position{X: 0, Y: 0, Z: 0}}

	result := e.Verify(context.Background(), core.VerifyRequest{Leaf: "move_to", Baseline: baseline})
	assert.True(t, result.Verified)
}

func TestVerify_MoveTo_TimesOutWhenNoMovement(t *testing.T) {
	bot := &fakeBot{pos: core.Position{X: 0, Y: 0, Z: 0}}
	e := New(bot)

	// First clock read establishes the deadline; every read after that
	// reports past it, forcing the poll loop to time out on its first
	// failed predicate check instead of waiting out the real timeout.
	first := true
	e.clock = func() time.Time {
		if first {
			first = false
			return time.Unix(0, 0)
		}
		return time.Unix(0, 0).Add(defaultTimeout + time.Second)
	}

	result := e.Verify(context.Background(), core.VerifyRequest{Leaf: "move_to", Baseline: core.InventorySnapshot{}})
	assert.False(t, result.Verified)
	assert.True(t, result.TimedOut)
}

func TestVerify_CollectItems_UsesInventoryDelta(t *testing.T) {
	bot := &fakeBot{inv: core.InventorySnapshot{InventoryTotal: 5}}
	e := New(bot)
	baseline := core.InventorySnapshot{InventoryTotal: 3}

	result := e.Verify(context.Background(), core.VerifyRequest{Leaf: "collect_items", Baseline: baseline})
	assert.True(t, result.Verified)
}

func TestVerify_AcquireMaterial_UsesOreEquivalence(t *testing.T) {
	bot := &fakeBot{inv: core.InventorySnapshot{InventoryByName: map[string]int{"raw_iron": 1}}}
	e := New(bot)
	baseline := core.InventorySnapshot{InventoryByName: map[string]int{}}

	result := e.Verify(context.Background(), core.VerifyRequest{
		Leaf:     "acquire_material",
		Args:     map[string]interface{}{"item": "iron_ore"},
		Baseline: baseline,
	})
	assert.True(t, result.Verified)
}

func TestVerify_PlaceBlock_ChecksNearbyBlocks(t *testing.T) {
	bot := &fakeBot{blocks: []core.BlockObservation{{Name: "torch"}}}
	e := New(bot)

	result := e.Verify(context.Background(), core.VerifyRequest{
		Leaf: "place_torch_if_needed",
		Args: map[string]interface{}{"item": "torch"},
	})
	assert.True(t, result.Verified)
}

func TestVerify_UnknownLeaf_PassesWithLog(t *testing.T) {
	e := New(&fakeBot{})
	result := e.Verify(context.Background(), core.VerifyRequest{Leaf: "some_future_leaf"})
	assert.True(t, result.Verified)
}

func TestInventoryNamesForVerification_OreEquivalence(t *testing.T) {
	names := InventoryNamesForVerification("iron_ore", false)
	assert.Contains(t, names, "iron_ore")
	assert.Contains(t, names, "raw_iron")
}

func TestInventoryNamesForVerification_MineStepAddsBlockDrop(t *testing.T) {
	names := InventoryNamesForVerification("stone", true)
	assert.Contains(t, names, "cobblestone")
}

func TestInventoryNamesForVerification_MineStepDisabledOmitsBlockDrop(t *testing.T) {
	names := InventoryNamesForVerification("stone", false)
	assert.NotContains(t, names, "cobblestone")
}

func TestInventoryNamesForVerification_LogWoodGeneric(t *testing.T) {
	names := InventoryNamesForVerification("oak_log", false)
	assert.Contains(t, names, "log")
	assert.Contains(t, names, "wood")
}
