package verify

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/darianrosebrook/conscious-bot-experiment-sub003/core"
)

// defaultTimeout is the retry-until-timeout window most verifiers use.
const defaultTimeout = 10 * time.Second

// acquireMaterialTimeout is the longer window acquire_material gets, since
// mining/pickup can take longer than a simple movement check.
const acquireMaterialTimeout = 20 * time.Second

// pollInterval is how often a verifier predicate is re-evaluated.
const pollInterval = 2 * time.Second

// digCollectSettleDelay is the minimum wait before the first check for
// dig/collect leaves, so the pickup has time to land in inventory.
const digCollectSettleDelay = 1500 * time.Millisecond

// moveDistanceThreshold is the minimum displacement counted as movement.
const moveDistanceThreshold = 0.75

// BotProbe is the minimal read surface a verifier needs: fresh snapshots
// and nearby-block lookups, without the write/dispatch half of
// executor.BotInterface.
type BotProbe interface {
	Inventory(ctx context.Context) (core.InventorySnapshot, error)
	Position(ctx context.Context) (core.Position, error)
	NearbyBlocks(ctx context.Context, radiusBlocks int) ([]core.BlockObservation, error)
}

// Engine implements the per-leaf snapshot/delta verification contracts
// (§4.G). It structurally satisfies executor.Verifier without importing
// the executor package.
type Engine struct {
	bot BotProbe

	mu        sync.Mutex
	baselines map[string]core.InventorySnapshot

	clock func() time.Time
}

// New creates a verification Engine backed by a bot read probe.
func New(bot BotProbe) *Engine {
	return &Engine{bot: bot, baselines: make(map[string]core.InventorySnapshot), clock: time.Now}
}

func baselineKey(taskID, stepID string) string { return taskID + "-" + stepID }

// Baseline captures and stores the pre-dispatch snapshot for a step,
// keyed by "${taskId}-${stepId}" (§4.G).
func (e *Engine) Baseline(ctx context.Context, taskID, stepID string) (core.InventorySnapshot, error) {
	snap, err := e.bot.Inventory(ctx)
	if err != nil {
		return core.InventorySnapshot{}, err
	}
	e.mu.Lock()
	e.baselines[baselineKey(taskID, stepID)] = snap
	e.mu.Unlock()
	return snap, nil
}

// Verify routes to the per-leaf predicate and retries it at pollInterval
// until the leaf's timeout elapses.
func (e *Engine) Verify(ctx context.Context, req core.VerifyRequest) core.VerifyResult {
	predicate, settle, timeout := e.predicateFor(req)

	deadline := e.clock().Add(timeout)
	if settle > 0 {
		select {
		case <-ctx.Done():
			return core.VerifyResult{Verified: false, TimedOut: false}
		case <-time.After(settle):
		}
	}

	for {
		ok, err := predicate(ctx)
		if err == nil && ok {
			return core.VerifyResult{Verified: true}
		}
		if e.clock().After(deadline) {
			return core.VerifyResult{Verified: false, TimedOut: true}
		}
		select {
		case <-ctx.Done():
			return core.VerifyResult{Verified: false, TimedOut: false}
		case <-time.After(pollInterval):
		}
	}
}

// predicateFunc evaluates whether a leaf's expected effect has occurred.
type predicateFunc func(ctx context.Context) (bool, error)

func (e *Engine) predicateFor(req core.VerifyRequest) (pred predicateFunc, settle time.Duration, timeout time.Duration) {
	timeout = defaultTimeout

	switch req.Leaf {
	case "move_to", "step_forward_safely", "follow_entity":
		return e.distanceMoved(req.Baseline), 0, timeout

	case "dig_block":
		return passAlways, digCollectSettleDelay, timeout

	case "pickup_item", "collect_items":
		return e.inventoryIncreased(req.Baseline), digCollectSettleDelay, timeout

	case "craft_recipe":
		recipe, _ := req.Args["recipe"].(string)
		qty := argInt(req.Args["qty"], 1)
		return e.inventoryDeltaAtLeast(req.Baseline, recipe, qty, false), 0, timeout

	case "smelt":
		output, _ := req.Args["output"].(string)
		count := argInt(req.Args["count"], 1)
		return e.inventoryDeltaAtLeast(req.Baseline, output, count, false), 0, timeout

	case "place_block", "place_torch_if_needed":
		item, _ := req.Args["item"].(string)
		return e.nearbyBlockMatches(item), 0, timeout

	case "consume_food":
		return e.foodIncreased(req.Baseline), 0, timeout

	case "acquire_material":
		item, _ := req.Args["item"].(string)
		return e.inventoryDeltaAtLeast(req.Baseline, item, 1, true), digCollectSettleDelay, acquireMaterialTimeout

	case "sense_hostiles", "get_light_level", "wait", "look_at":
		return passAlways, 0, timeout

	default:
		// Observational/building stub leaves and unknown leaves progress
		// without blocking the task on a verification contract this engine
		// doesn't know about.
		return passAlways, 0, timeout
	}
}

func passAlways(ctx context.Context) (bool, error) { return true, nil }

func (e *Engine) distanceMoved(baseline core.InventorySnapshot) predicateFunc {
	return func(ctx context.Context) (bool, error) {
		pos, err := e.bot.Position(ctx)
		if err != nil {
			return false, err
		}
		dx := pos.X - baseline.Position.X
		dy := pos.Y - baseline.Position.Y
		dz := pos.Z - baseline.Position.Z
		dist := math.Sqrt(dx*dx + dy*dy + dz*dz)
		return dist >= moveDistanceThreshold, nil
	}
}

func (e *Engine) inventoryIncreased(baseline core.InventorySnapshot) predicateFunc {
	return func(ctx context.Context) (bool, error) {
		snap, err := e.bot.Inventory(ctx)
		if err != nil {
			return false, err
		}
		return snap.InventoryTotal > baseline.InventoryTotal, nil
	}
}

func (e *Engine) foodIncreased(baseline core.InventorySnapshot) predicateFunc {
	return func(ctx context.Context) (bool, error) {
		snap, err := e.bot.Inventory(ctx)
		if err != nil {
			return false, err
		}
		return snap.Food > baseline.Food, nil
	}
}

func (e *Engine) inventoryDeltaAtLeast(baseline core.InventorySnapshot, resourceType string, minDelta int, isMineStep bool) predicateFunc {
	names := InventoryNamesForVerification(resourceType, isMineStep)
	return func(ctx context.Context) (bool, error) {
		snap, err := e.bot.Inventory(ctx)
		if err != nil {
			return false, err
		}
		delta := 0
		for _, name := range names {
			delta += snap.InventoryByName[name] - baseline.InventoryByName[name]
		}
		return delta >= minDelta, nil
	}
}

func (e *Engine) nearbyBlockMatches(itemName string) predicateFunc {
	return func(ctx context.Context) (bool, error) {
		blocks, err := e.bot.NearbyBlocks(ctx, 3)
		if err != nil {
			return false, err
		}
		for _, b := range blocks {
			if b.Name == itemName {
				return true, nil
			}
		}
		return false, nil
	}
}

func argInt(v interface{}, fallback int) int {
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	default:
		return fallback
	}
}
