package executor

import (
	"context"

	"github.com/darianrosebrook/conscious-bot-experiment-sub003/core"
)

// BotInterface is the outbound seam to the Minecraft bot-interface process.
// A concrete HTTP implementation lives in the botclient package, which
// imports executor — never the reverse.
type BotInterface interface {
	Inventory(ctx context.Context) (core.InventorySnapshot, error)
	Position(ctx context.Context) (core.Position, error)
	NearbyBlocks(ctx context.Context, radiusBlocks int) ([]core.BlockObservation, error)
	Threat(ctx context.Context) (core.ThreatSignal, error)
	Dispatch(ctx context.Context, leaf string, args map[string]interface{}, dryRun bool) (core.LeafResult, error)
}

// Verifier implements the per-leaf snapshot/delta contracts (§4.G). A
// concrete implementation lives in the verify package.
type Verifier interface {
	Baseline(ctx context.Context, taskID, stepID string) (core.InventorySnapshot, error)
	Verify(ctx context.Context, req core.VerifyRequest) core.VerifyResult
}

// PrereqInjector evaluates and injects dynamic acquisition subtasks for
// craft tasks missing inputs (§4.I). A concrete implementation lives in
// the prereq package.
type PrereqInjector interface {
	// InjectForCraft returns true if a subtask was created (or already
	// pending) and the parent should remain blocked on it.
	InjectForCraft(ctx context.Context, parent *core.Task) (injected bool, err error)
}

// RigGMeta is the feasibility-gate input for a single step dispatch.
type RigGMeta struct {
	TaskID      string
	StepID      string
	StepsDigest string
}

// RigGAdvisor gates step execution through a feasibility check, evaluated
// at most once per step via solver.rigGChecked (§4.F step 13).
type RigGAdvisor interface {
	AdviseExecution(ctx context.Context, meta RigGMeta) (shouldProceed bool, err error)
}

// Replanner regenerates a task's plan with failure context attached, used
// by the retry-exhaustion repair gate (§4.F step 16).
type Replanner interface {
	Replan(ctx context.Context, task *core.Task, failureContext map[string]interface{}) (steps []core.Step, err error)
}

// EventSink records append-only events and periodic task snapshots
// (§4.J). Both methods are expected to be fire-and-forget on the
// implementation side — the executor calls them inline and never awaits
// or checks an error. A concrete implementation lives in the eventstore
// package.
type EventSink interface {
	AppendEvent(worldSeed, taskID, eventType string, data map[string]interface{})
	SnapshotTask(worldSeed string, t *core.Task)
}
