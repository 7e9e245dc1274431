// Package executor runs the autonomous task loop: it picks the
// highest-priority eligible task, dispatches its next executable step to
// the bot interface, verifies the effect, and advances or retries
// according to the deterministic/non-deterministic failure policy
// (§4.F).
package executor

import (
	"context"
	"math/rand"
	"sort"
	"sync/atomic"
	"time"

	"github.com/darianrosebrook/conscious-bot-experiment-sub003/core"
	"github.com/darianrosebrook/conscious-bot-experiment-sub003/ratelimit"
	"github.com/darianrosebrook/conscious-bot-experiment-sub003/store"
)

// defaultTickInterval is the base period between executor cycles; ticks are
// jittered by up to 20% to avoid lockstep with other periodic consumers.
const defaultTickInterval = 10 * time.Second

// eligibleStatuses is the status allowlist for task selection (§4.F step 7).
var eligibleStatuses = map[core.TaskStatus]bool{
	core.TaskStatusPending: true,
	core.TaskStatusActive:  true,
}

// Mode selects whether dispatch performs a real action or a log-only
// observation (§4.F step 13 shadow mode).
type Mode string

const (
	ModeShadow Mode = "shadow"
	ModeLive   Mode = "live"
)

// Executor runs the periodic tick loop against a TaskStore.
type Executor struct {
	store        *store.TaskStore
	bot          BotInterface
	verifier     Verifier
	prereq       PrereqInjector
	rigG         RigGAdvisor
	sterling     Replanner
	breaker      *ratelimit.Breaker
	tokens       *ratelimit.TokenBucket
	mode         func() Mode
	logger       core.Logger
	events       EventSink
	worldSeed    string

	tickInterval time.Duration
	running      atomic.Bool

	lastIdleEmit time.Time
}

// Option configures an Executor at construction.
type Option func(*Executor)

func WithBotInterface(b BotInterface) Option   { return func(e *Executor) { e.bot = b } }
func WithVerifier(v Verifier) Option           { return func(e *Executor) { e.verifier = v } }
func WithPrereqInjector(p PrereqInjector) Option { return func(e *Executor) { e.prereq = p } }
func WithRigGAdvisor(r RigGAdvisor) Option     { return func(e *Executor) { e.rigG = r } }
func WithReplanner(s Replanner) Option         { return func(e *Executor) { e.sterling = s } }
func WithBreaker(b *ratelimit.Breaker) Option  { return func(e *Executor) { e.breaker = b } }
func WithTokenBucket(t *ratelimit.TokenBucket) Option { return func(e *Executor) { e.tokens = t } }
func WithTickInterval(d time.Duration) Option  { return func(e *Executor) { e.tickInterval = d } }
func WithEventSink(s EventSink) Option         { return func(e *Executor) { e.events = s } }
func WithWorldSeed(seed string) Option         { return func(e *Executor) { e.worldSeed = seed } }

// WithMode sets a static mode. Use WithModeFunc for a runtime-switchable
// source (e.g. a config flag flipped live from shadow to live).
func WithMode(m Mode) Option { return func(e *Executor) { e.mode = func() Mode { return m } } }
func WithModeFunc(fn func() Mode) Option { return func(e *Executor) { e.mode = fn } }

func WithLogger(logger core.Logger) Option {
	return func(e *Executor) {
		if cal, ok := logger.(core.ComponentAwareLogger); ok {
			e.logger = cal.WithComponent("planner/executor")
			return
		}
		e.logger = logger
	}
}

// New creates an Executor. The breaker and token bucket default to their
// package defaults if not supplied.
func New(taskStore *store.TaskStore, opts ...Option) *Executor {
	breaker, _ := ratelimit.NewBreaker(&core.NoOpLogger{})
	e := &Executor{
		store:        taskStore,
		breaker:      breaker,
		tokens:       ratelimit.New(),
		mode:         func() Mode { return ModeShadow },
		logger:       &core.NoOpLogger{},
		events:       noOpEventSink{},
		tickInterval: defaultTickInterval,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run blocks, ticking until ctx is cancelled. Mirrors the teacher's
// ticker+select loop shape.
func (e *Executor) Run(ctx context.Context) {
	timer := time.NewTimer(e.jitteredInterval())
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			e.Tick(ctx)
			timer.Reset(e.jitteredInterval())
		case <-ctx.Done():
			return
		}
	}
}

func (e *Executor) jitteredInterval() time.Duration {
	jitter := time.Duration(rand.Int63n(int64(e.tickInterval) / 5))
	return e.tickInterval + jitter
}

// Tick runs one executor cycle (§4.F steps 1-14/15-18). It is safe to call
// directly (e.g. from tests) without Run.
func (e *Executor) Tick(ctx context.Context) {
	if !e.running.CompareAndSwap(false, true) {
		return // step 1: reentrancy guard
	}
	defer e.running.Store(false)

	if !e.breaker.CanExecute() {
		return // step 2: circuit breaker open
	}

	e.bridgeThreatHolds(ctx) // step 3

	active := e.store.List() // step 4: re-fetch, bridge may have mutated

	e.autoUnblockShadow(active)     // step 5
	e.autoFailTTL(active)           // step 6
	e.driveRigGReplans(ctx, active) // step 6.5: wake Unplannable tasks whose replan ladder delay has elapsed

	eligible := filterEligible(active) // step 7

	if len(eligible) == 0 {
		e.classifyIdle(active) // step 8
		return
	}

	task := selectTask(eligible) // step 9
	e.runTask(ctx, task)
}

// filterEligible applies the step 7 allowlist.
func filterEligible(tasks []*core.Task) []*core.Task {
	now := time.Now()
	out := make([]*core.Task, 0, len(tasks))
	for _, t := range tasks {
		if !eligibleStatuses[t.Status] {
			continue
		}
		if t.Metadata.BlockedReason != "" {
			continue
		}
		if t.Metadata.NextEligibleAt != nil && t.Metadata.NextEligibleAt.After(now) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// selectTask picks highest priority, tiebreaking on oldest createdAt
// (§4.F step 9).
func selectTask(tasks []*core.Task) *core.Task {
	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].Priority != tasks[j].Priority {
			return tasks[i].Priority > tasks[j].Priority
		}
		return tasks[i].Metadata.CreatedAt.Before(tasks[j].Metadata.CreatedAt)
	})
	return tasks[0]
}

// noOpEventSink is the default EventSink when none is wired in (e.g. local
// runs with no event-store database configured).
type noOpEventSink struct{}

func (noOpEventSink) AppendEvent(worldSeed, taskID, eventType string, data map[string]interface{}) {}
func (noOpEventSink) SnapshotTask(worldSeed string, t *core.Task)                                  {}

// runTask executes steps 10-18 for the selected task.
func (e *Executor) runTask(ctx context.Context, t *core.Task) {
	defer e.events.SnapshotTask(e.worldSeed, t)

	if t.Type == "cognitive_reflection" {
		if e.reflectToSubtasks(ctx, t) { // step 10
			return
		}
	}

	if t.Metadata.Requirement != nil && t.Metadata.Requirement.Kind == core.RequirementCraft {
		if blocked := e.evaluateCraftingPrereqs(ctx, t); blocked { // step 11
			return
		}
	}

	if t.Metadata.Requirement != nil {
		if done := e.updateInventoryProgress(ctx, t); done { // step 12
			return
		}
	}

	if step := t.NextExecutableStep(); step != nil {
		e.runExecutableStep(ctx, t, step) // steps 13-17
		return
	}

	e.runMCPFallback(ctx, t) // step 18
}
