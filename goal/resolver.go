package goal

import (
	"github.com/darianrosebrook/conscious-bot-experiment-sub003/core"
	"github.com/darianrosebrook/conscious-bot-experiment-sub003/store"
)

// VerifierFunc reports whether a completed task still satisfies a goal,
// given the goal's type and intent params. Registered per goal type (e.g.
// "has_item_count", "structure_present").
type VerifierFunc func(goalType string, intentParams map[string]interface{}) bool

// Resolver implements store.GoalResolver: at-most-one non-terminal task per
// (goalType, goalKey), producing skeleton tasks for the caller to enrich.
type Resolver struct {
	store     *store.TaskStore
	verifiers map[string]VerifierFunc
	logger    core.Logger
}

// Option configures a Resolver at construction.
type Option func(*Resolver)

// WithVerifier registers a named verifier function.
func WithVerifier(name string, fn VerifierFunc) Option {
	return func(r *Resolver) { r.verifiers[name] = fn }
}

// WithLogger scopes the resolver's logger to its own component name.
func WithLogger(logger core.Logger) Option {
	return func(r *Resolver) {
		if cal, ok := logger.(core.ComponentAwareLogger); ok {
			r.logger = cal.WithComponent("planner/goal")
			return
		}
		r.logger = logger
	}
}

// New creates a Resolver bound to a task store.
func New(taskStore *store.TaskStore, opts ...Option) *Resolver {
	r := &Resolver{
		store:     taskStore,
		verifiers: make(map[string]VerifierFunc),
		logger:    &core.NoOpLogger{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ResolveOrCreate is the resolver's public operation (§4.C).
func (r *Resolver) ResolveOrCreate(req store.GoalResolveRequest) (store.GoalResolveResult, error) {
	canonical := CanonicalizeIntentParams(req.IntentParams)
	goalKey := computeGoalKey(req.GoalType, canonical, req.Verifier, req.BotPosition)

	if existing, ok := r.store.FindNonTerminalByGoalKey(req.GoalType, goalKey); ok {
		return store.GoalResolveResult{Action: store.GoalActionContinue, TaskID: existing.ID}, nil
	}

	if completed, ok := r.store.FindCompletedByGoalKey(req.GoalType, goalKey); ok {
		if verify, has := r.verifiers[req.Verifier]; has && verify(req.GoalType, req.IntentParams) {
			return store.GoalResolveResult{Action: store.GoalActionAlreadySatisfied, TaskID: completed.ID}, nil
		}
	}

	goalID := req.GoalID
	if goalID == "" {
		goalID = core.NewTaskID("goal")
	}
	instanceID := core.NewTaskID("inst")

	skeleton := core.NewTask(core.NewTaskID("task"), req.GoalType, core.SourceGoal, req.IntentParams)
	skeleton.Metadata.Stage = "skeleton"
	skeleton.Metadata.GoalBinding = &core.GoalBinding{
		GoalID:     goalID,
		GoalKey:    goalKey,
		GoalType:   req.GoalType,
		InstanceID: instanceID,
		Verifier:   req.Verifier,
	}

	r.store.ReserveSkeleton(skeleton)
	r.logger.Debug("reserved goal-binding skeleton task", map[string]interface{}{
		"taskId":   skeleton.ID,
		"goalType": req.GoalType,
		"goalKey":  goalKey,
	})

	return store.GoalResolveResult{Action: store.GoalActionCreated, TaskID: skeleton.ID}, nil
}
