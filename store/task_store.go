package store

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/darianrosebrook/conscious-bot-experiment-sub003/core"
)

// GoalResolveRequest and GoalResolveResult mirror the goal package's public
// contract without importing it, so store and goal can depend on each other
// only in the direction store -> core, goal -> store.
type GoalResolveRequest struct {
	GoalType     string
	IntentParams map[string]interface{}
	BotPosition  map[string]interface{}
	Verifier     string
	GoalID       string
}

type GoalResolveAction string

const (
	GoalActionContinue         GoalResolveAction = "continue"
	GoalActionAlreadySatisfied GoalResolveAction = "already_satisfied"
	GoalActionCreated          GoalResolveAction = "created"
)

type GoalResolveResult struct {
	Action GoalResolveAction
	TaskID string
}

// GoalResolver routes goal-typed task creation through the goal-binding
// dedupe pipeline (§4.C). Types in GoalResolverGatedTypes are routed through
// it when a resolver is configured and enabled.
type GoalResolver interface {
	ResolveOrCreate(req GoalResolveRequest) (GoalResolveResult, error)
}

// GoalResolverGatedTypes are the task types routed through the goal
// resolver when source=goal.
var GoalResolverGatedTypes = map[string]bool{
	"building": true,
}

// SterlingReserver guards the Sterling dedupe key index (§4.D invariant 5):
// at most one live task per (dedupeNamespace, committedIrDigest).
type SterlingReserver interface {
	TryReserve(dedupeKey string) (taskID string, reserved bool)
	Release(dedupeKey string)
}

// PlanResult is what a planner adapter (sterling package) returns for a
// plan-generation request.
type PlanResult struct {
	Steps         []core.Step
	NoStepsReason string
	Route         string
}

// PlannerAdapter generates a step plan for a task (§4.E). advisory_action
// tasks skip this entirely.
type PlannerAdapter interface {
	Plan(task *core.Task) (PlanResult, error)
}

// CreateTaskInput is the caller-supplied shape for task creation, before
// metadata projection and finalization.
type CreateTaskInput struct {
	Type        string
	Source      core.TaskSource
	Category    string
	Title       string
	Description string
	Priority    interface{}
	Urgency     interface{}
	Parameters  map[string]interface{}
	Metadata    map[string]interface{} // raw, allowlist-projected
	Steps       []core.Step            // pre-built steps (goal resolver / prereq injector paths)

	// ParentTaskID is set directly by trusted internal callers (the prereq
	// injector) and bypasses the metadata allowlist entirely — it is never
	// accepted from caller-supplied Metadata.
	ParentTaskID string
}

// TaskStore is the indexed in-memory store for tasks: by id, by
// parentTaskId, by subtaskKey, and by Sterling dedupe key. It also owns the
// bounded per-task history ring and the finalize choke-point every creation
// path funnels through.
type TaskStore struct {
	mu                  sync.RWMutex
	byID                map[string]*core.Task
	byParentTaskID      map[string]map[string]bool
	bySubtaskKey        map[string]string
	bySterlingDedupeKey map[string]string
	history             map[string][]core.HistoryEntry

	listenersMu sync.RWMutex
	listeners   []Listener

	goalResolver     GoalResolver
	sterlingReserver SterlingReserver
	planner          PlannerAdapter
	statusHook       StatusHook
	progressHook     ProgressHook
	drain            EffectDrain

	strictFinalize bool
	dedupeNamespace string
	logger          core.Logger

	droppedKeysMu sync.Mutex
	droppedKeysWarned map[string]bool
}

// Option configures a TaskStore at construction.
type Option func(*TaskStore)

func WithGoalResolver(r GoalResolver) Option     { return func(s *TaskStore) { s.goalResolver = r } }
func WithSterlingReserver(r SterlingReserver) Option {
	return func(s *TaskStore) { s.sterlingReserver = r }
}
func WithPlannerAdapter(p PlannerAdapter) Option { return func(s *TaskStore) { s.planner = p } }
func WithStatusHook(h StatusHook) Option         { return func(s *TaskStore) { s.statusHook = h } }
func WithProgressHook(h ProgressHook) Option     { return func(s *TaskStore) { s.progressHook = h } }
func WithEffectDrain(d EffectDrain) Option       { return func(s *TaskStore) { s.drain = d } }
func WithStrictFinalize(strict bool) Option      { return func(s *TaskStore) { s.strictFinalize = strict } }
func WithDedupeNamespace(ns string) Option       { return func(s *TaskStore) { s.dedupeNamespace = ns } }
func WithLogger(logger core.Logger) Option {
	return func(s *TaskStore) {
		if cal, ok := logger.(core.ComponentAwareLogger); ok {
			s.logger = cal.WithComponent("planner/store")
			return
		}
		s.logger = logger
	}
}

// SetGoalResolver wires the goal resolver after construction. Bootstraps
// the resolver<->store circular dependency: the resolver's own
// constructor takes a *TaskStore, so the store must exist first with
// resolver binding deferred to this call.
func (s *TaskStore) SetGoalResolver(r GoalResolver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.goalResolver = r
}

// SetEffectDrain wires the protocol effects drain after construction, for
// the same circular-dependency reason as SetGoalResolver: protocol.New
// also takes a *TaskStore.
func (s *TaskStore) SetEffectDrain(d EffectDrain) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drain = d
}

// New creates an empty TaskStore.
func New(opts ...Option) *TaskStore {
	s := &TaskStore{
		byID:                make(map[string]*core.Task),
		byParentTaskID:      make(map[string]map[string]bool),
		bySubtaskKey:        make(map[string]string),
		bySterlingDedupeKey: make(map[string]string),
		history:             make(map[string][]core.HistoryEntry),
		dedupeNamespace:     "default",
		logger:              &core.NoOpLogger{},
		droppedKeysWarned:   make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns a task by id.
func (s *TaskStore) Get(id string) (*core.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.byID[id]
	return t, ok
}

// List returns every task currently in the store. Callers must not mutate
// the returned tasks directly; use the update methods instead.
func (s *TaskStore) List() []*core.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*core.Task, 0, len(s.byID))
	for _, t := range s.byID {
		out = append(out, t)
	}
	return out
}

// FindByParent returns all tasks whose metadata.parentTaskId equals parentID.
func (s *TaskStore) FindByParent(parentID string) []*core.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byParentTaskID[parentID]
	out := make([]*core.Task, 0, len(ids))
	for id := range ids {
		if t, ok := s.byID[id]; ok {
			out = append(out, t)
		}
	}
	return out
}

// FindBySubtaskKey returns the task reserved under a prereq-injection
// dedupe key, if any.
func (s *TaskStore) FindBySubtaskKey(key string) (*core.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.bySubtaskKey[key]
	if !ok {
		return nil, false
	}
	t, ok := s.byID[id]
	return t, ok
}

// FindBySterlingDedupeKey returns the live task reserved under a Sterling
// dedupe key, if any.
func (s *TaskStore) FindBySterlingDedupeKey(key string) (*core.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.bySterlingDedupeKey[key]
	if !ok {
		return nil, false
	}
	t, ok := s.byID[id]
	return t, ok
}

// FindSimilarPending scans for a structurally similar pending task (same
// type+source, >=70% title word overlap) — the similarity-dedupe step of
// the creation pipeline (§4.A step 3).
func (s *TaskStore) FindSimilarPending(taskType string, source core.TaskSource, title string) (*core.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	titleWords := wordSet(title)
	if len(titleWords) == 0 {
		return nil, false
	}

	for _, t := range s.byID {
		if t.Type != taskType || t.Source != source {
			continue
		}
		if t.Status != core.TaskStatusPending {
			continue
		}
		if overlapRatio(titleWords, wordSet(t.Title)) >= 0.7 {
			return t, true
		}
	}
	return nil, false
}

func wordSet(s string) map[string]bool {
	words := strings.Fields(strings.ToLower(s))
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}

func overlapRatio(a, b map[string]bool) float64 {
	if len(a) == 0 {
		return 0
	}
	matched := 0
	for w := range a {
		if b[w] {
			matched++
		}
	}
	return float64(matched) / float64(len(a))
}

// history ring

func (s *TaskStore) appendHistory(taskID string, status core.TaskStatus, progress float64, at time.Time) {
	entries := append(s.history[taskID], core.HistoryEntry{Status: status, Progress: progress, At: at})
	if len(entries) > core.MaxHistoryEntries {
		entries = entries[len(entries)-core.MaxHistoryEntries:]
	}
	s.history[taskID] = entries
}

// History returns the bounded status/progress history ring for a task.
func (s *TaskStore) History(taskID string) []core.HistoryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.HistoryEntry(nil), s.history[taskID]...)
}

func (s *TaskStore) warnDroppedKeyOnce(key string) {
	s.droppedKeysMu.Lock()
	defer s.droppedKeysMu.Unlock()
	if s.droppedKeysWarned[key] {
		return
	}
	s.droppedKeysWarned[key] = true
	s.logger.Warn("dropped non-allowlisted metadata key on task creation", map[string]interface{}{
		"key": key,
	})
}

func (s *TaskStore) dedupeKey(digest string) string {
	return fmt.Sprintf("%s:%s", s.dedupeNamespace, digest)
}
