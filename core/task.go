// Package core defines the task data model shared by the store, goal
// resolver, executor, and Sterling adapter.
//
// # Architecture overview
//
// A Task is the single unit of work tracked by the planning core. It
// carries a status machine (TaskStatus), an ordered plan of Steps, and a
// Metadata bag whose well-known namespaces (origin, goalBinding, solver,
// sterling) are projected through an explicit allowlist at creation time
// rather than accepted as an open map (see store.AllowedMetadataKeys).
//
// TraceID/ParentSpanID preserve distributed trace context across the
// cognition -> finalizer -> executor -> verification boundary; workers
// restore it with telemetry.StartLinkedSpan.
package core

import (
	"time"
)

// TaskStatus represents the state of a task in the planning core's status
// machine (§4.A).
type TaskStatus string

const (
	TaskStatusPending         TaskStatus = "pending"
	TaskStatusActive          TaskStatus = "active"
	TaskStatusPendingPlanning TaskStatus = "pending_planning"
	TaskStatusPaused          TaskStatus = "paused"
	TaskStatusUnplannable     TaskStatus = "unplannable"
	TaskStatusCompleted       TaskStatus = "completed"
	TaskStatusFailed          TaskStatus = "failed"
)

// IsTerminal returns true for completed/failed, the two states a task never
// leaves once reached.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// TaskSource identifies who originated a task creation request.
type TaskSource string

const (
	SourcePlanner    TaskSource = "planner"
	SourceGoal       TaskSource = "goal"
	SourceIntrusive  TaskSource = "intrusive"
	SourceAutonomous TaskSource = "autonomous"
	SourceManual     TaskSource = "manual"
	SourceCognition  TaskSource = "cognition"
)

// OriginKind classifies how a task came to exist, stamped once by the
// finalizer and never mutated afterward (§3 TaskOrigin, invariant 2).
type OriginKind string

const (
	OriginAPI          OriginKind = "api"
	OriginCognition    OriginKind = "cognition"
	OriginExecutor     OriginKind = "executor"
	OriginGoalResolver OriginKind = "goal_resolver"
	OriginGoalSource   OriginKind = "goal_source"
	OriginUnknown      OriginKind = "unknown"
)

// TaskOrigin is immutable once stamped by the finalizer.
type TaskOrigin struct {
	Kind          OriginKind `json:"kind"`
	Name          string     `json:"name,omitempty"`
	ParentTaskID  string     `json:"parentTaskId,omitempty"`
	ParentGoalKey string     `json:"parentGoalKey,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// HoldReason classifies why a goal-bound task is paused (§3 GoalBinding).
type HoldReason string

const (
	HoldManualPause      HoldReason = "manual_pause"
	HoldPreempted        HoldReason = "preempted"
	HoldMaterialsMissing HoldReason = "materials_missing"
	HoldUnsafe           HoldReason = "unsafe"
)

// Hold is a protocol-level pause marker on a goal-bound task.
type Hold struct {
	Reason       HoldReason `json:"reason"`
	HeldAt       time.Time  `json:"heldAt"`
	ResumeHints  string     `json:"resumeHints,omitempty"`
	NextReviewAt *time.Time `json:"nextReviewAt,omitempty"`
}

// GoalBinding is the protocol control plane tying a task to a goal instance.
type GoalBinding struct {
	GoalID     string `json:"goalId"`
	GoalKey    string `json:"goalKey"`
	GoalType   string `json:"goalType"`
	InstanceID string `json:"instanceId"`
	Verifier   string `json:"verifier"`
	Hold       *Hold  `json:"hold,omitempty"`
}

// RequirementKind tags the flavor of a Requirement.
type RequirementKind string

const (
	RequirementCollect RequirementKind = "collect"
	RequirementMine    RequirementKind = "mine"
	RequirementCraft   RequirementKind = "craft"
	RequirementBuild   RequirementKind = "build"
	RequirementExplore RequirementKind = "explore"
)

// Requirement drives inventory-based progress computation and final
// completion gating (§3).
type Requirement struct {
	Kind          RequirementKind        `json:"kind"`
	OutputPattern string                 `json:"outputPattern"`
	Quantity      int                    `json:"quantity"`
	Context       map[string]interface{} `json:"context,omitempty"`
}

// VerificationStatus is the outcome of an ActionVerification.
type VerificationStatus string

const (
	VerificationVerified VerificationStatus = "verified"
	VerificationSkipped  VerificationStatus = "skipped"
	VerificationFailed   VerificationStatus = "failed"
)

// ActionVerification is ephemeral per-step evidence of a dispatched leaf's
// effect, keyed by "${taskId}-${stepId}" (§3).
type ActionVerification struct {
	TaskID         string                 `json:"taskId"`
	StepID         string                 `json:"stepId"`
	ActionType     string                 `json:"actionType"`
	ExpectedResult map[string]interface{} `json:"expectedResult,omitempty"`
	ActualResult   map[string]interface{} `json:"actualResult,omitempty"`
	Verified       bool                   `json:"verified"`
	Status         VerificationStatus     `json:"status"`
	Timestamp      time.Time              `json:"timestamp"`
}

// StepMeta carries the machine-readable leaf dispatch contract for a step.
type StepMeta struct {
	Leaf       string                 `json:"leaf,omitempty"`
	Args       map[string]interface{} `json:"args,omitempty"`
	Produces   []string               `json:"produces,omitempty"`
	Consumes   []string               `json:"consumes,omitempty"`
	Executable bool                   `json:"executable"`
	Blocked    bool                   `json:"blocked,omitempty"`
	Authority  string                 `json:"authority,omitempty"`
	Domain     string                 `json:"domain,omitempty"`
	ModuleID   string                 `json:"moduleId,omitempty"`
	Source     string                 `json:"source,omitempty"`
}

// Step is one element of a task's ordered plan.
type Step struct {
	ID             string        `json:"id"`
	Label          string        `json:"label"`
	Order          int           `json:"order"`
	Done           bool          `json:"done"`
	StartedAt      *time.Time    `json:"startedAt,omitempty"`
	CompletedAt    *time.Time    `json:"completedAt,omitempty"`
	ActualDuration time.Duration `json:"actualDuration,omitempty"`
	Meta           StepMeta      `json:"meta"`
}

// SolverNamespace holds opaque Sterling/solver provenance attached to a
// task's metadata (§3). Fields are preserved verbatim across replans where
// possible.
type SolverNamespace struct {
	Digest                       string                 `json:"digest,omitempty"`
	Route                        string                 `json:"route,omitempty"`
	BuildingTemplateID           string                 `json:"buildingTemplateId,omitempty"`
	BuildingPlanID               string                 `json:"buildingPlanId,omitempty"`
	BuildingSolveJoinKeys        map[string]interface{} `json:"buildingSolveJoinKeys,omitempty"`
	BuildingSolveResultSubstrate map[string]interface{} `json:"buildingSolveResultSubstrate,omitempty"`
	RigG                         bool                   `json:"rigG,omitempty"`
	RigGChecked                  bool                   `json:"rigGChecked,omitempty"`
	RigGReplan                   *RigGReplanState        `json:"rigGReplan,omitempty"`
	ReplanAttempts               int                    `json:"replanAttempts,omitempty"`
	StepsDigest                  string                 `json:"stepsDigest,omitempty"`
	SuggestedParallelism         int                    `json:"suggestedParallelism,omitempty"`
	EpisodeHashSlots             map[string]string      `json:"episodeHashSlots,omitempty"`
	LastBindingFailure           string                 `json:"lastBindingFailure,omitempty"`
	ExecutionBudget              *ExecutionBudgetState   `json:"executionBudget,omitempty"`
}

// RigGReplanState tracks the Rig G feasibility-gate replan loop (§4.F step 13).
type RigGReplanState struct {
	Attempt       int        `json:"attempt"`
	LastDigest    string     `json:"lastDigest,omitempty"`
	NextAttemptAt *time.Time `json:"nextAttemptAt,omitempty"`
}

// ExecutionBudgetState tracks the per-step execution budget for building
// leaves (§4.F step 17).
type ExecutionBudgetState struct {
	Attempts     int       `json:"attempts"`
	FirstAttempt time.Time `json:"firstAttempt"`
	LastAttempt  time.Time `json:"lastAttempt"`
}

// Metadata is the projected, allowlisted side-record attached to a task
// (§3). Reserved namespaces (Origin, GoalBinding, Solver, Sterling) are
// typed; everything else that survives projection lives in free-form
// scalar fields below, matching the allowlist in store.AllowedMetadataKeys.
type Metadata struct {
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
	StartedAt    *time.Time   `json:"startedAt,omitempty"`
	CompletedAt  *time.Time   `json:"completedAt,omitempty"`
	RetryCount   int          `json:"retryCount"`
	MaxRetries   int          `json:"maxRetries"`
	ChildTaskIDs []string     `json:"childTaskIds,omitempty"`
	Tags         []string     `json:"tags,omitempty"`
	Requirement  *Requirement `json:"requirement,omitempty"`
	Origin       *TaskOrigin  `json:"origin,omitempty"`
	GoalBinding  *GoalBinding `json:"goalBinding,omitempty"`
	Sterling     map[string]interface{} `json:"sterling,omitempty"`
	Solver       SolverNamespace        `json:"solver"`

	BlockedReason          string     `json:"blockedReason,omitempty"`
	BlockedAt              *time.Time `json:"blockedAt,omitempty"`
	NextEligibleAt         *time.Time `json:"nextEligibleAt,omitempty"`
	ShadowObservationCount int        `json:"shadowObservationCount"`
	VerifyFailCount        int        `json:"verifyFailCount"`
	PrereqInjectionCount   int        `json:"prereqInjectionCount"`
	ParentTaskID           string     `json:"parentTaskId,omitempty"`
	SubtaskKey             string     `json:"subtaskKey,omitempty"`
	GoalKey                string     `json:"goalKey,omitempty"`
	FailReason             string     `json:"failReason,omitempty"`
	FailureCode            string     `json:"failureCode,omitempty"`

	// TaskProvenance, when present, marks this task as a subtask spawned
	// during execution (PrereqInjector) rather than by an external caller;
	// it drives origin inference (§4.B rule 1).
	TaskProvenance string `json:"taskProvenance,omitempty"`

	// Stage carries the transient '_stage=skeleton' marker used by the
	// goal resolver between resolveOrCreate and enrichment (§4.C); cleared
	// by the finalizer. Not persisted — internal bookkeeping only.
	Stage string `json:"-"`
}

// Task is the unit of work tracked by the planning core (§3).
type Task struct {
	ID       string     `json:"id"`
	Type     string     `json:"type"`
	Source   TaskSource `json:"source"`
	Category string     `json:"category,omitempty"`

	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`

	Priority float64 `json:"priority"`
	Urgency  float64 `json:"urgency"`
	Progress float64 `json:"progress"`

	Status TaskStatus `json:"status"`

	Steps []Step `json:"steps"`

	Parameters map[string]interface{} `json:"parameters,omitempty"`

	Metadata Metadata `json:"metadata"`

	// TraceID/ParentSpanID preserve the W3C trace chain across the
	// cognition -> executor async boundary.
	TraceID      string `json:"trace_id,omitempty"`
	ParentSpanID string `json:"parent_span_id,omitempty"`
}

// IsGoalBound reports whether this task carries a GoalBinding.
func (t *Task) IsGoalBound() bool {
	return t.Metadata.GoalBinding != nil
}

// EffectiveGoalKey returns the goal key this task is keyed on, or "" if
// unbound. Never returns an empty-string GoalBinding.GoalKey (invariant 4
// coerces those to absent at write time; see store.SetGoalBinding).
func (t *Task) EffectiveGoalKey() string {
	if t.Metadata.GoalBinding == nil {
		return ""
	}
	return t.Metadata.GoalBinding.GoalKey
}

// HasExecutableStep reports whether any step is marked leaf or executable
// and not yet done — the condition gating the executable-plan path
// (§4.F step 13) versus the MCP fallback path.
func (t *Task) HasExecutableStep() bool {
	return t.NextExecutableStep() != nil
}

// NextExecutableStep returns the first not-done step with a leaf or the
// executable flag set, or nil if none remain.
func (t *Task) NextExecutableStep() *Step {
	for i := range t.Steps {
		s := &t.Steps[i]
		if s.Done {
			continue
		}
		if s.Meta.Leaf != "" || s.Meta.Executable {
			return s
		}
	}
	return nil
}

// HistoryEntry is one bounded record in a task's history ring
// (SPEC_FULL.md §C — supplemented, the spec names the ring but not its
// shape).
type HistoryEntry struct {
	Status   TaskStatus `json:"status"`
	Progress float64    `json:"progress"`
	At       time.Time  `json:"at"`
}

// NewTask constructs a Task in its pre-finalization shape: the finalizer
// (see store.Finalizer) stamps Origin, seeds Solver.StepsDigest, and
// persists it.
func NewTask(id, taskType string, source TaskSource, parameters map[string]interface{}) *Task {
	now := time.Now()
	return &Task{
		ID:         id,
		Type:       taskType,
		Source:     source,
		Priority:   0.5,
		Urgency:    0.5,
		Parameters: parameters,
		Status:     TaskStatusPending,
		Metadata: Metadata{
			CreatedAt:  now,
			UpdatedAt:  now,
			MaxRetries: 3,
		},
	}
}
