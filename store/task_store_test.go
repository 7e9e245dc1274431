package store

import (
	"testing"

	"github.com/darianrosebrook/conscious-bot-experiment-sub003/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func leafStep(label, leaf string) core.Step {
	return core.Step{
		ID:    core.NewStepID(),
		Label: label,
		Meta:  core.StepMeta{Leaf: leaf, Executable: true},
	}
}

func TestAddTask_BasicExecutablePlan(t *testing.T) {
	s := New()

	task, err := s.AddTask("task-1", CreateTaskInput{
		Type:   "gathering",
		Source: core.SourceManual,
		Title:  "collect wood",
		Steps:  []core.Step{leafStep("chop tree", "acquire_material")},
	})
	require.NoError(t, err)
	assert.Equal(t, "task-1", task.ID)
	assert.Empty(t, task.Metadata.BlockedReason)
	assert.NotNil(t, task.Metadata.Origin)
	assert.Equal(t, core.OriginAPI, task.Metadata.Origin.Kind)
	assert.NotEmpty(t, task.Metadata.Solver.StepsDigest)

	got, ok := s.Get("task-1")
	require.True(t, ok)
	assert.Equal(t, task, got)
}

func TestAddTask_NoExecutableStepSetsBlockedReason(t *testing.T) {
	s := New()

	task, err := s.AddTask("task-2", CreateTaskInput{
		Type:   "cognitive_reflection",
		Source: core.SourceAutonomous,
		Title:  "reflect",
	})
	require.NoError(t, err)
	assert.Equal(t, "no-executable-plan", task.Metadata.BlockedReason)
	assert.NotNil(t, task.Metadata.BlockedAt)
	assert.Equal(t, core.OriginCognition, task.Metadata.Origin.Kind)
}

func TestAddTask_AdvisoryActionBlockedReason(t *testing.T) {
	s := New()

	task, err := s.AddTask("task-3", CreateTaskInput{
		Type:   "advisory_action",
		Source: core.SourceManual,
		Title:  "consider options",
	})
	require.NoError(t, err)
	assert.Equal(t, "advisory_action", task.Metadata.BlockedReason)
}

func TestAddTask_GoalSourceWithoutResolverEmitsDrift(t *testing.T) {
	s := New()

	var driftEvents []Event
	s.Subscribe(func(e Event) {
		if e.Type == EventGoalBindingDrift {
			driftEvents = append(driftEvents, e)
		}
	})

	_, err := s.AddTask("task-4", CreateTaskInput{
		Type:   "building",
		Source: core.SourceGoal,
		Title:  "build house",
	})
	require.NoError(t, err)
	require.Len(t, driftEvents, 1)
	assert.Equal(t, "goal_resolver_disabled", driftEvents[0].Reason)
}

type nopGoalResolver struct{}

func (nopGoalResolver) ResolveOrCreate(GoalResolveRequest) (GoalResolveResult, error) {
	return GoalResolveResult{}, nil
}

func TestAddTask_GoalSourceTypeNotGatedDrift(t *testing.T) {
	s := New(WithGoalResolver(nopGoalResolver{}))

	var reason string
	s.Subscribe(func(e Event) {
		if e.Type == EventGoalBindingDrift {
			reason = e.Reason
		}
	})

	_, err := s.AddTask("task-5", CreateTaskInput{
		Type:   "gathering",
		Source: core.SourceGoal,
		Title:  "gather stuff",
	})
	require.NoError(t, err)
	assert.Equal(t, "type_not_gated:gathering", reason)
}

func TestAddTask_HighPriorityEmitsEvent(t *testing.T) {
	s := New()

	var sawHighPriority bool
	s.Subscribe(func(e Event) {
		if e.Type == EventHighPriorityAdded {
			sawHighPriority = true
		}
	})

	_, err := s.AddTask("task-6", CreateTaskInput{
		Type:     "mining",
		Source:   core.SourceManual,
		Title:    "mine ore",
		Priority: "high",
		Steps:    []core.Step{leafStep("dig", "dig_block")},
	})
	require.NoError(t, err)
	assert.True(t, sawHighPriority)
}

func TestAddTask_SimilarityDedupeReturnsExisting(t *testing.T) {
	s := New()

	first, err := s.AddTask("task-7", CreateTaskInput{
		Type:   "gathering",
		Source: core.SourceManual,
		Title:  "collect oak wood logs",
		Steps:  []core.Step{leafStep("chop", "acquire_material")},
	})
	require.NoError(t, err)

	second, err := s.AddTask("task-8", CreateTaskInput{
		Type:   "gathering",
		Source: core.SourceManual,
		Title:  "collect oak wood logs now",
		Steps:  []core.Step{leafStep("chop", "acquire_material")},
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestAddTask_MetadataAllowlistDropsUnknownKeys(t *testing.T) {
	s := New()

	task, err := s.AddTask("task-9", CreateTaskInput{
		Type:   "gathering",
		Source: core.SourceManual,
		Title:  "collect stone",
		Steps:  []core.Step{leafStep("mine", "dig_block")},
		Metadata: map[string]interface{}{
			"goalKey":       "goal-key-1",
			"subtaskKey":    "subtask-1",
			"notAllowed":    "dropped",
			"anotherBogus":  42,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "goal-key-1", task.Metadata.GoalKey)
	assert.Equal(t, "subtask-1", task.Metadata.SubtaskKey)
}

func TestAddTask_PriorityUrgencyNormalization(t *testing.T) {
	s := New()

	task, err := s.AddTask("task-10", CreateTaskInput{
		Type:     "gathering",
		Source:   core.SourceManual,
		Title:    "collect sand",
		Priority: "low",
		Urgency:  1.5,
		Steps:    []core.Step{leafStep("dig", "dig_block")},
	})
	require.NoError(t, err)
	assert.Equal(t, 0.3, task.Priority)
	assert.Equal(t, 1.0, task.Urgency)
}

func TestUpdateTaskProgress_RejectsDisallowedStatus(t *testing.T) {
	s := New()

	task, err := s.AddTask("task-11", CreateTaskInput{
		Type:   "gathering",
		Source: core.SourceManual,
		Title:  "collect iron",
		Steps:  []core.Step{leafStep("mine", "dig_block")},
	})
	require.NoError(t, err)

	paused := core.TaskStatusPaused
	err = s.UpdateTaskProgress(task.ID, 0.5, &paused)
	assert.Error(t, err)
}

func TestUpdateTaskProgress_CompletedIsAllowed(t *testing.T) {
	s := New()

	task, err := s.AddTask("task-12", CreateTaskInput{
		Type:   "gathering",
		Source: core.SourceManual,
		Title:  "collect sticks",
		Steps:  []core.Step{leafStep("chop", "acquire_material")},
	})
	require.NoError(t, err)

	completed := core.TaskStatusCompleted
	err = s.UpdateTaskProgress(task.ID, 1.0, &completed)
	require.NoError(t, err)

	got, _ := s.Get(task.ID)
	assert.Equal(t, core.TaskStatusCompleted, got.Status)
	assert.Equal(t, 1.0, got.Progress)
}

func TestUpdateTaskMetadata_StripsGoalBindingAndOrigin(t *testing.T) {
	s := New()

	task, err := s.AddTask("task-13", CreateTaskInput{
		Type:   "gathering",
		Source: core.SourceManual,
		Title:  "collect clay",
		Steps:  []core.Step{leafStep("dig", "dig_block")},
	})
	require.NoError(t, err)
	originalOrigin := task.Metadata.Origin

	err = s.UpdateTaskMetadata(task.ID, map[string]interface{}{
		"goalBinding":   &core.GoalBinding{GoalKey: "sneaky"},
		"origin":        &core.TaskOrigin{Kind: core.OriginUnknown},
		"blockedReason": "waiting_on_prereq",
	})
	require.NoError(t, err)

	got, _ := s.Get(task.ID)
	assert.Same(t, originalOrigin, got.Metadata.Origin)
	assert.Nil(t, got.Metadata.GoalBinding)
	assert.Equal(t, "waiting_on_prereq", got.Metadata.BlockedReason)
}

func TestTryUnblockParent_ClearsWhenAllSiblingsTerminal(t *testing.T) {
	s := New()

	parent, err := s.AddTask("parent-1", CreateTaskInput{
		Type:   "crafting",
		Source: core.SourceManual,
		Title:  "craft pickaxe",
		Steps:  []core.Step{leafStep("craft", "craft_recipe")},
	})
	require.NoError(t, err)
	require.NoError(t, s.UpdateTaskMetadata(parent.ID, map[string]interface{}{
		"blockedReason": "waiting_on_prereq",
	}))

	child, err := s.AddTask("child-1", CreateTaskInput{
		Type:         "gathering",
		Source:       core.SourceManual,
		Title:        "collect cobblestone",
		Steps:        []core.Step{leafStep("mine", "dig_block")},
		ParentTaskID: parent.ID,
		Metadata: map[string]interface{}{
			"subtaskKey": "parent-1:cobblestone",
		},
	})
	require.NoError(t, err)

	completed := core.TaskStatusCompleted
	require.NoError(t, s.UpdateTaskProgress(child.ID, 1.0, &completed))

	gotParent, _ := s.Get(parent.ID)
	assert.Empty(t, gotParent.Metadata.BlockedReason)
}
