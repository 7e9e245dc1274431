package protocol

import (
	"testing"
	"time"

	"github.com/darianrosebrook/conscious-bot-experiment-sub003/core"
	"github.com/darianrosebrook/conscious-bot-experiment-sub003/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTaskForDrainTest(t *testing.T, s *store.TaskStore, id string) *core.Task {
	task, err := s.AddTask(id, store.CreateTaskInput{
		Type:   "gathering",
		Source: core.SourceManual,
		Title:  "collect wood " + id,
		Steps:  []core.Step{{ID: core.NewStepID(), Meta: core.StepMeta{Leaf: "acquire_material", Executable: true}}},
	})
	require.NoError(t, err)
	return task
}

func TestDrain_AppliesEffectsSerially(t *testing.T) {
	s := store.New()
	d := New(s, nil)

	task := newTaskForDrainTest(t, s, "drain-1")

	d.Schedule([]store.SyncEffect{
		{Kind: store.EffectApplyHold, TaskID: task.ID, Hold: &core.Hold{Reason: core.HoldMaterialsMissing}},
	})

	assert.Eventually(t, func() bool {
		got, _ := s.Get(task.ID)
		return got.Metadata.BlockedReason == string(core.HoldMaterialsMissing)
	}, time.Second, 5*time.Millisecond)
}

func TestDrain_UpdateTaskStatus(t *testing.T) {
	s := store.New()
	d := New(s, nil)

	task := newTaskForDrainTest(t, s, "drain-2")

	d.Schedule([]store.SyncEffect{
		{Kind: store.EffectUpdateTaskStatus, TaskID: task.ID, Status: core.TaskStatusFailed},
	})

	assert.Eventually(t, func() bool {
		got, _ := s.Get(task.ID)
		return got.Status == core.TaskStatusFailed
	}, time.Second, 5*time.Millisecond)
}
