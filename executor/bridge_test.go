package executor

import (
	"context"
	"testing"
	"time"

	"github.com/darianrosebrook/conscious-bot-experiment-sub003/core"
	"github.com/darianrosebrook/conscious-bot-experiment-sub003/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReplanner struct {
	steps []core.Step
	err   error
	calls int
}

func (f *fakeReplanner) Replan(ctx context.Context, t *core.Task, failureContext map[string]interface{}) ([]core.Step, error) {
	f.calls++
	return f.steps, f.err
}

func parkUnplannable(t *testing.T, s *store.TaskStore, attempt int, lastDigest string, nextAttemptAt time.Time) *core.Task {
	t.Helper()
	task, err := s.AddTask(core.NewTaskID("task"), store.CreateTaskInput{
		Type: "gathering", Source: core.SourceManual, Title: "dig shaft",
		Steps: []core.Step{leafStep("dig_block", map[string]interface{}{"position": map[string]interface{}{}})},
	})
	require.NoError(t, err)
	require.NoError(t, s.UpdateTaskStatus(task.ID, core.TaskStatusUnplannable, store.StatusOriginRuntime))
	require.NoError(t, s.SetRigGReplanState(task.ID, &core.RigGReplanState{
		Attempt: attempt, LastDigest: lastDigest, NextAttemptAt: &nextAttemptAt,
	}))
	task, _ = s.Get(task.ID)
	return task
}

func TestDriveRigGReplans_SkipsWhenNextAttemptNotYetDue(t *testing.T) {
	replanner := &fakeReplanner{}
	e, s := newTestExecutor(t, WithReplanner(replanner))
	parkUnplannable(t, s, 1, "digest-old", time.Now().Add(time.Minute))

	e.driveRigGReplans(context.Background(), s.List())

	assert.Equal(t, 0, replanner.calls)
}

func TestDriveRigGReplans_ReturnsToPendingOnNewDigest(t *testing.T) {
	replanner := &fakeReplanner{steps: []core.Step{leafStep("dig_block", map[string]interface{}{"position": map[string]interface{}{}})}}
	e, s := newTestExecutor(t, WithReplanner(replanner))
	task := parkUnplannable(t, s, 1, "digest-old", time.Now().Add(-time.Second))

	e.driveRigGReplans(context.Background(), s.List())

	got, ok := s.Get(task.ID)
	require.True(t, ok)
	assert.Equal(t, core.TaskStatusPending, got.Status)
	assert.Nil(t, got.Metadata.Solver.RigGReplan)
	assert.Equal(t, 1, replanner.calls)
}

func TestDriveRigGReplans_AdvancesLadderOnIdenticalDigest(t *testing.T) {
	steps := []core.Step{leafStep("dig_block", map[string]interface{}{"position": map[string]interface{}{}})}
	digest := store.StepsDigest(steps)
	replanner := &fakeReplanner{steps: steps}
	e, s := newTestExecutor(t, WithReplanner(replanner))
	task := parkUnplannable(t, s, 1, digest, time.Now().Add(-time.Second))

	e.driveRigGReplans(context.Background(), s.List())

	got, ok := s.Get(task.ID)
	require.True(t, ok)
	assert.Equal(t, core.TaskStatusUnplannable, got.Status)
	require.NotNil(t, got.Metadata.Solver.RigGReplan)
	assert.Equal(t, 2, got.Metadata.Solver.RigGReplan.Attempt)
}

func TestDriveRigGReplans_ExhaustsLadderAfterThreeAttempts(t *testing.T) {
	steps := []core.Step{leafStep("dig_block", map[string]interface{}{"position": map[string]interface{}{}})}
	digest := store.StepsDigest(steps)
	replanner := &fakeReplanner{steps: steps}
	e, s := newTestExecutor(t, WithReplanner(replanner))
	task := parkUnplannable(t, s, 3, digest, time.Now().Add(-time.Second))

	e.driveRigGReplans(context.Background(), s.List())

	got, ok := s.Get(task.ID)
	require.True(t, ok)
	assert.Equal(t, core.TaskStatusFailed, got.Status)
}

func TestDriveRigGReplans_ReplanErrorAdvancesLadderWithoutUnblocking(t *testing.T) {
	replanner := &fakeReplanner{err: assertError{}}
	e, s := newTestExecutor(t, WithReplanner(replanner))
	task := parkUnplannable(t, s, 1, "digest-old", time.Now().Add(-time.Second))

	e.driveRigGReplans(context.Background(), s.List())

	got, ok := s.Get(task.ID)
	require.True(t, ok)
	assert.Equal(t, core.TaskStatusUnplannable, got.Status)
	require.NotNil(t, got.Metadata.Solver.RigGReplan)
	assert.Equal(t, 2, got.Metadata.Solver.RigGReplan.Attempt)
}

type assertError struct{}

func (assertError) Error() string { return "replan unavailable" }
