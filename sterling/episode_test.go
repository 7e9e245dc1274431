package sterling

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/darianrosebrook/conscious-bot-experiment-sub003/core"
	"github.com/darianrosebrook/conscious-bot-experiment-sub003/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBuildingTask(t *testing.T, s *store.TaskStore, id string) *core.Task {
	t.Helper()
	task, err := s.AddTask(id, store.CreateTaskInput{
		Type:   "building",
		Source: core.SourceManual,
		Title:  "build shelter",
		Steps: []core.Step{{
			ID:    core.NewStepID(),
			Label: "place block",
			Meta:  core.StepMeta{Leaf: "place_block", Executable: true},
		}},
	})
	require.NoError(t, err)
	return task
}

func TestValidateJoinKeys_MissingKeys(t *testing.T) {
	s := store.New()
	task := newBuildingTask(t, s, "t-1")

	r := NewEpisodeReporter("http://example.invalid", s, nil)
	reason, linked := r.validateJoinKeys(task)
	assert.False(t, linked)
	assert.Equal(t, "missing_join_keys", reason)
}

func TestValidateJoinKeys_PlanIDMismatch(t *testing.T) {
	s := store.New()
	task := newBuildingTask(t, s, "t-2")
	task.Metadata.Solver.BuildingPlanID = "plan-a"
	task.Metadata.Solver.BuildingSolveJoinKeys = map[string]interface{}{"planId": "plan-b"}

	r := NewEpisodeReporter("http://example.invalid", s, nil)
	reason, linked := r.validateJoinKeys(task)
	assert.False(t, linked)
	assert.Equal(t, "plan_id_mismatch", reason)
}

func TestValidateJoinKeys_SolverIDMismatch(t *testing.T) {
	s := store.New()
	task := newBuildingTask(t, s, "t-3")
	task.Metadata.Solver.BuildingPlanID = "plan-a"
	task.Metadata.Solver.BuildingSolveJoinKeys = map[string]interface{}{
		"planId":   "plan-a",
		"solverId": "some-other-solver",
	}

	r := NewEpisodeReporter("http://example.invalid", s, nil)
	reason, linked := r.validateJoinKeys(task)
	assert.False(t, linked)
	assert.Equal(t, "solver_id_mismatch", reason)
}

func TestValidateJoinKeys_Linked(t *testing.T) {
	s := store.New()
	task := newBuildingTask(t, s, "t-4")
	task.Metadata.Solver.BuildingPlanID = "plan-a"
	task.Metadata.Solver.BuildingSolveJoinKeys = map[string]interface{}{
		"planId":   "plan-a",
		"solverId": BuildingSolverID,
	}

	r := NewEpisodeReporter("http://example.invalid", s, nil)
	reason, linked := r.validateJoinKeys(task)
	assert.True(t, linked)
	assert.Empty(t, reason)
}

func TestClassifyOutcome_CompletedIsSuccess(t *testing.T) {
	s := store.New()
	task := newBuildingTask(t, s, "t-5")
	require.NoError(t, s.UpdateTaskStatus("t-5", core.TaskStatusCompleted, store.StatusOriginManual))
	task, _ = s.Get("t-5")

	r := NewEpisodeReporter("http://example.invalid", s, nil)
	outcome := r.classifyOutcome(task, true)
	assert.Equal(t, OutcomeExecutionSuccess, outcome)
}

func TestClassifyOutcome_FailureFallsBackWithoutCoherentSubstrate(t *testing.T) {
	s := store.New()
	task := newBuildingTask(t, s, "t-6")
	require.NoError(t, s.UpdateTaskStatus("t-6", core.TaskStatusFailed, store.StatusOriginManual))
	task, _ = s.Get("t-6")

	r := NewEpisodeReporter("http://example.invalid", s, nil)
	outcome := r.classifyOutcome(task, true)
	assert.Equal(t, OutcomeExecutionFailure, outcome)
}

func TestClassifyOutcome_FailureUsesSubstrateFailureClassWhenCoherent(t *testing.T) {
	s := store.New()
	task := newBuildingTask(t, s, "t-7")
	task.Metadata.Solver.BuildingPlanID = "plan-a"
	task.Metadata.Solver.BuildingSolveJoinKeys = map[string]interface{}{
		"planId":     "plan-a",
		"bundleHash": "hash-1",
	}
	task.Metadata.Solver.BuildingSolveResultSubstrate = map[string]interface{}{
		"bundleHash":   "hash-1",
		"failureClass": "INVENTORY_MISMATCH",
	}
	require.NoError(t, s.UpdateTaskStatus("t-7", core.TaskStatusFailed, store.StatusOriginManual))
	task, _ = s.Get("t-7")

	r := NewEpisodeReporter("http://example.invalid", s, nil)
	outcome := r.classifyOutcome(task, true)
	assert.Equal(t, EpisodeOutcome("INVENTORY_MISMATCH"), outcome)
}

func TestWarnedKeySet_WarnsOnceThenSuppresses(t *testing.T) {
	w := newWarnedKeySet()
	assert.True(t, w.warnOnce("a"))
	assert.False(t, w.warnOnce("a"))
	assert.True(t, w.warnOnce("b"))
}

func TestWarnedKeySet_EvictsOldestPastCap(t *testing.T) {
	w := newWarnedKeySet()
	for i := 0; i <= joinKeyWarningCap; i++ {
		w.warnOnce(string(rune(i)))
	}
	// cap+1 distinct keys were inserted, so the oldest (rune 0) has been
	// evicted; warnOnce on it reports true again since it fell out of the
	// bounded set.
	assert.True(t, w.warnOnce(string(rune(0))))
}

func TestReport_SendsAckAndPersistsEpisodeHash(t *testing.T) {
	var received EpisodeReport
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		require.NoError(t, json.NewDecoder(req.Body).Decode(&received))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"episodeHash": "hash-xyz"})
	}))
	defer srv.Close()

	s := store.New()
	task := newBuildingTask(t, s, "t-8")
	require.NoError(t, s.UpdateTaskStatus("t-8", core.TaskStatusCompleted, store.StatusOriginManual))
	task, _ = s.Get("t-8")

	r := NewEpisodeReporter(srv.URL, s, nil)
	r.Report(task)

	require.Eventually(t, func() bool {
		got, _ := s.Get("t-8")
		return got.Metadata.Solver.EpisodeHashSlots["building"] == "hash-xyz"
	}, time.Second, 10*time.Millisecond)

	assert.Equal(t, "t-8", received.TaskID)
	assert.Equal(t, OutcomeExecutionSuccess, received.Outcome)
}

func TestReport_IgnoresNonBuildingTasks(t *testing.T) {
	s := store.New()
	task, err := s.AddTask("t-9", store.CreateTaskInput{
		Type:   "gathering",
		Source: core.SourceManual,
		Title:  "collect wood",
		Steps: []core.Step{{
			ID:    core.NewStepID(),
			Label: "chop",
			Meta:  core.StepMeta{Leaf: "acquire_material", Executable: true},
		}},
	})
	require.NoError(t, err)

	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		called = true
	}))
	defer srv.Close()

	r := NewEpisodeReporter(srv.URL, s, nil)
	r.Report(task)

	time.Sleep(50 * time.Millisecond)
	assert.False(t, called)
}
