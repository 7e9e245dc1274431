package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darianrosebrook/conscious-bot-experiment-sub003/core"
	"github.com/darianrosebrook/conscious-bot-experiment-sub003/store"
)

type fakeNavSolver struct {
	result map[string]interface{}
	err    error
}

func (f *fakeNavSolver) SolveNavigation(ctx context.Context, start, goal core.Position, tolerances map[string]interface{}) (map[string]interface{}, error) {
	return f.result, f.err
}

type fakeCraftSolver struct {
	solveResult  map[string]interface{}
	solveErr     error
	healthResult map[string]interface{}
	healthErr    error
}

func (f *fakeCraftSolver) SolveCrafting(ctx context.Context, req map[string]interface{}) (map[string]interface{}, error) {
	return f.solveResult, f.solveErr
}

func (f *fakeCraftSolver) Health(ctx context.Context) (map[string]interface{}, error) {
	return f.healthResult, f.healthErr
}

type fakeStopController struct {
	stopped bool
}

func (f *fakeStopController) Stop() { f.stopped = true }

type fakeTaskManager struct {
	lastAction string
	lastTaskID string
	err        error
}

func (f *fakeTaskManager) Pause(taskID, resumeHints string) error {
	f.lastAction, f.lastTaskID = "pause", taskID
	return f.err
}

func (f *fakeTaskManager) Resume(taskID string) error {
	f.lastAction, f.lastTaskID = "resume", taskID
	return f.err
}

func (f *fakeTaskManager) Cancel(taskID, reason string) error {
	f.lastAction, f.lastTaskID = "cancel", taskID
	return f.err
}

func TestHandleTask_CreatesTaskWithGeneratedID(t *testing.T) {
	s := New(store.New())
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	body, _ := json.Marshal(createTaskRequest{
		Type:  "gathering",
		Title: "collect oak logs",
	})
	resp, err := srv.Client().Post(srv.URL+"/task", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, 201, resp.StatusCode)

	var task core.Task
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&task))
	assert.NotEmpty(t, task.ID)
	assert.Contains(t, task.ID, "task-")
	assert.Equal(t, core.SourceManual, task.Source)
}

func TestHandleTask_MissingTypeRejected(t *testing.T) {
	s := New(store.New())
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	body, _ := json.Marshal(createTaskRequest{Title: "no type"})
	resp, err := srv.Client().Post(srv.URL+"/task", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 400, resp.StatusCode)
}

func TestHandleGoal_UsesGoalSourceAndPrefix(t *testing.T) {
	s := New(store.New())
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	body, _ := json.Marshal(createGoalRequest{GoalType: "explore_biome"})
	resp, err := srv.Client().Post(srv.URL+"/goal", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, 201, resp.StatusCode)

	var task core.Task
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&task))
	assert.Contains(t, task.ID, "goal-")
	assert.Equal(t, core.SourceGoal, task.Source)
}

func TestHandleTasks_FiltersByStatusAndLimit(t *testing.T) {
	taskStore := store.New()
	_, err := taskStore.AddTask("task-a", store.CreateTaskInput{Type: "gathering", Source: core.SourceManual})
	require.NoError(t, err)
	_, err = taskStore.AddTask("task-b", store.CreateTaskInput{Type: "mining", Source: core.SourceManual})
	require.NoError(t, err)

	s := New(taskStore)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/tasks?status=pending&limit=1")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)

	var tasks []*core.Task
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&tasks))
	assert.Len(t, tasks, 1)
}

func TestHandleSterlingHealth_NotConfiguredReturnsOK(t *testing.T) {
	s := New(store.New())
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/sterling/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 200, resp.StatusCode)

	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "not_configured", out["status"])
}

func TestHandleSterlingHealth_PassesThroughSolverHealth(t *testing.T) {
	craft := &fakeCraftSolver{healthResult: map[string]interface{}{"status": "ok"}}
	s := New(store.New(), WithCraftingSolver(craft))
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/sterling/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 200, resp.StatusCode)
}

func TestHandleCraftingSolve_NotConfiguredReturns503(t *testing.T) {
	s := New(store.New())
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := srv.Client().Post(srv.URL+"/sterling/crafting/solve", "application/json", bytes.NewReader([]byte(`{}`)))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 503, resp.StatusCode)
}

func TestHandleCraftingSolve_DelegatesToSolver(t *testing.T) {
	craft := &fakeCraftSolver{solveResult: map[string]interface{}{"recipe": "stone_pickaxe"}}
	s := New(store.New(), WithCraftingSolver(craft))
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := srv.Client().Post(srv.URL+"/sterling/crafting/solve", "application/json", bytes.NewReader([]byte(`{"item":"stone_pickaxe"}`)))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)

	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "stone_pickaxe", out["recipe"])
}

func TestHandleSolveNavigation_NotConfiguredReturns503(t *testing.T) {
	s := New(store.New())
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := srv.Client().Post(srv.URL+"/solve-navigation", "application/json", bytes.NewReader([]byte(`{}`)))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 503, resp.StatusCode)
}

func TestHandleSolveNavigation_DelegatesToSolver(t *testing.T) {
	nav := &fakeNavSolver{result: map[string]interface{}{"path": []string{"a", "b"}}}
	s := New(store.New(), WithNavSolver(nav))
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	req := solveNavigationRequest{
		Start: core.Position{X: 0, Y: 64, Z: 0},
		Goal:  core.Position{X: 10, Y: 64, Z: 10},
	}
	body, _ := json.Marshal(req)
	resp, err := srv.Client().Post(srv.URL+"/solve-navigation", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 200, resp.StatusCode)
}

func TestHandleExecutorStop_RejectsMissingToken(t *testing.T) {
	stop := &fakeStopController{}
	s := New(store.New(), WithStopController(stop), WithEmergencyToken("secret"))
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := srv.Client().Post(srv.URL+"/executor/stop", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 401, resp.StatusCode)
	assert.False(t, stop.stopped)
}

func TestHandleExecutorStop_AcceptsValidToken(t *testing.T) {
	stop := &fakeStopController{}
	s := New(store.New(), WithStopController(stop), WithEmergencyToken("secret"))
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	httpReq := httptest.NewRequest("POST", "/executor/stop", nil)
	httpReq.Header.Set("x-emergency-token", "secret")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httpReq)

	assert.Equal(t, 200, rec.Code)
	assert.True(t, stop.stopped)
}

func TestBroadcaster_PublishFansOutToSubscribers(t *testing.T) {
	b := NewBroadcaster()
	ch := b.subscribe()
	defer b.unsubscribe(ch)

	b.Publish("task_created", "task-1", map[string]interface{}{"status": "pending"})

	select {
	case evt := <-ch:
		assert.Equal(t, "task_created", evt.Type)
		assert.Equal(t, "task-1", evt.TaskID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for published event")
	}
}

func TestBroadcaster_FullSubscriberChannelDoesNotBlockPublish(t *testing.T) {
	b := NewBroadcaster()
	ch := b.subscribe()
	defer b.unsubscribe(ch)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 64; i++ {
			b.Publish("spam", "task-1", nil)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a full subscriber channel")
	}
}

func TestHandleTaskManage_NotConfiguredReturns503(t *testing.T) {
	s := New(store.New())
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	body, _ := json.Marshal(manageTaskRequest{TaskID: "task-1", Action: "pause"})
	resp, err := srv.Client().Post(srv.URL+"/task/manage", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 503, resp.StatusCode)
}

func TestHandleTaskManage_DelegatesActionToManager(t *testing.T) {
	manager := &fakeTaskManager{}
	s := New(store.New(), WithTaskManager(manager))
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	body, _ := json.Marshal(manageTaskRequest{TaskID: "task-1", Action: "resume"})
	resp, err := srv.Client().Post(srv.URL+"/task/manage", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "resume", manager.lastAction)
	assert.Equal(t, "task-1", manager.lastTaskID)
}

func TestHandleTaskManage_RejectsUnknownAction(t *testing.T) {
	manager := &fakeTaskManager{}
	s := New(store.New(), WithTaskManager(manager))
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	body, _ := json.Marshal(manageTaskRequest{TaskID: "task-1", Action: "teleport"})
	resp, err := srv.Client().Post(srv.URL+"/task/manage", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 400, resp.StatusCode)
}

func TestSSEEventSink_AppendEventPublishesToBus(t *testing.T) {
	bus := NewBroadcaster()
	sink := NewSSEEventSink(bus)
	ch := bus.subscribe()
	defer bus.unsubscribe(ch)

	sink.AppendEvent("seed1", "task-1", "dispatch_failed", map[string]interface{}{"leaf": "dig_block"})

	select {
	case evt := <-ch:
		assert.Equal(t, "dispatch_failed", evt.Type)
		assert.Equal(t, "task-1", evt.TaskID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}
