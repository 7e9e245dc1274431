package sterling

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/darianrosebrook/conscious-bot-experiment-sub003/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlan_ParsesSuccessfulResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "/plan", req.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"steps": []core.Step{{ID: "s1", Label: "place block"}},
			"route": "sterling-building-v1",
		})
	}))
	defer srv.Close()

	c := New(srv.URL)
	task := core.NewTask("task-1", "building", core.SourceManual, nil)

	result, err := c.Plan(task)
	require.NoError(t, err)
	assert.Len(t, result.Steps, 1)
	assert.Equal(t, "sterling-building-v1", result.Route)
}

func TestPlan_PropagatesNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("solver down"))
	}))
	defer srv.Close()

	c := New(srv.URL)
	task := core.NewTask("task-2", "building", core.SourceManual, nil)

	_, err := c.Plan(task)
	assert.Error(t, err)
}

type stubMacroPlanner struct {
	steps []core.Step
	err   error
}

func (s *stubMacroPlanner) GenerateDynamicSteps(ctx context.Context, task *core.Task) ([]core.Step, error) {
	return s.steps, s.err
}

func TestReplan_PostsFailureContextAndParsesSteps(t *testing.T) {
	var captured map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "/replan", req.URL.Path)
		_ = json.NewDecoder(req.Body).Decode(&captured)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"steps": []core.Step{{ID: "s1", Label: "retry craft"}},
		})
	}))
	defer srv.Close()

	c := New(srv.URL)
	task := core.NewTask("task-1", "crafting", core.SourceManual, nil)

	steps, err := c.Replan(context.Background(), task, map[string]interface{}{"lastFailureCode": "TRANSIENT"})
	require.NoError(t, err)
	assert.Len(t, steps, 1)
	require.NotNil(t, captured["failureContext"])
	fc := captured["failureContext"].(map[string]interface{})
	assert.Equal(t, "TRANSIENT", fc["lastFailureCode"])
}

func TestReplan_PropagatesNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("replanner down"))
	}))
	defer srv.Close()

	c := New(srv.URL)
	task := core.NewTask("task-1", "crafting", core.SourceManual, nil)

	_, err := c.Replan(context.Background(), task, nil)
	assert.Error(t, err)
}

func TestSolveCrafting_ParsesSuccessfulResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "/crafting/solve", req.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"recipe": "stone_pickaxe"})
	}))
	defer srv.Close()

	c := New(srv.URL)
	out, err := c.SolveCrafting(context.Background(), map[string]interface{}{"item": "stone_pickaxe"})
	require.NoError(t, err)
	assert.Equal(t, "stone_pickaxe", out["recipe"])
}

func TestHealth_ReportsBreakerState(t *testing.T) {
	c := New("http://unused.local")
	health, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "closed", health["state"])
}

func TestGenerateDynamicSteps_DelegatesToMacroPlanner(t *testing.T) {
	planner := &stubMacroPlanner{steps: []core.Step{{ID: "s1"}}}
	c := New("http://example.invalid", WithMacroPlanner(planner))

	steps, err := c.GenerateDynamicSteps(context.Background(), core.NewTask("t", "building", core.SourceManual, nil))
	require.NoError(t, err)
	assert.Len(t, steps, 1)
}

func TestGenerateDynamicSteps_ErrorsWithoutMacroPlanner(t *testing.T) {
	c := New("http://example.invalid")
	_, err := c.GenerateDynamicSteps(context.Background(), core.NewTask("t", "building", core.SourceManual, nil))
	assert.Error(t, err)
}
