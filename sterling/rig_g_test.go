package sterling

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/darianrosebrook/conscious-bot-experiment-sub003/executor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdviseExecution_ShouldProceedTrue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"shouldProceed": true}`))
	}))
	defer srv.Close()

	a := NewRigGAdvisor(srv.URL)
	proceed, err := a.AdviseExecution(t.Context(), executor.RigGMeta{TaskID: "t-1", StepID: "s-1"})
	require.NoError(t, err)
	assert.True(t, proceed)
}

func TestAdviseExecution_ShouldProceedFalse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"shouldProceed": false, "reason": "terrain changed"}`))
	}))
	defer srv.Close()

	a := NewRigGAdvisor(srv.URL)
	proceed, err := a.AdviseExecution(t.Context(), executor.RigGMeta{TaskID: "t-2", StepID: "s-1"})
	require.NoError(t, err)
	assert.False(t, proceed)
}

func TestAdviseExecution_RequestErrorDegradesToProceedTrue(t *testing.T) {
	a := NewRigGAdvisor("http://127.0.0.1:0")
	proceed, err := a.AdviseExecution(t.Context(), executor.RigGMeta{TaskID: "t-3", StepID: "s-1"})
	require.Error(t, err)
	assert.True(t, proceed)
}
