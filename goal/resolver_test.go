package goal

import (
	"testing"

	"github.com/darianrosebrook/conscious-bot-experiment-sub003/core"
	"github.com/darianrosebrook/conscious-bot-experiment-sub003/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalizeIntentParams_StableOrdering(t *testing.T) {
	a := map[string]interface{}{"b": 1.0, "a": "x"}
	b := map[string]interface{}{"a": "x", "b": 1.0}
	assert.Equal(t, CanonicalizeIntentParams(a), CanonicalizeIntentParams(b))
}

func TestCanonicalizeIntentParams_NilVsEmpty(t *testing.T) {
	assert.Equal(t, "null", CanonicalizeIntentParams(nil))
	assert.Equal(t, "{}", CanonicalizeIntentParams(map[string]interface{}{}))
}

func TestCanonicalizeIntentParams_UnserializableSentinel(t *testing.T) {
	params := map[string]interface{}{
		"when": struct{ Y int }{Y: 1},
	}
	out := CanonicalizeIntentParams(params)
	assert.Contains(t, out, "__unserializable__")
}

func TestResolveOrCreate_CreatesSkeletonThenContinues(t *testing.T) {
	s := store.New()
	r := New(s)

	req := store.GoalResolveRequest{
		GoalType:     "building",
		IntentParams: map[string]interface{}{"structure": "house"},
		Verifier:     "structure_present",
	}

	first, err := r.ResolveOrCreate(req)
	require.NoError(t, err)
	assert.Equal(t, store.GoalActionCreated, first.Action)

	skeleton, ok := s.Get(first.TaskID)
	require.True(t, ok)
	assert.Equal(t, "skeleton", skeleton.Metadata.Stage)
	require.NotNil(t, skeleton.Metadata.GoalBinding)

	second, err := r.ResolveOrCreate(req)
	require.NoError(t, err)
	assert.Equal(t, store.GoalActionContinue, second.Action)
	assert.Equal(t, first.TaskID, second.TaskID)
}

func TestResolveOrCreate_AlreadySatisfied(t *testing.T) {
	s := store.New()
	r := New(s, WithVerifier("structure_present", func(goalType string, params map[string]interface{}) bool {
		return true
	}))

	req := store.GoalResolveRequest{
		GoalType:     "building",
		IntentParams: map[string]interface{}{"structure": "tower"},
		Verifier:     "structure_present",
	}

	created, err := r.ResolveOrCreate(req)
	require.NoError(t, err)

	skeleton, _ := s.Get(created.TaskID)
	skeleton.Status = core.TaskStatusCompleted

	result, err := r.ResolveOrCreate(req)
	require.NoError(t, err)
	assert.Equal(t, store.GoalActionAlreadySatisfied, result.Action)
	assert.Equal(t, created.TaskID, result.TaskID)
}

func TestResolveOrCreate_DistinctGoalKeysDoNotCollide(t *testing.T) {
	s := store.New()
	r := New(s)

	first, err := r.ResolveOrCreate(store.GoalResolveRequest{
		GoalType:     "building",
		IntentParams: map[string]interface{}{"structure": "house"},
	})
	require.NoError(t, err)

	second, err := r.ResolveOrCreate(store.GoalResolveRequest{
		GoalType:     "building",
		IntentParams: map[string]interface{}{"structure": "tower"},
	})
	require.NoError(t, err)

	assert.NotEqual(t, first.TaskID, second.TaskID)
}
