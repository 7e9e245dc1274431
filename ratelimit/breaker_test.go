package ratelimit

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreaker_TripsAfterThreeFailures(t *testing.T) {
	b, err := NewBreaker(nil)
	require.NoError(t, err)

	failing := func() error { return errors.New("infra failure") }

	for i := 0; i < 3; i++ {
		_ = b.Execute(context.Background(), failing)
	}

	assert.False(t, b.CanExecute())
	assert.Equal(t, "open", b.State())
}

func TestBreaker_SuccessResetsTripEscalation(t *testing.T) {
	b, err := NewBreaker(nil)
	require.NoError(t, err)

	b.RecordFailure()
	b.RecordFailure()
	b.RecordFailure()

	b.RecordSuccess()
	assert.Equal(t, defaultCooldown, b.CurrentCooldown())
}
