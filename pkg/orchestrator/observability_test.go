package orchestrator

import (
	"context"
	"testing"

	"github.com/dreezy-6/adaad6/pkg/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunTracksOperationWhenObservabilityProvided(t *testing.T) {
	cfg := testConfig(t, nil)
	provider, err := observability.New(context.Background(), &observability.Config{Enabled: false})
	require.NoError(t, err)

	o := New("")
	result, err := o.Run("ship the widget", cfg, RunOptions{Observability: provider})
	require.NoError(t, err)
	assert.True(t, result.OK)
}

func TestRunTracksOperationOnFailureWithoutPanicking(t *testing.T) {
	cfg := testConfig(t, map[string]string{"ADAAD6_EMERGENCY_HALT": "true"})
	provider, err := observability.New(context.Background(), &observability.Config{Enabled: false})
	require.NoError(t, err)

	o := New("")
	result, err := o.Run("goal", cfg, RunOptions{Observability: provider})
	require.NoError(t, err)
	assert.False(t, result.OK)
	assert.Equal(t, FailureEmergencyHalt, result.FailureReason)
}
