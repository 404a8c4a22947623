package orchestrator

import (
	"testing"

	"github.com/dreezy-6/adaad6/pkg/capabilities"
	"github.com/dreezy-6/adaad6/pkg/config"
	"github.com/dreezy-6/adaad6/pkg/mutation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsRevenueSafeActionAcceptsPlannerProvenance(t *testing.T) {
	m := capabilities.ActionModule{Name: "clarify_goal", Provenance: plannerProvenance}
	assert.True(t, isRevenueSafeAction(m))
}

func TestIsRevenueSafeActionRejectsUnknownProvenance(t *testing.T) {
	m := capabilities.ActionModule{Name: "something_else", Provenance: "github.com/someone/else"}
	assert.False(t, isRevenueSafeAction(m))
}

func TestIsRevenueSafeActionRejectsBlankProvenance(t *testing.T) {
	m := capabilities.ActionModule{Name: "untagged"}
	assert.False(t, isRevenueSafeAction(m))
}

func TestMonetizerActionFilterExcludesMutateCodeRegardlessOfProvenance(t *testing.T) {
	registry := capabilities.NewRegistry()
	require.NoError(t, registry.RegisterBuiltin(mutation.Module()))
	for _, m := range builtinPlannerActions() {
		require.NoError(t, registry.RegisterBuiltin(m))
	}

	cfg := &config.Config{}
	filtered, err := monetizerActionFilter(registry, cfg)
	require.NoError(t, err)

	_, ok := filtered.Get("mutate_code")
	assert.False(t, ok)
	_, ok = filtered.Get("clarify_goal")
	assert.True(t, ok)
	assert.Len(t, filtered.Names(), 6)
}

func TestHashedPayloadAttachesStablePayloadHash(t *testing.T) {
	payload := map[string]interface{}{"goal": "ship it", "stage": "start"}
	hashed, err := hashedPayload(payload)
	require.NoError(t, err)
	require.Contains(t, hashed, "payload_hash")
	assert.Equal(t, "ship it", hashed["goal"])

	again, err := hashedPayload(payload)
	require.NoError(t, err)
	assert.Equal(t, hashed["payload_hash"], again["payload_hash"])
}

func TestRegisterBuiltinArchetypesRegistersMonetizer(t *testing.T) {
	RegisterBuiltinArchetypes()
	policy, ok := GetArchetype("monetizer")
	require.True(t, ok)
	assert.True(t, policy.RequireLedger)
	assert.NotNil(t, policy.ActionFilter)
}
