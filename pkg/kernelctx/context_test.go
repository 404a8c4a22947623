package kernelctx

import (
	"testing"

	"github.com/dreezy-6/adaad6/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load(config.Options{Env: map[string]string{
		"ADAAD6_MODE":            "dev",
		"ADAAD6_HOME":            ".",
		"ADAAD6_ACTIONS_DIR":     "actions",
		"ADAAD6_LOG_PATH":        "adaad.log",
		"ADAAD6_MUTATION_POLICY": "locked",
		"ADAAD6_RESOURCE_TIER":   "server",
		"ADAAD6_LEDGER_ENABLED":  "true",
	}})
	require.NoError(t, err)
	return cfg
}

func TestBuildProducesDeterministicConfigSnapshotHash(t *testing.T) {
	cfg := testConfig(t)
	kc1, err := Build(cfg, Options{RunID: "run-1"})
	require.NoError(t, err)
	kc2, err := Build(cfg, Options{RunID: "run-2"})
	require.NoError(t, err)

	assert.Equal(t, kc1.Config.Hash, kc2.Config.Hash)
	assert.NotEqual(t, kc1.RunID, kc2.RunID)
}

func TestWorkspacePathsIncludesLedgerWhenEnabled(t *testing.T) {
	cfg := testConfig(t)
	wp := WorkspacePathsFromConfig(cfg)
	assert.True(t, wp.HasLedger)
	assert.NotEmpty(t, wp.LedgerPath)
}

func TestRegisterArtifactIsImmutable(t *testing.T) {
	cfg := testConfig(t)
	kc, err := Build(cfg, Options{RunID: "run-1"})
	require.NoError(t, err)

	updated, err := kc.RegisterArtifact("log", "file:///tmp/log")
	require.NoError(t, err)

	assert.Empty(t, kc.Artifacts.ToMap())
	assert.Equal(t, "file:///tmp/log", updated.Artifacts.ToMap()["log"])
}

func TestRegisterArtifactRejectsDuplicateName(t *testing.T) {
	cfg := testConfig(t)
	kc, err := Build(cfg, Options{RunID: "run-1"})
	require.NoError(t, err)

	updated, err := kc.RegisterArtifact("log", "file:///tmp/log")
	require.NoError(t, err)

	_, err = updated.RegisterArtifact("log", "file:///tmp/other")
	assert.Error(t, err)
}

func TestRegisterArtifactRejectsBlankNameOrURI(t *testing.T) {
	cfg := testConfig(t)
	kc, err := Build(cfg, Options{RunID: "run-1"})
	require.NoError(t, err)

	_, err = kc.RegisterArtifact("", "file:///tmp/log")
	assert.Error(t, err)

	_, err = kc.RegisterArtifact("log", "")
	assert.Error(t, err)
}

func TestToMapRendersNilLedgerPathWhenDisabled(t *testing.T) {
	cfg, err := config.Load(config.Options{Env: map[string]string{
		"ADAAD6_MODE":            "dev",
		"ADAAD6_HOME":            ".",
		"ADAAD6_ACTIONS_DIR":     "actions",
		"ADAAD6_LOG_PATH":        "adaad.log",
		"ADAAD6_MUTATION_POLICY": "locked",
		"ADAAD6_RESOURCE_TIER":   "server",
	}})
	require.NoError(t, err)

	kc, err := Build(cfg, Options{RunID: "run-1"})
	require.NoError(t, err)

	m := kc.ToMap()
	workspace := m["workspace"].(map[string]interface{})
	assert.Nil(t, workspace["ledger_path"])
}
