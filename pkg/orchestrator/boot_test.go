package orchestrator

import (
	"testing"

	"github.com/dreezy-6/adaad6/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bootTestConfig(t *testing.T, overrides map[string]string) *config.Config {
	t.Helper()
	home := t.TempDir()
	env := map[string]string{
		"ADAAD6_MODE":            "dev",
		"ADAAD6_HOME":            home,
		"ADAAD6_ACTIONS_DIR":     "actions",
		"ADAAD6_LOG_PATH":        "adaad.log",
		"ADAAD6_MUTATION_POLICY": "sandboxed",
		"ADAAD6_RESOURCE_TIER":   "server",
		"ADAAD6_LEDGER_ENABLED":  "false",
	}
	for k, v := range overrides {
		env[k] = v
	}
	cfg, err := config.Load(config.Options{Env: env})
	require.NoError(t, err)
	return cfg
}

func TestBootSequenceOKWhenHomeExistsAndLedgerDisabled(t *testing.T) {
	cfg := bootTestConfig(t, nil)
	report, err := BootSequence(cfg)
	require.NoError(t, err)
	assert.True(t, report.OK)
	assert.True(t, report.Checks.Structure)
	assert.True(t, report.Checks.Ledger)
	assert.False(t, report.Ledger.Enabled)
}

func TestBootSequenceProvisionsLedgerWhenEnabled(t *testing.T) {
	cfg := bootTestConfig(t, map[string]string{
		"ADAAD6_LEDGER_ENABLED":  "true",
		"ADAAD6_LEDGER_DIR":      "ledger",
		"ADAAD6_LEDGER_FILENAME": "events.jsonl",
	})
	report, err := BootSequence(cfg)
	require.NoError(t, err)
	assert.True(t, report.OK)
	assert.True(t, report.Ledger.OK)
	assert.NotEmpty(t, report.Ledger.Path)
}

func TestBootSequenceFailsWhenHomeMissing(t *testing.T) {
	cfg := bootTestConfig(t, nil)
	cfg.Home = cfg.Home + "/does-not-exist"
	report, err := BootSequence(cfg)
	require.NoError(t, err)
	assert.False(t, report.Checks.Structure)
	assert.False(t, report.OK)
}

func TestBootSequenceMutationEnabledReflectsPolicy(t *testing.T) {
	locked := bootTestConfig(t, map[string]string{"ADAAD6_MUTATION_POLICY": "locked"})
	report, err := BootSequence(locked)
	require.NoError(t, err)
	assert.False(t, report.MutationEnabled)

	sandboxed := bootTestConfig(t, map[string]string{"ADAAD6_MUTATION_POLICY": "sandboxed"})
	report, err = BootSequence(sandboxed)
	require.NoError(t, err)
	assert.True(t, report.MutationEnabled)
}

func TestBootReportToMapRendersNilPathWhenLedgerDisabled(t *testing.T) {
	cfg := bootTestConfig(t, nil)
	report, err := BootSequence(cfg)
	require.NoError(t, err)
	m := report.ToMap()
	ledger := m["ledger"].(map[string]interface{})
	assert.Nil(t, ledger["path"])
	assert.Nil(t, ledger["error"])
}
