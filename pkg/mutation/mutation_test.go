package mutation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dreezy-6/adaad6/pkg/config"
	"github.com/dreezy-6/adaad6/pkg/evidence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T, home string, overrides map[string]string) *config.Config {
	t.Helper()
	env := map[string]string{
		"ADAAD6_MODE":                "dev",
		"ADAAD6_HOME":                home,
		"ADAAD6_ACTIONS_DIR":         "actions",
		"ADAAD6_LOG_PATH":            "adaad.log",
		"ADAAD6_MUTATION_POLICY":     "sandboxed",
		"ADAAD6_RESOURCE_TIER":       "server",
		"ADAAD6_LEDGER_ENABLED":      "false",
		"ADAAD6_PLANNER_MAX_SECONDS": "10",
	}
	for k, v := range overrides {
		env[k] = v
	}
	cfg, err := config.Load(config.Options{Env: env})
	require.NoError(t, err)
	return cfg
}

const validProgram = "package main\n\nfunc main() {\n\t;\n\tvar x int\n\t_ = x\n}\n"
const validProgramNoPass = "package main\n\nfunc main() {\n\tvar x int\n\t_ = x\n}\n"
const disallowedImportProgram = "package main\n\nimport \"net/http\"\n\nfunc main() {\n\t_ = http.StatusOK\n}\n"
const busyLoopProgram = "package main\n\nfunc main() {\n\tfor {\n\t}\n}\n"

func TestValidateSkipsWhenMutationPolicyLocked(t *testing.T) {
	cfg := testConfig(t, t.TempDir(), map[string]string{"ADAAD6_MUTATION_POLICY": "locked"})
	validated, err := validate(map[string]interface{}{"src": validProgram}, cfg)
	require.NoError(t, err)
	assert.Equal(t, "mutation_policy_locked", validated["skip_reason"])
}

func TestValidateSkipsWhenResourceTierMobile(t *testing.T) {
	cfg := testConfig(t, t.TempDir(), map[string]string{"ADAAD6_RESOURCE_TIER": "mobile", "ADAAD6_MUTATION_POLICY": "evolutionary"})
	validated, err := validate(map[string]interface{}{"src": validProgram}, cfg)
	require.NoError(t, err)
	assert.Equal(t, "resource_tier=mobile", validated["skip_reason"])
}

func TestValidateSkipsWhenLineageGateFails(t *testing.T) {
	cfg := testConfig(t, t.TempDir(), map[string]string{"ADAAD6_MUTATION_POLICY": "evolutionary"})
	validated, err := validate(map[string]interface{}{"src": validProgram, "lineage_hash": "unknown-hash"}, cfg)
	require.NoError(t, err)
	assert.Equal(t, evidence.ReasonEvidenceStoreMissing, validated["skip_reason"])
}

func TestValidateRejectsEmptySource(t *testing.T) {
	cfg := testConfig(t, t.TempDir(), nil)
	_, err := validate(map[string]interface{}{"src": "   \n\n"}, cfg)
	require.Error(t, err)
}

func TestValidateRejectsNonPositiveTimeout(t *testing.T) {
	cfg := testConfig(t, t.TempDir(), nil)
	_, err := validate(map[string]interface{}{"src": validProgram, "timeout": -1.0}, cfg)
	require.Error(t, err)
}

func TestDropPassRemovesTopLevelEmptyStatement(t *testing.T) {
	mutated, kind, err := dropPass(validProgram)
	require.NoError(t, err)
	require.NotNil(t, kind)
	assert.Equal(t, mutationKindDropPass, *kind)
	assert.NotContains(t, mutated, ";\n")
}

func TestDropPassReportsNoChangeWhenNothingToStrip(t *testing.T) {
	_, kind, err := dropPass(validProgramNoPass)
	require.NoError(t, err)
	assert.Nil(t, kind)
}

func TestExtractImportsReturnsRootPackageNames(t *testing.T) {
	imports, err := extractImports(disallowedImportProgram)
	require.NoError(t, err)
	assert.Contains(t, imports, "net")
	assert.False(t, allImportsAllowed(imports))
}

func TestRunSkipsImmediatelyWhenSkipReasonPresent(t *testing.T) {
	result, err := run(map[string]interface{}{"src": validProgram, "skip_reason": "mutation_policy_locked"})
	require.NoError(t, err)
	assert.True(t, result["skipped"].(bool))
	assert.Equal(t, "mutation_policy_locked", result["reason"])
	assert.False(t, result["ast_ok"].(bool))
}

func TestRunRejectsDisallowedImportBeforeSandboxing(t *testing.T) {
	cfg := testConfig(t, t.TempDir(), nil)
	result, err := run(map[string]interface{}{
		"src":         disallowedImportProgram,
		"timeout":     1.0,
		"cfg":         cfg,
		"skip_reason": "",
	})
	require.NoError(t, err)
	assert.False(t, result["allowlist_ok"].(bool))
	assert.Equal(t, "import_not_allowed", result["reason"])
	assert.True(t, result["ast_ok"].(bool))
}

func TestRunExecutesCleanMutationInSandbox(t *testing.T) {
	cfg := testConfig(t, t.TempDir(), nil)
	result, err := run(map[string]interface{}{
		"src":         validProgram,
		"timeout":     10.0,
		"cfg":         cfg,
		"skip_reason": "",
	})
	require.NoError(t, err)
	assert.True(t, result["allowlist_ok"].(bool))
	assert.Equal(t, mutationKindDropPass, result["mutation_kind"])
	assert.True(t, result["sandbox_ok"].(bool))
	assert.Equal(t, 1.0, result["score"])
}

func TestRunReportsTimeoutOnImpossiblyShortBudget(t *testing.T) {
	cfg := testConfig(t, t.TempDir(), nil)
	result, err := run(map[string]interface{}{
		"src":         busyLoopProgram,
		"timeout":     0.001,
		"cfg":         cfg,
		"skip_reason": "",
	})
	require.NoError(t, err)
	assert.True(t, result["timeout"].(bool))
	assert.Equal(t, "timeout", result["reason"])
}

func TestRunWithoutDoctorReportRequiresDoctorGate(t *testing.T) {
	home := t.TempDir()
	cfg := testConfig(t, home, map[string]string{"ADAAD6_MUTATION_POLICY": "evolutionary", "ADAAD6_RESOURCE_TIER": "server"})
	result, err := run(map[string]interface{}{
		"src":         validProgram,
		"timeout":     10.0,
		"cfg":         cfg,
		"skip_reason": "",
	})
	require.NoError(t, err)
	require.True(t, result["sandbox_ok"].(bool))
	assert.False(t, result["auto_promote"].(bool))
	assert.Equal(t, "requires_doctor_gate", result["reason"])
}

func TestRunAutoPromotesWhenDoctorGatePasses(t *testing.T) {
	home := t.TempDir()
	doctorDir := filepath.Join(home, ".adaad", "doctor")
	require.NoError(t, os.MkdirAll(doctorDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(doctorDir, "latest.json"), []byte(`{"status":"PASS"}`), 0o644))

	cfg := testConfig(t, home, map[string]string{"ADAAD6_MUTATION_POLICY": "evolutionary", "ADAAD6_RESOURCE_TIER": "server"})
	result, err := run(map[string]interface{}{
		"src":         validProgram,
		"timeout":     10.0,
		"cfg":         cfg,
		"skip_reason": "",
	})
	require.NoError(t, err)
	require.True(t, result["sandbox_ok"].(bool))
	assert.True(t, result["auto_promote"].(bool))
	assert.Nil(t, result["reason"])
}

func TestPostcheckRejectsMissingFields(t *testing.T) {
	cfg := testConfig(t, t.TempDir(), nil)
	_, err := postcheck(map[string]interface{}{"mutated_src": "x"}, cfg)
	require.Error(t, err)
}

func TestPostcheckRequiresSkipOnMobileTier(t *testing.T) {
	cfg := testConfig(t, t.TempDir(), map[string]string{"ADAAD6_RESOURCE_TIER": "mobile", "ADAAD6_MUTATION_POLICY": "sandboxed"})
	result := MutationReport{Skipped: false}.ToMap()
	_, err := postcheck(result, cfg)
	require.Error(t, err)
}

func TestPostcheckRequiresSkipWhenLocked(t *testing.T) {
	cfg := testConfig(t, t.TempDir(), map[string]string{"ADAAD6_MUTATION_POLICY": "locked"})
	result := MutationReport{Skipped: false}.ToMap()
	_, err := postcheck(result, cfg)
	require.Error(t, err)
}

func TestPostcheckAcceptsValidSkippedResult(t *testing.T) {
	cfg := testConfig(t, t.TempDir(), map[string]string{"ADAAD6_MUTATION_POLICY": "locked"})
	reason := "mutation_policy_locked"
	result := MutationReport{Skipped: true, Reason: &reason}.ToMap()
	out, err := postcheck(result, cfg)
	require.NoError(t, err)
	assert.True(t, out["skipped"].(bool))
}

func TestModuleShapeIsValid(t *testing.T) {
	m := Module()
	assert.Equal(t, "mutate_code", m.Name)
	assert.NotNil(t, m.Validate)
	assert.NotNil(t, m.Run)
	assert.NotNil(t, m.Postcheck)
}
