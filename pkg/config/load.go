package config

import (
	"strconv"
	"strings"

	"github.com/dreezy-6/adaad6/pkg/crypto"
)

// recognizedKeys is the closed set of ADAAD6_* suffixes this loader
// understands. Any ADAAD6_*-prefixed environment key outside this set is a
// load-time error: overlapping or stale config surfaces are exactly the
// ambiguity a closed key set guards against.
var recognizedKeys = map[string]bool{
	"VERSION":               true,
	"MODE":                  true,
	"CONFIG_SCHEMA_VERSION": true,
	"HOME":                  true,
	"ACTIONS_DIR":           true,
	"LOG_PATH":              true,
	"LOG_SCHEMA_VERSION":    true,
	"MUTATION_POLICY":       true,
	"READINESS_GATE_SIG":    true,
	"PLANNER_MAX_STEPS":     true,
	"PLANNER_MAX_SECONDS":   true,
	"RESOURCE_TIER":         true,
	"LEDGER_ENABLED":        true,
	"LEDGER_DIR":            true,
	"LEDGER_FILE":           true,
	"LEDGER_FILENAME":       true,
	"LEDGER_SCHEMA_VERSION": true,
	"LEDGER_READONLY":       true,
	"AGENTS_ENABLED":        true,
	"EMERGENCY_HALT":        true,
	"CONFIG_SIG_REQUIRED":   true,
	"CONFIG_SIG_ALG":        true,
	"CONFIG_SIG":            true,
	"CONFIG_SIG_KEY":        true,
}

// defaults mirror the canonical source's AdaadConfig field defaults, widened
// to the full field set this loader recognizes.
var defaults = map[string]string{
	"VERSION":               "0.0.0",
	"MODE":                  "dev",
	"CONFIG_SCHEMA_VERSION": CompiledSchemaVersion,
	"HOME":                  ".",
	"ACTIONS_DIR":           "actions",
	"LOG_PATH":              "adaad.log",
	"LOG_SCHEMA_VERSION":    "1",
	"MUTATION_POLICY":       "locked",
	"READINESS_GATE_SIG":    "",
	"PLANNER_MAX_STEPS":     "25",
	"PLANNER_MAX_SECONDS":   "2.0",
	"RESOURCE_TIER":         "server",
	"LEDGER_ENABLED":        "false",
	"LEDGER_DIR":            ".adaad/ledger",
	"LEDGER_FILENAME":       "events.jsonl",
	"LEDGER_SCHEMA_VERSION": "1",
	"LEDGER_READONLY":       "false",
	"AGENTS_ENABLED":        "true",
	"EMERGENCY_HALT":        "false",
	"CONFIG_SIG_REQUIRED":   "false",
	"CONFIG_SIG_ALG":        "HMAC-SHA256",
	"CONFIG_SIG":            "",
}

// Options configures Load.
type Options struct {
	// Env is the source environment mapping; callers pass os.Environ()
	// decoded into a map, or a synthetic map in tests.
	Env map[string]string
	// KeyProvider resolves the HMAC key used to verify ADAAD6_CONFIG_SIG
	// and ADAAD6_READINESS_GATE_SIG. In dev mode a nil KeyProvider falls
	// back to reading ADAAD6_CONFIG_SIG_KEY directly from Env. In prod
	// mode a nil KeyProvider is itself a freeze condition
	// (CONFIG_SIG_KEY_PROVIDER_REQUIRED).
	KeyProvider crypto.KeyProvider
}

func getEnv(env map[string]string, suffix string) string {
	if v, ok := env[envPrefix+suffix]; ok {
		return v
	}
	return defaults[suffix]
}

func coerceBool(value, field string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	default:
		return false, &LoadError{Field: field, Msg: "invalid boolean value: " + value}
	}
}

func coerceInt(value, field string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, &LoadError{Field: field, Msg: "invalid integer value: " + value}
	}
	return n, nil
}

func coerceFloat(value, field string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0, &LoadError{Field: field, Msg: "invalid float value: " + value}
	}
	return f, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// resolveLedgerFilename implements the LEDGER_FILE / LEDGER_FILENAME alias:
// LEDGER_FILENAME wins when both are set.
func resolveLedgerFilename(env map[string]string) string {
	file, hasFile := env[envPrefix+"LEDGER_FILE"]
	filename, hasFilename := env[envPrefix+"LEDGER_FILENAME"]
	switch {
	case hasFilename:
		return filename
	case hasFile:
		return file
	default:
		return defaults["LEDGER_FILENAME"]
	}
}

// Load parses env under the ADAAD6_ prefix, verifies the config signature,
// and returns a fully-resolved Config. Malformed values or sandboxed-path
// violations are hard load errors (*LoadError); a bad signature, a schema
// mismatch, or a prod-mode config with no real key provider instead yield a
// successfully-returned Config that is frozen (Config.Frozen() == true,
// Config.FreezeReason set accordingly) per the kernel's fail-safe contract.
func Load(opts Options) (*Config, error) {
	env := opts.Env

	if err := rejectUnknownKeys(env); err != nil {
		return nil, err
	}

	mode := Mode(strings.ToLower(getEnv(env, "MODE")))
	if mode != ModeDev && mode != ModeProd {
		return nil, &LoadError{Field: "mode", Msg: "must be dev or prod, got " + string(mode)}
	}

	mutationPolicy := MutationPolicy(strings.ToLower(getEnv(env, "MUTATION_POLICY")))
	switch mutationPolicy {
	case MutationLocked, MutationSandboxed, MutationEvolutionary:
	default:
		return nil, &LoadError{Field: "mutation_policy", Msg: "invalid value: " + string(mutationPolicy)}
	}

	resourceTier := ResourceTier(strings.ToLower(getEnv(env, "RESOURCE_TIER")))
	if _, ok := ResourceScaling[resourceTier]; !ok {
		return nil, &LoadError{Field: "resource_tier", Msg: "invalid value: " + string(resourceTier)}
	}

	plannerMaxSteps, err := coerceInt(getEnv(env, "PLANNER_MAX_STEPS"), "planner_max_steps")
	if err != nil {
		return nil, err
	}
	plannerMaxSecondsRaw, err := coerceFloat(getEnv(env, "PLANNER_MAX_SECONDS"), "planner_max_seconds")
	if err != nil {
		return nil, err
	}
	plannerMaxSeconds := clamp(plannerMaxSecondsRaw*ResourceScaling[resourceTier], plannerMaxSecondsFloor, plannerMaxSecondsCeil)

	ledgerEnabled, err := coerceBool(getEnv(env, "LEDGER_ENABLED"), "ledger_enabled")
	if err != nil {
		return nil, err
	}
	ledgerReadonly, err := coerceBool(getEnv(env, "LEDGER_READONLY"), "ledger_readonly")
	if err != nil {
		return nil, err
	}
	agentsEnabled, err := coerceBool(getEnv(env, "AGENTS_ENABLED"), "agents_enabled")
	if err != nil {
		return nil, err
	}
	emergencyHalt, err := coerceBool(getEnv(env, "EMERGENCY_HALT"), "emergency_halt")
	if err != nil {
		return nil, err
	}
	configSigRequired, err := coerceBool(getEnv(env, "CONFIG_SIG_REQUIRED"), "config_sig_required")
	if err != nil {
		return nil, err
	}

	home := getEnv(env, "HOME")

	actionsDir, err := resolveUnderHome(home, getEnv(env, "ACTIONS_DIR"))
	if err != nil {
		return nil, err
	}
	logPath, err := resolveUnderHome(home, getEnv(env, "LOG_PATH"))
	if err != nil {
		return nil, err
	}
	ledgerFilename := resolveLedgerFilename(env)
	ledgerDir := getEnv(env, "LEDGER_DIR")
	if ledgerEnabled && strings.TrimSpace(ledgerFilename) != "" {
		if _, err := resolveUnderHome(home, ledgerDir+"/"+ledgerFilename); err != nil {
			return nil, err
		}
	}

	cfg := &Config{
		Version:             getEnv(env, "VERSION"),
		Mode:                mode,
		ConfigSchemaVersion: getEnv(env, "CONFIG_SCHEMA_VERSION"),
		Home:                home,
		ActionsDir:          actionsDir,
		LogPath:             logPath,
		LogSchemaVersion:    getEnv(env, "LOG_SCHEMA_VERSION"),
		MutationPolicy:      mutationPolicy,
		ReadinessGateSig:    getEnv(env, "READINESS_GATE_SIG"),
		PlannerMaxSteps:     plannerMaxSteps,
		PlannerMaxSeconds:   plannerMaxSeconds,
		ResourceTier:        resourceTier,
		LedgerEnabled:       ledgerEnabled,
		LedgerDir:           ledgerDir,
		LedgerFilename:      ledgerFilename,
		LedgerSchemaVersion: getEnv(env, "LEDGER_SCHEMA_VERSION"),
		LedgerReadonly:      ledgerReadonly,
		AgentsEnabled:       agentsEnabled,
		EmergencyHalt:       emergencyHalt,
		ConfigSigRequired:   configSigRequired,
		ConfigSigAlg:        getEnv(env, "CONFIG_SIG_ALG"),
		ConfigSig:           getEnv(env, "CONFIG_SIG"),
		Raw: RawConfig{
			MutationPolicy:    mutationPolicy,
			PlannerMaxSteps:   plannerMaxSteps,
			PlannerMaxSeconds: plannerMaxSeconds,
			LedgerReadonly:    ledgerReadonly,
			AgentsEnabled:     agentsEnabled,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	reason := evaluateFreeze(cfg, env, opts.KeyProvider)
	if reason != FreezeNone {
		applyFreeze(cfg, reason)
	}

	return cfg, nil
}

// rejectUnknownKeys scans env for ADAAD6_*-prefixed keys outside
// recognizedKeys and fails the load if any are found.
func rejectUnknownKeys(env map[string]string) error {
	for k := range env {
		if !strings.HasPrefix(k, envPrefix) {
			continue
		}
		suffix := strings.TrimPrefix(k, envPrefix)
		if !recognizedKeys[suffix] {
			return &LoadError{Field: k, Msg: "unrecognized ADAAD6_ environment key"}
		}
	}
	return nil
}

// applyFreeze forces the fixed freeze overrides onto cfg.
func applyFreeze(cfg *Config, reason FreezeReason) {
	cfg.FreezeReason = reason
	cfg.EmergencyHalt = true
	cfg.MutationPolicy = MutationLocked
	cfg.LedgerEnabled = true
	cfg.LedgerReadonly = true
	cfg.AgentsEnabled = false
	cfg.PlannerMaxSteps = 1
	cfg.PlannerMaxSeconds = 0.01
}
