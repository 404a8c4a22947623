// Package config implements the Config & Freeze Controller: environment
// loading under the ADAAD6_ prefix, HMAC-SHA256 signature verification over
// the canonical env payload, and the freeze semantics that make a bad or
// unsigned config fail safe rather than silently run with defaults.
package config

// MutationPolicy enumerates the three mutation-policy levels a config may
// carry. EVOLUTIONARY is required for autonomous mutation and
// auto-promotion; SANDBOXED permits mutation only under an isolated worker
// without auto-promotion; LOCKED forbids mutation entirely.
type MutationPolicy string

const (
	MutationLocked      MutationPolicy = "locked"
	MutationSandboxed   MutationPolicy = "sandboxed"
	MutationEvolutionary MutationPolicy = "evolutionary"
)

// ResourceTier enumerates the deployment tiers the resource_scaling table is
// keyed by.
type ResourceTier string

const (
	TierMobile ResourceTier = "mobile"
	TierEdge   ResourceTier = "edge"
	TierServer ResourceTier = "server"
)

// Mode distinguishes dev mode (where a signing key may be read directly from
// the environment) from prod mode (where a non-env KeyProvider is
// mandatory).
type Mode string

const (
	ModeDev  Mode = "dev"
	ModeProd Mode = "prod"
)

// FreezeReason enumerates why a config was forced into its frozen state.
// An empty FreezeReason means the config loaded cleanly.
type FreezeReason string

const (
	FreezeNone                          FreezeReason = ""
	FreezeConfigSchemaVersionMismatch   FreezeReason = "CONFIG_SCHEMA_VERSION_MISMATCH"
	FreezeConfigSigInvalid             FreezeReason = "CONFIG_SIG_INVALID"
	FreezeConfigSigKeyUnavailable       FreezeReason = "CONFIG_SIG_KEY_UNAVAILABLE"
	FreezeConfigSigKeyProviderRequired  FreezeReason = "CONFIG_SIG_KEY_PROVIDER_REQUIRED"
	FreezeReadinessGateSignatureMissing FreezeReason = "READINESS_GATE_SIGNATURE_MISSING"
	FreezeReadinessGateSignatureInvalid FreezeReason = "READINESS_GATE_SIGNATURE_INVALID"
	FreezeEmergencyHalt                 FreezeReason = "EMERGENCY_HALT"
)

// CompiledSchemaVersion is the schema version this binary implements.
// ADAAD6_CONFIG_SCHEMA_VERSION must match it exactly or the config freezes.
const CompiledSchemaVersion = "1"

// ResourceScaling is the fixed multiplier table applied to
// planner_max_seconds. Mobile work is slower, not shorter, hence the
// multiplier rather than a divisor.
var ResourceScaling = map[ResourceTier]float64{
	TierMobile: 2.5,
	TierEdge:   1.5,
	TierServer: 1.0,
}

const (
	plannerMaxSecondsFloor = 0.01
	plannerMaxSecondsCeil  = 300.0
)

// Config is the fully-resolved, immutable snapshot of the kernel's
// configuration. Values here are the *effective* values: when the config is
// frozen, the frozen overrides (EmergencyHalt, MutationPolicy=LOCKED,
// LedgerReadonly, AgentsEnabled=false, the capped planner budget) have
// already been applied. Raw, the as-loaded values before any freeze
// override, are retained for diagnostics.
type Config struct {
	Version             string
	Mode                Mode
	ConfigSchemaVersion string
	Home                string
	ActionsDir          string
	LogPath             string
	LogSchemaVersion    string
	MutationPolicy      MutationPolicy
	ReadinessGateSig    string
	PlannerMaxSteps     int
	PlannerMaxSeconds   float64
	ResourceTier        ResourceTier
	LedgerEnabled       bool
	LedgerDir           string
	LedgerFilename      string
	LedgerSchemaVersion string
	LedgerReadonly      bool
	AgentsEnabled       bool
	EmergencyHalt       bool
	ConfigSigRequired   bool
	ConfigSigAlg        string
	ConfigSig           string

	FreezeReason FreezeReason

	// Raw carries the values as parsed from the environment, before any
	// freeze override was applied.
	Raw RawConfig
}

// RawConfig is the as-loaded configuration, prior to freeze overrides.
type RawConfig struct {
	MutationPolicy    MutationPolicy
	PlannerMaxSteps   int
	PlannerMaxSeconds float64
	LedgerReadonly    bool
	AgentsEnabled     bool
}

// Frozen reports whether this config is in a freeze state (equivalently,
// FreezeReason != FreezeNone).
func (c *Config) Frozen() bool {
	return c.FreezeReason != FreezeNone
}

// Validate enforces the structural invariants spec demands at load time:
// planner budgets must be positive, and a ledger that is enabled must name
// both a directory and a filename.
func (c *Config) Validate() error {
	if c.PlannerMaxSteps <= 0 {
		return &LoadError{Field: "planner_max_steps", Msg: "must be > 0"}
	}
	if c.PlannerMaxSeconds <= 0 {
		return &LoadError{Field: "planner_max_seconds", Msg: "must be > 0"}
	}
	if c.LedgerEnabled && c.LedgerDir == "" {
		return &LoadError{Field: "ledger_dir", Msg: "must be set when ledger is enabled"}
	}
	if c.LedgerEnabled && c.LedgerFilename == "" {
		return &LoadError{Field: "ledger_filename", Msg: "must be set when ledger is enabled"}
	}
	return nil
}

// LoadError reports a malformed environment value or an invalid sandboxed
// path; these are hard load-time failures, distinct from the soft freeze
// path a bad signature takes.
type LoadError struct {
	Field string
	Msg   string
}

func (e *LoadError) Error() string {
	return "config: " + e.Field + ": " + e.Msg
}
