package orchestrator

import (
	"os"

	"github.com/dreezy-6/adaad6/pkg/config"
	"github.com/dreezy-6/adaad6/pkg/ledger"
)

// BootLimits mirrors the planner budget a run is bound by.
type BootLimits struct {
	PlannerMaxSteps   int
	PlannerMaxSeconds float64
}

// BootChecks records the pass/fail of each boot-time probe.
type BootChecks struct {
	Structure bool
	Config    bool
	Ledger    bool
}

// BootLedgerStatus is the ledger-specific detail of a boot run.
type BootLedgerStatus struct {
	Enabled bool
	OK      bool
	Path    string
	Error   string
}

// BootReport is the full outcome of BootSequence, recorded verbatim on a
// failed orchestration result so a caller can see exactly which probe
// failed.
type BootReport struct {
	OK              bool
	MutationEnabled bool
	Limits          BootLimits
	Checks          BootChecks
	Ledger          BootLedgerStatus
	BuildVersion    string
}

// ToMap renders the report the way it would appear in a ledger payload or
// external diagnostics surface.
func (b BootReport) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"ok":               b.OK,
		"mutation_enabled": b.MutationEnabled,
		"limits": map[string]interface{}{
			"planner_max_steps":   b.Limits.PlannerMaxSteps,
			"planner_max_seconds": b.Limits.PlannerMaxSeconds,
		},
		"checks": map[string]interface{}{
			"structure": b.Checks.Structure,
			"config":    b.Checks.Config,
			"ledger":    b.Checks.Ledger,
		},
		"ledger": map[string]interface{}{
			"enabled": b.Ledger.Enabled,
			"ok":      b.Ledger.OK,
			"path":    nilableString(b.Ledger.Path),
			"error":   nilableString(b.Ledger.Error),
		},
		"build": map[string]interface{}{"version": b.BuildVersion},
	}
}

func nilableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// checkStructure is the Go analogue of the reference's health.check_structure:
// the original checks that the installed package's own subdirectories
// exist, a check with no meaning for a statically-linked Go binary. The
// operationally equivalent check here is that the kernel's configured home
// directory — the root every other workspace path is sandboxed under — is
// itself present and a directory.
func checkStructure(cfg *config.Config) bool {
	info, err := os.Stat(cfg.Home)
	return err == nil && info.IsDir()
}

// BootSequence runs the boot-time probes — structure, config, ledger — and
// reports their outcome without ever panicking: a ledger that fails to
// provision is recorded as a failed probe, not a propagated error, exactly
// as the reference's boot_sequence catches the ensure_ledger exception.
// cfg is assumed already loaded (and, if applicable, already frozen) via
// config.Load; the reference's separate enforce_readiness_gate step is
// folded into config.Load itself in this port (see DESIGN.md).
func BootSequence(cfg *config.Config) (BootReport, error) {
	if err := cfg.Validate(); err != nil {
		return BootReport{}, err
	}

	structureOK := checkStructure(cfg)

	ledgerOK := true
	var ledgerPath, ledgerError string
	if cfg.LedgerEnabled {
		led := ledger.New(ledger.Config{
			Home:                cfg.Home,
			LedgerDir:           cfg.LedgerDir,
			LedgerFilename:      cfg.LedgerFilename,
			LedgerEnabled:       cfg.LedgerEnabled,
			LedgerReadonly:      cfg.LedgerReadonly,
			LedgerSchemaVersion: cfg.LedgerSchemaVersion,
		})
		if err := led.Ensure(); err != nil {
			ledgerOK = false
			ledgerError = err.Error()
		} else {
			ledgerPath = led.Path()
		}
	}

	return BootReport{
		OK:              structureOK && (ledgerOK || !cfg.LedgerEnabled),
		MutationEnabled: cfg.MutationPolicy != config.MutationLocked,
		Limits: BootLimits{
			PlannerMaxSteps:   cfg.PlannerMaxSteps,
			PlannerMaxSeconds: cfg.PlannerMaxSeconds,
		},
		Checks: BootChecks{
			Structure: structureOK,
			Config:    true,
			Ledger:    ledgerOK,
		},
		Ledger: BootLedgerStatus{
			Enabled: cfg.LedgerEnabled,
			OK:      ledgerOK,
			Path:    ledgerPath,
			Error:   ledgerError,
		},
		BuildVersion: cfg.Version,
	}, nil
}
