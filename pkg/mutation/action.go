// Package mutation implements the Sandboxed Mutation Engine's mutate_code
// action: given source text, it applies a single named AST transform,
// enforces an import allowlist, runs the candidate in an isolated worker
// under a CPU/memory cap, and decides whether the result qualifies for
// auto-promotion. Every attempt that reaches run — skipped, rejected, or
// sandboxed — appends a mutation_attempt ledger event when the ledger is
// enabled and writable; an attempt whose source fails to parse does not.
package mutation

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dreezy-6/adaad6/pkg/capabilities"
	"github.com/dreezy-6/adaad6/pkg/config"
	"github.com/dreezy-6/adaad6/pkg/evidence"
	"github.com/dreezy-6/adaad6/pkg/kernel"
	"github.com/dreezy-6/adaad6/pkg/ledger"
)

const timeoutFloor = 0.01
const defaultTimeoutCeiling = 1.0

// Module returns the mutate_code action module, ready to register into the
// Action Registry.
func Module() capabilities.ActionModule {
	return capabilities.ActionModule{
		Name:       "mutate_code",
		Validate:   validate,
		Run:        run,
		Postcheck:  postcheck,
		Provenance: "github.com/dreezy-6/adaad6/pkg/mutation",
	}
}

func coerceSource(raw interface{}) (string, error) {
	s, ok := raw.(string)
	if !ok {
		return "", kernel.NewValidationError("mutate_code: src must be a string")
	}
	trimmed := strings.Trim(s, "\n")
	if strings.TrimSpace(trimmed) == "" {
		return "", kernel.NewValidationError("mutate_code: src must not be empty")
	}
	return trimmed + "\n", nil
}

func coerceTimeout(raw interface{}, cfg *config.Config) (float64, error) {
	if raw == nil {
		return math.Min(defaultTimeoutCeiling, cfg.PlannerMaxSeconds), nil
	}
	var timeout float64
	switch v := raw.(type) {
	case float64:
		timeout = v
	case int:
		timeout = float64(v)
	case string:
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, kernel.NewValidationError("mutate_code: timeout must be numeric")
		}
		timeout = parsed
	default:
		return 0, kernel.NewValidationError("mutate_code: timeout must be numeric")
	}
	if timeout <= 0 {
		return 0, kernel.NewValidationError("mutate_code: timeout must be positive")
	}
	// Never allow a runtime longer than the configured planner budget.
	ceiling := math.Max(timeoutFloor, cfg.PlannerMaxSeconds)
	return math.Min(timeout, ceiling), nil
}

func validate(params map[string]interface{}, cfg *config.Config) (map[string]interface{}, error) {
	src, err := coerceSource(params["src"])
	if err != nil {
		return nil, err
	}
	timeout, err := coerceTimeout(params["timeout"], cfg)
	if err != nil {
		return nil, err
	}

	store, _ := params["evidence_store"].(*evidence.Store)
	lineageHash, _ := params["lineage_hash"].(string)
	if lineageHash == "" {
		lineageHash = cfg.ReadinessGateSig
	}

	var skipReason string
	switch {
	case cfg.MutationPolicy == config.MutationLocked:
		skipReason = "mutation_policy_locked"
	case cfg.ResourceTier == config.TierMobile:
		skipReason = "resource_tier=mobile"
	}
	gate := evidence.CryovantLineageGate(store, lineageHash)
	if skipReason == "" && !gate.OK {
		skipReason = gate.Reason
		if skipReason == "" {
			skipReason = "cryovant_lineage_blocked"
		}
	}

	return map[string]interface{}{
		"src":         src,
		"timeout":     timeout,
		"cfg":         cfg,
		"skip_reason": skipReason,
	}, nil
}

func run(validated map[string]interface{}) (map[string]interface{}, error) {
	skipReason, _ := validated["skip_reason"].(string)
	src, _ := validated["src"].(string)

	if skipReason != "" {
		reason := skipReason
		report := MutationReport{MutatedSrc: src, Skipped: true, Reason: &reason}
		if cfg, ok := validated["cfg"].(*config.Config); ok {
			report.LedgerEvent = recordLedger(cfg, report.ToMap())
		}
		return report.ToMap(), nil
	}

	timeout := validated["timeout"].(float64)
	cfg := validated["cfg"].(*config.Config)

	mutatedSrc, kind, err := dropPass(src)
	if err != nil {
		return nil, err
	}
	if err := roundTripParse(mutatedSrc); err != nil {
		return nil, err
	}

	imports, err := extractImports(mutatedSrc)
	if err != nil {
		return nil, err
	}
	allowlistOk := allImportsAllowed(imports)
	if !allowlistOk {
		reason := "import_not_allowed"
		report := MutationReport{
			MutatedSrc:   mutatedSrc,
			ASTOk:        true,
			AllowlistOk:  false,
			Reason:       &reason,
			MutationKind: kind,
		}
		report.LedgerEvent = recordLedger(cfg, report.ToMap())
		return report.ToMap(), nil
	}

	result := ProcessRunner{}.Run(context.Background(), mutatedSrc, time.Duration(timeout*float64(time.Second)))
	sandboxOk := result.OK
	score := 0.0
	if sandboxOk {
		score = 1.0
	}

	doctorOk, doctorReason := doctorGate(cfg)
	canPromote := sandboxOk && allowlistOk &&
		cfg.MutationPolicy == config.MutationEvolutionary &&
		cfg.ResourceTier == config.TierServer
	autoPromote := canPromote && doctorOk

	var gateReason *string
	switch {
	case canPromote && !doctorOk:
		gateReason = strPtr("requires_doctor_gate")
	case result.StartFailed:
		gateReason = strPtr("sandbox_start_failed")
	case result.TimedOut:
		gateReason = strPtr("timeout")
	case !sandboxOk && result.Error != "":
		gateReason = strPtr("sandbox_error")
	}

	ledgerPayload := map[string]interface{}{
		"policy":        string(cfg.MutationPolicy),
		"resource_tier": string(cfg.ResourceTier),
		"ast_ok":        true,
		"allowlist_ok":  allowlistOk,
		"sandbox_ok":    sandboxOk,
		"timeout":       result.TimedOut,
		"score":         score,
		"auto_promote":  autoPromote,
		"doctor_gate":   doctorOk,
		"doctor_reason": nilableString(doctorReason),
		"mutation_kind": nilableStringPtr(kind),
		"resource_caps": result.ResourceCaps,
		"sandbox_error": result.Error,
		"exitcode":      nilableIntPtr(result.ExitCode),
	}
	ledgerEvent := recordLedger(cfg, ledgerPayload)

	return MutationReport{
		MutatedSrc:   mutatedSrc,
		Score:        score,
		ASTOk:        true,
		SandboxOk:    sandboxOk,
		Timeout:      result.TimedOut,
		AllowlistOk:  allowlistOk,
		Skipped:      false,
		Reason:       gateReason,
		LedgerEvent:  ledgerEvent,
		MutationKind: kind,
		AutoPromote:  autoPromote,
		DoctorGateOk: doctorOk,
		ResourceCaps: result.ResourceCaps,
	}.ToMap(), nil
}

func postcheck(result map[string]interface{}, cfg *config.Config) (map[string]interface{}, error) {
	required := []string{"mutated_src", "score", "ast_ok", "sandbox_ok", "timeout", "allowlist_ok", "skipped"}
	var missing []string
	for _, field := range required {
		if _, ok := result[field]; !ok {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, kernel.NewNotFoundError("mutate_code: result missing fields: %s", strings.Join(missing, ", "))
	}
	skipped, _ := result["skipped"].(bool)
	if cfg.ResourceTier == config.TierMobile && !skipped {
		return nil, kernel.NewValidationError("mutate_code: mobile tier must skip mutation")
	}
	if cfg.MutationPolicy == config.MutationLocked && !skipped {
		return nil, kernel.NewValidationError("mutate_code: mutation_policy locked must skip mutation")
	}
	return result, nil
}

// doctorGate reads home/.adaad/doctor/latest.json and reports whether its
// status is "pass" (case-insensitively); auto-promotion requires this gate
// in addition to sandbox success.
func doctorGate(cfg *config.Config) (bool, string) {
	home := cfg.Home
	if home == "" {
		if h, err := os.UserHomeDir(); err == nil {
			home = h
		}
	}
	reportPath := filepath.Join(home, ".adaad", "doctor", "latest.json")
	data, err := os.ReadFile(reportPath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, "doctor_report_missing"
		}
		return false, fmt.Sprintf("doctor_report_invalid:%v", err)
	}
	var parsed map[string]interface{}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return false, fmt.Sprintf("doctor_report_invalid:%v", err)
	}
	status, _ := parsed["status"].(string)
	if strings.ToLower(status) != "pass" {
		return false, "doctor_report_not_pass"
	}
	return true, ""
}

// recordLedger appends a mutation_attempt event when the ledger is enabled
// and writable, mirroring the reference's best-effort append-and-report
// behavior: a logging failure is folded into the returned map rather than
// propagated as an error.
func recordLedger(cfg *config.Config, payload map[string]interface{}) map[string]interface{} {
	if !cfg.LedgerEnabled || cfg.LedgerReadonly {
		return nil
	}
	led := ledger.New(ledger.Config{
		Home:                cfg.Home,
		LedgerDir:           cfg.LedgerDir,
		LedgerFilename:      cfg.LedgerFilename,
		LedgerEnabled:       cfg.LedgerEnabled,
		LedgerReadonly:      cfg.LedgerReadonly,
		LedgerSchemaVersion: cfg.LedgerSchemaVersion,
	})
	event, err := led.Append("mutation_attempt", "mutate_code", payload)
	if err != nil {
		return map[string]interface{}{"error": err.Error()}
	}
	return map[string]interface{}{"event_id": event.EventID, "hash": event.Hash}
}

func strPtr(s string) *string { return &s }

func nilableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nilableStringPtr(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func nilableIntPtr(n *int) interface{} {
	if n == nil {
		return nil
	}
	return *n
}
