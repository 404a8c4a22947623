package orchestrator

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/dreezy-6/adaad6/pkg/canonicalize"
	"github.com/dreezy-6/adaad6/pkg/capabilities"
	"github.com/dreezy-6/adaad6/pkg/config"
	"github.com/dreezy-6/adaad6/pkg/executor"
	"github.com/dreezy-6/adaad6/pkg/ledger"
)

// MonetizerProvenancePrefixes lists the import-path prefixes the
// monetizer archetype treats as revenue-safe. This is the Go analogue of
// the reference's _ALLOWED_MONETIZER_PREFIXES, which checks a Python
// module's dotted __name__; here it checks ActionModule.Provenance
// instead. github.com/dreezy-6/adaad6/pkg/adapters/monetizer has no
// package behind it yet (out of SPEC_FULL.md's scope) but is declared
// anyway, matching the reference's own forward declaration of an
// adapters.monetizer_adapter namespace it doesn't ship either.
var MonetizerProvenancePrefixes = []string{
	plannerProvenance,
	"github.com/dreezy-6/adaad6/pkg/adapters/monetizer",
}

// monetizerExcludedActions are barred from the monetizer archetype by
// name regardless of provenance — mutation-class actions are never
// revenue-safe.
var monetizerExcludedActions = map[string]bool{
	"mutate_code":   true,
	"generate_patch": true,
}

func isRevenueSafeAction(m capabilities.ActionModule) bool {
	for _, prefix := range MonetizerProvenancePrefixes {
		if strings.HasPrefix(m.Provenance, prefix) {
			return true
		}
	}
	return false
}

// monetizerActionFilter keeps only actions that are both not in the fixed
// exclusion set and revenue-safe by provenance.
func monetizerActionFilter(actions *capabilities.Registry, cfg *config.Config) (*capabilities.Registry, error) {
	filtered := capabilities.NewRegistry()
	for _, name := range actions.Names() {
		if monetizerExcludedActions[name] {
			continue
		}
		m, ok := actions.Get(name)
		if !ok || !isRevenueSafeAction(m) {
			continue
		}
		if err := filtered.RegisterBuiltin(m); err != nil {
			return nil, err
		}
	}
	return filtered, nil
}

// hashedPayload attaches a payload_hash field (the canonical hash of the
// payload before that field is added) so archetype lifecycle events carry
// tamper evidence independent of the ledger entry's own content hash.
func hashedPayload(payload map[string]interface{}) (map[string]interface{}, error) {
	hash, err := canonicalize.HashObject(payload)
	if err != nil {
		return nil, err
	}
	out := make(map[string]interface{}, len(payload)+1)
	for k, v := range payload {
		out[k] = v
	}
	out["payload_hash"] = hash
	return out, nil
}

// appendArchetypeEvent is a best-effort ledger append: a hashing or
// append failure is logged and swallowed rather than propagated, matching
// the reference's lifecycle hooks (which have no error return at all).
func appendArchetypeEvent(cfg *config.Config, eventType, actor string, payload map[string]interface{}) {
	hashed, err := hashedPayload(payload)
	if err != nil {
		slog.Default().Warn("orchestrator: failed to hash archetype payload", "event", eventType, "error", err)
		return
	}
	led := ledger.New(ledger.Config{
		Home:                cfg.Home,
		LedgerDir:           cfg.LedgerDir,
		LedgerFilename:      cfg.LedgerFilename,
		LedgerEnabled:       cfg.LedgerEnabled,
		LedgerReadonly:      cfg.LedgerReadonly,
		LedgerSchemaVersion: cfg.LedgerSchemaVersion,
	})
	if _, err := led.Append(eventType, actor, hashed); err != nil {
		slog.Default().Warn("orchestrator: failed to append archetype ledger event", "event", eventType, "error", err)
	}
}

func monetizerStart(cfg *config.Config, goal string, plan Plan) {
	if !cfg.LedgerEnabled {
		return
	}
	steps := make([]interface{}, len(plan.Steps))
	for i, s := range plan.Steps {
		steps[i] = s.ToMap()
	}
	appendArchetypeEvent(cfg, "monetizer_run_start", "monetizer", map[string]interface{}{
		"archetype": "monetizer",
		"stage":     "start",
		"goal":      goal,
		"plan":      steps,
	})
}

func monetizerComplete(cfg *config.Config, goal string, execution *executor.ExecutionLog) {
	if !cfg.LedgerEnabled {
		return
	}
	ok := false
	var runID interface{}
	if execution != nil {
		ok = execution.OK
		runID = execution.Context.RunID
	}
	appendArchetypeEvent(cfg, "monetizer_run_complete", "monetizer", map[string]interface{}{
		"archetype": "monetizer",
		"stage":     "complete",
		"goal":      goal,
		"ok":        ok,
		"run_id":    runID,
	})
}

func monetizerArchetype() ArchetypePolicy {
	return ArchetypePolicy{
		Name:          "monetizer",
		ActionFilter:  monetizerActionFilter,
		RequireLedger: true,
		OnStart:       monetizerStart,
		OnComplete:    monetizerComplete,
	}
}

var registerBuiltinArchetypesOnce sync.Once

// RegisterBuiltinArchetypes registers the kernel's built-in archetypes
// (currently just "monetizer"). It is safe to call repeatedly — only the
// first call has any effect, matching the reference's
// @lru_cache(maxsize=1) memoization of register_builtin_archetypes.
func RegisterBuiltinArchetypes() {
	registerBuiltinArchetypesOnce.Do(func() {
		if _, err := RegisterArchetype("monetizer", monetizerArchetype()); err != nil {
			panic(err)
		}
	})
}
