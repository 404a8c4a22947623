// Package orchestrator implements the Meta-Orchestrator: the boot -> gate
// -> plan -> execute pipeline that turns a goal string into a recorded
// execution, gated by readiness (boot), archetype policy (an optional
// named action filter plus lifecycle hooks), and — for mutation-class
// plans — the Cryovant Lineage Gate.
package orchestrator

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/dreezy-6/adaad6/pkg/capabilities"
	"github.com/dreezy-6/adaad6/pkg/config"
	"github.com/dreezy-6/adaad6/pkg/evidence"
	"github.com/dreezy-6/adaad6/pkg/executor"
	"github.com/dreezy-6/adaad6/pkg/kernelctx"
	"github.com/dreezy-6/adaad6/pkg/ledger"
	"github.com/dreezy-6/adaad6/pkg/mutation"
	"github.com/dreezy-6/adaad6/pkg/observability"
)

// FailureReason enumerates why a run failed to complete, one level above
// the kernel's own crash taxonomy: these are orchestration-level
// terminations (a gate refused to open) rather than a mid-execution
// kernel crash.
type FailureReason string

const (
	FailureEmergencyHalt         FailureReason = "EMERGENCY_HALT"
	FailureAgentsDisabled        FailureReason = "AGENTS_DISABLED"
	FailureBootFailed            FailureReason = "BOOT_FAILED"
	FailureMutationPolicyBlocked FailureReason = "MUTATION_POLICY_BLOCKED"
	FailureLineageGateRejected   FailureReason = "LINEAGE_GATE_REJECTED"
	FailureExecutionFailed       FailureReason = "EXECUTION_FAILED"
)

// Result is the full outcome of a MetaOrchestrator run. Its invariant —
// FailureReason is set if and only if OK is false — is enforced at
// construction by newResult; every exported Run path goes through it.
type Result struct {
	OK            bool
	Config        *config.Config
	Plan          *Plan
	Execution     *executor.ExecutionLog
	Boot          BootReport
	LineageGate   *evidence.LineageGateResult
	FailureReason FailureReason
}

// newResult enforces the ok/failure_reason invariant the reference's
// OrchestratorResult.__post_init__ raises on. Every call site here is
// internal and the invariant is a programmer error if violated, so a
// panic (not a returned error) matches the reference's hard dataclass
// validation.
func newResult(ok bool, cfg *config.Config, plan *Plan, execution *executor.ExecutionLog, boot BootReport, gate *evidence.LineageGateResult, reason FailureReason) Result {
	if ok && reason != "" {
		panic("orchestrator: failure_reason must be empty when ok")
	}
	if !ok && reason == "" {
		panic("orchestrator: failure_reason must be set when not ok")
	}
	return Result{
		OK:            ok,
		Config:        cfg,
		Plan:          plan,
		Execution:     execution,
		Boot:          boot,
		LineageGate:   gate,
		FailureReason: reason,
	}
}

// ActionFilter narrows (or reshapes) the action registry an archetype is
// permitted to plan against.
type ActionFilter func(actions *capabilities.Registry, cfg *config.Config) (*capabilities.Registry, error)

// OnStart and OnComplete are an archetype's lifecycle hooks, run
// immediately before and after execution.
type OnStart func(cfg *config.Config, goal string, plan Plan)
type OnComplete func(cfg *config.Config, goal string, execution *executor.ExecutionLog)

// ArchetypePolicy is a named, reusable orchestration policy: an action
// filter plus optional lifecycle hooks and a ledger requirement.
type ArchetypePolicy struct {
	Name          string
	ActionFilter  ActionFilter
	RequireLedger bool
	OnStart       OnStart
	OnComplete    OnComplete
}

func funcPointer(f interface{}) uintptr {
	v := reflect.ValueOf(f)
	if !v.IsValid() || v.IsNil() {
		return 0
	}
	return v.Pointer()
}

// equal reports whether two policies are the same registration — by
// value for Name/RequireLedger, by underlying function identity for the
// hooks, since Go function values aren't otherwise comparable. This is
// the analogue of the reference dataclass's field-by-field __eq__, used
// only to let RegisterArchetype treat a re-registration of the identical
// policy as a no-op rather than a conflict.
func (p ArchetypePolicy) equal(other ArchetypePolicy) bool {
	return p.Name == other.Name &&
		p.RequireLedger == other.RequireLedger &&
		funcPointer(p.ActionFilter) == funcPointer(other.ActionFilter) &&
		funcPointer(p.OnStart) == funcPointer(other.OnStart) &&
		funcPointer(p.OnComplete) == funcPointer(other.OnComplete)
}

var (
	archetypesMu sync.Mutex
	archetypes   = map[string]ArchetypePolicy{}
)

// RegisterArchetype registers policy under name (lowercased and trimmed).
// Re-registering the identical policy under a name already taken is a
// no-op; registering a different policy under a taken name is an error.
func RegisterArchetype(name string, policy ArchetypePolicy) (ArchetypePolicy, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return ArchetypePolicy{}, fmt.Errorf("orchestrator: archetype name must be set")
	}
	if strings.ToLower(strings.TrimSpace(policy.Name)) != key {
		return ArchetypePolicy{}, fmt.Errorf("orchestrator: policy.Name must match registration name")
	}

	archetypesMu.Lock()
	defer archetypesMu.Unlock()
	if existing, ok := archetypes[key]; ok {
		if !existing.equal(policy) {
			return ArchetypePolicy{}, fmt.Errorf("orchestrator: archetype %q already registered", key)
		}
		return existing, nil
	}
	archetypes[key] = policy
	return policy, nil
}

// GetArchetype looks up a registered archetype by name (case-insensitive,
// trimmed); ok is false if name is blank or unregistered.
func GetArchetype(name string) (ArchetypePolicy, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return ArchetypePolicy{}, false
	}
	archetypesMu.Lock()
	defer archetypesMu.Unlock()
	p, ok := archetypes[key]
	return p, ok
}

// PlanFactory builds a Plan for goal under cfg; MakePlan is the default.
type PlanFactory func(goal string, cfg *config.Config) (Plan, error)

// ActionBuilder builds the registry of actions a run may dispatch
// against; DefaultActionBuilder is the default.
type ActionBuilder func(cfg *config.Config) (*capabilities.Registry, error)

// DefaultActionBuilder registers every builtin action module this module
// ships (the six illustrative planner actions and mutate_code), then
// overlays any user action modules declared by YAML manifests under
// cfg.ActionsDir. Go's static action registration (no dynamic per-file code
// loading, unlike the reference's importlib.util.spec_from_file_location)
// means "discover what's on disk" and "what's compiled in" are necessarily
// two different sources feeding the same registry rather than one; see
// DESIGN.md. A deployment with its own compiled-in action modules supplies
// its own ActionBuilder instead of layering onto this one.
func DefaultActionBuilder(cfg *config.Config) (*capabilities.Registry, error) {
	modules := builtinPlannerActions()
	modules = append(modules, mutation.Module())
	sort.Slice(modules, func(i, j int) bool { return modules[i].Name < modules[j].Name })

	registry := capabilities.NewRegistry()
	if err := registry.RegisterBuiltin(modules...); err != nil {
		return nil, err
	}

	if cfg.ActionsDir != "" {
		userModules, err := capabilities.ModulesFromManifests(cfg.ActionsDir)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: load user action manifests: %w", err)
		}
		if len(userModules) > 0 {
			if err := registry.RegisterUser(userModules...); err != nil {
				return nil, fmt.Errorf("orchestrator: register user action manifests: %w", err)
			}
		}
	}

	return registry, nil
}

// RunOptions configures a single MetaOrchestrator.Run call.
type RunOptions struct {
	EvidenceStore *evidence.Store
	LineageHash   string
	Context       *kernelctx.KernelContext
	PlanFactory   PlanFactory
	ActionBuilder ActionBuilder
	Actor         string
	CaptureDebug  bool
	// Observability, if set, wraps the run in a traced span and records
	// RED metrics plus lineage-gate and run-completion events against it. Nil is the
	// default — tracing is opt-in, not ambient.
	Observability *observability.Provider
	// Ctx is the tracing context Observability spans attach to; defaults
	// to context.Background() when Observability is set but Ctx is nil.
	Ctx context.Context
}

// MetaOrchestrator runs goals under an optional named archetype.
type MetaOrchestrator struct {
	archetype string
}

// New returns a MetaOrchestrator bound to the named archetype (blank for
// none), lowercased and trimmed.
func New(archetype string) *MetaOrchestrator {
	return &MetaOrchestrator{archetype: strings.ToLower(strings.TrimSpace(archetype))}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func resolveOrchestratorContext(ctx *kernelctx.KernelContext, cfg *config.Config) (kernelctx.KernelContext, error) {
	if ctx != nil {
		return *ctx, nil
	}
	return kernelctx.Build(cfg, kernelctx.Options{})
}

func newLedgerFromConfig(cfg *config.Config) *ledger.Ledger {
	return ledger.New(ledger.Config{
		Home:                cfg.Home,
		LedgerDir:           cfg.LedgerDir,
		LedgerFilename:      cfg.LedgerFilename,
		LedgerEnabled:       cfg.LedgerEnabled,
		LedgerReadonly:      cfg.LedgerReadonly,
		LedgerSchemaVersion: cfg.LedgerSchemaVersion,
	})
}

// Run executes the full boot -> gate -> plan -> execute pipeline for goal
// under cfg. cfg is assumed already loaded (and frozen, if applicable) via
// config.Load — the reference's separate enforce_readiness_gate step has
// no analogue here since config.Load already applies freeze overrides at
// load time (see DESIGN.md's "frozen config" decision).
// Run executes the pipeline and, when opts.Observability is set, wraps it
// in a traced span recording RED metrics plus lineage-gate and completion
// events — tracing stays opt-in, never ambient.
func (o *MetaOrchestrator) Run(goal string, cfg *config.Config, opts RunOptions) (Result, error) {
	if opts.Observability == nil {
		return o.run(goal, cfg, opts)
	}

	traceCtx := opts.Ctx
	if traceCtx == nil {
		traceCtx = context.Background()
	}
	traceCtx, finish := opts.Observability.TrackOperation(traceCtx, "orchestrator.run",
		observability.AttrRunGoal.String(goal))

	result, err := o.run(goal, cfg, opts)
	if err != nil {
		finish(err)
		return result, err
	}

	if result.LineageGate != nil {
		decision := "OK"
		if !result.LineageGate.OK {
			decision = "REJECTED"
		}
		observability.AddSpanEvent(traceCtx, "orchestrator.lineage_gate",
			observability.GateOperation("cryovant_lineage", decision, 0)...)
	}
	if result.Execution != nil {
		observability.AddSpanEvent(traceCtx, "orchestrator.run.complete",
			observability.RunOperation(result.Execution.Context.RunID, goal, int64(len(result.Execution.Steps)))...)
	}

	var finishErr error
	if !result.OK {
		finishErr = fmt.Errorf("orchestrator: run failed: %s", result.FailureReason)
	}
	finish(finishErr)
	return result, nil
}

// run is the untraced pipeline Run wraps.
func (o *MetaOrchestrator) run(goal string, cfg *config.Config, opts RunOptions) (Result, error) {
	RegisterBuiltinArchetypes()

	boot, err := BootSequence(cfg)
	if err != nil {
		return Result{}, err
	}

	switch {
	case cfg.EmergencyHalt:
		return newResult(false, cfg, nil, nil, boot, nil, FailureEmergencyHalt), nil
	case !cfg.AgentsEnabled:
		return newResult(false, cfg, nil, nil, boot, nil, FailureAgentsDisabled), nil
	case cfg.Frozen():
		return newResult(false, cfg, nil, nil, boot, nil, FailureBootFailed), nil
	}
	if !boot.OK {
		return newResult(false, cfg, nil, nil, boot, nil, FailureBootFailed), nil
	}

	buildActions := opts.ActionBuilder
	if buildActions == nil {
		buildActions = DefaultActionBuilder
	}
	actions, err := buildActions(cfg)
	if err != nil {
		return Result{}, fmt.Errorf("orchestrator: build actions: %w", err)
	}

	var policy *ArchetypePolicy
	if p, ok := GetArchetype(o.archetype); ok {
		policy = &p
	}
	if policy != nil {
		if policy.RequireLedger && !cfg.LedgerEnabled {
			return Result{}, fmt.Errorf("orchestrator: %s archetype requires ledger_enabled=true", policy.Name)
		}
		if policy.ActionFilter != nil {
			filtered, err := policy.ActionFilter(actions, cfg)
			if err != nil {
				return Result{}, fmt.Errorf("orchestrator: archetype action filter: %w", err)
			}
			actions = filtered
		}
	}

	planFn := opts.PlanFactory
	if planFn == nil {
		planFn = MakePlan
	}
	plan, err := planFn(goal, cfg)
	if err != nil {
		return Result{}, fmt.Errorf("orchestrator: build plan: %w", err)
	}

	mutationPresent := false
	for _, step := range plan.Steps {
		if step.IsMutationClass() {
			mutationPresent = true
			break
		}
	}

	var gateResult *evidence.LineageGateResult
	if mutationPresent {
		lineageHash := firstNonEmpty(opts.LineageHash, cfg.ReadinessGateSig)
		result := evidence.CryovantLineageGate(opts.EvidenceStore, lineageHash)
		gateResult = &result

		// mutation_enabled in the reference is a plain boolean config field;
		// this port generalized that into the three-tier MutationPolicy, so
		// "enabled" here means "not LOCKED" (see DESIGN.md).
		if cfg.MutationPolicy == config.MutationLocked {
			return newResult(false, cfg, &plan, nil, boot, gateResult, FailureMutationPolicyBlocked), nil
		}
		if !result.OK {
			return newResult(false, cfg, &plan, nil, boot, gateResult, FailureLineageGateRejected), nil
		}
	}

	ctx, err := resolveOrchestratorContext(opts.Context, cfg)
	if err != nil {
		return Result{}, err
	}

	if policy != nil && policy.OnStart != nil {
		policy.OnStart(cfg, goal, plan)
	}

	var mutationGate *executor.MutationGateInput
	if mutationPresent {
		mutationGate = &executor.MutationGateInput{
			Store:               opts.EvidenceStore,
			ExpectedLineageHash: firstNonEmpty(opts.LineageHash, cfg.ReadinessGateSig),
			Precomputed:         gateResult,
		}
	}

	var led *ledger.Ledger
	if cfg.LedgerEnabled {
		led = newLedgerFromConfig(cfg)
	}

	execution, runErr := executor.ExecuteAndRecord(plan.Steps, actions, cfg, &ctx, led, executor.RunOptions{
		Actor:        firstNonEmpty(opts.Actor, "orchestrator"),
		CaptureDebug: opts.CaptureDebug,
		MutationGate: mutationGate,
	})

	if policy != nil && policy.OnComplete != nil {
		policy.OnComplete(cfg, goal, execution)
	}

	if runErr != nil {
		return Result{}, fmt.Errorf("orchestrator: execute plan: %w", runErr)
	}
	if !execution.OK {
		return newResult(false, cfg, &plan, execution, boot, gateResult, FailureExecutionFailed), nil
	}
	return newResult(true, cfg, &plan, execution, boot, gateResult, ""), nil
}
