package executor

import (
	"fmt"

	"github.com/dreezy-6/adaad6/pkg/canonicalize"
	"github.com/dreezy-6/adaad6/pkg/capabilities"
	"github.com/dreezy-6/adaad6/pkg/config"
	"github.com/dreezy-6/adaad6/pkg/evidence"
	"github.com/dreezy-6/adaad6/pkg/kernel"
	"github.com/dreezy-6/adaad6/pkg/kernelctx"
	"github.com/dreezy-6/adaad6/pkg/ledger"
)

// MutationGateInput bundles the evidence needed to clear the lineage gate
// a mutation-class step requires when the config's mutation policy is not
// EVOLUTIONARY. Precomputed, if supplied, is a gate result the caller
// already ran; it is only trusted after its LineageHash is confirmed to
// match ExpectedLineageHash and the store still resolves it.
type MutationGateInput struct {
	Store               *evidence.Store
	ExpectedLineageHash string
	Precomputed         *evidence.LineageGateResult
}

// RunOptions configures a plan run.
type RunOptions struct {
	// Actor is the ledger actor recorded on every event; defaults to
	// "executor".
	Actor string
	// CaptureDebug attaches out-of-band debug detail to crash stages.
	CaptureDebug bool
	// LedgerRequired makes ExecuteAndRecord fail before running anything if
	// the ledger is disabled or read-only.
	LedgerRequired bool
	// MutationGate supplies lineage evidence for mutation-class steps. Nil
	// is only safe when the plan contains none, or the config's mutation
	// policy is EVOLUTIONARY.
	MutationGate *MutationGateInput
}

// lookupAction resolves action against registry, crashing EVIDENCE_MISSING
// if the name isn't registered.
func lookupAction(action string, registry *capabilities.Registry) (capabilities.ActionModule, error) {
	m, ok := registry.Get(action)
	if !ok {
		return capabilities.ActionModule{}, kernel.MissingEvidence(fmt.Sprintf("unknown action: %s", action))
	}
	return m, nil
}

func executeStep(spec capabilities.ActionSpec, module capabilities.ActionModule, cfg *config.Config, satisfiedEffects []string, captureDebug bool) StepLog {
	var stages []StageLog

	outcome, err := checkAdmissibility(spec, cfg, satisfiedEffects)
	if err != nil {
		crash := kernel.MapError(err, captureDebug)
		stages = append(stages, crashStage("admissibility", crash, captureDebug))
		return crashStep(spec, stages, crash, captureDebug)
	}
	if !outcome.Admissible {
		stages = append(stages, refusedStage("admissibility", outcome.RefusalMode, outcome.Record))
		return refusedStep(spec, stages, outcome)
	}
	stages = append(stages, okStage("admissibility", map[string]interface{}{"bundle_hash": outcome.BundleHash}))

	validated, err := module.Validate(spec.Params, cfg)
	if err != nil {
		crash := kernel.MapError(err, captureDebug)
		stages = append(stages, crashStage("precheck", crash, captureDebug))
		return crashStep(spec, stages, crash, captureDebug)
	}
	stages = append(stages, okStage("precheck", validated))

	result, err := module.Run(validated)
	if err != nil {
		crash := kernel.MapError(err, captureDebug)
		stages = append(stages, crashStage("execute", crash, captureDebug))
		return crashStep(spec, stages, crash, captureDebug)
	}
	stages = append(stages, okStage("execute", result))

	checked, err := module.Postcheck(result, cfg)
	if err != nil {
		crash := kernel.MapError(err, captureDebug)
		stages = append(stages, crashStage("postcheck", crash, captureDebug))
		return crashStep(spec, stages, crash, captureDebug)
	}
	stages = append(stages, okStage("postcheck", checked))

	return StepLog{
		ID:        spec.ID,
		Action:    spec.Action,
		Status:    "ok",
		Stages:    stages,
		Output:    jsonSafeOutput(checked),
		hasOutput: checked != nil,
	}
}

func crashStep(spec capabilities.ActionSpec, stages []StageLog, crash *kernel.Crash, captureDebug bool) StepLog {
	s := StepLog{
		ID:      spec.ID,
		Action:  spec.Action,
		Status:  "crash",
		Stages:  stages,
		Code:    crash.Code,
		Detail:  crash.Detail,
		hasCode: true,
	}
	if captureDebug {
		s.DebugDetail = crash.DebugDetail()
	}
	return s
}

// refusedStep builds the StepLog for an admissibility refusal: the outcome
// is not a crash, so Code/hasCode are left unset and runPlan's aggregate
// crash fields must never be populated from it.
func refusedStep(spec capabilities.ActionSpec, stages []StageLog, outcome admissibilityOutcome) StepLog {
	return StepLog{
		ID:          spec.ID,
		Action:      spec.Action,
		Status:      "refused",
		Stages:      stages,
		RefusalMode: outcome.RefusalMode,
		Record:      outcome.Record,
		hasRefusal:  true,
	}
}

// stepCallback is invoked once per step, in plan order, after the step's
// outcome (including its registered artifact, if any) is known.
type stepCallback func(step StepLog, ctx kernelctx.KernelContext)

func runPlan(plan []capabilities.ActionSpec, registry *capabilities.Registry, cfg *config.Config, context kernelctx.KernelContext, onStep stepCallback, captureDebug bool) ExecutionLog {
	var steps []StepLog
	var crashCode kernel.CrashCode
	var crashDetail, crashStage, crashStepID string
	var refusalMode, refusalStepID string
	var refusalRecord kernel.Node
	hasCrash := false
	hasRefusal := false
	halted := false
	haltedByRefusal := false
	satisfied := make(map[string]bool)
	var satisfiedEffects []string

	for _, spec := range plan {
		if halted {
			detail := "skipped_after_crash"
			stageDetail := "halted_after_crash"
			if haltedByRefusal {
				detail = "skipped_after_refusal"
				stageDetail = "halted_after_refusal"
			}
			step := StepLog{
				ID:     spec.ID,
				Action: spec.Action,
				Status: "skipped",
				Stages: []StageLog{skippedStage("precheck", stageDetail)},
				Detail: detail,
			}
			steps = append(steps, step)
			if onStep != nil {
				onStep(step, context)
			}
			continue
		}

		module, err := lookupAction(spec.Action, registry)
		if err != nil {
			crash := kernel.MapError(err, captureDebug)
			stages := []StageLog{crashStage("precheck", crash, captureDebug)}
			step := crashStep(spec, stages, crash, captureDebug)
			steps = append(steps, step)
			crashCode, crashDetail, crashStage, crashStepID, hasCrash = crash.Code, crash.Detail, "precheck", spec.ID, true
			halted = true
			if onStep != nil {
				onStep(step, context)
			}
			continue
		}

		step := executeStep(spec, module, cfg, satisfiedEffects, captureDebug)
		if step.Status == "ok" && step.hasOutput {
			uri, err := artifactURI(step.Output)
			if err == nil {
				name := fmt.Sprintf("%s:%s:result", spec.ID, spec.Action)
				if next, err := context.RegisterArtifact(name, uri); err == nil {
					context = next
				}
			}
		}
		steps = append(steps, step)
		if onStep != nil {
			onStep(step, context)
		}
		switch step.Status {
		case "ok":
			for _, effect := range spec.Effects {
				if !satisfied[effect] {
					satisfied[effect] = true
					satisfiedEffects = append(satisfiedEffects, effect)
				}
			}
		case "crash":
			crashCode = step.Code
			crashDetail = step.Detail
			for _, st := range step.Stages {
				if st.Status == "crash" {
					crashStage = st.Stage
					break
				}
			}
			crashStepID = spec.ID
			hasCrash = true
			halted = true
		case "refused":
			refusalMode = step.RefusalMode
			refusalRecord = step.Record
			refusalStepID = spec.ID
			hasRefusal = true
			halted = true
			haltedByRefusal = true
		}
	}

	status := "ok"
	switch {
	case hasCrash:
		status = "crash"
	case hasRefusal:
		status = "refused"
	}
	return ExecutionLog{
		OK:            !hasCrash && !hasRefusal,
		Status:        status,
		Steps:         steps,
		Context:       context,
		CrashCode:     crashCode,
		CrashDetail:   crashDetail,
		CrashStage:    crashStage,
		CrashStep:     crashStepID,
		RefusalMode:   refusalMode,
		RefusalStep:   refusalStepID,
		RefusalRecord: refusalRecord,
		hasCrash:      hasCrash,
		hasRefusal:    hasRefusal,
	}
}

// freezeCrash maps a frozen config's freeze reason onto the kernel's crash
// taxonomy: a bad or absent signature is an integrity or evidence problem,
// everything else (notably an operator-triggered emergency halt) falls to
// the determinism-breach catch-all.
func freezeCrash(reason config.FreezeReason) *kernel.Crash {
	switch reason {
	case config.FreezeConfigSchemaVersionMismatch, config.FreezeConfigSigInvalid, config.FreezeReadinessGateSignatureInvalid:
		return kernel.Integrity(string(reason))
	case config.FreezeConfigSigKeyUnavailable, config.FreezeConfigSigKeyProviderRequired, config.FreezeReadinessGateSignatureMissing:
		return kernel.MissingEvidence(string(reason))
	default:
		return kernel.Determinism(string(reason))
	}
}

func enforceMutationGate(gate *MutationGateInput) error {
	if gate == nil || gate.Store == nil || gate.ExpectedLineageHash == "" {
		return kernel.MissingEvidence("mutation-class step requires a lineage gate")
	}
	if gate.Precomputed != nil {
		if gate.Precomputed.LineageHash != gate.ExpectedLineageHash {
			return kernel.Integrity("precomputed lineage gate hash does not match expected lineage hash")
		}
		if !gate.Precomputed.OK {
			return kernel.MissingEvidence(fmt.Sprintf("precomputed lineage gate failed: %s", gate.Precomputed.Reason))
		}
	}
	result := evidence.CryovantLineageGate(gate.Store, gate.ExpectedLineageHash)
	if !result.OK {
		return kernel.MissingEvidence(fmt.Sprintf("lineage gate failed: %s", result.Reason))
	}
	return nil
}

// checkPreconditions enforces spec §4.H's three run-level preconditions:
// the config must validate structurally, a frozen config refuses to run
// at all (this subsumes the EVOLUTIONARY readiness-gate check — a missing
// or invalid signature is exactly what freezes the config), and any
// mutation-class step requires a cleared lineage gate unless the policy is
// EVOLUTIONARY.
func checkPreconditions(plan []capabilities.ActionSpec, cfg *config.Config, gate *MutationGateInput) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Frozen() {
		return freezeCrash(cfg.FreezeReason)
	}
	if cfg.MutationPolicy != config.MutationEvolutionary {
		for _, spec := range plan {
			if spec.IsMutationClass() {
				if err := enforceMutationGate(gate); err != nil {
					return err
				}
				break
			}
		}
	}
	return nil
}

func resolveContext(ctx *kernelctx.KernelContext, cfg *config.Config) (kernelctx.KernelContext, error) {
	if ctx != nil {
		return *ctx, nil
	}
	return kernelctx.Build(cfg, kernelctx.Options{})
}

// ExecutePlan runs plan against registry without touching the ledger.
func ExecutePlan(plan []capabilities.ActionSpec, registry *capabilities.Registry, cfg *config.Config, ctx *kernelctx.KernelContext, opts RunOptions) (*ExecutionLog, error) {
	if err := checkPreconditions(plan, cfg, opts.MutationGate); err != nil {
		return nil, err
	}
	context, err := resolveContext(ctx, cfg)
	if err != nil {
		return nil, err
	}
	log := runPlan(plan, registry, cfg, context, nil, opts.CaptureDebug)
	return &log, nil
}

// ExecuteAndRecord runs plan exactly as ExecutePlan does, but — when the
// ledger is enabled — wraps the run with execution_run_start,
// execution_step per step, execution_artifact per registered artifact
// (chained by parent_hash), and execution_run_end.
func ExecuteAndRecord(plan []capabilities.ActionSpec, registry *capabilities.Registry, cfg *config.Config, ctx *kernelctx.KernelContext, led *ledger.Ledger, opts RunOptions) (*ExecutionLog, error) {
	if err := checkPreconditions(plan, cfg, opts.MutationGate); err != nil {
		return nil, err
	}
	if opts.LedgerRequired && (led == nil || !led.Enabled() || led.Readonly()) {
		return nil, kernel.Unlogged("ledger_required but the ledger is disabled or read-only")
	}

	context, err := resolveContext(ctx, cfg)
	if err != nil {
		return nil, err
	}

	actor := opts.Actor
	if actor == "" {
		actor = "executor"
	}

	if led == nil || !led.Enabled() {
		log := runPlan(plan, registry, cfg, context, nil, opts.CaptureDebug)
		return &log, nil
	}

	runStart, err := canonicalize.AttachContentHash(map[string]interface{}{
		"run_id":      context.RunID,
		"config_hash": context.Config.Hash,
	})
	if err != nil {
		return nil, fmt.Errorf("executor: hash execution_run_start payload: %w", err)
	}
	if _, err := led.Append("execution_run_start", actor, runStart); err != nil {
		return nil, fmt.Errorf("executor: append execution_run_start: %w", err)
	}

	var lastArtifactHash *string
	onStep := func(step StepLog, stepCtx kernelctx.KernelContext) {
		stepPayload, err := canonicalize.AttachContentHash(map[string]interface{}{
			"run_id": stepCtx.RunID,
			"step":   step.ToMap(),
		})
		if err != nil {
			return
		}
		if _, err := led.Append("execution_step", actor, stepPayload); err != nil {
			return
		}
		if step.Status != "ok" || !step.hasOutput {
			return
		}
		uri, err := artifactURI(step.Output)
		if err != nil {
			return
		}
		var parent interface{}
		if lastArtifactHash != nil {
			parent = *lastArtifactHash
		}
		payload, err := canonicalize.AttachContentHash(map[string]interface{}{
			"run_id":      stepCtx.RunID,
			"step_id":     step.ID,
			"action":      step.Action,
			"name":        fmt.Sprintf("%s:%s:result", step.ID, step.Action),
			"uri":         uri,
			"parent_hash": parent,
		})
		if err != nil {
			return
		}
		if _, err := led.Append("execution_artifact", actor, payload); err == nil {
			h, _ := payload["content_hash"].(string)
			lastArtifactHash = &h
		}
	}

	log := runPlan(plan, registry, cfg, context, onStep, opts.CaptureDebug)

	runEnd, err := canonicalize.AttachContentHash(map[string]interface{}{
		"run_id": log.Context.RunID,
		"log":    log.ToMap(),
	})
	if err != nil {
		return &log, fmt.Errorf("executor: hash execution_run_end payload: %w", err)
	}
	if _, err := led.Append("execution_run_end", actor, runEnd); err != nil {
		return &log, fmt.Errorf("executor: append execution_run_end: %w", err)
	}
	return &log, nil
}
