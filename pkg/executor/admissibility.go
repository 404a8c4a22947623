package executor

import (
	"fmt"

	"github.com/dreezy-6/adaad6/pkg/canonicalize"
	"github.com/dreezy-6/adaad6/pkg/capabilities"
	"github.com/dreezy-6/adaad6/pkg/config"
	"github.com/dreezy-6/adaad6/pkg/kernel"
)

// admissibilityOutcome is the result of resolving a step's EvidenceBundle
// through the Admissibility Kernel: either it is admissible and the step
// proceeds to precheck/execute/postcheck, or it carries a refusal mode and
// the hashed ExecutionRecord the executor must surface instead of acting.
type admissibilityOutcome struct {
	Admissible  bool
	RefusalMode string
	Record      kernel.Node
	BundleHash  string
}

// checkAdmissibility builds the step's AuthoritySource, Proposal,
// CounterfactualSummary, and one GateResult per declared precondition
// (each evaluated as a CEL-DP expression over the step's action, params,
// and the effects satisfied by earlier steps in this run), then resolves
// the assembled EvidenceBundle through kernel.IsAdmissible/RefusalModeOf.
// A structural problem in any of this (an unhashable node, a precondition
// that fails to compile or doesn't reduce to a boolean) surfaces as a
// *kernel.Crash; an admissibility refusal is returned as an outcome, never
// an error, per the kernel's own refusal-is-not-an-error contract.
func checkAdmissibility(spec capabilities.ActionSpec, cfg *config.Config, satisfiedEffects []string) (admissibilityOutcome, error) {
	authorityDenied := spec.IsMutationClass() && cfg.MutationPolicy == config.MutationLocked
	authority, err := canonicalize.AttachHash(kernel.Node{
		"type":             "AuthoritySource",
		"version":          "1",
		"authority_domain": "executor",
		"mandate":          fmt.Sprintf("run %s under mutation_policy=%s, resource_tier=%s", spec.Action, cfg.MutationPolicy, cfg.ResourceTier),
		"scope": kernel.Node{
			"can_execute":            !authorityDenied,
			"can_issue_capabilities": false,
		},
	})
	if err != nil {
		return admissibilityOutcome{}, fmt.Errorf("executor: hash authority source: %w", err)
	}

	proposal, err := canonicalize.AttachHash(kernel.Node{
		"type":          "Proposal",
		"version":       "1",
		"proposal_kind": "action_call",
		"step_id":       spec.ID,
		"action":        spec.Action,
		"effects":       toInterfaceSlice(spec.Effects),
	})
	if err != nil {
		return admissibilityOutcome{}, fmt.Errorf("executor: hash proposal: %w", err)
	}

	counterfactual, err := canonicalize.AttachHash(kernel.Node{
		"type":                "CounterfactualSummary",
		"version":             "1",
		"budget":              0,
		"rejected":            []interface{}{},
		"unlisted_commitment": "none",
	})
	if err != nil {
		return admissibilityOutcome{}, fmt.Errorf("executor: hash counterfactual summary: %w", err)
	}

	resolved := map[string]kernel.Node{
		hashOf(authority):      authority,
		hashOf(proposal):       proposal,
		hashOf(counterfactual): counterfactual,
	}

	gateHashes, failedGateID, err := evaluateGates(spec, cfg, satisfiedEffects, resolved)
	if err != nil {
		return admissibilityOutcome{}, err
	}

	bundle, err := canonicalize.AttachHash(kernel.Node{
		"type":                       "EvidenceBundle",
		"version":                    "1",
		"authority_hash":             hashOf(authority),
		"proposal_hash":              hashOf(proposal),
		"gate_result_hashes":         gateHashes,
		"capability_hashes":          []interface{}{},
		"counterfactual_hash":        hashOf(counterfactual),
		"will_emit_execution_record": true,
	})
	if err != nil {
		return admissibilityOutcome{}, fmt.Errorf("executor: hash evidence bundle: %w", err)
	}
	bundleHash := hashOf(bundle)

	resolver := func(hash string) (kernel.Node, bool) {
		n, ok := resolved[hash]
		return n, ok
	}

	admissible, err := kernel.IsAdmissible(bundle, resolver)
	if err != nil {
		return admissibilityOutcome{}, err
	}
	if admissible {
		return admissibilityOutcome{Admissible: true, BundleHash: bundleHash}, nil
	}

	mode, err := kernel.RefusalModeOf(bundle, resolver)
	if err != nil {
		return admissibilityOutcome{}, err
	}
	record, err := kernel.MakeRefusalRecord(bundleHash, mode, failedGateID)
	if err != nil {
		return admissibilityOutcome{}, err
	}
	return admissibilityOutcome{Admissible: false, RefusalMode: mode, Record: record, BundleHash: bundleHash}, nil
}

// evaluateGates turns spec.Preconditions into hashed GateResult nodes,
// registering each into resolved and returning their hashes in order plus
// the id of the first gate that failed (empty if none did). Each
// precondition is evaluated as a CEL-DP expression against meta (the
// step's own action/params/id), regulation (the run's policy/tier), and
// phenotype_contract (the effects satisfied by steps that already ran) —
// the context a precondition like
// "'goal_clarity' in phenotype_contract.satisfied_effects" needs to
// express a real ordering dependency instead of an opaque string.
func evaluateGates(spec capabilities.ActionSpec, cfg *config.Config, satisfiedEffects []string, resolved map[string]kernel.Node) ([]interface{}, string, error) {
	gateHashes := make([]interface{}, 0, len(spec.Preconditions))
	if len(spec.Preconditions) == 0 {
		return gateHashes, "", nil
	}

	evaluator := kernel.NewCELDPEvaluator()
	celInput := map[string]any{
		"modules": []any{spec.Action},
		"meta": map[string]any{
			"step_id": spec.ID,
			"action":  spec.Action,
			"params":  jsonSafeOutput(spec.Params),
		},
		"regulation": map[string]any{
			"mutation_policy": string(cfg.MutationPolicy),
			"resource_tier":   string(cfg.ResourceTier),
		},
		"phenotype_contract": map[string]any{
			"effects":           toInterfaceSlice(spec.Effects),
			"satisfied_effects": toAnySlice(satisfiedEffects),
		},
	}

	var failedGateID string
	for i, precondition := range spec.Preconditions {
		gateID := fmt.Sprintf("%s#%d", spec.ID, i)
		celResult, err := evaluator.Evaluate(precondition, celInput)
		if err != nil {
			return nil, "", fmt.Errorf("executor: evaluate precondition %q: %w", precondition, err)
		}
		if celResult.Error != nil {
			return nil, "", celResult.Error
		}
		pass, ok := celResult.Value.(bool)
		if !ok {
			return nil, "", kernel.Integrity(fmt.Sprintf("precondition %q did not evaluate to a boolean", precondition))
		}
		result := "PASS"
		if !pass {
			result = "FAIL"
			if failedGateID == "" {
				failedGateID = gateID
			}
		}
		gate, err := canonicalize.AttachHash(kernel.Node{
			"type":          "GateResult",
			"version":       "1",
			"gate_id":       gateID,
			"result":        result,
			"deterministic": true,
		})
		if err != nil {
			return nil, "", fmt.Errorf("executor: hash gate result: %w", err)
		}
		h := hashOf(gate)
		resolved[h] = gate
		gateHashes = append(gateHashes, h)
	}
	return gateHashes, failedGateID, nil
}

func hashOf(node kernel.Node) string {
	h, _ := node["hash"].(string)
	return h
}

func toInterfaceSlice(s []string) []interface{} {
	out := make([]interface{}, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}

func toAnySlice(s []string) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}
