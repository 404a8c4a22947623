package kernel

import "fmt"

// Node is the generic shape every DAG node in the Admissibility Kernel
// takes before it is hashed: a JSON-object-like map, validated against the
// rules for its declared type. The kernel never defines Go structs for
// AuthoritySource/Proposal/GateResult/CapabilityToken/CounterfactualSummary
// /EvidenceBundle — it validates and hashes the map directly, the same
// shape a resolver fetches from the evidence store.
type Node = map[string]interface{}

func requireFields(obj Node, fields ...string) error {
	for _, f := range fields {
		if _, ok := obj[f]; !ok {
			return MissingEvidence(fmt.Sprintf("missing required field: %s", f))
		}
	}
	return nil
}

func fieldString(obj Node, field string) (string, bool) {
	s, ok := obj[field].(string)
	return s, ok
}

func fieldBool(obj Node, field string) (bool, bool) {
	b, ok := obj[field].(bool)
	return b, ok
}

func fieldMap(obj Node, field string) (Node, bool) {
	m, ok := obj[field].(Node)
	return m, ok
}

func fieldSlice(obj Node, field string) ([]interface{}, bool) {
	s, ok := obj[field].([]interface{})
	return s, ok
}

// fieldNumber pulls a numeric field. Decoded JSON numbers arrive as
// float64 and nodes built directly in Go may carry an int, so both are
// accepted; any other type (json.Number included) is reported as absent.
func fieldNumber(obj Node, field string) (float64, bool) {
	switch v := obj[field].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}

// ValidateAuthoritySource checks an AuthoritySource node.
func ValidateAuthoritySource(obj Node) error {
	if err := requireFields(obj, "type", "version", "authority_domain", "scope", "mandate"); err != nil {
		return err
	}
	if t, _ := fieldString(obj, "type"); t != "AuthoritySource" {
		return Integrity("invalid authority source type")
	}
	if d, _ := fieldString(obj, "authority_domain"); d == "" {
		return Integrity("authority_domain must be set")
	}
	if m, _ := fieldString(obj, "mandate"); m == "" {
		return Integrity("mandate must be set")
	}
	scope, ok := fieldMap(obj, "scope")
	if !ok {
		return Integrity("scope must be an object")
	}
	if _, ok := scope["can_execute"]; !ok {
		return MissingEvidence("scope missing required flags")
	}
	if _, ok := scope["can_issue_capabilities"]; !ok {
		return MissingEvidence("scope missing required flags")
	}
	if _, ok := fieldBool(scope, "can_execute"); !ok {
		return Integrity("scope.can_execute must be bool")
	}
	if _, ok := fieldBool(scope, "can_issue_capabilities"); !ok {
		return Integrity("scope.can_issue_capabilities must be bool")
	}
	return nil
}

// ValidateProposal checks a Proposal node.
func ValidateProposal(obj Node) error {
	if err := requireFields(obj, "type", "version", "proposal_kind"); err != nil {
		return err
	}
	if t, _ := fieldString(obj, "type"); t != "Proposal" {
		return Integrity("invalid proposal type")
	}
	kind, _ := fieldString(obj, "proposal_kind")
	if kind == "adapter_call" {
		return requireFields(obj, "adapter", "intent", "inputs", "requested_effects", "counterfactual_budget")
	}
	return nil
}

// ValidateGateResult checks a GateResult node.
func ValidateGateResult(obj Node) error {
	if err := requireFields(obj, "type", "version", "gate_id", "result", "deterministic"); err != nil {
		return err
	}
	if t, _ := fieldString(obj, "type"); t != "GateResult" {
		return Integrity("invalid gate result type")
	}
	result, _ := fieldString(obj, "result")
	if result != "PASS" && result != "FAIL" {
		return Determinism("gate result must be PASS or FAIL")
	}
	deterministic, _ := fieldBool(obj, "deterministic")
	if !deterministic {
		return Determinism("gate must be deterministic")
	}
	return nil
}

// ValidateCapabilityToken checks a CapabilityToken node.
func ValidateCapabilityToken(obj Node) error {
	if err := requireFields(obj, "type", "version", "authority_hash", "decay_only", "limits", "scopes"); err != nil {
		return err
	}
	if t, _ := fieldString(obj, "type"); t != "CapabilityToken" {
		return Integrity("invalid capability token type")
	}
	if _, ok := fieldString(obj, "authority_hash"); !ok {
		return Integrity("authority_hash must be string")
	}
	decayOnly, ok := fieldBool(obj, "decay_only")
	if !ok || !decayOnly {
		return Integrity("decay_only must be true")
	}
	limits, ok := fieldMap(obj, "limits")
	if !ok {
		return Integrity("limits must be an object")
	}
	if _, ok := limits["expires_at"]; !ok {
		return MissingEvidence("limits missing required fields")
	}
	if _, ok := limits["max_calls"]; !ok {
		return MissingEvidence("limits missing required fields")
	}
	if _, ok := fieldString(limits, "expires_at"); !ok {
		return Integrity("limits.expires_at must be string")
	}
	maxCalls, ok := fieldNumber(limits, "max_calls")
	if !ok {
		return Integrity("limits.max_calls must be an integer")
	}
	if maxCalls < 1 {
		return Integrity("limits.max_calls must be >= 1")
	}
	scopes, ok := fieldSlice(obj, "scopes")
	if !ok {
		return Integrity("scopes must be a list")
	}
	if len(scopes) == 0 {
		return Integrity("scopes must be non-empty")
	}
	for _, s := range scopes {
		if _, ok := s.(string); !ok {
			return Integrity("scopes[] must be strings")
		}
	}
	return nil
}

// ValidateCounterfactualSummary checks a CounterfactualSummary node.
func ValidateCounterfactualSummary(obj Node) error {
	if err := requireFields(obj, "type", "version", "budget", "rejected", "unlisted_commitment"); err != nil {
		return err
	}
	if t, _ := fieldString(obj, "type"); t != "CounterfactualSummary" {
		return Integrity("invalid counterfactual summary type")
	}
	budget, ok := fieldNumber(obj, "budget")
	if !ok {
		return Integrity("budget must be an integer")
	}
	if budget < 0 {
		return Integrity("budget must be non-negative")
	}
	rejected, ok := fieldSlice(obj, "rejected")
	if !ok {
		return Integrity("rejected must be a list")
	}
	if float64(len(rejected)) > budget {
		return Integrity("rejected count exceeds budget")
	}
	for _, item := range rejected {
		m, ok := item.(Node)
		if !ok {
			return Integrity("rejected[] must be objects")
		}
		if err := requireFields(m, "alt", "reason"); err != nil {
			return err
		}
		if _, ok := fieldString(m, "alt"); !ok {
			return Integrity("rejected[].alt must be string")
		}
		if _, ok := fieldString(m, "reason"); !ok {
			return Integrity("rejected[].reason must be string")
		}
	}
	if _, ok := fieldString(obj, "unlisted_commitment"); !ok {
		return Integrity("unlisted_commitment must be string")
	}
	return nil
}

// ValidateEvidenceBundle checks an EvidenceBundle node.
func ValidateEvidenceBundle(obj Node) error {
	required := []string{
		"type", "version", "authority_hash", "proposal_hash",
		"gate_result_hashes", "capability_hashes", "counterfactual_hash",
		"will_emit_execution_record",
	}
	if err := requireFields(obj, required...); err != nil {
		return err
	}
	if t, _ := fieldString(obj, "type"); t != "EvidenceBundle" {
		return Integrity("invalid evidence bundle type")
	}
	if _, ok := fieldSlice(obj, "gate_result_hashes"); !ok {
		return Integrity("gate_result_hashes must be a list")
	}
	if _, ok := fieldSlice(obj, "capability_hashes"); !ok {
		return Integrity("capability_hashes must be a list")
	}
	if _, ok := fieldBool(obj, "will_emit_execution_record"); !ok {
		return Integrity("will_emit_execution_record must be boolean")
	}
	return nil
}

// ValidateExecutionRecord checks an ExecutionRecord node.
func ValidateExecutionRecord(obj Node) error {
	if err := requireFields(obj, "type", "version", "evidence_bundle_hash", "outcome", "reason", "refusal_mode"); err != nil {
		return err
	}
	if t, _ := fieldString(obj, "type"); t != "ExecutionRecord" {
		return Integrity("invalid execution record type")
	}
	mode, _ := fieldString(obj, "refusal_mode")
	if mode != "AUTHORITY_DENIED" && mode != "GATE_FAIL" {
		return Integrity("invalid refusal_mode")
	}
	if mode == "GATE_FAIL" {
		if err := requireFields(obj, "failed_gate_id"); err != nil {
			return err
		}
		if id, _ := fieldString(obj, "failed_gate_id"); id == "" {
			return Integrity("failed_gate_id required for GATE_FAIL")
		}
	}
	return nil
}
