package kernel

import (
	"fmt"

	"github.com/dreezy-6/adaad6/pkg/canonicalize"
)

// Resolver fetches a DAG node by its content hash. It returns ok=false if
// no node exists for that hash — the kernel never distinguishes "wrong
// hash" from "unknown hash" here, both are EvidenceMissing; a present node
// whose recomputed hash disagrees with the hash it was fetched by is
// IntegrityViolation instead, checked separately below.
type Resolver func(hash string) (Node, bool)

// RefusalAuthorityDenied and RefusalGateFail are the two refusal modes an
// inadmissible evidence bundle can carry. AUTHORITY_DENIED always
// dominates GATE_FAIL when both conditions hold, matching the precedence
// an authority veto takes over a downstream gate failure.
const (
	RefusalAuthorityDenied = "AUTHORITY_DENIED"
	RefusalGateFail        = "GATE_FAIL"
)

func resolveNode(resolver Resolver, expectedHash, what string) (Node, error) {
	if expectedHash == "" {
		return nil, MissingEvidence(fmt.Sprintf("missing hash for %s", what))
	}
	node, ok := resolver(expectedHash)
	if !ok {
		return nil, MissingEvidence(fmt.Sprintf("missing node for %s", what))
	}
	actualHash, err := canonicalize.HashObject(withoutHashField(node))
	if err != nil {
		return nil, Integrity(fmt.Sprintf("unhashable node for %s: %v", what, err))
	}
	if actualHash != expectedHash {
		return nil, Integrity(fmt.Sprintf("hash mismatch for %s", what))
	}
	return node, nil
}

func withoutHashField(node Node) Node {
	out := make(Node, len(node))
	for k, v := range node {
		if k == "hash" {
			continue
		}
		out[k] = v
	}
	return out
}

// evaluate runs the full admissibility algorithm over an EvidenceBundle,
// returning whether it is admissible and, if not, its refusal mode.
func evaluate(bundle Node, resolver Resolver) (admissible bool, mode string, err error) {
	bundleHash, ok := fieldString(bundle, "hash")
	if !ok {
		return false, "", MissingEvidence("evidence bundle missing hash")
	}
	expectedBundleHash, err := canonicalize.HashObject(withoutHashField(bundle))
	if err != nil {
		return false, "", Integrity(fmt.Sprintf("unhashable evidence bundle: %v", err))
	}
	if bundleHash != expectedBundleHash {
		return false, "", Integrity("evidence bundle hash mismatch")
	}

	if err := ValidateEvidenceBundle(bundle); err != nil {
		return false, "", err
	}

	authorityHash, _ := fieldString(bundle, "authority_hash")
	authority, err := resolveNode(resolver, authorityHash, "authority")
	if err != nil {
		return false, "", err
	}
	if err := ValidateAuthoritySource(authority); err != nil {
		return false, "", err
	}
	scope, _ := fieldMap(authority, "scope")
	authorityDenied := false
	if canExecute, ok := fieldBool(scope, "can_execute"); ok && !canExecute {
		authorityDenied = true
	}

	proposalHash, _ := fieldString(bundle, "proposal_hash")
	proposal, err := resolveNode(resolver, proposalHash, "proposal")
	if err != nil {
		return false, "", err
	}
	if err := ValidateProposal(proposal); err != nil {
		return false, "", err
	}

	counterfactualHash, _ := fieldString(bundle, "counterfactual_hash")
	counterfactual, err := resolveNode(resolver, counterfactualHash, "counterfactual")
	if err != nil {
		return false, "", err
	}
	if err := ValidateCounterfactualSummary(counterfactual); err != nil {
		return false, "", err
	}

	gateHashes, _ := fieldSlice(bundle, "gate_result_hashes")
	gateFailed := false
	for _, gh := range gateHashes {
		hash, ok := gh.(string)
		if !ok {
			return false, "", Integrity("gate_result_hashes[] must be strings")
		}
		gate, err := resolveNode(resolver, hash, "gate")
		if err != nil {
			return false, "", err
		}
		if err := ValidateGateResult(gate); err != nil {
			return false, "", err
		}
		if result, _ := fieldString(gate, "result"); result == "FAIL" {
			gateFailed = true
		}
	}

	capabilityHashes, _ := fieldSlice(bundle, "capability_hashes")
	for _, ch := range capabilityHashes {
		hash, ok := ch.(string)
		if !ok {
			return false, "", Integrity("capability_hashes[] must be strings")
		}
		token, err := resolveNode(resolver, hash, "capability token")
		if err != nil {
			return false, "", err
		}
		if err := ValidateCapabilityToken(token); err != nil {
			return false, "", err
		}
		if tokenAuthority, _ := fieldString(token, "authority_hash"); tokenAuthority != authorityHash {
			return false, "", Integrity("capability token authority mismatch")
		}
	}

	if willEmit, ok := fieldBool(bundle, "will_emit_execution_record"); !ok || !willEmit {
		return false, "", Unlogged("execution record emission disabled")
	}

	switch {
	case authorityDenied:
		mode = RefusalAuthorityDenied
	case gateFailed:
		mode = RefusalGateFail
	}

	return mode == "", mode, nil
}

// IsAdmissible reports whether bundle satisfies every admissibility
// condition. A structural or hash-integrity problem surfaces as an error
// (always a *Crash) rather than false — the caller must distinguish "this
// bundle is correctly formed and refused" from "this bundle is broken".
func IsAdmissible(bundle Node, resolver Resolver) (bool, error) {
	admissible, _, err := evaluate(bundle, resolver)
	if err != nil {
		return false, err
	}
	return admissible, nil
}

// RefusalModeOf returns the refusal mode for an inadmissible bundle, or ""
// if the bundle is admissible.
func RefusalModeOf(bundle Node, resolver Resolver) (string, error) {
	_, mode, err := evaluate(bundle, resolver)
	if err != nil {
		return "", err
	}
	return mode, nil
}
