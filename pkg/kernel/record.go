package kernel

import "github.com/dreezy-6/adaad6/pkg/canonicalize"

// MakeRefusalRecord builds and hashes the ExecutionRecord for a refused
// bundle. failedGateID is only meaningful (and required) when mode is
// RefusalGateFail.
func MakeRefusalRecord(bundleHash, mode, failedGateID string) (Node, error) {
	record := Node{
		"type":                "ExecutionRecord",
		"version":             "1",
		"evidence_bundle_hash": bundleHash,
		"outcome":             "REFUSED",
		"reason":              "REFUSAL",
		"refusal_mode":        mode,
	}
	if mode == RefusalGateFail {
		record["failed_gate_id"] = failedGateID
	}
	if err := ValidateExecutionRecord(record); err != nil {
		return nil, err
	}
	return canonicalize.AttachHash(record)
}
