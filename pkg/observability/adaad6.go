package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Domain-specific semantic convention attributes for the kernel's own
// concerns: orchestrator runs, the sandboxed mutation engine, the
// Cryovant Lineage Gate, the crash taxonomy, and HMAC/KMS crypto
// operations.
var (
	// Run attributes
	AttrRunID    = attribute.Key("adaad6.run.id")
	AttrRunGoal  = attribute.Key("adaad6.run.goal")
	AttrRunSteps = attribute.Key("adaad6.run.step_count")

	// Mutation attributes (pkg/mutation)
	AttrMutationActionID = attribute.Key("adaad6.mutation.action_id")
	AttrMutationScore    = attribute.Key("adaad6.mutation.score")
	AttrMutationStatus   = attribute.Key("adaad6.mutation.status")

	// Lineage gate attributes (pkg/evidence)
	AttrGateName      = attribute.Key("adaad6.gate.name")
	AttrGateDecision  = attribute.Key("adaad6.gate.decision")
	AttrGateLatencyMs = attribute.Key("adaad6.gate.latency_ms")

	// Crash taxonomy attributes (pkg/kernel)
	AttrCrashCode  = attribute.Key("adaad6.crash.code")
	AttrCrashStage = attribute.Key("adaad6.crash.stage")
	AttrCrashActor = attribute.Key("adaad6.crash.actor")

	// Crypto attributes (pkg/crypto, pkg/kms)
	AttrCryptoAlgorithm = attribute.Key("adaad6.crypto.algorithm")
	AttrCryptoOperation = attribute.Key("adaad6.crypto.operation")
	AttrCryptoKeyID     = attribute.Key("adaad6.crypto.key_id")
)

// RunOperation creates attributes for a MetaOrchestrator.Run invocation.
func RunOperation(runID, goal string, stepCount int64) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrRunID.String(runID),
		AttrRunGoal.String(goal),
		AttrRunSteps.Int64(stepCount),
	}
}

// MutationOperation creates attributes for a sandboxed mutation run.
func MutationOperation(actionID string, score float64, status string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrMutationActionID.String(actionID),
		AttrMutationScore.Float64(score),
		AttrMutationStatus.String(status),
	}
}

// GateOperation creates attributes for a Cryovant Lineage Gate decision.
func GateOperation(name, decision string, latencyMs float64) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrGateName.String(name),
		AttrGateDecision.String(decision),
		AttrGateLatencyMs.Float64(latencyMs),
	}
}

// CrashOperation creates attributes for a kernel crash (code, stage and
// actor).
func CrashOperation(code, stage, actor string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrCrashCode.String(code),
		AttrCrashStage.String(stage),
		AttrCrashActor.String(actor),
	}
}

// CryptoOperation creates attributes for cryptographic operations.
func CryptoOperation(algorithm, operation, keyID string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrCryptoAlgorithm.String(algorithm),
		AttrCryptoOperation.String(operation),
		AttrCryptoKeyID.String(keyID),
	}
}

// SpanFromContext extracts the span from context.
func SpanFromContext(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}

// AddSpanEvent adds an event to the current span.
func AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// SetSpanStatus records err, if any, on the current span.
func SetSpanStatus(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	if err != nil {
		span.RecordError(err)
	}
}
