// Package observability provides OpenTelemetry tracing and metrics for the
// kernel. It implements production-ready observability following
// cloud-native best practices.
//
// # Tracing and metrics
//
// Initialize a provider at application startup:
//
//	p, err := observability.New(ctx, observability.DefaultConfig())
//	defer p.Shutdown(ctx)
//
// Track an operation from start to finish:
//
//	ctx, finish := p.TrackOperation(ctx, "orchestrator.run", observability.RunOperation(runID, goal, stepCount)...)
//	defer func() { finish(err) }()
//
// Create spans manually:
//
//	ctx, span := p.StartSpan(ctx, "operation_name")
//	defer span.End()
//
// Record domain-specific attributes for mutation runs, lineage gate
// decisions, and kernel crashes:
//
//	observability.AddSpanEvent(ctx, "mutation.scored", observability.MutationOperation(actionID, score, status)...)
//	observability.AddSpanEvent(ctx, "lineage.gate", observability.GateOperation("cryovant_lineage", decision, latencyMs)...)
//	observability.SetSpanStatus(ctx, err)
//
// Observability is disabled by default in embedded/edge deployments —
// callers construct an explicit Config with Enabled set according to their
// resource tier rather than relying on DefaultConfig's development-time
// Enabled: true.
package observability
