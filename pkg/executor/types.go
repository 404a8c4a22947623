// Package executor implements the Three-Stage Executor: it walks a plan of
// ActionSpecs through precheck, execute, and postcheck against the Action
// Registry, maps any failure into the kernel's fixed crash taxonomy, halts
// all successors the instant one step crashes, and — when recording is
// requested — threads every stage and artifact through the Provenance
// Ledger.
package executor

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/dreezy-6/adaad6/pkg/canonicalize"
	"github.com/dreezy-6/adaad6/pkg/kernel"
	"github.com/dreezy-6/adaad6/pkg/kernelctx"
)

// ArtifactInlineMaxBytes is the size above which a registered artifact's
// canonical JSON is replaced by a hash-and-truncation marker rather than
// inlined whole.
const ArtifactInlineMaxBytes = 65536

// StageLog is the outcome of one of the four stages (admissibility,
// precheck, execute, postcheck) for a single step.
type StageLog struct {
	Stage       string
	Status      string // "ok" | "crash" | "refused" | "skipped"
	Output      interface{}
	Code        kernel.CrashCode
	Detail      string
	DebugDetail string
	hasOutput   bool
	hasCode     bool
}

func okStage(stage string, output interface{}) StageLog {
	return StageLog{Stage: stage, Status: "ok", Output: jsonSafeOutput(output), hasOutput: output != nil}
}

func crashStage(stage string, crash *kernel.Crash, captureDebug bool) StageLog {
	sl := StageLog{Stage: stage, Status: "crash", Code: crash.Code, Detail: crash.Detail, hasCode: true}
	if captureDebug {
		sl.DebugDetail = crash.DebugDetail()
	}
	return sl
}

func skippedStage(stage, detail string) StageLog {
	return StageLog{Stage: stage, Status: "skipped", Detail: detail}
}

// refusedStage records an admissibility refusal: mode is carried in Detail
// and the hashed ExecutionRecord kernel.MakeRefusalRecord produced is
// carried as Output, the same way a crash stage carries its Crash.
func refusedStage(stage, mode string, record kernel.Node) StageLog {
	return StageLog{Stage: stage, Status: "refused", Detail: mode, Output: record, hasOutput: record != nil}
}

// ToMap renders the stage the way it appears in a ledger payload: fields
// that weren't set are simply absent, matching the reference's
// keys-only-if-non-null encoding.
func (s StageLog) ToMap() map[string]interface{} {
	m := map[string]interface{}{"stage": s.Stage, "status": s.Status}
	if s.hasOutput {
		m["output"] = s.Output
	}
	if s.hasCode {
		m["code"] = string(s.Code)
	}
	if s.Detail != "" {
		m["detail"] = s.Detail
	}
	return m
}

// StepLog is the outcome of one ActionSpec's full run — admissibility plus
// the three-stage precheck/execute/postcheck on success, or its skip
// record if a prior step already crashed or was refused.
type StepLog struct {
	ID          string
	Action      string
	Status      string // "ok" | "crash" | "refused" | "skipped"
	Stages      []StageLog
	Output      interface{}
	Code        kernel.CrashCode
	Detail      string
	DebugDetail string
	RefusalMode string
	Record      kernel.Node
	hasOutput   bool
	hasCode     bool
	hasRefusal  bool
}

// ToMap renders the step the way it is recorded in an execution_step event.
func (s StepLog) ToMap() map[string]interface{} {
	stages := make([]interface{}, len(s.Stages))
	for i, st := range s.Stages {
		stages[i] = st.ToMap()
	}
	m := map[string]interface{}{
		"id":     s.ID,
		"action": s.Action,
		"status": s.Status,
		"stages": stages,
	}
	if s.hasOutput {
		m["output"] = s.Output
	}
	if s.hasCode {
		m["code"] = string(s.Code)
	}
	if s.hasRefusal {
		m["refusal_mode"] = s.RefusalMode
		m["execution_record"] = s.Record
	}
	if s.Detail != "" {
		m["detail"] = s.Detail
	}
	return m
}

// ExecutionLog is the full record of a plan run.
type ExecutionLog struct {
	OK            bool
	Status        string // "ok" | "crash" | "refused"
	Steps         []StepLog
	Context       kernelctx.KernelContext
	CrashCode     kernel.CrashCode
	CrashDetail   string
	CrashStage    string
	CrashStep     string
	RefusalMode   string
	RefusalStep   string
	RefusalRecord kernel.Node
	hasCrash      bool
	hasRefusal    bool
}

// ToMap renders the full execution log the way execute_and_record embeds
// it into the execution_run_end payload.
func (l ExecutionLog) ToMap() map[string]interface{} {
	steps := make([]interface{}, len(l.Steps))
	for i, s := range l.Steps {
		steps[i] = s.ToMap()
	}
	m := map[string]interface{}{
		"ok":          l.OK,
		"status":      l.Status,
		"steps":       steps,
		"run_id":      l.Context.RunID,
		"config_hash": l.Context.Config.Hash,
		"artifacts":   l.Context.Artifacts.ToMap(),
		"workspace":   l.Context.Workspace.ToMap(),
	}
	if l.hasCrash {
		m["crash"] = map[string]interface{}{
			"code":   string(l.CrashCode),
			"detail": l.CrashDetail,
			"stage":  l.CrashStage,
			"step":   l.CrashStep,
		}
	}
	if l.hasRefusal {
		m["refusal"] = map[string]interface{}{
			"mode":             l.RefusalMode,
			"step":             l.RefusalStep,
			"execution_record": l.RefusalRecord,
		}
	}
	return m
}

// jsonSafeOutput returns output unchanged if it marshals cleanly to JSON;
// otherwise it degrades to a {__type__, __repr__} placeholder, matching
// the reference's fallback for values the wire format can't carry.
func jsonSafeOutput(output interface{}) interface{} {
	if output == nil {
		return nil
	}
	if _, err := json.Marshal(output); err == nil {
		return output
	}
	return map[string]interface{}{
		"__type__": fmt.Sprintf("%T", output),
		"__repr__": fmt.Sprintf("%#v", output),
	}
}

// artifactURI builds the data: URI a successful step's output is
// registered under, truncating to a hash marker above
// ArtifactInlineMaxBytes.
func artifactURI(output interface{}) (string, error) {
	safe := jsonSafeOutput(output)
	serialized, err := canonicalize.CanonicalString(safe)
	if err != nil {
		return "", fmt.Errorf("executor: canonicalize artifact output: %w", err)
	}
	encoded := []byte(serialized)
	if len(encoded) > ArtifactInlineMaxBytes {
		digest := canonicalize.HashBytes(encoded)
		truncated, err := canonicalize.CanonicalString(map[string]interface{}{"hash": digest, "truncated": true})
		if err != nil {
			return "", fmt.Errorf("executor: canonicalize truncated artifact marker: %w", err)
		}
		return "data:application/json," + url.PathEscape(truncated), nil
	}
	return "data:application/json," + url.PathEscape(serialized), nil
}
