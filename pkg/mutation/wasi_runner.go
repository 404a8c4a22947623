package mutation

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
)

// outputMaxBytes caps stdout+stderr captured from a WasiRunner execution.
const outputMaxBytes = 1024 * 1024

// Deterministic error codes for WasiRunner limit violations, matching the
// shape of a typed sandbox fault rather than a bare error string.
const (
	errComputeTimeExhausted   = "ERR_COMPUTE_TIME_EXHAUSTED"
	errComputeMemoryExhausted = "ERR_COMPUTE_MEMORY_EXHAUSTED"
	errComputeOutputExhausted = "ERR_COMPUTE_OUTPUT_EXHAUSTED"
)

// WasiRunner is the stronger-isolation alternative to ProcessRunner: it
// cross-compiles the mutated source to a WASI binary and executes it inside
// a wazero runtime with a hard memory-page ceiling, a context-deadline CPU
// cap, and no filesystem or network imports whatsoever (WASI's deny-by-
// default posture, not merely an import allowlist). Slower to start than
// ProcessRunner because of the extra cross-compile step, so it is not the
// mutate_code action's default, but it is available wherever a deployment
// wants memory isolation stronger than a ulimit.
type WasiRunner struct {
	runtime wazero.Runtime
}

// NewWasiRunner builds a WasiRunner whose wazero runtime is capped to
// memoryLimitBytes.
func NewWasiRunner(ctx context.Context, memoryLimitBytes int64) (*WasiRunner, error) {
	rConfig := wazero.NewRuntimeConfig()
	if memoryLimitBytes > 0 {
		pages := uint32(memoryLimitBytes / 65536)
		if pages == 0 {
			pages = 1
		}
		rConfig = rConfig.WithMemoryLimitPages(pages)
	}
	r := wazero.NewRuntimeWithConfig(ctx, rConfig)
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, r); err != nil {
		_ = r.Close(ctx)
		return nil, fmt.Errorf("mutation: instantiate WASI: %w", err)
	}
	return &WasiRunner{runtime: r}, nil
}

// Close releases the underlying wazero runtime.
func (w *WasiRunner) Close(ctx context.Context) error {
	return w.runtime.Close(ctx)
}

// compileToWasm cross-compiles src (a complete Go file) to a wasip1/wasm
// binary in a scratch module, returning the compiled bytes.
func compileToWasm(ctx context.Context, src string) ([]byte, error) {
	dir, err := os.MkdirTemp("", "adaad6-mutation-wasm-*")
	if err != nil {
		return nil, fmt.Errorf("start_failed:%w", err)
	}
	defer os.RemoveAll(dir)

	if err := os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module mutationcandidate\n\ngo 1.21\n"), 0o644); err != nil {
		return nil, fmt.Errorf("start_failed:%w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "main.go"), []byte(src), 0o600); err != nil {
		return nil, fmt.Errorf("start_failed:%w", err)
	}

	outPath := filepath.Join(dir, "candidate.wasm")
	cmd := exec.CommandContext(ctx, "go", "build", "-o", outPath, ".")
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "GOOS=wasip1", "GOARCH=wasm")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("start_failed:compile:%s", strings.TrimSpace(stderr.String()))
	}
	return os.ReadFile(outPath)
}

// Run cross-compiles src to WASI and executes it under the configured
// memory ceiling and timeout, capturing stdout/stderr.
func (w *WasiRunner) Run(ctx context.Context, src string, timeout time.Duration) SandboxResult {
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	wasmBytes, err := compileToWasm(execCtx, src)
	if err != nil {
		return SandboxResult{StartFailed: true, Error: err.Error()}
	}

	compiled, err := w.runtime.CompileModule(execCtx, wasmBytes)
	if err != nil {
		return SandboxResult{StartFailed: true, Error: fmt.Sprintf("start_failed:%v", err)}
	}
	defer func() { _ = compiled.Close(execCtx) }()

	var stdout, stderr bytes.Buffer
	moduleConfig := wazero.NewModuleConfig().
		WithStdout(&stdout).
		WithStderr(&stderr).
		WithName("mutation-candidate")

	mod, err := w.runtime.InstantiateModule(execCtx, compiled, moduleConfig)
	if err != nil {
		if execCtx.Err() == context.DeadlineExceeded {
			return SandboxResult{TimedOut: true}
		}
		if isMemoryError(err) {
			return SandboxResult{Error: errComputeMemoryExhausted}
		}
		return SandboxResult{Error: fmt.Sprintf("%s:%v", errComputeTimeExhausted, err)}
	}
	defer func() { _ = mod.Close(execCtx) }()

	if stdout.Len()+stderr.Len() > outputMaxBytes {
		return SandboxResult{Error: errComputeOutputExhausted}
	}
	return SandboxResult{OK: true, ExitCode: intPtr(0)}
}

func isMemoryError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "memory") && (strings.Contains(msg, "limit") || strings.Contains(msg, "grow") || strings.Contains(msg, "exceeded"))
}

func intPtr(n int) *int { return &n }
