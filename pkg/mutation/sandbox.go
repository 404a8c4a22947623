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
)

// sandboxMemoryLimitBytes is the fixed address-space cap every mutation
// sandbox run is confined to.
const sandboxMemoryLimitBytes = 128 * 1024 * 1024

// SandboxResult is the outcome of one isolated-worker execution attempt.
type SandboxResult struct {
	OK           bool
	TimedOut     bool
	StartFailed  bool
	Error        string
	ExitCode     *int
	ResourceCaps map[string]interface{}
}

// Runner executes a mutated source file in a fresh isolated worker and
// reports what happened. ProcessRunner is the implementation mutate_code's
// run uses; WasiRunner is an alternative that runs the source under wazero.
type Runner interface {
	Run(ctx context.Context, src string, timeout time.Duration) SandboxResult
}

// ProcessRunner runs the mutated source as a standalone program in a fresh
// subprocess, confined to a CPU-time and wall-clock deadline and a virtual
// memory ulimit — the OS-process analogue of a forked worker with
// RLIMIT_CPU/RLIMIT_AS applied before exec.
type ProcessRunner struct{}

func (ProcessRunner) Run(ctx context.Context, src string, timeout time.Duration) SandboxResult {
	dir, err := os.MkdirTemp("", "adaad6-mutation-*")
	if err != nil {
		return SandboxResult{StartFailed: true, Error: fmt.Sprintf("start_failed:%v", err)}
	}
	defer os.RemoveAll(dir)

	srcPath := filepath.Join(dir, "main.go")
	if err := os.WriteFile(srcPath, []byte(src), 0o600); err != nil {
		return SandboxResult{StartFailed: true, Error: fmt.Sprintf("start_failed:%v", err)}
	}

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cpuSeconds := int(timeout.Seconds())
	if cpuSeconds < 1 {
		cpuSeconds = 1
	}
	memKB := sandboxMemoryLimitBytes / 1024
	caps := map[string]interface{}{"cpu_seconds": cpuSeconds, "memory_bytes": sandboxMemoryLimitBytes}

	// ulimit confines the child's own CPU time and address space; the
	// context deadline below is the wall-clock backstop in case the
	// process wedges in a way ulimit doesn't catch (e.g. stuck in I/O).
	shellCmd := fmt.Sprintf("ulimit -t %d; ulimit -v %d; exec go run %s", cpuSeconds, memKB, srcPath)
	cmd := exec.CommandContext(execCtx, "sh", "-c", shellCmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	if execCtx.Err() == context.DeadlineExceeded {
		return SandboxResult{TimedOut: true, ResourceCaps: caps}
	}
	if runErr == nil {
		exitCode := 0
		return SandboxResult{OK: true, ExitCode: &exitCode, ResourceCaps: caps}
	}

	exitErr, ok := runErr.(*exec.ExitError)
	if !ok {
		return SandboxResult{StartFailed: true, Error: fmt.Sprintf("start_failed:%v", runErr), ResourceCaps: caps}
	}
	exitCode := exitErr.ExitCode()
	detail := strings.TrimSpace(stderr.String())
	if detail == "" {
		detail = runErr.Error()
	}
	return SandboxResult{Error: detail, ExitCode: &exitCode, ResourceCaps: caps}
}
