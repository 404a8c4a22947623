package mutation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWasiRunnerExecutesCleanProgram(t *testing.T) {
	if testing.Short() {
		t.Skip("cross-compiling to wasip1 is slow; skipped under -short")
	}
	ctx := context.Background()
	runner, err := NewWasiRunner(ctx, sandboxMemoryLimitBytes)
	require.NoError(t, err)
	defer runner.Close(ctx)

	result := runner.Run(ctx, validProgramNoPass, 30*time.Second)
	require.True(t, result.OK, "sandbox error: %s", result.Error)
}

func TestWasiRunnerReportsStartFailureOnBadSource(t *testing.T) {
	if testing.Short() {
		t.Skip("cross-compiling to wasip1 is slow; skipped under -short")
	}
	ctx := context.Background()
	runner, err := NewWasiRunner(ctx, sandboxMemoryLimitBytes)
	require.NoError(t, err)
	defer runner.Close(ctx)

	result := runner.Run(ctx, "package main\n\nfunc main() {\n\tthis is not go\n}\n", 30*time.Second)
	require.True(t, result.StartFailed)
}
