// Command adaad6 is a thin manual smoke-test harness: it boots a config
// from the process environment and runs a single orchestrator goal,
// printing the resulting Plan/ExecutionLog as JSON. It is not the kernel's
// external interface — per spec §6 that role belongs to whatever thin
// collaborator calls Plan.ToMap() / ExecutionLog.ToMap(); this binary only
// exists so a human can exercise boot -> orchestrate without writing Go.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dreezy-6/adaad6/pkg/config"
	"github.com/dreezy-6/adaad6/pkg/kms"
	"github.com/dreezy-6/adaad6/pkg/orchestrator"
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the testable entrypoint: args[1] is the goal, args[2] (optional)
// is the archetype name.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 || args[1] == "help" || args[1] == "--help" || args[1] == "-h" {
		printUsage(stdout)
		return 0
	}

	goal := args[1]
	archetype := ""
	if len(args) > 2 {
		archetype = args[2]
	}

	logger := slog.New(slog.NewTextHandler(stderr, nil))

	loadOpts := config.Options{Env: environMap()}
	// Prod mode must never verify its config signature against an
	// env-read key (spec §4.B's CONFIG_SIG_KEY_PROVIDER_REQUIRED freeze):
	// wire a KMS-backed provider before config.Load ever sees the env.
	if os.Getenv("ADAAD6_MODE") == "prod" {
		provider, err := kmsKeyProvider(loadOpts.Env)
		if err != nil {
			logger.Error("kms key provider init failed", "error", err)
			return 1
		}
		loadOpts.KeyProvider = provider
	}

	cfg, err := config.Load(loadOpts)
	if err != nil {
		logger.Error("config load failed", "error", err)
		return 1
	}
	if cfg.Frozen() {
		logger.Warn("config is frozen", "freeze_reason", cfg.FreezeReason)
	}

	o := orchestrator.New(archetype)
	result, err := o.Run(goal, cfg, orchestrator.RunOptions{Actor: "cmd/adaad6"})
	if err != nil {
		logger.Error("orchestrator run failed", "error", err)
		return 1
	}

	out := map[string]interface{}{
		"ok":             result.OK,
		"failure_reason": result.FailureReason,
		"boot":           result.Boot.ToMap(),
	}
	if result.Plan != nil {
		out["plan"] = result.Plan.ToMap()
	}
	if result.Execution != nil {
		out["execution"] = result.Execution.ToMap()
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		logger.Error("result encode failed", "error", err)
		return 1
	}

	if !result.OK {
		return 1
	}
	return 0
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: adaad6 <goal> [archetype]")
	fmt.Fprintln(w, "\nRuns the Meta-Orchestrator's boot -> gate -> plan -> execute pipeline")
	fmt.Fprintln(w, "for a single goal, reading config from ADAAD6_* environment variables,")
	fmt.Fprintln(w, "and prints the resulting plan/execution log as JSON.")
}

// kmsKeyProvider loads (or initializes) a file-backed KMS keystore rooted
// under ADAAD6_HOME and adapts its active key into a crypto.KeyProvider.
func kmsKeyProvider(env map[string]string) (*kms.SigningKeyProvider, error) {
	home := env["ADAAD6_HOME"]
	if home == "" {
		home = "."
	}
	keystorePath := filepath.Join(home, ".adaad", "kms", "keystore.json")
	localKMS, err := kms.NewLocalKMS(keystorePath)
	if err != nil {
		return nil, err
	}
	return kms.NewSigningKeyProvider(localKMS), nil
}

func environMap() map[string]string {
	out := make(map[string]string)
	for _, kv := range os.Environ() {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				out[kv[:i]] = kv[i+1:]
				break
			}
		}
	}
	return out
}
