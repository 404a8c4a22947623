// Package kernelctx builds the Kernel Context: the frozen workspace paths,
// config snapshot, run identity, and artifact registry a single kernel run
// carries end to end. Every value here is immutable once built — register
// returns a new context rather than mutating in place, matching the
// frozen-dataclass shape the reference implementation uses.
package kernelctx

import (
	"fmt"

	"github.com/dreezy-6/adaad6/pkg/canonicalize"
	"github.com/dreezy-6/adaad6/pkg/config"
	"github.com/google/uuid"
)

// WorkspacePaths is the resolved, sandboxed set of filesystem locations a
// run operates under. config.Load has already sandboxed these under home
// via resolveUnderHome; WorkspacePaths just carries the resolved values
// forward as an immutable snapshot for the rest of the kernel to consume.
type WorkspacePaths struct {
	Home        string
	ActionsDir  string
	LogPath     string
	LedgerPath  string
	HasLedger   bool
}

// WorkspacePathsFromConfig builds WorkspacePaths from an already-loaded,
// already-validated Config.
func WorkspacePathsFromConfig(cfg *config.Config) WorkspacePaths {
	wp := WorkspacePaths{
		Home:       cfg.Home,
		ActionsDir: cfg.ActionsDir,
		LogPath:    cfg.LogPath,
	}
	if cfg.LedgerEnabled && cfg.LedgerFilename != "" {
		wp.LedgerPath = cfg.LedgerDir + "/" + cfg.LedgerFilename
		wp.HasLedger = true
	}
	return wp
}

// ToMap renders WorkspacePaths the way it is recorded in a ledger event or
// config snapshot.
func (w WorkspacePaths) ToMap() map[string]interface{} {
	m := map[string]interface{}{
		"home":        w.Home,
		"actions_dir": w.ActionsDir,
		"log_path":    w.LogPath,
		"ledger_path": nil,
	}
	if w.HasLedger {
		m["ledger_path"] = w.LedgerPath
	}
	return m
}

// ConfigSnapshot is a content-hashed, point-in-time view of the config a
// run was built with. Because the hash covers the full config, two runs
// built from byte-identical config always carry the same snapshot hash —
// the snapshot itself is evidence a run's effective config was what it
// claims to be.
type ConfigSnapshot struct {
	Values map[string]interface{}
	Hash   string
}

// ConfigSnapshotFromConfig hashes cfg's raw key/value view.
func ConfigSnapshotFromConfig(cfg *config.Config) (ConfigSnapshot, error) {
	values := configToMap(cfg)
	hash, err := canonicalize.HashObject(values)
	if err != nil {
		return ConfigSnapshot{}, fmt.Errorf("kernelctx: hash config snapshot: %w", err)
	}
	return ConfigSnapshot{Values: values, Hash: hash}, nil
}

func configToMap(cfg *config.Config) map[string]interface{} {
	return map[string]interface{}{
		"version":               cfg.Version,
		"mode":                  string(cfg.Mode),
		"config_schema_version": cfg.ConfigSchemaVersion,
		"home":                  cfg.Home,
		"actions_dir":           cfg.ActionsDir,
		"log_path":              cfg.LogPath,
		"log_schema_version":    cfg.LogSchemaVersion,
		"mutation_policy":       string(cfg.MutationPolicy),
		"planner_max_steps":     cfg.PlannerMaxSteps,
		"planner_max_seconds":   cfg.PlannerMaxSeconds,
		"resource_tier":         string(cfg.ResourceTier),
		"ledger_enabled":        cfg.LedgerEnabled,
		"ledger_dir":            cfg.LedgerDir,
		"ledger_filename":       cfg.LedgerFilename,
		"ledger_schema_version": cfg.LedgerSchemaVersion,
		"ledger_readonly":       cfg.LedgerReadonly,
		"agents_enabled":        cfg.AgentsEnabled,
		"emergency_halt":        cfg.EmergencyHalt,
		"freeze_reason":         string(cfg.FreezeReason),
	}
}

// ToMap renders the snapshot the way it is recorded externally.
func (s ConfigSnapshot) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"values": s.Values,
		"hash":   s.Hash,
	}
}

// artifact is one registered (name, uri) pair.
type artifact struct {
	name string
	uri  string
}

// ArtifactRegistry is an immutable, append-only, duplicate-name-rejecting
// set of registered run artifacts. Register returns a new registry; the
// receiver is left untouched, so callers that share a registry across
// goroutines never observe a partial update.
type ArtifactRegistry struct {
	entries []artifact
}

// Register returns a new registry with (name, uri) appended. It fails if
// name or uri is blank, or if name is already registered.
func (r ArtifactRegistry) Register(name, uri string) (ArtifactRegistry, error) {
	if name == "" {
		return r, fmt.Errorf("kernelctx: artifact name must be set")
	}
	if uri == "" {
		return r, fmt.Errorf("kernelctx: artifact uri must be set")
	}
	for _, e := range r.entries {
		if e.name == name {
			return r, fmt.Errorf("kernelctx: artifact %s already registered", name)
		}
	}
	next := make([]artifact, len(r.entries), len(r.entries)+1)
	copy(next, r.entries)
	next = append(next, artifact{name: name, uri: uri})
	return ArtifactRegistry{entries: next}, nil
}

// ToMap renders the registry as name -> uri.
func (r ArtifactRegistry) ToMap() map[string]string {
	out := make(map[string]string, len(r.entries))
	for _, e := range r.entries {
		out[e.name] = e.uri
	}
	return out
}

// KernelContext is the single frozen value a kernel run threads through
// every stage: where it runs, what config it ran with, what it has
// produced so far.
type KernelContext struct {
	Workspace WorkspacePaths
	RunID     string
	Config    ConfigSnapshot
	Artifacts ArtifactRegistry
}

// Options configures Build.
type Options struct {
	RunID     string
	Artifacts *ArtifactRegistry
}

// Build constructs a KernelContext from an already-loaded Config.
func Build(cfg *config.Config, opts Options) (KernelContext, error) {
	snapshot, err := ConfigSnapshotFromConfig(cfg)
	if err != nil {
		return KernelContext{}, err
	}
	runID := opts.RunID
	if runID == "" {
		runID = uuid.New().String()
	}
	artifacts := ArtifactRegistry{}
	if opts.Artifacts != nil {
		artifacts = *opts.Artifacts
	}
	return KernelContext{
		Workspace: WorkspacePathsFromConfig(cfg),
		RunID:     runID,
		Config:    snapshot,
		Artifacts: artifacts,
	}, nil
}

// RegisterArtifact returns a new KernelContext with the artifact
// registered; kc itself is unchanged.
func (kc KernelContext) RegisterArtifact(name, uri string) (KernelContext, error) {
	next, err := kc.Artifacts.Register(name, uri)
	if err != nil {
		return kc, err
	}
	kc.Artifacts = next
	return kc, nil
}

// ToMap renders the full context the way it is recorded externally.
func (kc KernelContext) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"workspace": kc.Workspace.ToMap(),
		"run_id":    kc.RunID,
		"config":    kc.Config.ToMap(),
		"artifacts": kc.Artifacts.ToMap(),
	}
}
