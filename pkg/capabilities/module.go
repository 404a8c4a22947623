// Package capabilities implements the Action Registry: the lowercase-
// named table of action modules (validate, run, postcheck triples) the
// Three-Stage Executor dispatches against. Built-in modules register in a
// deterministic order; user modules from the sandboxed actions directory
// overlay them only when their names are distinct — a name collision is a
// load-time error, never a silent override.
package capabilities

import (
	"fmt"

	"github.com/dreezy-6/adaad6/pkg/config"
)

// Validate checks and normalizes raw params before Run sees them.
type Validate func(params map[string]interface{}, cfg *config.Config) (map[string]interface{}, error)

// Run executes the action against already-validated input.
type Run func(validated map[string]interface{}) (map[string]interface{}, error)

// Postcheck inspects Run's output and fails if it violates the action's
// contract.
type Postcheck func(result map[string]interface{}, cfg *config.Config) (map[string]interface{}, error)

// ActionModule is the fixed (validate, run, postcheck) triple every
// registered action exposes.
type ActionModule struct {
	Name      string
	Validate  Validate
	Run       Run
	Postcheck Postcheck
	// Provenance is the registering package's import path. It is optional
	// (archetype filters that don't care about origin leave it blank) but
	// is how a revenue-safe filter like the monetizer archetype's tells a
	// module shipped by the kernel itself from one a deployment bolted on,
	// the Go analogue of the reference loader's module.__name__ check.
	Provenance string
}

func (m ActionModule) checkShape() error {
	if m.Name == "" {
		return fmt.Errorf("capabilities: action module name must be set")
	}
	if m.Validate == nil || m.Run == nil || m.Postcheck == nil {
		return fmt.Errorf("capabilities: action module %q missing validate/run/postcheck", m.Name)
	}
	return nil
}

// Registry is the name -> ActionModule table, built-ins first in
// registration order, user modules layered on after.
type Registry struct {
	order   []string
	modules map[string]ActionModule
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{modules: make(map[string]ActionModule)}
}

// RegisterBuiltin adds modules in the order given — callers are expected
// to pass them pre-sorted (by name) for a deterministic registration
// order, matching the reference loader's directory-listing order.
func (r *Registry) RegisterBuiltin(modules ...ActionModule) error {
	for _, m := range modules {
		if err := r.register(m); err != nil {
			return err
		}
	}
	return nil
}

// RegisterUser overlays modules discovered from the sandboxed actions
// directory. A name already present — builtin or user — is a hard error.
func (r *Registry) RegisterUser(modules ...ActionModule) error {
	for _, m := range modules {
		if err := r.register(m); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) register(m ActionModule) error {
	if err := m.checkShape(); err != nil {
		return err
	}
	if _, exists := r.modules[m.Name]; exists {
		return fmt.Errorf("capabilities: duplicate action name: %s", m.Name)
	}
	r.modules[m.Name] = m
	r.order = append(r.order, m.Name)
	return nil
}

// Get returns the action module registered under name.
func (r *Registry) Get(name string) (ActionModule, bool) {
	m, ok := r.modules[name]
	return m, ok
}

// Names returns every registered action name in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
