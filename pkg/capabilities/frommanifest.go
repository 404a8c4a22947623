package capabilities

import (
	"context"
	"fmt"
	"strings"

	"github.com/dreezy-6/adaad6/pkg/config"
	"github.com/dreezy-6/adaad6/pkg/firewall"
	"github.com/dreezy-6/adaad6/pkg/manifest"
)

// passthroughDispatcher is the firewall's terminal Dispatcher for a
// manifest-declared capability: these modules carry no registered Go logic
// of their own, so once the firewall's allowlist/schema gate clears a call,
// dispatch is simply returning the already-validated params back out.
type passthroughDispatcher struct{}

func (passthroughDispatcher) Dispatch(_ context.Context, _ string, params map[string]any) (any, error) {
	return params, nil
}

// ModulesFromManifests turns every manifest discovered under actionsDir
// into a registrable ActionModule, gated by a firewall.PolicyFirewall built
// from that manifest's own declared capabilities: a capability's ArgsSchema
// is compiled as a JSON Schema and enforced against the step's params
// before Validate ever returns, the same allowlist-then-schema gate the
// firewall enforces for any other dispatcher.
func ModulesFromManifests(actionsDir string) ([]ActionModule, error) {
	mods, err := DiscoverModules(actionsDir)
	if err != nil {
		return nil, err
	}

	out := make([]ActionModule, 0, len(mods))
	for _, mod := range mods {
		module, err := actionModuleFromManifest(mod)
		if err != nil {
			return nil, err
		}
		out = append(out, module)
	}
	return out, nil
}

func actionModuleFromManifest(mod manifest.Module) (ActionModule, error) {
	name := strings.ToLower(strings.TrimSpace(mod.Name))
	fw := firewall.NewPolicyFirewall(passthroughDispatcher{})

	// toolName is the firewall's allowlist key: the module's first declared
	// capability, lowercased for the same case-insensitive matching the
	// registry itself uses, or the module name when it declares none.
	toolName := name
	if len(mod.Capabilities) > 0 {
		toolName = strings.ToLower(strings.TrimSpace(mod.Capabilities[0].Name))
	}
	for _, capa := range mod.Capabilities {
		toolKey := strings.ToLower(strings.TrimSpace(capa.Name))
		if err := fw.AllowTool(toolKey, capa.ArgsSchema); err != nil {
			return ActionModule{}, fmt.Errorf("capabilities: manifest %s: %w", mod.Name, err)
		}
	}
	// A manifest with no declared capabilities still registers as an
	// action named after the module itself, gated open (no schema).
	if len(mod.Capabilities) == 0 {
		if err := fw.AllowTool(toolName, ""); err != nil {
			return ActionModule{}, fmt.Errorf("capabilities: manifest %s: %w", mod.Name, err)
		}
	}
	bundle := firewall.PolicyInputBundle{ActorID: "executor", Role: "manifest_action"}

	return ActionModule{
		Name:       name,
		Provenance: "manifest:" + mod.Name,
		Validate: func(params map[string]interface{}, cfg *config.Config) (map[string]interface{}, error) {
			result, err := fw.CallTool(context.Background(), bundle, toolName, params)
			if err != nil {
				return nil, fmt.Errorf("capabilities: %w", err)
			}
			validated, ok := result.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("capabilities: manifest action %q: firewall returned non-object params", name)
			}
			return validated, nil
		},
		Run: func(validated map[string]interface{}) (map[string]interface{}, error) {
			return validated, nil
		},
		Postcheck: func(result map[string]interface{}, cfg *config.Config) (map[string]interface{}, error) {
			return result, nil
		},
	}, nil
}
