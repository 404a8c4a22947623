package manifest

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadModule reads and parses a single on-disk action-module manifest.
// Manifests are authored as YAML against the same field set Module's json
// tags expose, so a manifest author and a ledger-payload consumer see the
// same shape under two different encodings.
func LoadModule(path string) (Module, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Module{}, fmt.Errorf("manifest: read %s: %w", path, err)
	}
	var mod Module
	if err := yaml.Unmarshal(raw, &mod); err != nil {
		return Module{}, fmt.Errorf("manifest: parse %s: %w", path, err)
	}
	if strings.TrimSpace(mod.Name) == "" {
		return Module{}, fmt.Errorf("manifest: %s: name is required", path)
	}
	return mod, nil
}
