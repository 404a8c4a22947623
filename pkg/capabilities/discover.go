package capabilities

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dreezy-6/adaad6/pkg/manifest"
)

type manifestCandidate struct {
	fullPath string
	fileName string
	stem     string
}

// listManifestCandidates enumerates actionsDir's action manifests: every
// regular, non-symlinked ".yaml"/".yml" file whose name doesn't start with
// "_", sorted by filename. actionsDir itself must not be a symlink. A
// missing directory yields an empty, error-free result.
func listManifestCandidates(actionsDir string) ([]manifestCandidate, error) {
	info, err := os.Lstat(actionsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("capabilities: stat actions dir: %w", err)
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return nil, fmt.Errorf("capabilities: actions_dir must not be a symlink")
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("capabilities: actions_dir must be a directory")
	}

	entries, err := os.ReadDir(actionsDir)
	if err != nil {
		return nil, fmt.Errorf("capabilities: read actions dir: %w", err)
	}

	var candidates []manifestCandidate
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, "_") {
			continue
		}
		ext := filepath.Ext(name)
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		fullPath := filepath.Join(actionsDir, name)
		fi, err := os.Lstat(fullPath)
		if err != nil {
			return nil, fmt.Errorf("capabilities: stat %s: %w", name, err)
		}
		if fi.Mode()&os.ModeSymlink != 0 {
			return nil, fmt.Errorf("capabilities: action manifest %s must not be a symlink", name)
		}
		if !fi.Mode().IsRegular() {
			continue
		}
		stem := strings.ToLower(strings.TrimSuffix(name, ext))
		candidates = append(candidates, manifestCandidate{fullPath: fullPath, fileName: name, stem: stem})
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].fileName < candidates[j].fileName })
	return candidates, nil
}

// DiscoverActionNames lists the action names declared by manifest files in
// actionsDir: every regular, non-symlinked ".yaml"/".yml" file whose name
// doesn't start with "_", with the stem lowercased to the action name.
// actionsDir itself must not be a symlink. Results are returned sorted by
// filename, matching the reference loader's directory-order discovery;
// duplicate stems (e.g. "deploy.yaml" and "deploy.yml" both present) are a
// hard error.
func DiscoverActionNames(actionsDir string) ([]string, error) {
	candidates, err := listManifestCandidates(actionsDir)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(candidates))
	names := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if seen[c.stem] {
			return nil, fmt.Errorf("capabilities: duplicate action name: %s", c.stem)
		}
		seen[c.stem] = true
		names = append(names, c.stem)
	}
	return names, nil
}

// DiscoverModules parses every manifest in actionsDir into a manifest.Module,
// in the same filename order DiscoverActionNames enumerates names in.
// Unlike DiscoverActionNames (which only cares about the filename), this
// decodes each file's YAML body, so a malformed manifest is a hard error
// here even when it would pass DiscoverActionNames unnoticed.
func DiscoverModules(actionsDir string) ([]manifest.Module, error) {
	candidates, err := listManifestCandidates(actionsDir)
	if err != nil {
		return nil, err
	}

	mods := make([]manifest.Module, 0, len(candidates))
	for _, c := range candidates {
		mod, err := manifest.LoadModule(c.fullPath)
		if err != nil {
			return nil, err
		}
		mods = append(mods, mod)
	}
	return mods, nil
}
