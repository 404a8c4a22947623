package capabilities

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, dir, name string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("name: test\n"), 0o644))
}

func TestDiscoverActionNamesSortedByFilename(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "beta.yaml")
	writeManifest(t, dir, "alpha.yaml")

	names, err := DiscoverActionNames(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta"}, names)
}

func TestDiscoverActionNamesSkipsUnderscorePrefixedAndNonYAML(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "_private.yaml")
	writeManifest(t, dir, "visible.yaml")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	names, err := DiscoverActionNames(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"visible"}, names)
}

func TestDiscoverActionNamesRejectsDuplicateStems(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "deploy.yaml")
	writeManifest(t, dir, "deploy.yml")

	_, err := DiscoverActionNames(dir)
	assert.Error(t, err)
}

func TestDiscoverActionNamesMissingDirIsEmpty(t *testing.T) {
	names, err := DiscoverActionNames(filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestDiscoverActionNamesRejectsSymlinkedActionsDir(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "real")
	require.NoError(t, os.Mkdir(target, 0o755))
	link := filepath.Join(dir, "link")
	require.NoError(t, os.Symlink(target, link))

	_, err := DiscoverActionNames(link)
	assert.Error(t, err)
}

func TestDiscoverActionNamesRejectsSymlinkedManifestFile(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "real.yaml")
	require.NoError(t, os.Symlink(filepath.Join(dir, "real.yaml"), filepath.Join(dir, "link.yaml")))

	_, err := DiscoverActionNames(dir)
	assert.Error(t, err)
}
