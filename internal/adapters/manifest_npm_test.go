package adapters

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"release-train/internal/types"
)

func writeManifest(t *testing.T, dir string, name string, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func TestNpmManifestRead(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "package.json", `{
		"name": "@scope/util",
		"version": "1.2.3",
		"dependencies": {"@scope/core": "^1.0.0", "lodash": "^4.0.0"},
		"devDependencies": {"@scope/core": "^1.0.0", "vitest": "^2.0.0"}
	}`)

	pkg, ok, err := NewNpmManifestAdapter().Read(dir)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "@scope/util", pkg.Name)
	assert.Equal(t, "1.2.3", pkg.Version)
	assert.False(t, pkg.Private)
	assert.Equal(t, types.EcosystemNpm, pkg.Ecosystem)
	assert.Equal(t, []string{"@scope/core", "lodash", "vitest"}, pkg.DependsOn)
}

func TestNpmManifestReadPrivate(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "package.json", `{"name": "internal-tool", "version": "0.0.1", "private": true}`)

	pkg, ok, err := NewNpmManifestAdapter().Read(dir)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, pkg.Private)
}

func TestNpmManifestReadMissingManifest(t *testing.T) {
	_, ok, err := NewNpmManifestAdapter().Read(t.TempDir())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNpmManifestReadMalformed(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "package.json", `{not json`)

	_, _, err := NewNpmManifestAdapter().Read(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed package.json")
}

func TestNpmManifestReadMissingIdentity(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "package.json", `{"name": "no-version"}`)

	_, _, err := NewNpmManifestAdapter().Read(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing name or version")
}
