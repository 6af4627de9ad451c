// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 R2X Contributors

package locate_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r2x-tools/r2x/internal/locate"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestNewRequiresSitePackages(t *testing.T) {
	_, err := locate.New(filepath.Join(t.TempDir(), "missing"), "")
	require.Error(t, err)
}

func TestFindPackagePathDirect(t *testing.T) {
	site := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(site, "r2x_reeds"), 0o755))

	loc, err := locate.New(site, "")
	require.NoError(t, err)

	path, err := loc.FindPackagePath("r2x-reeds")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(site, "r2x_reeds"), path)
}

func TestFindPackagePathViaPointerFile(t *testing.T) {
	site := t.TempDir()
	cache := t.TempDir()
	source := t.TempDir()

	writeFile(t, filepath.Join(cache, "a1b2", "__editable__.r2x_reeds-1.2.3.pth"),
		"# comment\n"+source+"\n")

	loc, err := locate.New(site, cache)
	require.NoError(t, err)

	path, err := loc.FindPackagePath("r2x-reeds")
	require.NoError(t, err)
	assert.Equal(t, source, path)
}

func TestFindPackagePathPointerFileSkipsDeadPaths(t *testing.T) {
	site := t.TempDir()
	cache := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(site, "r2x_reeds"), 0o755))

	writeFile(t, filepath.Join(cache, "a1b2", "r2x_reeds.pth"), "/nonexistent/source\n")

	loc, err := locate.New(site, cache)
	require.NoError(t, err)

	path, err := loc.FindPackagePath("r2x-reeds")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(site, "r2x_reeds"), path)
}

func TestFindPackagePathViaTopLevel(t *testing.T) {
	site := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(site, "reedsmod"), 0o755))
	writeFile(t, filepath.Join(site, "r2x_reeds-1.0.0.dist-info", "top_level.txt"), "reedsmod\n")

	loc, err := locate.New(site, "")
	require.NoError(t, err)

	path, err := loc.FindPackagePath("r2x-reeds")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(site, "reedsmod"), path)
}

func TestFindPackagePathNotFound(t *testing.T) {
	loc, err := locate.New(t.TempDir(), "")
	require.NoError(t, err)

	_, err = loc.FindPackagePath("r2x-missing")
	require.Error(t, err)
}

func TestFindDistInfo(t *testing.T) {
	site := t.TempDir()
	writeFile(t, filepath.Join(site, "r2x_reeds-1.0.0.dist-info", "METADATA"), "")

	loc, err := locate.New(site, "")
	require.NoError(t, err)

	path, ok := loc.FindDistInfo("r2x-reeds")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(site, "r2x_reeds-1.0.0.dist-info"), path)

	_, ok = loc.FindDistInfo("r2x-other")
	assert.False(t, ok)
}

func TestHasPluginEntryPoints(t *testing.T) {
	site := t.TempDir()
	writeFile(t, filepath.Join(site, "r2x_reeds-1.0.0.dist-info", "entry_points.txt"),
		"[r2x_plugin]\nreeds = r2x_reeds:register_plugin\n")
	writeFile(t, filepath.Join(site, "requests-2.0.0.dist-info", "entry_points.txt"),
		"[console_scripts]\nreq = requests:main\n")

	loc, err := locate.New(site, "")
	require.NoError(t, err)

	assert.True(t, loc.HasPluginEntryPoints("r2x-reeds"))
	assert.False(t, loc.HasPluginEntryPoints("requests"))
}

func TestDiscoverPackages(t *testing.T) {
	site := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(site, "r2x_reeds"), 0o755))
	writeFile(t, filepath.Join(site, "r2x_reeds-1.0.0.dist-info", "entry_points.txt"),
		"[r2x.parsers]\nreeds = r2x_reeds:register_plugin\n")
	writeFile(t, filepath.Join(site, "r2x_core-3.0.0.dist-info", "entry_points.txt"),
		"[r2x_plugin]\ncore = r2x_core:register_plugin\n")
	writeFile(t, filepath.Join(site, "requests-2.0.0.dist-info", "entry_points.txt"),
		"[console_scripts]\nreq = requests:main\n")

	loc, err := locate.New(site, "")
	require.NoError(t, err)

	packages := loc.DiscoverPackages()
	require.Len(t, packages, 1)
	assert.Equal(t, "r2x-reeds", packages[0].Name)
	assert.Equal(t, filepath.Join(site, "r2x_reeds"), packages[0].Location)
	assert.False(t, packages[0].Editable)
}
