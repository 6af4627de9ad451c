// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 R2X Contributors

package manifest_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r2x-tools/r2x/internal/manifest"
)

func reedsManifest() *manifest.Manifest {
	m := manifest.New()
	pkg := m.GetOrCreatePackage("r2x-reeds")
	pkg.Version = "1.4.0"
	pkg.ReplacePlugins([]manifest.PluginSpec{
		{
			Name:           "reeds-parser",
			Kind:           manifest.KindParser,
			EntryModule:    "r2x_reeds.parser",
			EntrySymbol:    "ReEDSParser",
			Implementation: manifest.ImplClass,
			CallMethod:     "build_system",
			Constructor: []manifest.ArgumentSpec{
				{Name: "config", Annotation: "ReEDSConfig", Required: true},
				{Name: "path", Annotation: "str", Required: true},
			},
			IO: manifest.DefaultIO(manifest.KindParser),
		},
		{
			Name:           "break-gens",
			Kind:           manifest.KindModifier,
			EntryModule:    "r2x_reeds.mods",
			EntrySymbol:    "break_gens",
			Implementation: manifest.ImplFunction,
		},
	})
	return m
}

func TestGetOrCreatePackage(t *testing.T) {
	m := manifest.New()
	pkg := m.GetOrCreatePackage("r2x-test")

	assert.Equal(t, "0.0.0", pkg.Version)
	assert.Equal(t, manifest.InstallExplicit, pkg.InstallType)

	// Second call returns the same entry.
	again := m.GetOrCreatePackage("r2x-test")
	assert.Same(t, pkg, again)
	assert.Len(t, m.Packages, 1)
}

func TestDependencyTracking(t *testing.T) {
	m := manifest.New()
	m.GetOrCreatePackage("r2x-main")
	m.GetOrCreatePackage("r2x-dep")
	m.MarkDependency("r2x-dep", "r2x-main")
	m.MarkDependency("r2x-dep", "r2x-main") // idempotent
	m.AddDependency("r2x-main", "r2x-dep")
	m.AddDependency("r2x-main", "r2x-dep") // no duplicate edge

	dep := m.GetPackage("r2x-dep")
	require.NotNil(t, dep)
	assert.Equal(t, manifest.InstallDependency, dep.InstallType)
	assert.Equal(t, []string{"r2x-main"}, dep.InstalledBy)

	main := m.GetPackage("r2x-main")
	require.NotNil(t, main)
	assert.Equal(t, []string{"r2x-dep"}, main.Dependencies)

	assert.Equal(t, []string{"r2x-main"}, m.Dependents("r2x-dep"))
	assert.False(t, m.CanRemovePackage("r2x-dep"))
	assert.True(t, m.CanRemovePackage("r2x-main"))
}

func TestRemovePackageWithDeps(t *testing.T) {
	t.Run("orphaned dependency removed", func(t *testing.T) {
		m := manifest.New()
		m.GetOrCreatePackage("r2x-main")
		m.GetOrCreatePackage("r2x-dep")
		m.MarkDependency("r2x-dep", "r2x-main")
		m.AddDependency("r2x-main", "r2x-dep")

		removed := m.RemovePackageWithDeps("r2x-main")
		assert.Equal(t, []string{"r2x-main", "r2x-dep"}, removed)
		assert.True(t, m.IsEmpty())
	})

	t.Run("shared dependency survives", func(t *testing.T) {
		m := manifest.New()
		m.GetOrCreatePackage("r2x-main1")
		m.GetOrCreatePackage("r2x-main2")
		m.GetOrCreatePackage("r2x-shared")
		m.MarkDependency("r2x-shared", "r2x-main1")
		m.MarkDependency("r2x-shared", "r2x-main2")
		m.AddDependency("r2x-main1", "r2x-shared")
		m.AddDependency("r2x-main2", "r2x-shared")

		removed := m.RemovePackageWithDeps("r2x-main1")
		assert.Equal(t, []string{"r2x-main1"}, removed)

		shared := m.GetPackage("r2x-shared")
		require.NotNil(t, shared)
		assert.Equal(t, []string{"r2x-main2"}, shared.InstalledBy)
	})

	t.Run("explicit dependency survives orphaning", func(t *testing.T) {
		m := manifest.New()
		m.GetOrCreatePackage("r2x-main")
		m.GetOrCreatePackage("r2x-also-wanted")
		m.MarkDependency("r2x-also-wanted", "r2x-main")
		m.MarkExplicit("r2x-also-wanted")
		m.AddDependency("r2x-main", "r2x-also-wanted")

		removed := m.RemovePackageWithDeps("r2x-main")
		assert.Equal(t, []string{"r2x-main"}, removed)
		assert.NotNil(t, m.GetPackage("r2x-also-wanted"))
	})
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "manifest.toml")
	m := reedsManifest()
	m.GetPackage("r2x-reeds").SourceURI = "git+https://github.com/example/r2x-reeds"
	m.GetPackage("r2x-reeds").Editable = true

	require.NoError(t, m.SaveTo(path))

	loaded, err := manifest.LoadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, manifest.Version, loaded.Metadata.Version)
	assert.NotEmpty(t, loaded.Metadata.GeneratedAt)

	pkg := loaded.GetPackage("r2x-reeds")
	require.NotNil(t, pkg)
	assert.Equal(t, "1.4.0", pkg.Version)
	assert.True(t, pkg.Editable)
	require.Len(t, pkg.Plugins, 2)

	parser := pkg.Plugin("reeds-parser")
	require.NotNil(t, parser)
	assert.Equal(t, manifest.KindParser, parser.Kind)
	assert.Equal(t, "r2x_reeds.parser:ReEDSParser", parser.Entry())
	assert.Equal(t, "build_system", parser.CallMethod)
	assert.Equal(t, []manifest.IOSlot{manifest.SlotStoreFolder, manifest.SlotConfigFile}, parser.IO.Consumes)
	require.NotNil(t, parser.Parameter("path"))
	assert.True(t, parser.Parameter("path").Required)
}

func TestLoadMissingFileYieldsEmpty(t *testing.T) {
	m, err := manifest.LoadFrom(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.True(t, m.IsEmpty())
	assert.Equal(t, manifest.Version, m.Metadata.Version)
}

func TestLoadSurfacesParseFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.toml")
	require.NoError(t, os.WriteFile(path, []byte("not [valid toml"), 0o600))

	_, err := manifest.LoadFrom(path)
	require.Error(t, err)
}

func TestSaveLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.toml")
	require.NoError(t, reedsManifest().SaveTo(path))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "manifest.toml", entries[0].Name())
}

func TestInferKind(t *testing.T) {
	tests := []struct {
		name string
		want manifest.PluginKind
	}{
		{"ReEDSParser", manifest.KindParser},
		{"PlexosExporter", manifest.KindExporter},
		{"schema_upgrader", manifest.KindUpgrader},
		{"break_gens_modifier", manifest.KindModifier},
		{"sienna_transform", manifest.KindModifier},
		{"translate_units", manifest.KindTranslation},
		{"helper", manifest.KindUtility},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, manifest.InferKind(tt.name, manifest.KindUtility))
		})
	}
}
