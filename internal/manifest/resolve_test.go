// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 R2X Contributors

package manifest_test

import (
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r2x-tools/r2x/internal/manifest"
)

func errCode(t *testing.T, err error) string {
	t.Helper()
	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok)
	code, ok := oopsErr.Code().(string)
	require.True(t, ok)
	return code
}

func TestResolve(t *testing.T) {
	m := reedsManifest()

	t.Run("bare name", func(t *testing.T) {
		pkg, plugin, err := m.Resolve("reeds-parser")
		require.NoError(t, err)
		assert.Equal(t, "r2x-reeds", pkg.Name)
		assert.Equal(t, "reeds-parser", plugin.Name)
	})

	t.Run("bare name with underscores", func(t *testing.T) {
		_, plugin, err := m.Resolve("reeds_parser")
		require.NoError(t, err)
		assert.Equal(t, "reeds-parser", plugin.Name)
	})

	t.Run("dotted reference", func(t *testing.T) {
		_, plugin, err := m.Resolve("r2x-reeds.reeds-parser")
		require.NoError(t, err)
		assert.Equal(t, "reeds-parser", plugin.Name)
	})

	t.Run("dotted reference with underscore variants", func(t *testing.T) {
		_, plugin, err := m.Resolve("r2x_reeds.break_gens")
		require.NoError(t, err)
		assert.Equal(t, "break-gens", plugin.Name)
	})

	t.Run("kind alias", func(t *testing.T) {
		_, plugin, err := m.Resolve("r2x-reeds.parser")
		require.NoError(t, err)
		assert.Equal(t, "reeds-parser", plugin.Name)
	})

	t.Run("unique modifier alias", func(t *testing.T) {
		_, plugin, err := m.Resolve("r2x-reeds.modifier")
		require.NoError(t, err)
		assert.Equal(t, "break-gens", plugin.Name)
	})

	t.Run("ambiguous alias", func(t *testing.T) {
		m2 := reedsManifest()
		pkg := m2.GetPackage("r2x-reeds")
		pkg.ReplacePlugins(append(pkg.Plugins, manifest.PluginSpec{
			Name:           "merge-gens",
			Kind:           manifest.KindModifier,
			EntryModule:    "r2x_reeds.mods",
			EntrySymbol:    "merge_gens",
			Implementation: manifest.ImplFunction,
		}))

		_, _, err := m2.Resolve("r2x-reeds.modifier")
		require.Error(t, err)
		assert.Equal(t, "PLUGIN_AMBIGUOUS", errCode(t, err))
	})

	t.Run("not found", func(t *testing.T) {
		_, _, err := m.Resolve("nope")
		require.Error(t, err)
		assert.Equal(t, "PLUGIN_NOT_FOUND", errCode(t, err))
	})

	t.Run("alias with zero matches falls through to not found", func(t *testing.T) {
		_, _, err := m.Resolve("r2x-reeds.exporter")
		require.Error(t, err)
		assert.Equal(t, "PLUGIN_NOT_FOUND", errCode(t, err))
	})
}

func TestRuntimeBindings(t *testing.T) {
	t.Run("class parser uses default method", func(t *testing.T) {
		p := &manifest.PluginSpec{
			Name:           "demo-parser",
			Kind:           manifest.KindParser,
			EntryModule:    "demo.parser",
			EntrySymbol:    "DemoParser",
			Implementation: manifest.ImplClass,
		}
		b := manifest.BuildRuntimeBindings(p)
		assert.Equal(t, "build_system", b.CallMethod)
		assert.Equal(t, "demo.parser:DemoParser.build_system", b.Target())
	})

	t.Run("function target has no method suffix", func(t *testing.T) {
		p := &manifest.PluginSpec{
			Name:           "break-gens",
			Kind:           manifest.KindModifier,
			EntryModule:    "demo.mods",
			EntrySymbol:    "break_gens",
			Implementation: manifest.ImplFunction,
			Call:           []manifest.ArgumentSpec{{Name: "system", Required: true}},
		}
		b := manifest.BuildRuntimeBindings(p)
		assert.Equal(t, "demo.mods:break_gens", b.Target())
		require.NotNil(t, b.Parameter("system"))
	})

	t.Run("upgrader class target has no method suffix", func(t *testing.T) {
		p := &manifest.PluginSpec{
			Name:           "schema-upgrader",
			Kind:           manifest.KindUpgrader,
			EntryModule:    "demo.upgrade",
			EntrySymbol:    "SchemaUpgrader",
			Implementation: manifest.ImplClass,
		}
		assert.Equal(t, "demo.upgrade:SchemaUpgrader", manifest.BuildRuntimeBindings(p).Target())
	})

	t.Run("store requirement carries over", func(t *testing.T) {
		p := &manifest.PluginSpec{
			Name:           "demo-parser",
			Kind:           manifest.KindParser,
			Implementation: manifest.ImplClass,
			Store:          &manifest.StoreSpec{Mode: manifest.StoreFolder},
		}
		assert.True(t, manifest.BuildRuntimeBindings(p).RequiresStore)
	})
}
