// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 R2X Contributors

package entrypoints_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r2x-tools/r2x/internal/entrypoints"
	"github.com/r2x-tools/r2x/internal/manifest"
)

func TestParseSectionTable(t *testing.T) {
	content := `
# generated by the build backend
[console_scripts]
reeds-cli = r2x_reeds.cli:main

[r2x_plugin]
reeds = r2x_reeds:register_plugin

[r2x.transforms]
break-gens = "r2x_reeds.mods:break_gens"
`
	records := entrypoints.ParseSectionTable(content)
	require.Len(t, records, 2)

	assert.Equal(t, entrypoints.Record{
		Name:    "reeds",
		Module:  "r2x_reeds",
		Symbol:  "register_plugin",
		Section: "r2x_plugin",
	}, records[0])
	assert.True(t, records[0].IsManifestBased())
	assert.False(t, records[0].IsClass())
	assert.Equal(t, "r2x_reeds:register_plugin", records[0].Entry())

	// Quoted targets are tolerated.
	assert.Equal(t, "r2x_reeds.mods", records[1].Module)
	assert.Equal(t, "break_gens", records[1].Symbol)
	assert.Equal(t, manifest.KindModifier, records[1].Kind())
}

func TestParseSectionTableSkipsMalformedLines(t *testing.T) {
	content := `
[r2x_plugin]
valid = mod:sym
missing-symbol = mod:
missing-module = :sym
no-separator = modsym
empty-name = mod:sym2
 = mod:sym3
`
	records := entrypoints.ParseSectionTable(content)
	require.Len(t, records, 2)
	assert.Equal(t, "valid", records[0].Name)
	assert.Equal(t, "empty-name", records[1].Name)
}

func TestParseSectionTableEmptyInput(t *testing.T) {
	assert.Empty(t, entrypoints.ParseSectionTable(""))
	assert.Empty(t, entrypoints.ParseSectionTable("[other_tool]\nx = a:b\n"))
}

func TestRecordKind(t *testing.T) {
	tests := []struct {
		name    string
		section string
		symbol  string
		want    manifest.PluginKind
	}{
		{"main section symbol keyword", "r2x_plugin", "ReEDSParser", manifest.KindParser},
		{"main section exporter", "r2x_plugin", "plexos_export", manifest.KindExporter},
		{"main section default", "r2x_plugin", "register_plugin", manifest.KindParser},
		{"namespaced transforms", "r2x.transforms", "break_gens", manifest.KindModifier},
		{"namespaced parsers", "r2x.parsers", "anything", manifest.KindParser},
		{"namespaced upgraders", "r2x.upgraders", "anything", manifest.KindUpgrader},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := entrypoints.Record{Name: "x", Module: "m", Symbol: tt.symbol, Section: tt.section}
			assert.Equal(t, tt.want, rec.Kind())
		})
	}
}

func TestParsePyproject(t *testing.T) {
	data := []byte(`
[project]
name = "r2x-reeds"

[project.entry-points."r2x_plugin"]
reeds = "r2x_reeds:register_plugin"

[project.entry-points."r2x.transforms"]
break-gens = "r2x_reeds.mods:break_gens"
`)
	records := entrypoints.ParsePyproject(data)
	assert.ElementsMatch(t, []entrypoints.Record{
		{Name: "reeds", Module: "r2x_reeds", Symbol: "register_plugin", Section: "r2x_plugin"},
		{Name: "break-gens", Module: "r2x_reeds.mods", Symbol: "break_gens", Section: "r2x.transforms"},
	}, records)
}

func TestParsePyprojectDuplicateSectionLastWins(t *testing.T) {
	data := []byte(`
[project]
name = "demo"

[project.entry-points.r2x_plugin]
first = "demo:one"

[project.entry-points."r2x_plugin"]
second = "demo:two"
`)
	records := entrypoints.ParsePyproject(data)
	require.Len(t, records, 1)
	assert.Equal(t, "second", records[0].Name)
	assert.Equal(t, "two", records[0].Symbol)
}

func TestParsePyprojectMalformed(t *testing.T) {
	assert.Empty(t, entrypoints.ParsePyproject([]byte("not [valid toml")))
	assert.Empty(t, entrypoints.ParsePyproject([]byte("[project]\nname = \"x\"\n")))
}

func TestFindRecords(t *testing.T) {
	t.Run("dist-info wins over pyproject", func(t *testing.T) {
		site := t.TempDir()
		src := filepath.Join(site, "r2x_reeds")
		require.NoError(t, os.MkdirAll(src, 0o755))
		distInfo := filepath.Join(site, "r2x_reeds-1.4.0.dist-info")
		require.NoError(t, os.MkdirAll(distInfo, 0o755))
		require.NoError(t, os.WriteFile(
			filepath.Join(distInfo, "entry_points.txt"),
			[]byte("[r2x_plugin]\nreeds = r2x_reeds:register_plugin\n"), 0o600))

		records := entrypoints.FindRecords(src, "r2x-reeds")
		require.Len(t, records, 1)
		assert.Equal(t, "reeds", records[0].Name)
	})

	t.Run("falls back to parent pyproject for editable installs", func(t *testing.T) {
		repo := t.TempDir()
		src := filepath.Join(repo, "r2x_reeds")
		require.NoError(t, os.MkdirAll(src, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(repo, "pyproject.toml"), []byte(`
[project]
name = "r2x-reeds"

[project.entry-points."r2x_plugin"]
reeds = "r2x_reeds:register_plugin"
`), 0o600))

		records := entrypoints.FindRecords(src, "r2x-reeds")
		require.Len(t, records, 1)
		assert.Equal(t, "r2x_reeds", records[0].Module)
	})

	t.Run("no descriptors yields empty", func(t *testing.T) {
		assert.Empty(t, entrypoints.FindRecords(t.TempDir(), "r2x-none"))
	})
}
