// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 R2X Contributors

package pipeline_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r2x-tools/r2x/internal/pipeline"
)

const sampleDocument = `
variables:
  year: 2030
  scenario: high_demand

pipelines:
  main:
    - r2x-reeds.parser
    - r2x-plexos.exporter

config:
  r2x-reeds.parser:
    solve_year: ${year}
    label: "run-$(scenario)"
    nested:
      folder: ${scenario}/data

output_folder: ./out/${scenario}
`

func TestParseSubstitutesVariables(t *testing.T) {
	doc, err := pipeline.Parse([]byte(sampleDocument), "pipeline.yaml")
	require.NoError(t, err)

	assert.Equal(t, "./out/high_demand", doc.OutputFolder)

	cfg := doc.Config["r2x-reeds.parser"]
	assert.Equal(t, "2030", cfg["solve_year"])
	assert.Equal(t, "run-high_demand", cfg["label"])
	nested, ok := cfg["nested"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "high_demand/data", nested["folder"])
}

func TestParseUnknownVariableFails(t *testing.T) {
	_, err := pipeline.Parse([]byte("config:\n  stage:\n    x: ${missing}\npipelines: {}\n"), "p.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}

func TestParseUnclosedReferenceFails(t *testing.T) {
	_, err := pipeline.Parse([]byte("output_folder: ${open\npipelines: {}\n"), "p.yaml")
	require.Error(t, err)
}

func TestLoadExtensionFallback(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.yml")
	require.NoError(t, os.WriteFile(path, []byte("pipelines:\n  main: []\n"), 0o600))

	doc, err := pipeline.Load(filepath.Join(dir, "pipeline"))
	require.NoError(t, err)
	assert.Contains(t, doc.Pipelines, "main")

	_, err = pipeline.Load(filepath.Join(dir, "absent"))
	require.Error(t, err)
}

func TestPipelineSelection(t *testing.T) {
	doc := &pipeline.Document{Pipelines: map[string][]string{
		"only": {"a", "b"},
	}}

	stages, err := doc.Pipeline("")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, stages)

	doc.Pipelines["second"] = []string{"c"}
	_, err = doc.Pipeline("")
	require.Error(t, err)

	_, err = doc.Pipeline("absent")
	require.Error(t, err)
}

func TestStageConfigSearchOrder(t *testing.T) {
	m := demoManifest()
	pkg, plugin, err := m.Resolve("r2x-reeds.parser")
	require.NoError(t, err)

	tests := []struct {
		name string
		key  string
	}{
		{name: "raw reference", key: "r2x-reeds.parser"},
		{name: "underscore package variant", key: "r2x_reeds.reeds_parser"},
		{name: "bare plugin name", key: "reeds-parser"},
		{name: "kind alias", key: "r2x_reeds.parser"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := &pipeline.Document{Config: map[string]map[string]any{
				tt.key: {"found": true},
			}}
			cfg := doc.StageConfig("r2x-reeds.parser", pkg, plugin)
			require.NotNil(t, cfg)
			assert.Equal(t, true, cfg["found"])
		})
	}
}

func TestTemplateRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	require.NoError(t, pipeline.WriteTemplate(path))
	require.Error(t, pipeline.WriteTemplate(path))

	doc, err := pipeline.Load(path)
	require.NoError(t, err)
	assert.Contains(t, doc.Pipelines, "default")
	assert.Equal(t, "./output", doc.OutputFolder)
}

func TestTemplateMatchesSchema(t *testing.T) {
	schema, err := pipeline.GenerateSchema()
	require.NoError(t, err)
	assert.NotEmpty(t, schema)

	require.NoError(t, pipeline.ValidateSchema([]byte(pipeline.Template)))
}
