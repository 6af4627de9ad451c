// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 R2X Contributors

// Package pipeline loads pipeline documents, binds stages to plugins and
// drives them through the guest bridge.
package pipeline

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/samber/oops"
	"gopkg.in/yaml.v3"

	"github.com/r2x-tools/r2x/internal/manifest"
	"github.com/r2x-tools/r2x/internal/naming"
)

// Document is the parsed pipeline YAML.
type Document struct {
	Variables    map[string]any            `yaml:"variables,omitempty" json:"variables,omitempty"`
	Pipelines    map[string][]string       `yaml:"pipelines" json:"pipelines"`
	Config       map[string]map[string]any `yaml:"config,omitempty" json:"config,omitempty"`
	OutputFolder string                    `yaml:"output_folder,omitempty" json:"output_folder,omitempty"`
}

// Load reads and parses a pipeline document. A missing extension falls
// back to the .yaml and .yml siblings before failing.
func Load(path string) (*Document, error) {
	data, resolved, err := readWithExtensionFallback(path)
	if err != nil {
		return nil, err
	}
	if err := ValidateSchema(data); err != nil {
		return nil, oops.Code("PIPELINE_PARSE_FAILED").
			With("path", resolved).
			Wrap(err)
	}
	return Parse(data, resolved)
}

// Parse unmarshals a document and substitutes variables into its string
// leaves.
func Parse(data []byte, path string) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, oops.Code("PIPELINE_PARSE_FAILED").
			With("path", path).
			Wrap(err)
	}
	if err := doc.substituteAll(); err != nil {
		return nil, err
	}
	return &doc, nil
}

func readWithExtensionFallback(path string) ([]byte, string, error) {
	candidates := []string{path}
	if !strings.HasSuffix(path, ".yaml") && !strings.HasSuffix(path, ".yml") {
		candidates = append(candidates, path+".yaml", path+".yml")
	} else if strings.HasSuffix(path, ".yaml") {
		candidates = append(candidates, strings.TrimSuffix(path, ".yaml")+".yml")
	} else {
		candidates = append(candidates, strings.TrimSuffix(path, ".yml")+".yaml")
	}

	for _, candidate := range candidates {
		data, err := os.ReadFile(candidate)
		if err == nil {
			return data, candidate, nil
		}
	}
	return nil, "", oops.Code("CONFIG_NOT_FOUND").
		With("path", path).
		Errorf("pipeline file not found: %s", path)
}

// PipelineNames returns the declared pipeline names, sorted.
func (d *Document) PipelineNames() []string {
	names := make([]string, 0, len(d.Pipelines))
	for name := range d.Pipelines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Pipeline returns the stage references of a named pipeline. An empty name
// selects the only pipeline when exactly one is declared.
func (d *Document) Pipeline(name string) ([]string, error) {
	if name == "" {
		if len(d.Pipelines) == 1 {
			for _, stages := range d.Pipelines {
				return stages, nil
			}
		}
		return nil, oops.Code("PIPELINE_NOT_FOUND").
			With("available", d.PipelineNames()).
			Errorf("pipeline name required, choose one of: %s",
				strings.Join(d.PipelineNames(), ", "))
	}
	stages, ok := d.Pipelines[name]
	if !ok {
		return nil, oops.Code("PIPELINE_NOT_FOUND").
			With("pipeline", name).
			With("available", d.PipelineNames()).
			Errorf("pipeline %q not found", name)
	}
	return stages, nil
}

// StageConfig finds the per-stage config block by searching name
// candidates: the raw reference, package-qualified plugin variants, bare
// plugin variants, and the package-qualified kind alias.
func (d *Document) StageConfig(ref string, pkg *manifest.Package, plugin *manifest.PluginSpec) map[string]any {
	for _, key := range configKeyCandidates(ref, pkg.Name, plugin.Name, string(plugin.Kind)) {
		if cfg, ok := d.Config[key]; ok {
			return cfg
		}
	}
	return nil
}

func configKeyCandidates(ref, packageName, pluginName, kindAlias string) []string {
	var candidates []string
	seen := make(map[string]bool)
	add := func(key string) {
		if key != "" && !seen[key] {
			seen[key] = true
			candidates = append(candidates, key)
		}
	}

	add(ref)
	for _, pv := range naming.Variants(packageName) {
		for _, nv := range naming.Variants(pluginName) {
			add(pv + "." + nv)
		}
	}
	for _, nv := range naming.Variants(pluginName) {
		add(nv)
	}
	for _, pv := range naming.Variants(packageName) {
		add(pv + "." + kindAlias)
	}
	return candidates
}

// substituteAll resolves ${var} and $(var) in the document's string leaves.
func (d *Document) substituteAll() error {
	out, err := substituteString(d.OutputFolder, d.Variables)
	if err != nil {
		return err
	}
	d.OutputFolder = out

	for stage, cfg := range d.Config {
		substituted, err := substituteValue(cfg, d.Variables)
		if err != nil {
			return err
		}
		d.Config[stage] = substituted.(map[string]any)
	}
	return nil
}

func substituteValue(value any, vars map[string]any) (any, error) {
	switch v := value.(type) {
	case string:
		return substituteString(v, vars)
	case map[string]any:
		result := make(map[string]any, len(v))
		for key, inner := range v {
			substituted, err := substituteValue(inner, vars)
			if err != nil {
				return nil, err
			}
			result[key] = substituted
		}
		return result, nil
	case []any:
		result := make([]any, len(v))
		for i, inner := range v {
			substituted, err := substituteValue(inner, vars)
			if err != nil {
				return nil, err
			}
			result[i] = substituted
		}
		return result, nil
	default:
		return value, nil
	}
}

// substituteString expands ${var} and $(var) references.
func substituteString(s string, vars map[string]any) (string, error) {
	var out strings.Builder
	for i := 0; i < len(s); {
		if s[i] != '$' || i+1 >= len(s) || (s[i+1] != '{' && s[i+1] != '(') {
			out.WriteByte(s[i])
			i++
			continue
		}

		closer := byte('}')
		if s[i+1] == '(' {
			closer = ')'
		}
		end := strings.IndexByte(s[i+2:], closer)
		if end < 0 {
			return "", oops.Code("CONFIG_INVALID").
				With("value", s).
				Errorf("unclosed variable reference in %q", s)
		}
		name := s[i+2 : i+2+end]
		value, ok := vars[name]
		if !ok {
			return "", oops.Code("CONFIG_VARIABLE_NOT_FOUND").
				With("variable", name).
				Errorf("variable %q is not defined", name)
		}
		fmt.Fprintf(&out, "%v", value)
		i += end + 3
	}
	return out.String(), nil
}
