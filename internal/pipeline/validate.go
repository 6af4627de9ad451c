// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 R2X Contributors

package pipeline

import (
	"fmt"
	"strings"

	"github.com/samber/oops"

	"github.com/r2x-tools/r2x/internal/manifest"
	"github.com/r2x-tools/r2x/internal/naming"
)

// Violation is one missing required parameter found during validation.
type Violation struct {
	Stage     string
	Parameter string
}

func (v Violation) String() string {
	return fmt.Sprintf("stage %q: missing required parameter %q", v.Stage, v.Parameter)
}

// Validate resolves every stage of the pipeline and checks that each
// required parameter outside the auto-provided set has a config value.
// All violations are accumulated into a single error.
func Validate(doc *Document, m *manifest.Manifest, pipelineName string) error {
	stages, err := doc.Pipeline(pipelineName)
	if err != nil {
		return err
	}

	var violations []Violation
	for _, ref := range stages {
		pkg, plugin, err := m.Resolve(ref)
		if err != nil {
			return err
		}
		cfg := doc.StageConfig(ref, pkg, plugin)
		violations = append(violations, missingParameters(ref, plugin, cfg)...)
	}

	if len(violations) == 0 {
		return nil
	}
	lines := make([]string, len(violations))
	for i, v := range violations {
		lines[i] = "  - " + v.String()
	}
	return oops.Code("CONFIG_VALIDATION_FAILED").
		With("violations", len(violations)).
		Errorf("pipeline config validation failed:\n%s", strings.Join(lines, "\n"))
}

func missingParameters(ref string, plugin *manifest.PluginSpec, cfg map[string]any) []Violation {
	var violations []Violation
	for _, param := range plugin.Parameters() {
		if !param.Required || param.Default != "" || IsAutoProvided(param.Name) {
			continue
		}
		if hasConfigKey(cfg, param.Name) {
			continue
		}
		violations = append(violations, Violation{Stage: ref, Parameter: param.Name})
	}
	return violations
}

// hasConfigKey checks the user config under every name variant.
func hasConfigKey(cfg map[string]any, name string) bool {
	for _, variant := range naming.Variants(name) {
		if _, ok := cfg[variant]; ok {
			return true
		}
	}
	return false
}
