// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 R2X Contributors

package manifest

import (
	"strings"

	"github.com/samber/oops"

	"github.com/r2x-tools/r2x/internal/naming"
)

// Resolve maps a pipeline reference to a manifest entry. The reference may
// be a bare plugin name, a dotted package.plugin pair, or package.kind-alias;
// hyphens and underscores are interchangeable throughout.
func (m *Manifest) Resolve(ref string) (*Package, *PluginSpec, error) {
	// A bare or dotted name may match a plugin directly in any package.
	for _, variant := range naming.Variants(ref) {
		for _, pkg := range m.Packages {
			if plugin := pkg.Plugin(variant); plugin != nil {
				return pkg, plugin, nil
			}
		}
	}

	if prefix, suffix, ok := strings.Cut(ref, "."); ok {
		var pkg *Package
		for _, variant := range naming.Variants(prefix) {
			if pkg = m.GetPackage(variant); pkg != nil {
				break
			}
		}
		if pkg != nil {
			for _, variant := range naming.Variants(suffix) {
				if plugin := pkg.Plugin(variant); plugin != nil {
					return pkg, plugin, nil
				}
			}

			if kind := KindFromAlias(suffix); kind != "" {
				var matches []*PluginSpec
				for i := range pkg.Plugins {
					if pkg.Plugins[i].Kind == kind {
						matches = append(matches, &pkg.Plugins[i])
					}
				}
				switch len(matches) {
				case 1:
					return pkg, matches[0], nil
				case 0:
					// Fall through to not-found.
				default:
					names := make([]string, len(matches))
					for i, p := range matches {
						names[i] = p.Name
					}
					return nil, nil, oops.Code("PLUGIN_AMBIGUOUS").
						With("package", pkg.Name).
						With("kind", string(kind)).
						With("candidates", strings.Join(names, ", ")).
						Errorf("reference %q matches %d %s plugins in %s", ref, len(matches), kind, pkg.Name)
				}
			}
		}
	}

	return nil, nil, oops.Code("PLUGIN_NOT_FOUND").
		With("reference", ref).
		Errorf("no plugin matches %q", ref)
}
