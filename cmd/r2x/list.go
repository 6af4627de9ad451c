// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 R2X Contributors

package main

import (
	"sort"
	"strings"

	"github.com/gobwas/glob"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/r2x-tools/r2x/internal/manifest"
)

// NewListCmd creates the list subcommand.
func NewListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list [package] [symbol]",
		Short: "Print the plugin catalog grouped by package",
		Long: `Print the plugin catalog grouped by package. Both filters accept
glob patterns; hyphens and underscores are interchangeable.`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pkgPattern, symPattern := "*", "*"
			if len(args) > 0 {
				pkgPattern = args[0]
			}
			if len(args) > 1 {
				symPattern = args[1]
			}
			pkgGlob, err := compileNameGlob(pkgPattern)
			if err != nil {
				return err
			}
			symGlob, err := compileNameGlob(symPattern)
			if err != nil {
				return err
			}

			m, err := manifest.Load()
			if err != nil {
				return err
			}
			if m.IsEmpty() {
				cmd.Println("no packages installed")
				return nil
			}

			packages := make([]*manifest.Package, len(m.Packages))
			copy(packages, m.Packages)
			sort.Slice(packages, func(i, j int) bool {
				return packages[i].Name < packages[j].Name
			})

			shown := 0
			for _, pkg := range packages {
				if !pkgGlob.Match(normalizeName(pkg.Name)) {
					continue
				}
				plugins := matchingPlugins(pkg, symGlob)
				if len(plugins) == 0 && symPattern != "*" {
					continue
				}
				shown++
				renderPackage(cmd, pkg, plugins)
			}
			if shown == 0 {
				cmd.Println("no packages match")
			}
			return nil
		},
	}
}

func compileNameGlob(pattern string) (glob.Glob, error) {
	g, err := glob.Compile(normalizeName(pattern))
	if err != nil {
		return nil, oops.Code("CONFIG_INVALID").
			With("pattern", pattern).
			Wrapf(err, "invalid filter pattern")
	}
	return g, nil
}

// normalizeName folds the hyphen/underscore distinction before matching.
func normalizeName(s string) string {
	return strings.ReplaceAll(strings.ToLower(s), "_", "-")
}

func matchingPlugins(pkg *manifest.Package, symGlob glob.Glob) []*manifest.PluginSpec {
	var out []*manifest.PluginSpec
	for i := range pkg.Plugins {
		p := &pkg.Plugins[i]
		if symGlob.Match(normalizeName(p.Name)) || symGlob.Match(normalizeName(p.EntrySymbol)) {
			out = append(out, p)
		}
	}
	return out
}

func renderPackage(cmd *cobra.Command, pkg *manifest.Package, plugins []*manifest.PluginSpec) {
	header := pkg.Name + " " + pkg.Version
	if pkg.Editable {
		header += " (editable)"
	}
	if pkg.InstallType == manifest.InstallDependency {
		header += " [dependency]"
	}
	cmd.Println(header)
	for _, p := range plugins {
		cmd.Printf("  %-10s %-24s %s\n", string(p.Kind), p.Name, p.Entry())
	}
	if len(plugins) == 0 {
		cmd.Println("  (no plugins)")
	}
}
