// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 R2X Contributors

// Package discovery binds the locator, scanner and extractor together and
// writes their results into the manifest.
package discovery

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/samber/oops"

	"github.com/r2x-tools/r2x/internal/ast"
	"github.com/r2x-tools/r2x/internal/entrypoints"
	"github.com/r2x-tools/r2x/internal/locate"
	"github.com/r2x-tools/r2x/internal/manifest"
)

// Orchestrator runs discovery for one manifest against one environment.
type Orchestrator struct {
	manifest *manifest.Manifest
	locator  *locate.Locator
	visited  map[string]bool
}

// New builds an orchestrator. The manifest is mutated in place; callers
// save it when discovery succeeds.
func New(m *manifest.Manifest, locator *locate.Locator) *Orchestrator {
	return &Orchestrator{
		manifest: m,
		locator:  locator,
		visited:  make(map[string]bool),
	}
}

// Options describe one package's install context for discovery.
type Options struct {
	Version      string
	Dependencies []string
	NoCache      bool
	Editable     bool
	SourceURI    string
	// SourcePath overrides locator resolution, for local installs whose
	// source tree is already known.
	SourcePath string
}

// Discover extracts the package's plugins, upserts its manifest entry and
// walks its plugin-package dependencies. It returns the plugin count for
// the package itself.
func (o *Orchestrator) Discover(packageName string, opts Options) (int, error) {
	if o.visited[packageName] {
		slog.Warn("dependency cycle detected, skipping re-entry", "package", packageName)
		if pkg := o.manifest.GetPackage(packageName); pkg != nil {
			return len(pkg.Plugins), nil
		}
		return 0, nil
	}
	o.visited[packageName] = true

	plugins, err := o.discoverPlugins(packageName, opts)
	if err != nil {
		return 0, err
	}

	o.upsert(packageName, plugins, opts)
	o.manifest.MarkExplicit(packageName)

	o.walkDependencies(packageName, opts.Dependencies)
	return len(plugins), nil
}

// discoverPlugins returns the package's plugin set, using the manifest as a
// cache unless told otherwise.
func (o *Orchestrator) discoverPlugins(packageName string, opts Options) ([]manifest.PluginSpec, error) {
	if !opts.NoCache {
		if pkg := o.manifest.GetPackage(packageName); pkg != nil && len(pkg.Plugins) > 0 {
			slog.Debug("using cached plugin specs", "package", packageName)
			return pkg.Plugins, nil
		}
	}

	sourcePath := opts.SourcePath
	if sourcePath == "" {
		var err error
		sourcePath, err = o.locator.FindPackagePath(packageName)
		if err != nil {
			return nil, err
		}
	}

	records := entrypoints.FindRecords(sourcePath, packageName)
	plugins := o.extractAll(sourcePath, packageName, records)
	if len(plugins) == 0 {
		slog.Warn("package declares no extractable plugins",
			"package", packageName, "path", sourcePath)
	}
	return plugins, nil
}

// extractAll turns entry-point records into plugin specs. Factory records
// run the full extractor; direct records are lifted from their section and
// signature alone.
func (o *Orchestrator) extractAll(sourcePath, packageName string, records []entrypoints.Record) []manifest.PluginSpec {
	var plugins []manifest.PluginSpec
	seen := make(map[string]bool)

	for _, record := range records {
		var extracted []manifest.PluginSpec
		if record.IsManifestBased() {
			extracted = o.extractFromFactory(sourcePath, record)
		} else if spec, ok := o.specFromRecord(sourcePath, record); ok {
			extracted = []manifest.PluginSpec{spec}
		}
		for _, p := range extracted {
			if seen[p.Name] {
				continue
			}
			seen[p.Name] = true
			plugins = append(plugins, p)
		}
	}
	return plugins
}

func (o *Orchestrator) extractFromFactory(sourcePath string, record entrypoints.Record) []manifest.PluginSpec {
	factoryFile := moduleFile(sourcePath, record.Module)
	extractor, err := ast.New(factoryFile, record.Module, sourcePath)
	if err != nil {
		slog.Warn("cannot read plugin factory", "module", record.Module, "error", err)
		return nil
	}
	plugins, err := extractor.ExtractPlugins()
	if err != nil {
		slog.Warn("plugin factory yielded no plugins",
			"module", record.Module, "error", err)
		return nil
	}
	return plugins
}

// specFromRecord builds a spec for an entry point that names the plugin
// callable directly.
func (o *Orchestrator) specFromRecord(sourcePath string, record entrypoints.Record) (manifest.PluginSpec, bool) {
	kind := record.Kind()

	impl := manifest.ImplFunction
	if record.IsClass() {
		impl = manifest.ImplClass
	}

	var params []manifest.ArgumentSpec
	extractor, err := ast.New(moduleFile(sourcePath, record.Module), record.Module, sourcePath)
	if err != nil {
		slog.Debug("cannot read entry module, recording signature-less plugin",
			"module", record.Module, "error", err)
	} else {
		params = extractor.ResolveParameters(record.Module, record.Symbol, impl)
	}

	spec := manifest.PluginSpec{
		Name:           record.Name,
		Kind:           kind,
		EntryModule:    record.Module,
		EntrySymbol:    record.Symbol,
		Implementation: impl,
		CallMethod:     kind.DefaultMethod(),
		IO:             manifest.DefaultIO(kind),
	}
	if impl == manifest.ImplClass {
		spec.Constructor = params
	} else {
		spec.Call = params
	}
	return spec, true
}

// upsert replaces the package's plugin set and refreshes its provenance.
func (o *Orchestrator) upsert(packageName string, plugins []manifest.PluginSpec, opts Options) {
	pkg := o.manifest.GetOrCreatePackage(packageName)

	if opts.Version != "" && pkg.Version != "" && pkg.Version != "0.0.0" && pkg.Version != opts.Version {
		logVersionChange(packageName, pkg.Version, opts.Version)
	}
	if opts.Version != "" {
		pkg.Version = opts.Version
	}
	pkg.Editable = opts.Editable
	if opts.SourceURI != "" {
		pkg.SourceURI = opts.SourceURI
	}
	pkg.ReplacePlugins(plugins)
}

// walkDependencies registers plugin-package dependencies, discovering each
// one without touching its explicit status. A dependency failure leaves an
// empty entry and a warning; it never fails the parent.
func (o *Orchestrator) walkDependencies(parent string, dependencies []string) {
	for _, dep := range dependencies {
		if !LooksLikePlugin(dep) {
			continue
		}
		o.manifest.AddDependency(parent, dep)

		if o.visited[dep] {
			slog.Warn("dependency cycle detected, skipping re-entry",
				"package", dep, "parent", parent)
			o.manifest.MarkDependency(dep, parent)
			continue
		}
		o.visited[dep] = true

		plugins, err := o.discoverPlugins(dep, Options{})
		if err != nil {
			slog.Warn("dependency discovery failed",
				"package", dep, "parent", parent, "error", err)
			plugins = nil
		}
		pkg := o.manifest.GetOrCreatePackage(dep)
		pkg.ReplacePlugins(plugins)
		o.manifest.MarkDependency(dep, parent)
	}
}

// LooksLikePlugin reports whether a dependency name follows the plugin
// package convention. The shared runtime is excluded.
func LooksLikePlugin(name string) bool {
	normalized := strings.ReplaceAll(strings.ToLower(name), "_", "-")
	return strings.HasPrefix(normalized, "r2x-") && normalized != "r2x-core"
}

// VerifyProvenance checks that a package recorded in the manifest still
// resolves on disk, guarding runs against environments mutated behind the
// manifest's back.
func (o *Orchestrator) VerifyProvenance(packageName string) error {
	pkg := o.manifest.GetPackage(packageName)
	if pkg == nil {
		return oops.Code("VERIFICATION_FAILED").
			With("package", packageName).
			Errorf("package %q is not in the manifest", packageName)
	}
	if _, err := o.locator.FindPackagePath(packageName); err != nil {
		return oops.Code("VERIFICATION_FAILED").
			With("package", packageName).
			Wrapf(err, "package %q is recorded but no longer installed", packageName)
	}
	return nil
}

func logVersionChange(packageName, from, to string) {
	fromVer, errFrom := semver.NewVersion(from)
	toVer, errTo := semver.NewVersion(to)
	if errFrom != nil || errTo != nil {
		slog.Info("package version changed", "package", packageName, "from", from, "to", to)
		return
	}
	switch {
	case toVer.GreaterThan(fromVer):
		slog.Info("package upgraded", "package", packageName, "from", from, "to", to)
	case toVer.LessThan(fromVer):
		slog.Warn("package downgraded", "package", packageName, "from", from, "to", to)
	}
}

// moduleFile maps a dotted module to its file under the package source
// directory. The top-level module maps to its __init__, and a submodule
// that is itself a package maps to that package's __init__.
func moduleFile(sourcePath, module string) string {
	parts := strings.Split(module, ".")
	if len(parts) > 0 && parts[0] == filepath.Base(sourcePath) {
		parts = parts[1:]
	}
	if len(parts) == 0 {
		return filepath.Join(sourcePath, "__init__.py")
	}
	candidate := filepath.Join(sourcePath, filepath.Join(parts...))
	if info, err := os.Stat(candidate); err == nil && info.IsDir() {
		return filepath.Join(candidate, "__init__.py")
	}
	return candidate + ".py"
}
