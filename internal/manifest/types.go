// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 R2X Contributors

// Package manifest is the on-disk catalog of installed plugin packages.
//
// The catalog records every discovered plugin specification together with
// install provenance and dependency edges, and persists as TOML with atomic
// replacement on save.
package manifest

import (
	"fmt"
	"strings"
	"time"
)

// Version is written to metadata.version on save. Readers tolerate any
// parseable version and ignore unknown keys.
const Version = "2.0"

// PluginKind classifies what a plugin does in a pipeline.
type PluginKind string

const (
	KindParser      PluginKind = "parser"
	KindExporter    PluginKind = "exporter"
	KindModifier    PluginKind = "modifier"
	KindUpgrader    PluginKind = "upgrader"
	KindUtility     PluginKind = "utility"
	KindTranslation PluginKind = "translation"
)

// DefaultMethod returns the call method implied by the kind when the
// declaration does not name one. Kinds without a default are invoked as
// plain callables.
func (k PluginKind) DefaultMethod() string {
	switch k {
	case KindParser:
		return "build_system"
	case KindExporter:
		return "export"
	case KindTranslation:
		return "run"
	default:
		return ""
	}
}

// KindFromAlias maps a resolver alias to a kind. Empty result means the
// string is not an alias.
func KindFromAlias(s string) PluginKind {
	switch s {
	case "parser":
		return KindParser
	case "exporter":
		return KindExporter
	case "upgrader":
		return KindUpgrader
	case "modifier", "transform", "transformer":
		return KindModifier
	case "translation", "translator":
		return KindTranslation
	case "utility":
		return KindUtility
	default:
		return ""
	}
}

// ImplementationType says whether the entry symbol is a class or a
// free function.
type ImplementationType string

const (
	ImplClass    ImplementationType = "class"
	ImplFunction ImplementationType = "function"
)

// InstallType records why a package is in the catalog.
type InstallType string

const (
	InstallExplicit   InstallType = "explicit"
	InstallDependency InstallType = "dependency"
)

// ArgumentSpec describes one constructor or call parameter.
type ArgumentSpec struct {
	Name       string `toml:"name" json:"name"`
	Annotation string `toml:"annotation,omitempty" json:"annotation,omitempty"`
	Default    string `toml:"default,omitempty" json:"default,omitempty"`
	Required   bool   `toml:"required" json:"required"`
}

// ConfigField is one field of a plugin's configuration class.
// Types is a list to admit union annotations such as "int | str".
type ConfigField struct {
	Name        string   `toml:"name" json:"name"`
	Types       []string `toml:"types,omitempty" json:"types,omitempty"`
	Default     string   `toml:"default,omitempty" json:"default,omitempty"`
	Required    bool     `toml:"required" json:"required"`
	Description string   `toml:"description,omitempty" json:"description,omitempty"`
}

// ConfigSpec identifies the configuration class bound to a Class plugin's
// config kwarg.
type ConfigSpec struct {
	Module string        `toml:"module" json:"module"`
	Name   string        `toml:"name" json:"name"`
	Fields []ConfigField `toml:"fields,omitempty" json:"fields,omitempty"`
}

// Field returns the named config field, or nil.
func (c *ConfigSpec) Field(name string) *ConfigField {
	for i := range c.Fields {
		if c.Fields[i].Name == name {
			return &c.Fields[i]
		}
	}
	return nil
}

// StoreMode says how a plugin's data store is materialized.
type StoreMode string

const (
	StoreFolder   StoreMode = "folder"
	StoreManifest StoreMode = "manifest"
	StoreInline   StoreMode = "inline"
)

// StoreSpec declares that a plugin needs a data store. Presence alone
// implies the requirement.
type StoreSpec struct {
	Mode StoreMode `toml:"mode" json:"mode"`
	Path string    `toml:"path,omitempty" json:"path,omitempty"`
}

// IOSlot is one artifact type a plugin consumes or produces.
type IOSlot string

const (
	SlotSystem      IOSlot = "system"
	SlotConfigFile  IOSlot = "config_file"
	SlotStoreFolder IOSlot = "store_folder"
	SlotFile        IOSlot = "file"
	SlotFolder      IOSlot = "folder"
	SlotData        IOSlot = "data"
)

// IOContract declares what a plugin reads and writes, used to sanity-check
// stage chaining.
type IOContract struct {
	Consumes []IOSlot `toml:"consumes,omitempty" json:"consumes,omitempty"`
	Produces []IOSlot `toml:"produces,omitempty" json:"produces,omitempty"`
}

// DefaultIO returns the conventional contract for a kind.
func DefaultIO(kind PluginKind) IOContract {
	switch kind {
	case KindParser:
		return IOContract{
			Consumes: []IOSlot{SlotStoreFolder, SlotConfigFile},
			Produces: []IOSlot{SlotSystem},
		}
	case KindExporter:
		return IOContract{
			Consumes: []IOSlot{SlotSystem, SlotConfigFile},
			Produces: []IOSlot{SlotFolder},
		}
	case KindModifier:
		return IOContract{
			Consumes: []IOSlot{SlotSystem},
			Produces: []IOSlot{SlotSystem},
		}
	default:
		return IOContract{}
	}
}

// UpgradeSpec carries upgrader wiring captured verbatim as JSON.
type UpgradeSpec struct {
	VersionStrategy string `toml:"version_strategy,omitempty" json:"version_strategy,omitempty"`
	VersionReader   string `toml:"version_reader,omitempty" json:"version_reader,omitempty"`
	UpgradeSteps    string `toml:"upgrade_steps,omitempty" json:"upgrade_steps,omitempty"`
}

// PluginSpec is the structured description of one discovered plugin.
type PluginSpec struct {
	Name           string             `toml:"name" json:"name"`
	Kind           PluginKind         `toml:"kind" json:"kind"`
	EntryModule    string             `toml:"entry_module" json:"entry_module"`
	EntrySymbol    string             `toml:"entry_symbol" json:"entry_symbol"`
	Implementation ImplementationType `toml:"implementation" json:"implementation"`
	CallMethod     string             `toml:"call_method,omitempty" json:"call_method,omitempty"`
	Constructor    []ArgumentSpec     `toml:"constructor,omitempty" json:"constructor,omitempty"`
	Call           []ArgumentSpec     `toml:"call,omitempty" json:"call,omitempty"`
	IO             IOContract         `toml:"io,omitempty" json:"io,omitempty"`
	Config         *ConfigSpec        `toml:"config,omitempty" json:"config,omitempty"`
	Store          *StoreSpec         `toml:"store,omitempty" json:"store,omitempty"`
	Upgrade        *UpgradeSpec       `toml:"upgrade,omitempty" json:"upgrade,omitempty"`
	Description    string             `toml:"description,omitempty" json:"description,omitempty"`
	Tags           []string           `toml:"tags,omitempty" json:"tags,omitempty"`
}

// Entry returns the module:symbol entry reference.
func (p *PluginSpec) Entry() string {
	return p.EntryModule + ":" + p.EntrySymbol
}

// Parameters returns the arguments relevant for invocation: the constructor
// list for classes, the call list for functions.
func (p *PluginSpec) Parameters() []ArgumentSpec {
	if p.Implementation == ImplFunction {
		return p.Call
	}
	return p.Constructor
}

// Parameter returns the named invocation parameter, or nil.
func (p *PluginSpec) Parameter(name string) *ArgumentSpec {
	params := p.Parameters()
	for i := range params {
		if params[i].Name == name {
			return &params[i]
		}
	}
	return nil
}

// Package is one installed guest package and its discovered plugins.
type Package struct {
	Name         string       `toml:"name" json:"name"`
	Version      string       `toml:"version" json:"version"`
	SourceURI    string       `toml:"source_uri,omitempty" json:"source_uri,omitempty"`
	Editable     bool         `toml:"editable,omitempty" json:"editable,omitempty"`
	InstallType  InstallType  `toml:"install_type" json:"install_type"`
	InstalledBy  []string     `toml:"installed_by,omitempty" json:"installed_by,omitempty"`
	Dependencies []string     `toml:"dependencies,omitempty" json:"dependencies,omitempty"`
	Plugins      []PluginSpec `toml:"plugins,omitempty" json:"plugins,omitempty"`

	pluginIndex map[string]int `toml:"-" json:"-"`
}

// Plugin returns the named plugin, or nil.
func (p *Package) Plugin(name string) *PluginSpec {
	if idx, ok := p.pluginIndex[name]; ok {
		return &p.Plugins[idx]
	}
	return nil
}

// ReplacePlugins swaps in a freshly discovered plugin set.
func (p *Package) ReplacePlugins(plugins []PluginSpec) {
	p.Plugins = plugins
	p.rebuildPluginIndex()
}

func (p *Package) rebuildPluginIndex() {
	p.pluginIndex = make(map[string]int, len(p.Plugins))
	for i := range p.Plugins {
		p.pluginIndex[p.Plugins[i].Name] = i
	}
}

// Metadata versions the manifest file.
type Metadata struct {
	Version     string `toml:"version" json:"version"`
	GeneratedAt string `toml:"generated_at" json:"generated_at"`
	LockURI     string `toml:"lock_uri,omitempty" json:"lock_uri,omitempty"`
}

// Manifest is the full catalog.
type Manifest struct {
	Metadata Metadata   `toml:"metadata" json:"metadata"`
	Packages []*Package `toml:"packages,omitempty" json:"packages,omitempty"`

	packageIndex map[string]int `toml:"-" json:"-"`
}

// New returns an empty manifest with current metadata.
func New() *Manifest {
	m := &Manifest{
		Metadata: Metadata{
			Version:     Version,
			GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		},
	}
	m.rebuildIndexes()
	return m
}

func (m *Manifest) rebuildIndexes() {
	m.packageIndex = make(map[string]int, len(m.Packages))
	for i, pkg := range m.Packages {
		m.packageIndex[pkg.Name] = i
		pkg.rebuildPluginIndex()
	}
}

// IsEmpty reports whether the catalog has no packages.
func (m *Manifest) IsEmpty() bool {
	return len(m.Packages) == 0
}

// GetPackage returns the named package, or nil.
func (m *Manifest) GetPackage(name string) *Package {
	if idx, ok := m.packageIndex[name]; ok {
		return m.Packages[idx]
	}
	return nil
}

// GetOrCreatePackage returns the named package, creating an empty explicit
// entry when absent.
func (m *Manifest) GetOrCreatePackage(name string) *Package {
	if pkg := m.GetPackage(name); pkg != nil {
		return pkg
	}
	pkg := &Package{
		Name:        name,
		Version:     "0.0.0",
		InstallType: InstallExplicit,
	}
	pkg.rebuildPluginIndex()
	m.packageIndex[name] = len(m.Packages)
	m.Packages = append(m.Packages, pkg)
	return pkg
}

// RemovePackage drops the named package. Returns false when absent.
func (m *Manifest) RemovePackage(name string) bool {
	idx, ok := m.packageIndex[name]
	if !ok {
		return false
	}
	m.Packages = append(m.Packages[:idx], m.Packages[idx+1:]...)
	m.rebuildIndexes()
	return true
}

// MarkExplicit flips a package to explicitly installed.
func (m *Manifest) MarkExplicit(name string) {
	if pkg := m.GetPackage(name); pkg != nil {
		pkg.InstallType = InstallExplicit
	}
}

// MarkDependency records that installedBy pulled the package in.
// installed_by has set semantics.
func (m *Manifest) MarkDependency(name, installedBy string) {
	pkg := m.GetPackage(name)
	if pkg == nil {
		return
	}
	pkg.InstallType = InstallDependency
	for _, by := range pkg.InstalledBy {
		if by == installedBy {
			return
		}
	}
	pkg.InstalledBy = append(pkg.InstalledBy, installedBy)
}

// AddDependency records a parent→child edge, without duplicates.
func (m *Manifest) AddDependency(parent, child string) {
	pkg := m.GetPackage(parent)
	if pkg == nil {
		return
	}
	for _, dep := range pkg.Dependencies {
		if dep == child {
			return
		}
	}
	pkg.Dependencies = append(pkg.Dependencies, child)
}

// RemovePackageWithDeps removes a package and any of its dependencies that
// become orphaned, returning the names removed in order.
func (m *Manifest) RemovePackageWithDeps(name string) []string {
	pkg := m.GetPackage(name)
	if pkg == nil {
		return nil
	}
	deps := append([]string(nil), pkg.Dependencies...)

	var removed []string
	if m.RemovePackage(name) {
		removed = append(removed, name)
	}

	for _, dep := range deps {
		depPkg := m.GetPackage(dep)
		if depPkg == nil {
			continue
		}
		kept := depPkg.InstalledBy[:0]
		for _, by := range depPkg.InstalledBy {
			if by != name {
				kept = append(kept, by)
			}
		}
		depPkg.InstalledBy = kept
		if len(depPkg.InstalledBy) == 0 && depPkg.InstallType == InstallDependency {
			if m.RemovePackage(dep) {
				removed = append(removed, dep)
			}
		}
	}
	return removed
}

// CanRemovePackage reports whether no other package depends on name.
func (m *Manifest) CanRemovePackage(name string) bool {
	return len(m.Dependents(name)) == 0
}

// Dependents returns the packages whose dependency list contains name.
func (m *Manifest) Dependents(name string) []string {
	var out []string
	for _, pkg := range m.Packages {
		for _, dep := range pkg.Dependencies {
			if dep == name {
				out = append(out, pkg.Name)
				break
			}
		}
	}
	return out
}

// TotalPluginCount counts plugins across all packages.
func (m *Manifest) TotalPluginCount() int {
	n := 0
	for _, pkg := range m.Packages {
		n += len(pkg.Plugins)
	}
	return n
}

// String renders a short summary for logs.
func (m *Manifest) String() string {
	return fmt.Sprintf("manifest v%s: %d packages, %d plugins",
		m.Metadata.Version, len(m.Packages), m.TotalPluginCount())
}

// InferKind guesses a kind from a symbol or plugin name. The fallback
// applies when no keyword matches.
func InferKind(name string, fallback PluginKind) PluginKind {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "parser"):
		return KindParser
	case strings.Contains(lower, "export"):
		return KindExporter
	case strings.Contains(lower, "upgrade"):
		return KindUpgrader
	case strings.Contains(lower, "modif"), strings.Contains(lower, "transform"):
		return KindModifier
	case strings.Contains(lower, "translat"):
		return KindTranslation
	default:
		return fallback
	}
}
