// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 R2X Contributors

// Package ast lifts plugin declarations out of guest-language source
// without executing it.
//
// The extractor works on source text with depth-aware bracket matching: it
// finds the package's registration factory, parses the plugin declarations
// inside it, then follows entry and config references into sibling modules
// to recover constructor signatures and config-class fields.
package ast

import (
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/samber/oops"

	"github.com/r2x-tools/r2x/internal/manifest"
	"github.com/r2x-tools/r2x/internal/naming"
)

// maxImportDepth bounds import-following when a symbol is re-exported.
const maxImportDepth = 5

// Extractor parses one factory file within an installed package.
type Extractor struct {
	filePath      string
	packageRoot   string
	packagePrefix string
	content       string
	importMap     map[string]string
	currentModule string
}

// New reads the factory source and prepares an extractor.
// modulePath is the dotted module the file corresponds to, packageRoot the
// directory holding the package's top-level module.
func New(filePath, modulePath, packageRoot string) (*Extractor, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, oops.Code("DISCOVERY_READ_FAILED").With("path", filePath).Wrap(err)
	}
	return NewFromSource(string(data), filePath, modulePath, packageRoot), nil
}

// NewFromSource is New for source already in memory.
func NewFromSource(source, filePath, modulePath, packageRoot string) *Extractor {
	prefix, _, _ := strings.Cut(modulePath, ".")
	return &Extractor{
		filePath:      filePath,
		packageRoot:   packageRoot,
		packagePrefix: prefix,
		content:       source,
		importMap:     buildImportMap(source),
		currentModule: modulePath,
	}
}

// ExtractPlugins returns every plugin declared by the factory. Individual
// declarations that fail to parse are skipped with a debug note; an error
// is returned only when no declaration is found at all.
func (e *Extractor) ExtractPlugins() ([]manifest.PluginSpec, error) {
	if plugins := e.extractFromAddCalls(); len(plugins) > 0 {
		return plugins, nil
	}

	if plugins := e.extractFromConstructorCalls(); len(plugins) > 0 {
		return plugins, nil
	}

	return nil, oops.Code("DISCOVERY_NO_FACTORY").
		With("path", e.filePath).
		Errorf("no registration helpers or plugin constructors found")
}

var specHelperCall = regexp.MustCompile(`PluginSpec\.([a-z_]+)\s*\(`)

// extractFromAddCalls handles the manifest.add(PluginSpec.kind(...)) form.
func (e *Extractor) extractFromAddCalls() []manifest.PluginSpec {
	var plugins []manifest.PluginSpec

	for _, addCall := range callSpans(e.content, "manifest.add") {
		m := specHelperCall.FindStringSubmatchIndex(addCall)
		if m == nil {
			slog.Debug("manifest.add() without a PluginSpec helper", "path", e.filePath)
			continue
		}
		method := addCall[m[2]:m[3]]
		end := naming.MatchingParen(addCall, m[1]-1)
		if end < 0 {
			continue
		}
		callText := addCall[m[0] : end+1]

		kind, ok := kindFromHelper(method)
		if !ok {
			slog.Debug("unknown plugin helper method", "method", method)
			continue
		}

		plugin, err := e.buildPlugin(kind, callText)
		if err != nil {
			slog.Debug("skipping unparsable plugin declaration",
				"path", e.filePath, "error", err)
			continue
		}
		plugins = append(plugins, plugin)
	}
	return plugins
}

var constructorCall = regexp.MustCompile(`([A-Za-z_][A-Za-z0-9_.]*)\s*\(`)

// extractFromConstructorCalls handles the Package(plugins=[ParserPlugin(...)])
// form: any call whose callee's last segment ends with "Plugin".
func (e *Extractor) extractFromConstructorCalls() []manifest.PluginSpec {
	var plugins []manifest.PluginSpec

	for _, m := range constructorCall.FindAllStringSubmatchIndex(e.content, -1) {
		callee := e.content[m[2]:m[3]]
		segment := callee
		if idx := strings.LastIndex(callee, "."); idx >= 0 {
			segment = callee[idx+1:]
		}
		if !strings.HasSuffix(segment, "Plugin") {
			continue
		}

		end := naming.MatchingParen(e.content, m[1]-1)
		if end < 0 {
			continue
		}
		callText := e.content[m[0] : end+1]

		kind := manifest.InferKind(segment, manifest.KindUtility)
		plugin, err := e.buildPlugin(kind, callText)
		if err != nil {
			slog.Debug("skipping unparsable plugin constructor",
				"constructor", callee, "error", err)
			continue
		}
		plugins = append(plugins, plugin)
	}
	return plugins
}

// buildPlugin assembles a spec from one factory call's text.
func (e *Extractor) buildPlugin(kind manifest.PluginKind, callText string) (manifest.PluginSpec, error) {
	kwargs := parseKwargs(callText)

	entryRef, ok := kwargValueByRole(kwargs, roleEntry)
	if !ok {
		return manifest.PluginSpec{}, oops.Code("DISCOVERY_NO_ENTRY").
			Errorf("declaration has no entry reference")
	}
	entry := e.qualifySymbol(entryRef)
	module, symbol, ok := splitEntry(entry)
	if !ok {
		return manifest.PluginSpec{}, oops.Code("DISCOVERY_NO_ENTRY").
			With("entry", entry).
			Errorf("entry reference has no module component")
	}

	impl := manifest.ImplFunction
	if startsUpper(symbol) {
		impl = manifest.ImplClass
	}

	name, ok := kwargValueByRole(kwargs, roleName)
	if !ok {
		if impl == manifest.ImplClass {
			name = naming.CamelToKebab(symbol)
		} else {
			name = naming.SnakeToKebab(symbol)
		}
	}

	params := e.resolveEntryParameters(module, symbol, impl, 0)

	spec := manifest.PluginSpec{
		Name:           name,
		Kind:           kind,
		EntryModule:    module,
		EntrySymbol:    symbol,
		Implementation: impl,
		IO:             manifest.DefaultIO(kind),
	}
	if impl == manifest.ImplClass {
		spec.Constructor = params
	} else {
		spec.Call = params
	}

	if method, ok := kwargValueByRole(kwargs, roleMethod); ok {
		spec.CallMethod = method
	} else {
		spec.CallMethod = kind.DefaultMethod()
	}
	if desc, ok := kwargValueByRole(kwargs, roleDescription); ok {
		spec.Description = desc
	}

	e.attachResources(&spec, kwargs)
	return spec, nil
}

// attachResources fills the config and store specs from kwargs.
func (e *Extractor) attachResources(spec *manifest.PluginSpec, kwargs []kwarg) {
	if configClass, ok := kwargValueByRole(kwargs, roleConfig); ok {
		configClass = strings.TrimSpace(configClass)
		module := e.currentModule
		if imported, ok := e.importMap[configClass]; ok {
			module = e.normalizeModulePath(imported)
		}
		spec.Config = &manifest.ConfigSpec{
			Module: module,
			Name:   configClass,
			Fields: e.extractConfigFields(module, configClass),
		}
	}

	if storeValue, ok := kwargValueByRole(kwargs, roleStore); ok {
		storeValue = strings.TrimSpace(storeValue)
		store := &manifest.StoreSpec{Mode: manifest.StoreFolder}
		if storeValue != "True" && storeValue != "true" {
			store.Path = strings.Trim(storeValue, `"`)
		}
		spec.Store = store
	}
}

// ResolveParameters lifts the signature of an arbitrary entry in the
// package, following re-export imports. Used for entry points that name a
// plugin callable directly instead of a registration factory.
func (e *Extractor) ResolveParameters(module, symbol string, impl manifest.ImplementationType) []manifest.ArgumentSpec {
	return e.resolveEntryParameters(module, symbol, impl, 0)
}

// resolveEntryParameters loads the entry's defining module and lifts its
// signature, following re-export imports up to maxImportDepth.
func (e *Extractor) resolveEntryParameters(module, symbol string, impl manifest.ImplementationType, depth int) []manifest.ArgumentSpec {
	if depth > maxImportDepth {
		slog.Debug("max import depth reached", "symbol", symbol, "module", module)
		return nil
	}

	source, ok := e.loadModuleSource(module)
	if !ok {
		slog.Debug("unable to load module for signature extraction",
			"module", module, "symbol", symbol)
		return nil
	}

	var params []manifest.ArgumentSpec
	var err error
	if impl == manifest.ImplClass {
		params, err = extractClassParameters(source, symbol)
	} else {
		params, err = extractFunctionParameters(source, symbol)
	}
	if err == nil {
		return params
	}

	// Not defined here. The symbol may be re-exported.
	if importSource, ok := findImportSource(source, symbol); ok {
		resolved := resolveRelativeImport(importSource, module)
		return e.resolveEntryParameters(resolved, symbol, impl, depth+1)
	}
	slog.Debug("symbol not found and not imported", "symbol", symbol, "module", module)
	return nil
}

// callSpans returns the full text of every call to the named function,
// including balanced parentheses.
func callSpans(content, callee string) []string {
	var spans []string
	search := callee + "("
	offset := 0
	for {
		idx := strings.Index(content[offset:], search)
		if idx < 0 {
			return spans
		}
		start := offset + idx
		open := start + len(callee)
		end := naming.MatchingParen(content, open)
		if end < 0 {
			return spans
		}
		spans = append(spans, content[start:end+1])
		offset = end + 1
	}
}

func kindFromHelper(method string) (manifest.PluginKind, bool) {
	switch method {
	case "parser":
		return manifest.KindParser, true
	case "exporter":
		return manifest.KindExporter, true
	case "function":
		return manifest.KindModifier, true
	case "upgrader":
		return manifest.KindUpgrader, true
	case "utility":
		return manifest.KindUtility, true
	case "translation":
		return manifest.KindTranslation, true
	default:
		return "", false
	}
}

func splitEntry(entry string) (module, symbol string, ok bool) {
	idx := strings.LastIndex(entry, ".")
	if idx < 0 {
		return "", entry, false
	}
	return entry[:idx], entry[idx+1:], true
}

func startsUpper(s string) bool {
	return s != "" && s[0] >= 'A' && s[0] <= 'Z'
}

// resolveModuleFile maps a dotted module to a file under the package root.
func (e *Extractor) resolveModuleFile(module string) string {
	if module == "" {
		module = e.currentModule
	}
	parts := strings.Split(module, ".")
	if e.packagePrefix != "" && len(parts) > 0 && parts[0] == e.packagePrefix {
		parts = parts[1:]
	}
	if len(parts) == 0 {
		return filepath.Join(e.packageRoot, "__init__.py")
	}
	return filepath.Join(e.packageRoot, filepath.Join(parts...)) + ".py"
}

func (e *Extractor) loadModuleSource(module string) (string, bool) {
	if module == e.currentModule {
		return e.content, true
	}
	data, err := os.ReadFile(e.resolveModuleFile(module))
	if err != nil {
		// The module may be a package; fall back to its __init__.
		data, err = os.ReadFile(filepath.Join(
			strings.TrimSuffix(e.resolveModuleFile(module), ".py"), "__init__.py"))
		if err != nil {
			return "", false
		}
	}
	return string(data), true
}
