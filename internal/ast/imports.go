// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 R2X Contributors

package ast

import "strings"

// buildImportMap scans "from M import A, B as C" lines and maps each
// imported name to its module, so references in the factory can be
// resolved to their defining files.
func buildImportMap(source string) map[string]string {
	imports := make(map[string]string)

	for _, line := range strings.Split(source, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "#") {
			continue
		}
		rest, ok := strings.CutPrefix(line, "from ")
		if !ok {
			continue
		}
		module, names, ok := strings.Cut(rest, " import ")
		if !ok {
			continue
		}
		module = strings.TrimSpace(module)

		for _, item := range strings.Split(names, ",") {
			item = strings.TrimSpace(item)
			if item == "" || strings.HasSuffix(item, "\\") {
				continue
			}
			if _, alias, ok := strings.Cut(item, " as "); ok {
				item = strings.TrimSpace(alias)
			}
			item = strings.Trim(item, "(),")
			if item != "" && !strings.HasPrefix(item, "#") {
				imports[item] = module
			}
		}
	}
	return imports
}

// findImportSource returns the module a symbol is imported from in the
// given source, when such an import exists.
func findImportSource(source, symbol string) (string, bool) {
	for _, line := range strings.Split(source, "\n") {
		line = strings.TrimSpace(line)
		rest, ok := strings.CutPrefix(line, "from ")
		if !ok {
			continue
		}
		module, names, ok := strings.Cut(rest, " import ")
		if !ok {
			continue
		}
		for _, item := range strings.Split(names, ",") {
			name, _, _ := strings.Cut(strings.TrimSpace(item), " as ")
			if strings.TrimSpace(name) == symbol {
				return strings.TrimSpace(module), true
			}
		}
	}
	return "", false
}

// resolveRelativeImport turns a possibly relative "from" path into an
// absolute module: ".parser" in "r2x_reeds" is "r2x_reeds.parser",
// "..utils" in "r2x_reeds.sub" is "r2x_reeds.utils".
func resolveRelativeImport(fromPath, currentModule string) string {
	if !strings.HasPrefix(fromPath, ".") {
		return fromPath
	}

	dots := 0
	for dots < len(fromPath) && fromPath[dots] == '.' {
		dots++
	}
	remainder := strings.Trim(fromPath[dots:], ".")

	var parts []string
	if currentModule != "" {
		parts = strings.Split(currentModule, ".")
	}
	// One dot means the same package; each extra dot climbs a level.
	for i := 0; i < dots-1 && len(parts) > 0; i++ {
		parts = parts[:len(parts)-1]
	}
	if remainder != "" {
		for _, p := range strings.Split(remainder, ".") {
			if p != "" {
				parts = append(parts, p)
			}
		}
	}
	return strings.Join(parts, ".")
}

// qualifySymbol expands a bare reference from the factory into a dotted
// module.symbol path through the import map, defaulting to the current
// module.
func (e *Extractor) qualifySymbol(symbol string) string {
	if strings.Contains(symbol, ".") || e.currentModule == "" {
		return symbol
	}
	module := e.currentModule
	if imported, ok := e.importMap[symbol]; ok {
		module = e.normalizeModulePath(imported)
	}
	if module == "" {
		return symbol
	}
	return module + "." + symbol
}

func (e *Extractor) normalizeModulePath(module string) string {
	if strings.HasPrefix(module, ".") {
		return resolveRelativeImport(module, e.currentModule)
	}
	return module
}
