// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 R2X Contributors

// Package entrypoints reads plugin entry-point descriptors from installed
// guest packages without executing any guest code.
//
// Two descriptor forms exist: the plain-text section table shipped in a
// dist-info directory (entry_points.txt) and the project manifest
// (pyproject.toml). Both yield the same records.
package entrypoints

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/r2x-tools/r2x/internal/manifest"
)

// MainSection is the generic plugin namespace.
const MainSection = "r2x_plugin"

// sectionPrefix opens the namespaced sections, e.g. "r2x.transforms".
const sectionPrefix = "r2x."

// Record is a single parsed entry point.
type Record struct {
	// Name as declared, e.g. "reeds" or "add-pcm-defaults".
	Name string
	// Module path, e.g. "r2x_reeds.parser".
	Module string
	// Symbol inside the module, e.g. "ReEDSParser".
	Symbol string
	// Section the record came from, e.g. "r2x_plugin".
	Section string
}

// Entry returns the module:symbol reference.
func (r Record) Entry() string {
	return r.Module + ":" + r.Symbol
}

// IsClass reports whether the symbol looks like a class name.
func (r Record) IsClass() bool {
	for _, c := range r.Symbol {
		return unicode.IsUpper(c)
	}
	return false
}

// IsManifestBased reports whether the symbol points at a plugin factory
// rather than a single callable.
func (r Record) IsManifestBased() bool {
	lower := strings.ToLower(r.Symbol)
	return lower == "manifest" || lower == "register_plugin" ||
		strings.HasSuffix(lower, "_manifest") || strings.HasSuffix(lower, "_plugin")
}

// Kind infers the plugin kind. Namespaced sections name the kind directly;
// the generic section falls back to keywords in the symbol, defaulting to
// Parser.
func (r Record) Kind() manifest.PluginKind {
	fromSymbol := manifest.InferKind(r.Symbol, manifest.KindParser)
	if suffix, ok := strings.CutPrefix(r.Section, sectionPrefix); ok {
		return manifest.InferKind(suffix, fromSymbol)
	}
	return fromSymbol
}

// IsPluginSection reports whether a section belongs to the plugin namespace.
func IsPluginSection(section string) bool {
	return section == MainSection || strings.HasPrefix(section, sectionPrefix)
}

// ParseSectionTable parses the entry_points.txt form: bracketed sections,
// "name = module:symbol" lines, # comments. Lines outside recognized
// sections are ignored, and malformed lines are skipped.
func ParseSectionTable(content string) []Record {
	var records []Record
	section := ""

	for _, raw := range strings.Split(content, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = strings.TrimSpace(line[1 : len(line)-1])
			continue
		}
		if !IsPluginSection(section) {
			continue
		}

		name, target, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		if rec, ok := buildRecord(name, target, section); ok {
			records = append(records, rec)
		}
	}
	return records
}

func buildRecord(name, target, section string) (Record, bool) {
	name = trimQuotes(strings.TrimSpace(name))
	module, symbol, ok := strings.Cut(trimQuotes(strings.TrimSpace(target)), ":")
	if !ok {
		return Record{}, false
	}
	module = strings.TrimSpace(module)
	symbol = strings.TrimSpace(symbol)
	if name == "" || module == "" || symbol == "" {
		return Record{}, false
	}
	return Record{Name: name, Module: module, Symbol: symbol, Section: section}, true
}

func trimQuotes(s string) string {
	return strings.Trim(s, `"'`)
}

// FindRecords locates descriptor files for a package source directory and
// returns all plugin entry points. Descriptor problems are never fatal:
// malformed input yields an empty list with a debug note.
func FindRecords(sourceDir, packageName string) []Record {
	if records := distInfoRecords(sourceDir, packageName); len(records) > 0 {
		return records
	}

	for _, candidate := range []string{
		filepath.Join(sourceDir, "pyproject.toml"),
		filepath.Join(filepath.Dir(sourceDir), "pyproject.toml"),
	} {
		data, err := os.ReadFile(candidate)
		if err != nil {
			continue
		}
		if records := ParsePyproject(data); len(records) > 0 {
			return records
		}
	}

	slog.Debug("no entry-point descriptors found",
		"package", packageName, "source", sourceDir)
	return nil
}

// distInfoRecords scans sibling dist-info directories for entry_points.txt.
func distInfoRecords(sourceDir, packageName string) []Record {
	parent := filepath.Dir(sourceDir)
	entries, err := os.ReadDir(parent)
	if err != nil {
		return nil
	}

	normalized := strings.ReplaceAll(packageName, "-", "_")
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasSuffix(entry.Name(), ".dist-info") {
			continue
		}
		stem := strings.TrimSuffix(entry.Name(), ".dist-info")
		if base, _, _ := strings.Cut(stem, "-"); strings.ReplaceAll(base, "-", "_") != normalized {
			continue
		}
		data, err := os.ReadFile(filepath.Join(parent, entry.Name(), "entry_points.txt"))
		if err != nil {
			continue
		}
		if records := ParseSectionTable(string(data)); len(records) > 0 {
			return records
		}
	}
	return nil
}
