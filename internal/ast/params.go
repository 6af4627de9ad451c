// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 R2X Contributors

package ast

import (
	"strings"

	"github.com/samber/oops"

	"github.com/r2x-tools/r2x/internal/manifest"
	"github.com/r2x-tools/r2x/internal/naming"
)

// extractClassParameters lifts a class's constructor signature: the
// __init__ parameter list when present, otherwise the class signature, and
// finally a zero-parameter class when only a bare "class X" exists.
func extractClassParameters(source, className string) ([]manifest.ArgumentSpec, error) {
	if sig, ok := findInitSignature(source, className); ok {
		if params := parseParameters(sig); len(params) > 0 {
			return params, nil
		}
	}
	if sig, ok := findClassSignature(source, className); ok {
		return parseParameters(sig), nil
	}
	if strings.Contains(source, "class "+className) {
		return nil, nil
	}
	return nil, oops.Code("DISCOVERY_SYMBOL_NOT_FOUND").
		With("class", className).
		Errorf("class not found: %s", className)
}

// extractFunctionParameters lifts a function's parameter list.
func extractFunctionParameters(source, functionName string) ([]manifest.ArgumentSpec, error) {
	if sig, ok := findFunctionSignature(source, functionName); ok {
		return parseParameters(sig), nil
	}
	if strings.Contains(source, "def "+functionName) {
		return nil, nil
	}
	return nil, oops.Code("DISCOVERY_SYMBOL_NOT_FOUND").
		With("function", functionName).
		Errorf("function not found: %s", functionName)
}

// findInitSignature locates "def __init__" inside the named class body and
// accumulates continuation lines (comments stripped) until the signature
// closes.
func findInitSignature(source, className string) (string, bool) {
	lines := strings.Split(source, "\n")
	inClass := false
	classIndent := 0

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		trimmed := strings.TrimLeft(line, " \t")
		indent := len(line) - len(trimmed)

		if !inClass {
			if rest, ok := strings.CutPrefix(trimmed, "class "); ok {
				if after, ok := strings.CutPrefix(rest, className); ok {
					if strings.HasPrefix(after, "(") || strings.HasPrefix(after, ":") {
						inClass = true
						classIndent = indent
					}
				}
			}
			continue
		}

		if trimmed == "" {
			continue
		}
		if indent <= classIndent && !strings.HasPrefix(trimmed, "#") {
			break
		}

		if strings.HasPrefix(trimmed, "def __init__") {
			sig := trimmed
			for j := i + 1; j < len(lines) &&
				!strings.Contains(sig, "):") && !strings.Contains(sig, ")->") &&
				!strings.Contains(sig, ") ->"); j++ {
				cont := strings.TrimSpace(lines[j])
				if hash := strings.Index(cont, "#"); hash >= 0 {
					cont = strings.TrimSpace(cont[:hash])
				}
				if cont != "" {
					sig += " " + cont
				}
			}
			return sig, true
		}
	}
	return "", false
}

// findClassSignature returns the "class X(...)" header when the class
// declares bases.
func findClassSignature(source, className string) (string, bool) {
	marker := "class " + className
	idx := strings.Index(source, marker)
	if idx < 0 {
		return "", false
	}
	rest := source[idx:]
	open := len(marker)
	if open >= len(rest) || rest[open] != '(' {
		return "", false
	}
	end := naming.MatchingParen(rest, open)
	if end < 0 {
		return "", false
	}
	return rest[:end+1], true
}

// findFunctionSignature returns "def name(...)" with a balanced parameter
// list, spanning multiple lines when needed.
func findFunctionSignature(source, functionName string) (string, bool) {
	marker := "def " + functionName
	offset := 0
	for {
		idx := strings.Index(source[offset:], marker)
		if idx < 0 {
			return "", false
		}
		start := offset + idx
		open := start + len(marker)
		// Require an immediate open paren so "def run" does not match
		// "def run_all".
		if open >= len(source) || source[open] != '(' {
			offset = open
			continue
		}
		end := naming.MatchingParen(source, open)
		if end < 0 {
			return "", false
		}
		return strings.Join(strings.Fields(source[start:end+1]), " "), true
	}
}

// parseParameters splits a signature's parameter list on depth-0 commas and
// parses each entry. self, positional markers and varargs are skipped.
func parseParameters(signature string) []manifest.ArgumentSpec {
	open := strings.Index(signature, "(")
	if open < 0 {
		return nil
	}
	end := naming.MatchingParen(signature, open)
	if end < 0 {
		// Unbalanced: take everything up to the last closing paren.
		end = strings.LastIndex(signature, ")")
		if end < open {
			return nil
		}
	}
	paramsText := signature[open+1 : end]

	var params []manifest.ArgumentSpec
	for _, raw := range splitTopLevel(paramsText, ',') {
		if p, ok := parseSingleParameter(raw); ok {
			params = append(params, p)
		}
	}
	return params
}

func parseSingleParameter(raw string) (manifest.ArgumentSpec, bool) {
	s := strings.TrimSpace(raw)
	if hash := strings.Index(s, "#"); hash >= 0 {
		s = strings.TrimSpace(s[:hash])
	}
	if s == "" || s == "self" || s == "/" || strings.HasPrefix(s, "*") {
		return manifest.ArgumentSpec{}, false
	}

	var name, annotation, def string
	if before, after, ok := cutTopLevel(s, ':'); ok {
		name = strings.TrimSpace(before)
		if ann, d, ok := cutTopLevel(after, '='); ok {
			annotation = strings.TrimSpace(ann)
			def = strings.TrimSpace(d)
		} else {
			annotation = strings.TrimSpace(after)
		}
	} else if before, after, ok := cutTopLevel(s, '='); ok {
		name = strings.TrimSpace(before)
		def = strings.TrimSpace(after)
	} else {
		name = s
	}

	if name == "" {
		return manifest.ArgumentSpec{}, false
	}
	return manifest.ArgumentSpec{
		Name:       name,
		Annotation: annotation,
		Default:    def,
		Required:   def == "",
	}, true
}

// splitUnionTypes splits an annotation on top-level "|" into its
// alternatives.
func splitUnionTypes(annotation string) []string {
	if annotation == "" {
		return nil
	}
	var types []string
	for _, t := range splitTopLevel(annotation, '|') {
		if t = strings.TrimSpace(t); t != "" {
			types = append(types, t)
		}
	}
	return types
}
