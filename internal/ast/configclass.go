// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 R2X Contributors

package ast

import (
	"strings"

	"github.com/r2x-tools/r2x/internal/manifest"
)

// extractConfigFields reads the config class body and lifts its field
// declarations: "name: annotation = default", possibly spanning lines.
// Docstrings, methods and decorators are skipped. A field is required iff
// it has no default.
func (e *Extractor) extractConfigFields(module, className string) []manifest.ConfigField {
	source, ok := e.loadModuleSource(module)
	if !ok {
		return nil
	}
	return configFieldsFromSource(source, className)
}

func configFieldsFromSource(source, className string) []manifest.ConfigField {
	var fields []manifest.ConfigField

	inClass := false
	classIndent := 0
	capturing := false
	var buffer strings.Builder
	bracketDepth := 0
	docDelim := ""

	flush := func() {
		if field, ok := parseConfigFieldDefinition(buffer.String()); ok {
			fields = append(fields, field)
		}
		capturing = false
	}

	for _, line := range strings.Split(source, "\n") {
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

		if docDelim != "" {
			if strings.Contains(trimmed, docDelim) {
				docDelim = ""
			}
			continue
		}
		if strings.HasPrefix(trimmed, `"""`) || strings.HasPrefix(trimmed, "'''") {
			delim := trimmed[:3]
			if !strings.HasSuffix(trimmed, delim) || len(trimmed) == len(delim) {
				docDelim = delim
			}
			continue
		}

		if indent <= classIndent && strings.HasPrefix(trimmed, "class ") && !capturing {
			break
		}
		if strings.HasPrefix(trimmed, "def ") || strings.HasPrefix(trimmed, "@") {
			capturing = false
			continue
		}

		if !capturing {
			if trimmed == "" || strings.HasPrefix(trimmed, "#") || !startsIdentifier(trimmed) {
				continue
			}
			if strings.Contains(trimmed, ":") || strings.Contains(trimmed, "=") {
				buffer.Reset()
				buffer.WriteString(trimmed)
				capturing = true
				bracketDepth = bracketDelta(trimmed)
				if bracketDepth <= 0 {
					flush()
				}
			}
			continue
		}

		buffer.WriteString(" ")
		buffer.WriteString(trimmed)
		bracketDepth += bracketDelta(trimmed)
		if bracketDepth <= 0 {
			flush()
		}
	}
	return fields
}

func startsIdentifier(s string) bool {
	c := s[0]
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// bracketDelta is the net bracket nesting change of a line, ignoring
// brackets inside string literals.
func bracketDelta(line string) int {
	depth := 0
	var quote byte
	for i := 0; i < len(line); i++ {
		c := line[i]
		if quote != 0 {
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		}
	}
	return depth
}

// parseConfigFieldDefinition parses one accumulated "name: annotation =
// default" declaration.
func parseConfigFieldDefinition(definition string) (manifest.ConfigField, bool) {
	namePart, remainder, ok := strings.Cut(definition, ":")
	if !ok {
		return manifest.ConfigField{}, false
	}
	name := strings.TrimSpace(namePart)
	if name == "" || strings.HasPrefix(name, "class") || strings.HasPrefix(name, "def") {
		return manifest.ConfigField{}, false
	}

	rest := strings.TrimSpace(remainder)
	annotation := rest
	def := ""
	if ann, d, ok := cutTopLevel(rest, '='); ok {
		annotation = strings.TrimSpace(ann)
		def = strings.TrimSpace(d)
	}
	if hash := strings.Index(def, "#"); hash >= 0 {
		def = strings.TrimSpace(def[:hash])
	}

	return manifest.ConfigField{
		Name:     name,
		Types:    splitUnionTypes(annotation),
		Default:  def,
		Required: def == "",
	}, true
}
