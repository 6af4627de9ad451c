// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 R2X Contributors

package ast

import (
	"strconv"
	"strings"
)

// kwargRole classifies what a keyword argument means to the factory.
type kwargRole int

const (
	roleName kwargRole = iota
	roleEntry
	roleMethod
	roleDescription
	roleConfig
	roleStore
	roleIOType
	roleOther
)

func roleFromIdentifier(name string) kwargRole {
	switch name {
	case "name":
		return roleName
	case "obj", "callable", "target", "function", "factory", "entry":
		return roleEntry
	case "call_method", "method", "call_function":
		return roleMethod
	case "description":
		return roleDescription
	case "config":
		return roleConfig
	case "store":
		return roleStore
	case "io_type":
		return roleIOType
	default:
		return roleOther
	}
}

type kwarg struct {
	name      string
	value     string
	valueType string
	role      kwargRole
}

// parseKwargs splits a call's argument list on depth-0 commas and returns
// the keyword arguments. Positional arguments are ignored.
func parseKwargs(callText string) []kwarg {
	open := strings.Index(callText, "(")
	closing := strings.LastIndex(callText, ")")
	if open < 0 || closing < open {
		return nil
	}
	argsText := callText[open+1 : closing]

	var kwargs []kwarg
	for _, raw := range splitTopLevel(argsText, ',') {
		arg := strings.TrimSpace(raw)
		if arg == "" {
			continue
		}
		key, value, ok := cutTopLevel(arg, '=')
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		valueType := classifyLiteral(value)
		if valueType == "string" {
			value = strings.Trim(value, `"'`)
		}
		kwargs = append(kwargs, kwarg{
			name:      key,
			value:     value,
			valueType: valueType,
			role:      roleFromIdentifier(key),
		})
	}
	return kwargs
}

func kwargValueByRole(kwargs []kwarg, role kwargRole) (string, bool) {
	for _, kw := range kwargs {
		if kw.role == role {
			return kw.value, true
		}
	}
	return "", false
}

// classifyLiteral is a deterministic pattern match over literal shapes.
func classifyLiteral(value string) string {
	value = strings.TrimSpace(value)
	switch {
	case len(value) >= 2 &&
		((value[0] == '"' && value[len(value)-1] == '"') ||
			(value[0] == '\'' && value[len(value)-1] == '\'')):
		return "string"
	}
	if _, err := strconv.ParseInt(value, 10, 64); err == nil {
		return "number"
	}
	if _, err := strconv.ParseFloat(value, 64); err == nil {
		return "float"
	}
	if value == "True" || value == "False" {
		return "boolean"
	}
	if strings.Contains(value, ".") && isDottedIdentifier(value) {
		return "enum_value"
	}
	if startsUpper(value) {
		return "class_reference"
	}
	if strings.HasPrefix(value, "[") || strings.HasPrefix(value, "{") {
		return "complex"
	}
	return "identifier"
}

func isDottedIdentifier(s string) bool {
	for _, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_', c == '.':
		default:
			return false
		}
	}
	return s != ""
}

// splitTopLevel splits on sep at bracket depth 0, respecting quotes.
func splitTopLevel(s string, sep byte) []string {
	var parts []string
	depth := 0
	var quote byte
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
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
		case sep:
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, s[start:])
	return parts
}

// cutTopLevel cuts at the first sep found at bracket depth 0 outside quotes.
func cutTopLevel(s string, sep byte) (before, after string, found bool) {
	depth := 0
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
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
		case sep:
			if depth == 0 {
				return s[:i], s[i+1:], true
			}
		}
	}
	return s, "", false
}
