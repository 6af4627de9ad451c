// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 R2X Contributors

// Package naming converts Python identifier styles to the kebab-case
// plugin names used throughout the manifest and CLI.
package naming

import "strings"

// CamelToKebab converts a CamelCase identifier to kebab-case.
// Acronym runs stay together: "ReEDSParser" becomes "reeds-parser",
// "XMLParser" becomes "xml-parser" and "API" becomes "api".
func CamelToKebab(s string) string {
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s) + 4)

	for i, r := range runes {
		if isUpper(r) && i > 0 {
			prevUpper := isUpper(runes[i-1])
			nextUpper := i+1 < len(runes) && isUpper(runes[i+1])
			nextLower := i+1 < len(runes) && isLower(runes[i+1])

			// A hyphen goes before an uppercase rune that either starts a
			// new word (but not one entering an acronym run) or ends an
			// acronym run.
			startNewWord := !prevUpper && !nextUpper
			endOfAcronym := prevUpper && nextLower
			if startNewWord || endOfAcronym {
				b.WriteByte('-')
			}
		}
		b.WriteRune(toLower(r))
	}
	return b.String()
}

// SnakeToKebab converts a snake_case identifier to kebab-case.
func SnakeToKebab(s string) string {
	return strings.ReplaceAll(s, "_", "-")
}

// Variants returns the lookup aliases for a plugin or package name:
// the name itself, its underscore-to-hyphen form and its
// hyphen-to-underscore form, deduplicated in that order.
func Variants(s string) []string {
	out := make([]string, 0, 3)
	seen := make(map[string]struct{}, 3)
	for _, v := range []string{s, strings.ReplaceAll(s, "_", "-"), strings.ReplaceAll(s, "-", "_")} {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// MatchingParen returns the index of the closer that balances the opener
// at start, tracking nesting across (), [] and {}. Returns -1 when start
// does not sit on an opener or the text ends before the paren closes.
func MatchingParen(s string, start int) int {
	runes := []rune(s)
	if start < 0 || start >= len(runes) || !isOpener(runes[start]) {
		return -1
	}
	depth := 0
	for i := start; i < len(runes); i++ {
		switch {
		case isOpener(runes[i]):
			depth++
		case isCloser(runes[i]):
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func isOpener(r rune) bool { return r == '(' || r == '[' || r == '{' }
func isCloser(r rune) bool { return r == ')' || r == ']' || r == '}' }

func isUpper(r rune) bool { return r >= 'A' && r <= 'Z' }
func isLower(r rune) bool { return r >= 'a' && r <= 'z' }

func toLower(r rune) rune {
	if isUpper(r) {
		return r + ('a' - 'A')
	}
	return r
}
