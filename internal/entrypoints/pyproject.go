// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 R2X Contributors

package entrypoints

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

type pyproject struct {
	Project struct {
		Name        string                       `toml:"name"`
		EntryPoints map[string]map[string]string `toml:"entry-points"`
	} `toml:"project"`
}

// ParsePyproject extracts plugin entry points from a pyproject.toml
// document. Section names may be quoted or unquoted; when a section appears
// in both forms, the later definition wins. Malformed documents yield an
// empty list.
func ParsePyproject(data []byte) []Record {
	var doc pyproject
	if err := toml.Unmarshal(dropShadowedSections(data), &doc); err != nil {
		slog.Debug("skipping malformed pyproject.toml", "error", err)
		return nil
	}

	var records []Record
	for section, table := range doc.Project.EntryPoints {
		if !IsPluginSection(section) {
			continue
		}
		for name, target := range table {
			if rec, ok := buildRecord(name, target, section); ok {
				records = append(records, rec)
			}
		}
	}
	return records
}

var entryPointHeader = regexp.MustCompile(`^\s*\[project\.entry-points\.(?:"([^"]+)"|'([^']+)'|([^\]]+))\]\s*$`)

// dropShadowedSections removes earlier duplicates of an entry-points
// section so that a document declaring the same section quoted and
// unquoted keeps only the last definition. The TOML parser would otherwise
// reject the duplicate outright.
func dropShadowedSections(data []byte) []byte {
	lines := strings.Split(string(data), "\n")

	last := make(map[string]int)
	for i, line := range lines {
		if name := headerSection(line); name != "" {
			last[name] = i
		}
	}

	var out []string
	skipping := false
	for i, line := range lines {
		if name := headerSection(line); name != "" {
			skipping = last[name] != i
		} else if strings.HasPrefix(strings.TrimSpace(line), "[") {
			skipping = false
		}
		if !skipping {
			out = append(out, line)
		}
	}
	return []byte(strings.Join(out, "\n"))
}

func headerSection(line string) string {
	m := entryPointHeader.FindStringSubmatch(line)
	if m == nil {
		return ""
	}
	for _, group := range m[1:] {
		if group != "" {
			return strings.TrimSpace(group)
		}
	}
	return ""
}
