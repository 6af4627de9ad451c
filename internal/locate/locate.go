// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 R2X Contributors

// Package locate resolves installed guest packages to their on-disk source
// directories via site-packages and editable-install pointer files.
package locate

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/samber/oops"

	"github.com/r2x-tools/r2x/internal/entrypoints"
)

// EnvUVCacheDir overrides the installer cache root the locator scans for
// editable-install pointer files.
const EnvUVCacheDir = "UV_CACHE_DIR"

// Locator resolves package names against one site-packages directory.
// The directory listing is read once and cached.
type Locator struct {
	sitePackages string
	uvCacheDir   string
	dirEntries   map[string]string
}

// New builds a locator for the given site-packages root. uvCacheDir may be
// empty to skip the editable-pointer scan.
func New(sitePackages, uvCacheDir string) (*Locator, error) {
	entries, err := os.ReadDir(sitePackages)
	if err != nil {
		return nil, oops.Code("LOCATOR_SITE_PACKAGES_MISSING").
			With("path", sitePackages).
			Wrap(err)
	}

	dirEntries := make(map[string]string, len(entries))
	for _, entry := range entries {
		dirEntries[entry.Name()] = filepath.Join(sitePackages, entry.Name())
	}

	return &Locator{
		sitePackages: sitePackages,
		uvCacheDir:   uvCacheDir,
		dirEntries:   dirEntries,
	}, nil
}

// UVCacheDir returns the pointer-file cache root: $UV_CACHE_DIR/archive-v0
// when set, otherwise ~/.cache/uv/archive-v0.
func UVCacheDir() string {
	if dir := os.Getenv(EnvUVCacheDir); dir != "" {
		return filepath.Join(dir, "archive-v0")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".cache", "uv", "archive-v0")
}

// SitePackages returns the directory this locator scans.
func (l *Locator) SitePackages() string {
	return l.sitePackages
}

// FindDistInfo returns the package's dist-info directory, matching
// "<normalized>-*.dist-info" where normalization swaps hyphens for
// underscores.
func (l *Locator) FindDistInfo(packageName string) (string, bool) {
	prefix := strings.ReplaceAll(packageName, "-", "_") + "-"
	for name, path := range l.dirEntries {
		if strings.HasPrefix(name, prefix) && strings.HasSuffix(name, ".dist-info") {
			return path, true
		}
	}
	return "", false
}

// HasPluginEntryPoints reports whether the package's entry_points.txt
// declares any recognized plugin section.
func (l *Locator) HasPluginEntryPoints(packageName string) bool {
	distInfo, ok := l.FindDistInfo(packageName)
	if !ok {
		return false
	}
	data, err := os.ReadFile(filepath.Join(distInfo, "entry_points.txt"))
	if err != nil {
		return false
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") &&
			entrypoints.IsPluginSection(strings.Trim(line, "[]")) {
			return true
		}
	}
	return false
}

// FindPackagePath locates the package's importable source directory.
// Editable installs resolve through pointer files in the installer cache;
// regular installs resolve to the module directory in site-packages, with
// the dist-info's top_level.txt as a last resort.
func (l *Locator) FindPackagePath(packageName string) (string, error) {
	normalized := strings.ReplaceAll(packageName, "-", "_")

	if path, ok := l.findViaPointerFiles(normalized); ok {
		slog.Debug("resolved editable install", "package", packageName, "path", path)
		return path, nil
	}

	direct := filepath.Join(l.sitePackages, normalized)
	if isDir(direct) {
		return direct, nil
	}

	var distInfo string
	distPrefix := normalized + "-"
	for name, path := range l.dirEntries {
		if name == normalized {
			return path, nil
		}
		if strings.HasPrefix(name, distPrefix) && strings.HasSuffix(name, ".dist-info") {
			distInfo = path
		}
	}

	if distInfo != "" {
		if resolved, ok := l.resolveFromDistInfo(distInfo); ok {
			return resolved, nil
		}
		slog.Debug("dist-info present but top-level module unresolved",
			"package", packageName, "dist_info", distInfo)
		return l.sitePackages, nil
	}

	return "", oops.Code("LOCATOR_PACKAGE_NOT_FOUND").
		With("package", packageName).
		With("site_packages", l.sitePackages).
		Errorf("package %q not found in site-packages", packageName)
}

// findViaPointerFiles scans the installer cache for a "<name>.pth" or
// "__editable__.<name>-<version>.pth" file whose content is the source path.
func (l *Locator) findViaPointerFiles(normalized string) (string, bool) {
	if l.uvCacheDir == "" {
		return "", false
	}
	hashDirs, err := os.ReadDir(l.uvCacheDir)
	if err != nil {
		return "", false
	}

	for _, hashDir := range hashDirs {
		if !hashDir.IsDir() {
			continue
		}
		files, err := os.ReadDir(filepath.Join(l.uvCacheDir, hashDir.Name()))
		if err != nil {
			continue
		}
		for _, file := range files {
			if !pointerFileMatches(file.Name(), normalized) {
				continue
			}
			data, err := os.ReadFile(filepath.Join(l.uvCacheDir, hashDir.Name(), file.Name()))
			if err != nil {
				continue
			}
			for _, line := range strings.Split(string(data), "\n") {
				line = strings.TrimSpace(line)
				if line == "" || strings.HasPrefix(line, "#") {
					continue
				}
				if _, err := os.Stat(line); err == nil {
					return line, true
				}
			}
		}
	}
	return "", false
}

func pointerFileMatches(fileName, normalized string) bool {
	if fileName == normalized+".pth" {
		return true
	}
	return strings.HasPrefix(fileName, "__editable__.") &&
		strings.Contains(fileName, normalized+"-") &&
		strings.HasSuffix(fileName, ".pth")
}

// resolveFromDistInfo reads top_level.txt and returns the first module that
// exists on disk. A single-file module resolves to site-packages itself.
func (l *Locator) resolveFromDistInfo(distInfo string) (string, bool) {
	data, err := os.ReadFile(filepath.Join(distInfo, "top_level.txt"))
	if err != nil {
		return "", false
	}
	for _, line := range strings.Split(string(data), "\n") {
		module := strings.TrimSpace(line)
		if module == "" {
			continue
		}
		if dir := filepath.Join(l.sitePackages, module); isDir(dir) {
			return dir, true
		}
		if file := filepath.Join(l.sitePackages, module+".py"); isFile(file) {
			return l.sitePackages, true
		}
	}
	return "", false
}

// Discovered describes one plugin-bearing package found in site-packages.
type Discovered struct {
	Name     string
	Location string
	Editable bool
}

// DiscoverPackages scans every dist-info in site-packages and returns the
// packages that declare plugin entry points. The shared runtime package is
// excluded.
func (l *Locator) DiscoverPackages() []Discovered {
	var packages []Discovered
	for name := range l.dirEntries {
		if !strings.HasSuffix(name, ".dist-info") {
			continue
		}
		base, _, _ := strings.Cut(strings.TrimSuffix(name, ".dist-info"), "-")
		packageName := strings.ReplaceAll(base, "_", "-")
		if packageName == "" || packageName == "r2x-core" {
			continue
		}
		if !l.HasPluginEntryPoints(packageName) {
			continue
		}
		location, err := l.FindPackagePath(packageName)
		if err != nil {
			slog.Debug("plugin package without resolvable source", "package", packageName)
			continue
		}
		_, editable := l.findViaPointerFiles(strings.ReplaceAll(packageName, "-", "_"))
		packages = append(packages, Discovered{
			Name:     packageName,
			Location: location,
			Editable: editable,
		})
	}
	return packages
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
