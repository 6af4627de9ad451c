// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 R2X Contributors

// Package venv resolves the interior layout of a Python virtual environment.
package venv

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/samber/oops"
)

// SitePackages returns the site-packages directory inside root.
// On Unix the python minor version is discovered by scanning lib/ for a
// python* directory; on Windows the layout is fixed at Lib\site-packages.
func SitePackages(root string) (string, error) {
	if runtime.GOOS == "windows" {
		return sitePackagesIn(root, filepath.Join(root, "Lib", "site-packages"))
	}

	libDir := filepath.Join(root, "lib")
	entries, err := os.ReadDir(libDir)
	if err != nil {
		return "", oops.Code("VENV_INVALID").
			With("venv", root).
			Errorf("not a virtual environment: missing %s", libDir)
	}
	for _, entry := range entries {
		if entry.IsDir() && strings.HasPrefix(entry.Name(), "python") {
			return sitePackagesIn(root, filepath.Join(libDir, entry.Name(), "site-packages"))
		}
	}
	return "", oops.Code("VENV_INVALID").
		With("venv", root).
		Errorf("no python* directory under %s", libDir)
}

func sitePackagesIn(root, candidate string) (string, error) {
	if info, err := os.Stat(candidate); err != nil || !info.IsDir() {
		return "", oops.Code("VENV_INVALID").
			With("venv", root).
			Errorf("missing site-packages at %s", candidate)
	}
	return candidate, nil
}

// Interpreter returns the python executable inside root.
func Interpreter(root string) (string, error) {
	var candidates []string
	if runtime.GOOS == "windows" {
		candidates = []string{filepath.Join(root, "Scripts", "python.exe")}
	} else {
		candidates = []string{
			filepath.Join(root, "bin", "python3"),
			filepath.Join(root, "bin", "python"),
		}
	}

	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return c, nil
		}
	}
	return "", oops.Code("VENV_INVALID").
		With("venv", root).
		Errorf("no python interpreter found in %s", root)
}
