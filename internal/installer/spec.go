// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 R2X Contributors

package installer

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/samber/oops"
)

// GitOptions selects a git source for an install reference.
type GitOptions struct {
	Host   string
	Branch string
	Tag    string
	Commit string
}

func (o GitOptions) hasRef() bool {
	return o.Branch != "" || o.Tag != "" || o.Commit != ""
}

func (o GitOptions) ref() string {
	switch {
	case o.Branch != "":
		return o.Branch
	case o.Tag != "":
		return o.Tag
	default:
		return o.Commit
	}
}

// BuildPackageSpec turns a user-supplied reference into an installer
// specifier. Local paths and registry names pass through; URLs gain a git+
// prefix and an @ref suffix; "org/repo" shorthand expands against the host.
func BuildPackageSpec(ref string, opts GitOptions) (string, error) {
	ref = expandTilde(ref)

	if strings.HasPrefix(ref, "./") || strings.HasPrefix(ref, "../") || strings.HasPrefix(ref, "/") {
		if opts.hasRef() || opts.Host != "" {
			return "", oops.Code("CONFIG_INVALID").
				Errorf("git flags cannot be combined with a local path")
		}
		return ref, nil
	}

	isURL := strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") ||
		strings.HasPrefix(ref, "git@") || strings.HasPrefix(ref, "git+")
	if isURL {
		if strings.Contains(ref, "@") && !strings.HasPrefix(ref, "git@") {
			if opts.hasRef() {
				return "", oops.Code("CONFIG_INVALID").
					Errorf("--branch/--tag/--commit conflict with an URL that already pins @ref")
			}
			return ref, nil
		}
		url := ref
		if !strings.HasPrefix(url, "git+") && !strings.HasPrefix(url, "git@") {
			url = "git+" + url
		}
		return addGitRef(url, opts), nil
	}

	if strings.Contains(ref, "/") && !strings.Contains(ref, `\`) {
		host := opts.Host
		if host == "" {
			host = "github.com"
		}
		return addGitRef("git+https://"+host+"/"+ref, opts), nil
	}

	if opts.hasRef() || opts.Host != "" {
		return "", oops.Code("CONFIG_INVALID").
			Errorf("git flags cannot be combined with a registry package name")
	}
	return ref, nil
}

func addGitRef(url string, opts GitOptions) string {
	if !opts.hasRef() {
		return url
	}
	return url + "@" + opts.ref()
}

// ExtractPackageName recovers the distribution name from an install
// reference: the repository basename for URLs, the declared project name
// for local paths, and the reference itself for registry names.
func ExtractPackageName(ref string) (string, error) {
	pkg := strings.TrimPrefix(expandTilde(ref), "git+")

	if strings.Contains(pkg, "://") || strings.HasPrefix(pkg, "git@") {
		pkg, _, _ = strings.Cut(pkg, "@")
		if idx := strings.LastIndex(pkg, "/"); idx >= 0 {
			pkg = pkg[idx+1:]
		}
		return strings.TrimSuffix(pkg, ".git"), nil
	}

	if strings.ContainsAny(pkg, `/\`) {
		name, ok := projectNameFromPyproject(pkg)
		if !ok {
			return "", oops.Code("CONFIG_INVALID").
				With("path", pkg).
				Errorf("cannot determine package name from %s", ref)
		}
		return name, nil
	}

	pkg, _, _ = strings.Cut(pkg, "@")
	return pkg, nil
}

func projectNameFromPyproject(dir string) (string, bool) {
	data, err := os.ReadFile(filepath.Join(dir, "pyproject.toml"))
	if err != nil {
		return "", false
	}
	var doc struct {
		Project struct {
			Name string `toml:"name"`
		} `toml:"project"`
	}
	if err := toml.Unmarshal(data, &doc); err != nil || doc.Project.Name == "" {
		return "", false
	}
	return doc.Project.Name, true
}

func expandTilde(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if path == "~" {
		return home
	}
	return filepath.Join(home, path[2:])
}
