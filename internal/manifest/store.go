// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 R2X Contributors

package manifest

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/samber/oops"

	"github.com/r2x-tools/r2x/internal/xdg"
)

// DefaultPath returns the manifest location under the XDG config directory.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigDir(), "manifest.toml")
}

// Load reads the manifest from the default location. A missing file yields
// an empty manifest.
func Load() (*Manifest, error) {
	return LoadFrom(DefaultPath())
}

// LoadFrom is Load with an explicit path.
func LoadFrom(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return New(), nil
		}
		return nil, oops.Code("MANIFEST_READ_FAILED").With("path", path).Wrap(err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, oops.Code("MANIFEST_PARSE_FAILED").With("path", path).Wrap(err)
	}
	m.rebuildIndexes()
	return &m, nil
}

// Save writes the manifest to the default location.
func (m *Manifest) Save() error {
	return m.SaveTo(DefaultPath())
}

// SaveTo persists the manifest atomically: the content goes to a temp file
// in the destination directory which is then renamed over the target, so a
// reader sees either the old file or the new one.
func (m *Manifest) SaveTo(path string) error {
	if err := xdg.EnsureDir(filepath.Dir(path)); err != nil {
		return oops.Code("MANIFEST_WRITE_FAILED").With("path", path).Wrap(err)
	}

	m.Metadata.Version = Version
	m.Metadata.GeneratedAt = time.Now().UTC().Format(time.RFC3339)

	data, err := toml.Marshal(m)
	if err != nil {
		return oops.Code("MANIFEST_WRITE_FAILED").With("path", path).Wrap(err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return oops.Code("MANIFEST_WRITE_FAILED").With("path", tmp).Wrap(err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return oops.Code("MANIFEST_WRITE_FAILED").With("path", path).Wrap(err)
	}
	return nil
}

// Clear drops every package.
func (m *Manifest) Clear() {
	m.Packages = nil
	m.rebuildIndexes()
}
