// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 R2X Contributors

// Package config loads and persists the global r2x configuration record.
package config

import (
	"os"
	"path/filepath"
	"strings"

	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/r2x-tools/r2x/internal/xdg"
)

// EnvConfigPath overrides the config file location when set.
const EnvConfigPath = "R2X_CONFIG"

// Config is the global configuration record.
type Config struct {
	// VenvPath is the Python virtual environment plugins are installed into.
	VenvPath string `koanf:"venv_path" yaml:"venv_path"`
	// CachePath receives intermediate pipeline payloads and spooled input.
	CachePath string `koanf:"cache_path" yaml:"cache_path"`
	// UVPath is the uv executable used for package management.
	UVPath string `koanf:"uv_path" yaml:"uv_path"`
	// DefaultHost is the git host assumed for bare owner/repo install refs.
	DefaultHost string `koanf:"default_host" yaml:"default_host"`
}

// Keys lists the settable configuration keys.
func Keys() []string {
	return []string{"venv_path", "cache_path", "uv_path", "default_host"}
}

// Path returns the config file location: R2X_CONFIG if set, otherwise
// config.yaml under the XDG config directory.
func Path() string {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}
	return filepath.Join(xdg.ConfigDir(), "config.yaml")
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		VenvPath:    ".venv",
		CachePath:   xdg.CacheDir(),
		UVPath:      "uv",
		DefaultHost: "github.com",
	}
}

// Load reads the config file (when present) over the defaults, then applies
// changed CLI flags on top. A nil flag set skips the flag layer.
func Load(flags *pflag.FlagSet) (*Config, error) {
	return LoadFrom(Path(), flags)
}

// LoadFrom is Load with an explicit file path.
func LoadFrom(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), kyaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_READ_FAILED").With("path", path).Wrap(err)
		}
	}

	if flags != nil {
		// CLI flags use hyphens; config keys use underscores.
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_READ_FAILED").With("path", path).Wrap(err)
		}
	}

	cfg := Defaults()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_INVALID").With("path", path).Wrap(err)
	}
	return &cfg, nil
}

// Set updates a single key and persists the record.
func (c *Config) Set(key, value string) error {
	switch key {
	case "venv_path":
		c.VenvPath = value
	case "cache_path":
		c.CachePath = value
	case "uv_path":
		c.UVPath = value
	case "default_host":
		c.DefaultHost = value
	default:
		return oops.Code("CONFIG_INVALID").
			With("key", key).
			With("valid_keys", strings.Join(Keys(), ", ")).
			Errorf("unknown config key %q", key)
	}
	return c.Save()
}

// Save writes the record to the config file, creating parent directories.
// The write is atomic: a temp file in the same directory is renamed over
// the destination.
func (c *Config) Save() error {
	return c.SaveTo(Path())
}

// SaveTo is Save with an explicit file path.
func (c *Config) SaveTo(path string) error {
	if err := xdg.EnsureDir(filepath.Dir(path)); err != nil {
		return oops.Code("CONFIG_WRITE_FAILED").With("path", path).Wrap(err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return oops.Code("CONFIG_WRITE_FAILED").With("path", path).Wrap(err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return oops.Code("CONFIG_WRITE_FAILED").With("path", tmp).Wrap(err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return oops.Code("CONFIG_WRITE_FAILED").With("path", path).Wrap(err)
	}
	return nil
}

// Render returns the record as YAML for display.
func (c *Config) Render() (string, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return "", oops.Code("CONFIG_INVALID").Wrap(err)
	}
	return string(data), nil
}
