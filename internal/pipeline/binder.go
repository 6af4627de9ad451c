// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 R2X Contributors

package pipeline

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/samber/oops"

	"github.com/r2x-tools/r2x/internal/manifest"
)

// autoProvided lists parameter names the binder supplies from system state
// rather than user config.
var autoProvided = map[string]bool{
	"store":       true,
	"data_store":  true,
	"stdin":       true,
	"system":      true,
	"path":        true,
	"folder_path": true,
	"config":      true,
}

// IsAutoProvided reports whether a parameter is supplied by the binder.
func IsAutoProvided(name string) bool {
	return autoProvided[name]
}

// BindInput carries everything one stage binding needs.
type BindInput struct {
	Plugin   *manifest.PluginSpec
	Bindings manifest.RuntimeBindings
	// UserConfig is the per-stage block from the pipeline document.
	UserConfig map[string]any
	// Upstream is the previous stage's stdout JSON, or "".
	Upstream string
	// OutputFolder anchors the store fallback.
	OutputFolder string
	// InheritedStorePath carries the store chosen by a preceding stage.
	InheritedStorePath string
	// CacheDir receives persisted system payloads.
	CacheDir string
}

// BindResult is the materialized kwargs payload plus the store path the
// next stage inherits.
type BindResult struct {
	Kwargs    map[string]any
	StorePath string
}

// BindStage builds the kwargs payload for one stage: user YAML, upstream
// overrides and auto-provided resources merged into one flat map.
func BindStage(in BindInput) (BindResult, error) {
	kwargs := cloneTree(in.UserConfig)

	overrides, err := upstreamOverrides(in.Plugin, in.Upstream, in.CacheDir)
	if err != nil {
		return BindResult{}, err
	}
	kwargs = deepMerge(kwargs, overrides)

	if in.Plugin.Implementation == manifest.ImplFunction {
		return BindResult{Kwargs: kwargs, StorePath: in.InheritedStorePath}, nil
	}

	fillPath(in, kwargs)

	storePath := in.InheritedStorePath
	if in.Bindings.RequiresStore || hasStoreParameter(in.Bindings) {
		chosen, err := chooseStorePath(in, kwargs)
		if err != nil {
			return BindResult{}, err
		}
		kwargs["store"] = chosen
		storePath = chosen
	}

	fillFolderPath(in, kwargs, storePath)
	return BindResult{Kwargs: kwargs, StorePath: storePath}, nil
}

// fillPath copies a user-supplied fallback into "path" when the plugin
// declares the parameter and nothing set it yet.
func fillPath(in BindInput, kwargs map[string]any) {
	if in.Bindings.Parameter("path") == nil {
		return
	}
	if _, ok := kwargs["path"]; ok {
		return
	}
	for _, key := range []string{"path", "store_path"} {
		if v, ok := in.UserConfig[key]; ok {
			kwargs["path"] = v
			return
		}
	}
}

func hasStoreParameter(bindings manifest.RuntimeBindings) bool {
	return bindings.Parameter("store") != nil || bindings.Parameter("data_store") != nil
}

// chooseStorePath sources the store location: user config first, then the
// inherited path, finally a fallback folder under the output directory.
func chooseStorePath(in BindInput, kwargs map[string]any) (string, error) {
	for _, key := range []string{"path", "store", "store_path"} {
		if v, ok := kwargs[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s, nil
			}
		}
	}
	if in.InheritedStorePath != "" {
		return in.InheritedStorePath, nil
	}

	fallback := filepath.Join(in.OutputFolder, "store")
	if err := os.MkdirAll(fallback, 0o750); err != nil {
		return "", oops.Code("PIPELINE_STORE_UNAVAILABLE").
			With("path", fallback).
			Wrap(err)
	}
	slog.Debug("using fallback store folder", "path", fallback)
	return fallback, nil
}

// fillFolderPath fills a declared folder_path parameter from user keys,
// the store value, or the inherited store path.
func fillFolderPath(in BindInput, kwargs map[string]any, storePath string) {
	if in.Bindings.Parameter("folder_path") == nil {
		return
	}
	if _, ok := kwargs["folder_path"]; ok {
		return
	}
	for _, key := range []string{"folder_path", "store_path", "path"} {
		if v, ok := in.UserConfig[key]; ok {
			kwargs["folder_path"] = v
			return
		}
	}
	if s, ok := kwargs["store"].(string); ok && s != "" {
		kwargs["folder_path"] = s
		return
	}
	if storePath != "" {
		kwargs["folder_path"] = storePath
	}
}

// cloneTree copies a config tree so later merges never write back into
// the document's per-stage maps.
func cloneTree(src map[string]any) map[string]any {
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = cloneValue(v)
	}
	return dst
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneTree(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

// deepMerge merges src into dst: maps merge key-wise, everything else is
// replaced by src. dst is returned for chaining.
func deepMerge(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for key, srcVal := range src {
		if srcMap, ok := srcVal.(map[string]any); ok {
			if dstMap, ok := dst[key].(map[string]any); ok {
				dst[key] = deepMerge(dstMap, srcMap)
				continue
			}
		}
		dst[key] = srcVal
	}
	return dst
}
