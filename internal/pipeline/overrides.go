// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 R2X Contributors

package pipeline

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/samber/oops"

	"github.com/r2x-tools/r2x/internal/manifest"
)

// payloadSeq disambiguates system payload files written within the same
// millisecond.
var payloadSeq atomic.Int64

// upstreamOverrides turns the previous stage's stdout into config
// overrides. System-shaped payloads are persisted and referenced by path;
// anything else object-shaped becomes a raw overlay. Upgraders never take
// upstream config.
func upstreamOverrides(plugin *manifest.PluginSpec, upstream, cacheDir string) (map[string]any, error) {
	if upstream == "" || upstream == "null" || plugin.Kind == manifest.KindUpgrader {
		return nil, nil
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(upstream), &payload); err != nil {
		// Not an object. The runner still pipes it through stdin.
		slog.Debug("upstream payload is not a JSON object, skipping config merge")
		return nil, nil
	}

	if wantsSystemPath(plugin) && looksLikeSystem(payload) {
		path, err := persistSystemPayload(upstream, cacheDir)
		if err != nil {
			return nil, err
		}
		slog.Debug("persisted upstream system payload", "path", path)
		return map[string]any{"json_path": path}, nil
	}
	return payload, nil
}

// wantsSystemPath reports whether the plugin can consume a persisted
// system file, via a json_path or path config field or parameter.
func wantsSystemPath(plugin *manifest.PluginSpec) bool {
	for _, name := range []string{"json_path", "path"} {
		if plugin.Parameter(name) != nil {
			return true
		}
		if plugin.Config != nil && plugin.Config.Field(name) != nil {
			return true
		}
	}
	return false
}

// looksLikeSystem recognizes a serialized system: a top-level object with
// components or system keys, directly or under a data map.
func looksLikeSystem(payload map[string]any) bool {
	if _, ok := payload["components"]; ok {
		return true
	}
	if _, ok := payload["system"]; ok {
		return true
	}
	data, ok := payload["data"].(map[string]any)
	if !ok {
		return false
	}
	for _, key := range []string{"components", "system_information", "system"} {
		if _, ok := data[key]; ok {
			return true
		}
	}
	return false
}

// persistSystemPayload writes the payload to a unique file under the
// pipeline-systems cache. Files are never overwritten; pruning is left to
// the user.
func persistSystemPayload(payload, cacheDir string) (string, error) {
	dir := filepath.Join(cacheDir, "pipeline-systems")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", oops.Code("PIPELINE_STORE_UNAVAILABLE").
			With("path", dir).
			Wrap(err)
	}
	name := fmt.Sprintf("system_%d_%d_%d.json",
		time.Now().UnixMilli(), os.Getpid(), payloadSeq.Add(1))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(payload), 0o600); err != nil {
		return "", oops.Code("PIPELINE_STORE_UNAVAILABLE").
			With("path", path).
			Wrap(err)
	}
	return path, nil
}
