// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 R2X Contributors

// Package bridge drives the guest runtime across the process boundary.
// Each invocation imports a target, binds it, calls it, and returns its
// JSON result on stdout.
package bridge

import (
	"context"
	"errors"
	"sync"
)

// Sentinel errors for programmatic error checking.
var (
	// ErrClosed is returned when invoking through a closed bridge.
	ErrClosed = errors.New("bridge is closed")
)

// ConfigRef tells the guest which configuration class to instantiate and
// which kwargs belong to it.
type ConfigRef struct {
	Module string   `json:"module"`
	Class  string   `json:"class"`
	Fields []string `json:"fields"`
}

// Invocation is one unit of guest work.
type Invocation struct {
	// Target is "module:symbol" or "module:symbol.method".
	Target string `json:"target"`
	// Kwargs is the flat payload built by the stage binder.
	Kwargs map[string]any `json:"kwargs"`
	// Config, when set, makes the guest construct the config class from
	// the matching kwargs and bind it to the "config" parameter.
	Config *ConfigRef `json:"config,omitempty"`
	// RequiresStore makes the guest wrap the "store" kwarg in a data
	// store instance.
	RequiresStore bool `json:"requires_store,omitempty"`
	// Stdin carries the upstream payload, or "" when there is none.
	Stdin string `json:"-"`
}

// Host is the guest-runtime boundary. One shared instance serves the whole
// process.
type Host interface {
	// Invoke runs one invocation and returns the guest's stdout JSON.
	Invoke(ctx context.Context, inv Invocation) (string, error)
	// Help returns the guest-side docstring for a target.
	Help(ctx context.Context, target string) (string, error)
	// SetMirrorLogs toggles forwarding of guest log lines to the host log.
	SetMirrorLogs(mirror bool)
	// Close tears the bridge down. Further invocations fail with ErrClosed.
	Close() error
}

var (
	defaultMu   sync.Mutex
	defaultHost Host
)

// Default returns the process-wide bridge, or nil when none was set.
func Default() Host {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	return defaultHost
}

// SetDefault installs the process-wide bridge. Tests use it to substitute
// a fake.
func SetDefault(h Host) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultHost = h
}
