// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 R2X Contributors

package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os/exec"
	"strings"
	"sync"

	"github.com/samber/oops"

	"github.com/r2x-tools/r2x/internal/logging"
)

// runnerScript executes one invocation inside the guest interpreter.
// It reads the invocation spec from argv, the upstream payload from stdin,
// and writes the result JSON to stdout. Log lines go to stderr.
const runnerScript = `
import importlib
import inspect
import json
import sys


def select_kwargs(callable_obj, kwargs):
    try:
        params = inspect.signature(callable_obj).parameters
    except (TypeError, ValueError):
        return dict(kwargs)
    if any(p.kind is inspect.Parameter.VAR_KEYWORD for p in params.values()):
        return dict(kwargs)
    return {k: v for k, v in kwargs.items() if k in params}


def serialize(result):
    if result is None:
        return "null"
    if hasattr(result, "to_json"):
        return result.to_json()
    if hasattr(result, "model_dump_json"):
        return result.model_dump_json()
    return json.dumps(result, default=str)


def main():
    spec = json.loads(sys.argv[1])
    kwargs = spec.get("kwargs") or {}

    raw = sys.stdin.read()
    if raw.strip():
        try:
            kwargs.setdefault("stdin", json.loads(raw))
        except json.JSONDecodeError:
            kwargs.setdefault("stdin", raw)

    module_path, _, symbol_path = spec["target"].partition(":")
    symbol, _, method = symbol_path.partition(".")
    target = getattr(importlib.import_module(module_path), symbol)

    config = spec.get("config")
    if config:
        cfg_cls = getattr(importlib.import_module(config["module"]), config["class"])
        names = set(config.get("fields") or [])
        cfg_kwargs = {k: kwargs.pop(k) for k in list(kwargs) if k in names}
        kwargs["config"] = cfg_cls(**cfg_kwargs)

    if spec.get("requires_store") and isinstance(kwargs.get("store"), str):
        from r2x_core import DataStore

        kwargs["store"] = DataStore(folder=kwargs["store"])

    if method:
        instance = target(**select_kwargs(target, kwargs))
        bound = getattr(instance, method)
        result = bound(**select_kwargs(bound, kwargs))
    else:
        result = target(**select_kwargs(target, kwargs))

    sys.stdout.write(serialize(result))


if __name__ == "__main__":
    main()
`

// helpScript prints the target's signature and docstring.
const helpScript = `
import importlib
import inspect
import sys

module_path, _, symbol_path = sys.argv[1].partition(":")
symbol, _, _ = symbol_path.partition(".")
target = getattr(importlib.import_module(module_path), symbol)
try:
    sys.stdout.write(str(inspect.signature(target)) + "\n\n")
except (TypeError, ValueError):
    pass
sys.stdout.write(inspect.getdoc(target) or "No documentation available.")
`

// Runner executes the guest interpreter once. Swapped out in tests.
type Runner func(ctx context.Context, pythonPath string, args []string, stdin string) (stdout, stderr string, err error)

func execGuest(ctx context.Context, pythonPath string, args []string, stdin string) (string, string, error) {
	cmd := exec.CommandContext(ctx, pythonPath, args...)
	cmd.Stdin = strings.NewReader(stdin)
	var out, errBuf bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errBuf
	err := cmd.Run()
	return out.String(), errBuf.String(), err
}

// PythonBridge invokes plugin targets through the venv interpreter, one
// child process per invocation.
type PythonBridge struct {
	pythonPath string
	run        Runner

	mu         sync.Mutex
	mirrorLogs bool
	closed     bool
}

// NewPythonBridge builds a bridge around the given interpreter binary.
func NewPythonBridge(pythonPath string) *PythonBridge {
	return &PythonBridge{pythonPath: pythonPath, run: execGuest}
}

// NewPythonBridgeWithRunner is NewPythonBridge with a custom process
// runner for tests.
func NewPythonBridgeWithRunner(pythonPath string, run Runner) *PythonBridge {
	return &PythonBridge{pythonPath: pythonPath, run: run}
}

// Invoke runs one invocation in the guest and returns its stdout JSON.
func (b *PythonBridge) Invoke(ctx context.Context, inv Invocation) (string, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return "", ErrClosed
	}
	mirror := b.mirrorLogs
	b.mu.Unlock()

	payload, err := json.Marshal(inv)
	if err != nil {
		return "", oops.Code("BRIDGE_SERIALIZATION_FAILED").
			With("target", inv.Target).
			Wrap(err)
	}

	logging.SetCurrentPlugin(inv.Target)
	defer logging.ClearCurrentPlugin()

	stdout, stderr, err := b.run(ctx, b.pythonPath, []string{"-c", runnerScript, string(payload)}, inv.Stdin)
	forwardGuestLogs(stderr, mirror)
	if err != nil {
		return "", oops.Code("BRIDGE_INVOKE_FAILED").
			With("target", inv.Target).
			With("stderr", tail(stderr)).
			Wrap(err)
	}
	return stdout, nil
}

// Help returns the target's signature and docstring from the guest.
func (b *PythonBridge) Help(ctx context.Context, target string) (string, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return "", ErrClosed
	}
	b.mu.Unlock()

	stdout, stderr, err := b.run(ctx, b.pythonPath, []string{"-c", helpScript, target}, "")
	if err != nil {
		return "", oops.Code("BRIDGE_INVOKE_FAILED").
			With("target", target).
			With("stderr", tail(stderr)).
			Wrap(err)
	}
	return stdout, nil
}

// SetMirrorLogs toggles forwarding guest stderr lines to the host log at
// info level instead of debug.
func (b *PythonBridge) SetMirrorLogs(mirror bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mirrorLogs = mirror
}

// Close marks the bridge unusable. Idempotent.
func (b *PythonBridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func forwardGuestLogs(stderr string, mirror bool) {
	for _, line := range strings.Split(stderr, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		if mirror {
			slog.Info("guest: " + line)
		} else {
			slog.Debug("guest: " + line)
		}
	}
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	const limit = 500
	if len(s) > limit {
		s = "…" + s[len(s)-limit:]
	}
	return s
}
