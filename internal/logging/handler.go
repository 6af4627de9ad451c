// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 R2X Contributors

// Package logging provides structured logging for the r2x CLI.
//
// Every record carries the service name, version and a per-process run id
// so that log files from separate invocations can be told apart. During a
// pipeline run the currently executing plugin is attached as well.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/oklog/ulid/v2"

	"github.com/r2x-tools/r2x/internal/xdg"
)

// currentPlugin names the pipeline stage being executed, if any.
var currentPlugin atomic.Pointer[string]

// SetCurrentPlugin attaches a plugin name to all subsequent log records.
func SetCurrentPlugin(name string) {
	currentPlugin.Store(&name)
}

// ClearCurrentPlugin detaches the plugin name set by SetCurrentPlugin.
func ClearCurrentPlugin() {
	currentPlugin.Store(nil)
}

// runHandler wraps a slog.Handler to add run context.
type runHandler struct {
	handler slog.Handler
	service string
	version string
	runID   string
}

// Handle adds run context to the log record.
func (h *runHandler) Handle(ctx context.Context, r slog.Record) error {
	r.AddAttrs(
		slog.String("service", h.service),
		slog.String("version", h.version),
		slog.String("run_id", h.runID),
	)
	if p := currentPlugin.Load(); p != nil {
		r.AddAttrs(slog.String("plugin", *p))
	}

	//nolint:wrapcheck // Handler interface requires unwrapped error passthrough
	return h.handler.Handle(ctx, r)
}

// Enabled returns true if the level is enabled.
func (h *runHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// WithAttrs returns a new handler with the given attributes.
func (h *runHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &runHandler{
		handler: h.handler.WithAttrs(attrs),
		service: h.service,
		version: h.version,
		runID:   h.runID,
	}
}

// WithGroup returns a new handler with the given group.
func (h *runHandler) WithGroup(name string) slog.Handler {
	return &runHandler{
		handler: h.handler.WithGroup(name),
		service: h.service,
		version: h.version,
		runID:   h.runID,
	}
}

// multiHandler fans each record out to every handler that accepts its
// level.
type multiHandler struct {
	handlers []slog.Handler
}

func (h *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, hh := range h.handlers {
		if hh.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error
	for _, hh := range h.handlers {
		if !hh.Enabled(ctx, r.Level) {
			continue
		}
		if err := hh.Handle(ctx, r.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (h *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make([]slog.Handler, len(h.handlers))
	for i, hh := range h.handlers {
		out[i] = hh.WithAttrs(attrs)
	}
	return &multiHandler{handlers: out}
}

func (h *multiHandler) WithGroup(name string) slog.Handler {
	out := make([]slog.Handler, len(h.handlers))
	for i, hh := range h.handlers {
		out[i] = hh.WithGroup(name)
	}
	return &multiHandler{handlers: out}
}

// LevelFor maps the CLI verbosity flags to a slog level.
// verbose wins over quiet when both are given.
func LevelFor(verbose, quiet int) slog.Level {
	switch {
	case verbose > 0:
		return slog.LevelDebug
	case quiet == 1:
		return slog.LevelWarn
	case quiet >= 2:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup creates a configured slog.Logger.
// format: "json" or "text" (defaults to "text" if empty).
// If w is nil, writes to os.Stderr.
func Setup(service, version, format string, level slog.Level, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}

	var baseHandler slog.Handler
	opts := &slog.HandlerOptions{
		Level: level,
	}

	if format == "json" {
		baseHandler = slog.NewJSONHandler(w, opts)
	} else {
		baseHandler = slog.NewTextHandler(w, opts)
	}

	handler := &runHandler{
		handler: baseHandler,
		service: service,
		version: version,
		runID:   ulid.Make().String(),
	}

	return slog.New(handler)
}

// SetDefault sets up and configures the default logger.
func SetDefault(service, version, format string, level slog.Level, w io.Writer) {
	slog.SetDefault(Setup(service, version, format, level, w))
}

// SetupCLI installs the default logger for one command invocation. Text
// records go to stderr at level; the full debug stream goes to a per-run
// JSON log file under the state directory when one can be created. The
// returned closer flushes the log file and is always safe to call.
func SetupCLI(service, version string, level slog.Level) func() {
	handlers := []slog.Handler{
		slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}),
	}
	closer := func() {}
	if f, _, err := OpenLogFile(); err == nil {
		handlers = append(handlers, slog.NewJSONHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug}))
		closer = func() { _ = f.Close() }
	}

	slog.SetDefault(slog.New(&runHandler{
		handler: &multiHandler{handlers: handlers},
		service: service,
		version: version,
		runID:   ulid.Make().String(),
	}))
	return closer
}

// OpenLogFile creates a per-run log file under the XDG state directory and
// returns the open handle plus its path.
func OpenLogFile() (*os.File, string, error) {
	dir := filepath.Join(xdg.StateDir(), "logs")
	if err := xdg.EnsureDir(dir); err != nil {
		return nil, "", err
	}
	path := filepath.Join(dir, "r2x_"+ulid.Make().String()+".log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, "", err
	}
	return f, path, nil
}
