// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 R2X Contributors

// Package installer drives the external package manager as a child process.
// Every mutation of the environment goes through it; discovery and the
// manifest consume its results.
package installer

import (
	"bytes"
	"context"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// Runner executes one child process and returns its stdout and stderr.
// Swapped out in tests.
type Runner func(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var out, errBuf bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errBuf
	err := cmd.Run()
	return out.Bytes(), errBuf.Bytes(), err
}

// Installer wraps the uv binary, pinning installs to one interpreter.
type Installer struct {
	uvPath     string
	pythonPath string
	run        Runner
}

// New builds an installer around the given uv binary and venv interpreter.
func New(uvPath, pythonPath string) *Installer {
	return &Installer{uvPath: uvPath, pythonPath: pythonPath, run: execRunner}
}

// NewWithRunner is New with a custom process runner for tests.
func NewWithRunner(uvPath, pythonPath string, run Runner) *Installer {
	return &Installer{uvPath: uvPath, pythonPath: pythonPath, run: run}
}

// InstallOptions tune one install invocation.
type InstallOptions struct {
	Editable bool
	NoCache  bool
}

// Install runs "uv pip install" for the given specifier. Transient network
// failures are retried with Fibonacci backoff before surfacing.
func (i *Installer) Install(ctx context.Context, spec string, opts InstallOptions) error {
	args := []string{"pip", "install", "--python", i.pythonPath}
	if opts.NoCache {
		args = append(args, "--no-cache")
	}
	if opts.Editable {
		args = append(args, "-e")
	}
	args = append(args, spec)

	backoff := retry.WithMaxRetries(2, retry.NewFibonacci(time.Second))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		slog.Debug("running installer", "uv", i.uvPath, "spec", spec)
		_, stderr, err := i.run(ctx, i.uvPath, args...)
		if err == nil {
			return nil
		}
		wrapped := commandFailed(err, stderr, i.uvPath, args)
		if transientFailure(stderr) {
			slog.Warn("installer hit a transient failure, retrying", "spec", spec)
			return retry.RetryableError(wrapped)
		}
		return wrapped
	})
}

// PackageInfo is the subset of "uv pip show" output discovery consumes.
type PackageInfo struct {
	Version      string
	Dependencies []string
}

// Show queries an installed package's version and direct dependencies.
func (i *Installer) Show(ctx context.Context, packageName string) (PackageInfo, error) {
	args := []string{"pip", "show", "--python", i.pythonPath, packageName}
	stdout, stderr, err := i.run(ctx, i.uvPath, args...)
	if err != nil {
		return PackageInfo{}, commandFailed(err, stderr, i.uvPath, args)
	}
	return parseShowOutput(string(stdout)), nil
}

// Remove uninstalls a package from the venv.
func (i *Installer) Remove(ctx context.Context, packageName string) error {
	args := []string{"pip", "uninstall", "--python", i.pythonPath, packageName}
	_, stderr, err := i.run(ctx, i.uvPath, args...)
	if err != nil {
		return commandFailed(err, stderr, i.uvPath, args)
	}
	return nil
}

// EnsureVenv creates the virtual environment when it does not exist yet.
func (i *Installer) EnsureVenv(ctx context.Context, venvPath string) error {
	args := []string{"venv", venvPath}
	_, stderr, err := i.run(ctx, i.uvPath, args...)
	if err != nil {
		return commandFailed(err, stderr, i.uvPath, args)
	}
	return nil
}

func parseShowOutput(output string) PackageInfo {
	var info PackageInfo
	for _, line := range strings.Split(output, "\n") {
		if version, ok := strings.CutPrefix(line, "Version:"); ok {
			info.Version = strings.TrimSpace(version)
		}
		if requires, ok := strings.CutPrefix(line, "Requires:"); ok {
			for _, dep := range strings.Split(requires, ",") {
				name := strings.TrimSpace(dep)
				// Strip any version constraint from the requirement.
				if idx := strings.IndexAny(name, "><=!~ "); idx >= 0 {
					name = name[:idx]
				}
				if name != "" {
					info.Dependencies = append(info.Dependencies, name)
				}
			}
		}
	}
	return info
}

func commandFailed(err error, stderr []byte, name string, args []string) error {
	return oops.Code("COMMAND_FAILED").
		With("command", name+" "+strings.Join(args, " ")).
		With("stderr", stderrSnippet(stderr)).
		Wrap(err)
}

// stderrSnippet keeps the tail of stderr, where the actionable message
// usually sits.
func stderrSnippet(stderr []byte) string {
	s := strings.TrimSpace(string(stderr))
	const limit = 500
	if len(s) > limit {
		s = "…" + s[len(s)-limit:]
	}
	return s
}

func transientFailure(stderr []byte) bool {
	s := strings.ToLower(string(stderr))
	for _, marker := range []string{
		"error sending request",
		"connection reset",
		"operation timed out",
		"temporary failure in name resolution",
	} {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}
