// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 R2X Contributors

package main

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/r2x-tools/r2x/internal/venv"
	"github.com/r2x-tools/r2x/internal/xdg"
)

// readScript bootstraps an interactive guest session around a system JSON
// file. IPython is preferred; the plain REPL is the fallback.
const readScript = `
import json
import sys

path = sys.argv[1]
exec_script = sys.argv[2] if len(sys.argv) > 2 else ""

with open(path) as f:
    data = json.load(f)

system = data
try:
    from r2x_core.system import System
    system = System.from_json(path)
except Exception:
    pass

names = {"system": system, "data": data, "path": path}

if exec_script:
    with open(exec_script) as f:
        code_text = f.read()
    exec(compile(code_text, exec_script, "exec"), dict(names))
    sys.exit(0)

banner = "r2x read: loaded %s\nbound names: system, data, path" % path
try:
    from IPython import embed
    embed(banner1=banner, colors="neutral", user_ns=names)
except ImportError:
    import code
    code.interact(banner=banner, local=names)
`

// NewReadCmd creates the read subcommand.
func NewReadCmd() *cobra.Command {
	var execScript string

	cmd := &cobra.Command{
		Use:   "read [file]",
		Short: "Open an interactive guest session on a system JSON file",
		Long: `Open an interactive guest session with the given system JSON file
loaded. Without a file argument the JSON is read from stdin and spooled
to the cache directory first.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			interp, err := venv.Interpreter(cfg.VenvPath)
			if err != nil {
				return err
			}

			var jsonPath string
			if len(args) > 0 {
				jsonPath = args[0]
			} else {
				jsonPath, err = spoolStdin(cmd.InOrStdin(), cfg.CachePath)
				if err != nil {
					return err
				}
			}

			pyArgs := []string{"-c", readScript, jsonPath}
			if execScript != "" {
				pyArgs = append(pyArgs, execScript)
			}
			guest := exec.CommandContext(cmd.Context(), interp, pyArgs...)
			guest.Stdin = os.Stdin
			guest.Stdout = os.Stdout
			guest.Stderr = os.Stderr
			if err := guest.Run(); err != nil {
				return oops.Code("COMMAND_FAILED").
					With("command", interp).
					Wrap(err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&execScript, "exec", "", "run this guest script against the loaded system and exit")
	return cmd
}

// spoolStdin writes piped JSON to a temp file so the guest session can
// reopen it by path.
func spoolStdin(in io.Reader, cacheDir string) (string, error) {
	data, err := io.ReadAll(in)
	if err != nil {
		return "", oops.Code("CONFIG_INVALID").Wrapf(err, "reading stdin")
	}
	if len(data) == 0 {
		return "", oops.Code("CONFIG_INVALID").
			Errorf("no JSON input: pass a file argument or pipe data in")
	}
	if err := xdg.EnsureDir(cacheDir); err != nil {
		return "", err
	}
	path := filepath.Join(cacheDir, fmt.Sprintf("stdin_input_%d.json", time.Now().UnixMilli()))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", oops.Code("CONFIG_INVALID").With("path", path).Wrap(err)
	}
	return path, nil
}
