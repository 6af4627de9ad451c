// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 R2X Contributors

package main

import (
	"bufio"
	"os"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/r2x-tools/r2x/internal/config"
	"github.com/r2x-tools/r2x/internal/logging"
)

// Global flags available to all subcommands.
var (
	configFile string
	quiet      int
	verbose    int
	logPython  bool
	noStdout   bool
)

// closeLog flushes the per-run log file, when one was opened.
var closeLog func()

// NewRootCmd creates the root command for the r2x CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "r2x",
		Short: "r2x - plugin host for energy model translation",
		Long: `r2x discovers, installs and catalogs translation plugins written in
Python, and runs them as pipeline stages that convert one energy model's
data into another's.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if configFile != "" {
				if err := os.Setenv(config.EnvConfigPath, configFile); err != nil {
					return oops.Code("CONFIG_INVALID").Wrap(err)
				}
			}
			closeLog = logging.SetupCLI("r2x", version, logging.LevelFor(verbose, quiet))
			return nil
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if closeLog != nil {
				closeLog()
			}
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "config file path")
	flags.CountVarP(&verbose, "verbose", "v", "increase log verbosity (repeat for trace)")
	flags.CountVarP(&quiet, "quiet", "q", "decrease log verbosity (-qq also suppresses stdout)")
	flags.BoolVar(&logPython, "log-python", false, "mirror guest plugin logs to the console")
	flags.BoolVar(&noStdout, "no-stdout", false, "do not record stage stdout in the log file")

	// Config keys are overridable per invocation; changed flags layer over
	// the config file inside config.Load.
	defaults := config.Defaults()
	flags.String("venv-path", defaults.VenvPath, "python virtual environment for plugins")
	flags.String("cache-path", defaults.CachePath, "cache directory for pipeline artifacts")
	flags.String("uv-path", defaults.UVPath, "uv executable")
	flags.String("default-host", defaults.DefaultHost, "git host for owner/repo install refs")

	cmd.AddCommand(NewConfigCmd())
	cmd.AddCommand(NewListCmd())
	cmd.AddCommand(NewInstallCmd())
	cmd.AddCommand(NewRemoveCmd())
	cmd.AddCommand(NewSyncCmd())
	cmd.AddCommand(NewCleanCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewReadCmd())

	return cmd
}

// loadConfig reads the global config record with changed CLI flags layered
// on top. The --config flag is already exported to the environment by the
// root pre-run hook.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	return config.Load(cmd.Root().PersistentFlags())
}

// confirm prompts on the command's input stream and returns true for an
// explicit yes.
func confirm(cmd *cobra.Command, prompt string) bool {
	cmd.Printf("%s [y/N]: ", prompt)
	reader := bufio.NewReader(cmd.InOrStdin())
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
