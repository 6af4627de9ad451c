// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 R2X Contributors

package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/r2x-tools/r2x/internal/installer"
	"github.com/r2x-tools/r2x/internal/manifest"
	"github.com/r2x-tools/r2x/internal/venv"
)

// NewCleanCmd creates the clean subcommand.
func NewCleanCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Uninstall every cataloged package and empty the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := manifest.Load()
			if err != nil {
				return err
			}
			if m.IsEmpty() {
				cmd.Println("nothing to clean")
				return nil
			}

			prompt := fmt.Sprintf("remove %d package(s)?", len(m.Packages))
			if !yes && !confirm(cmd, prompt) {
				cmd.Println("aborted")
				return nil
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			interp, err := venv.Interpreter(cfg.VenvPath)
			if err != nil {
				return err
			}
			inst := installer.New(cfg.UVPath, interp)

			for _, pkg := range m.Packages {
				if err := inst.Remove(cmd.Context(), pkg.Name); err != nil {
					slog.Warn("uninstall failed, catalog entry removed anyway",
						"package", pkg.Name, "error", err)
				}
			}
			removed := len(m.Packages)
			m.Clear()
			if err := m.Save(); err != nil {
				return err
			}
			cmd.Printf("removed %d package(s)\n", removed)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}
