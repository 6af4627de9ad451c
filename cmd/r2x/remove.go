// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 R2X Contributors

package main

import (
	"log/slog"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/r2x-tools/r2x/internal/installer"
	"github.com/r2x-tools/r2x/internal/manifest"
	"github.com/r2x-tools/r2x/internal/venv"
)

// NewRemoveCmd creates the remove subcommand.
func NewRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <package>",
		Short: "Uninstall a plugin package and prune the catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			m, err := manifest.Load()
			if err != nil {
				return err
			}
			if m.GetPackage(name) == nil {
				return oops.Code("PLUGIN_NOT_FOUND").
					With("package", name).
					Errorf("package %q is not installed", name)
			}
			if !m.CanRemovePackage(name) {
				return oops.Code("CONFIG_INVALID").
					With("package", name).
					Errorf("package %q is required by: %s",
						name, strings.Join(m.Dependents(name), ", "))
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

			removed := m.RemovePackageWithDeps(name)
			for _, pkg := range removed {
				if err := inst.Remove(cmd.Context(), pkg); err != nil {
					slog.Warn("uninstall failed, catalog entry removed anyway",
						"package", pkg, "error", err)
				}
			}
			if err := m.Save(); err != nil {
				return err
			}
			cmd.Printf("removed %s\n", strings.Join(removed, ", "))
			return nil
		},
	}
}
