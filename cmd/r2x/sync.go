// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 R2X Contributors

package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/r2x-tools/r2x/internal/discovery"
	"github.com/r2x-tools/r2x/internal/installer"
	"github.com/r2x-tools/r2x/internal/locate"
	"github.com/r2x-tools/r2x/internal/manifest"
	"github.com/r2x-tools/r2x/internal/venv"
)

// NewSyncCmd creates the sync subcommand.
func NewSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Re-run plugin discovery for every cataloged package",
		Long: `Re-run plugin discovery for every cataloged package, refreshing
versions, plugin signatures and dependency edges from the installed
environment.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := manifest.Load()
			if err != nil {
				return err
			}
			if m.IsEmpty() {
				cmd.Println("no packages installed")
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
			site, err := venv.SitePackages(cfg.VenvPath)
			if err != nil {
				return err
			}
			locator, err := locate.New(site, locate.UVCacheDir())
			if err != nil {
				return err
			}

			inst := installer.New(cfg.UVPath, interp)
			orch := discovery.New(m, locator)

			// Explicit installs are the roots; the dependency walk
			// refreshes the rest.
			var roots []string
			for _, pkg := range m.Packages {
				if pkg.InstallType == manifest.InstallExplicit {
					roots = append(roots, pkg.Name)
				}
			}

			synced := 0
			for _, name := range roots {
				info, err := inst.Show(cmd.Context(), name)
				if err != nil {
					slog.Warn("package missing from environment, skipping",
						"package", name, "error", err)
					continue
				}
				pkg := m.GetPackage(name)
				if _, err := orch.Discover(name, discovery.Options{
					Version:      info.Version,
					Dependencies: info.Dependencies,
					NoCache:      true,
					Editable:     pkg.Editable,
					SourceURI:    pkg.SourceURI,
				}); err != nil {
					return err
				}
				synced++
			}

			if err := m.Save(); err != nil {
				return err
			}
			cmd.Printf("synced %d package(s), %d plugin(s)\n", synced, m.TotalPluginCount())
			return nil
		},
	}
}
