// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 R2X Contributors

package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/r2x-tools/r2x/internal/discovery"
	"github.com/r2x-tools/r2x/internal/installer"
	"github.com/r2x-tools/r2x/internal/locate"
	"github.com/r2x-tools/r2x/internal/manifest"
	"github.com/r2x-tools/r2x/internal/venv"
)

// NewInstallCmd creates the install subcommand.
func NewInstallCmd() *cobra.Command {
	var (
		editable bool
		noCache  bool
		host     string
		branch   string
		tag      string
		commit   string
	)

	cmd := &cobra.Command{
		Use:   "install <ref>",
		Short: "Install a plugin package and discover its plugins",
		Long: `Install a plugin package and discover its plugins.

The reference may be a registry package name, a local directory, a git
URL, or an owner/repo shorthand expanded against the configured host.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			opts := installer.GitOptions{Host: host, Branch: branch, Tag: tag, Commit: commit}
			if opts.Host == "" {
				opts.Host = cfg.DefaultHost
			}
			spec, err := installer.BuildPackageSpec(args[0], opts)
			if err != nil {
				return err
			}
			name, err := installer.ExtractPackageName(args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			interp, err := venv.Interpreter(cfg.VenvPath)
			if err != nil {
				if err := installer.New(cfg.UVPath, "").EnsureVenv(ctx, cfg.VenvPath); err != nil {
					return err
				}
				if interp, err = venv.Interpreter(cfg.VenvPath); err != nil {
					return err
				}
			}

			inst := installer.New(cfg.UVPath, interp)
			if err := inst.Install(ctx, spec, installer.InstallOptions{
				Editable: editable,
				NoCache:  noCache,
			}); err != nil {
				return err
			}
			info, err := inst.Show(ctx, name)
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
			m, err := manifest.Load()
			if err != nil {
				return err
			}

			dopts := discovery.Options{
				Version:      info.Version,
				Dependencies: info.Dependencies,
				NoCache:      true,
				Editable:     editable,
				SourceURI:    spec,
			}
			if fi, statErr := os.Stat(args[0]); statErr == nil && fi.IsDir() {
				if abs, absErr := filepath.Abs(args[0]); absErr == nil {
					dopts.SourceURI = abs
					if editable {
						dopts.SourcePath = abs
					}
				}
			}

			count, err := discovery.New(m, locator).Discover(name, dopts)
			if err != nil {
				return err
			}
			if err := m.Save(); err != nil {
				return err
			}
			cmd.Printf("installed %s %s: %d plugin(s)\n", name, info.Version, count)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&editable, "editable", "e", false, "install in editable mode")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "bypass the installer cache")
	cmd.Flags().StringVar(&host, "host", "", "git host for owner/repo references")
	cmd.Flags().StringVar(&branch, "branch", "", "git branch to install")
	cmd.Flags().StringVar(&tag, "tag", "", "git tag to install")
	cmd.Flags().StringVar(&commit, "commit", "", "git commit to install")

	return cmd
}
