// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 R2X Contributors

package main

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/r2x-tools/r2x/internal/bridge"
	"github.com/r2x-tools/r2x/internal/config"
	"github.com/r2x-tools/r2x/internal/discovery"
	"github.com/r2x-tools/r2x/internal/locate"
	"github.com/r2x-tools/r2x/internal/manifest"
	"github.com/r2x-tools/r2x/internal/pipeline"
	"github.com/r2x-tools/r2x/internal/venv"
)

// NewRunCmd creates the run subcommand.
func NewRunCmd() *cobra.Command {
	var (
		listPipelines bool
		printConfig   bool
		dryRun        bool
		output        string
	)

	cmd := &cobra.Command{
		Use:   "run [yaml] [pipeline]",
		Short: "Execute a pipeline document",
		Long: `Execute a pipeline document stage by stage, piping each stage's
output into the next. The file argument defaults to pipeline.yaml; the
pipeline name may be omitted when the document defines exactly one.`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "pipeline.yaml"
			if len(args) > 0 {
				path = args[0]
			}
			doc, err := pipeline.Load(path)
			if err != nil {
				return err
			}

			if listPipelines {
				for _, name := range doc.PipelineNames() {
					cmd.Println(name)
				}
				return nil
			}
			if printConfig {
				data, err := yaml.Marshal(doc)
				if err != nil {
					return oops.Code("PIPELINE_PARSE_FAILED").Wrap(err)
				}
				cmd.Print(string(data))
				return nil
			}

			name := ""
			if len(args) > 1 {
				name = args[1]
			}

			m, err := manifest.Load()
			if err != nil {
				return err
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			runner := &pipeline.Runner{
				Manifest:    m,
				CacheDir:    cfg.CachePath,
				Output:      output,
				PrintStdout: quiet < 2,
				DryRun:      dryRun,
				LogStdout:   !noStdout,
				Out:         cmd.OutOrStdout(),
			}
			if !dryRun {
				host, closeHost, err := newGuestBridge(cfg)
				if err != nil {
					return err
				}
				defer closeHost()
				runner.Bridge = host
				runner.Verify = newVerifier(cfg, m)
			}

			return runner.Run(cmd.Context(), doc, name)
		},
	}

	cmd.Flags().BoolVar(&listPipelines, "list", false, "list the document's pipelines and exit")
	cmd.Flags().BoolVar(&printConfig, "print", false, "print the substituted document and exit")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the stage plan without invoking anything")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the final stage's output to this file")

	cmd.AddCommand(newRunPluginCmd())
	return cmd
}

func newRunPluginCmd() *cobra.Command {
	var (
		showHelp     bool
		outputFolder string
	)

	cmd := &cobra.Command{
		Use:   "plugin <name> [key=value...]",
		Short: "Invoke a single plugin outside any pipeline",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := manifest.Load()
			if err != nil {
				return err
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if showHelp {
				return renderPluginHelp(cmd, m, cfg, args[0])
			}

			kwargs, err := parseKeyValues(args[1:])
			if err != nil {
				return err
			}

			host, closeHost, err := newGuestBridge(cfg)
			if err != nil {
				return err
			}
			defer closeHost()

			runner := &pipeline.Runner{
				Manifest:    m,
				Bridge:      host,
				CacheDir:    cfg.CachePath,
				PrintStdout: quiet < 2,
				LogStdout:   !noStdout,
				Out:         cmd.OutOrStdout(),
			}
			return runner.RunPlugin(cmd.Context(), args[0], kwargs, outputFolder)
		},
	}

	cmd.Flags().BoolVar(&showHelp, "show-help", false, "show the plugin's signature and documentation")
	cmd.Flags().StringVar(&outputFolder, "output-folder", "./output", "folder for store fallback and artifacts")
	return cmd
}

// newGuestBridge builds the process-wide Python bridge from the configured
// virtual environment.
func newGuestBridge(cfg *config.Config) (bridge.Host, func(), error) {
	interp, err := venv.Interpreter(cfg.VenvPath)
	if err != nil {
		return nil, nil, err
	}
	b := bridge.NewPythonBridge(interp)
	b.SetMirrorLogs(logPython)
	bridge.SetDefault(b)
	return b, func() { _ = b.Close() }, nil
}

// newVerifier re-checks recorded install provenance before each stage.
// When the environment cannot be inspected the check is skipped with a
// warning rather than blocking the run.
func newVerifier(cfg *config.Config, m *manifest.Manifest) func(string) error {
	site, err := venv.SitePackages(cfg.VenvPath)
	if err != nil {
		slog.Warn("skipping provenance checks", "error", err)
		return nil
	}
	locator, err := locate.New(site, locate.UVCacheDir())
	if err != nil {
		slog.Warn("skipping provenance checks", "error", err)
		return nil
	}
	return discovery.New(m, locator).VerifyProvenance
}

// parseKeyValues turns key=value arguments into kwargs. Values that parse
// as JSON keep their type; everything else stays a string.
func parseKeyValues(pairs []string) (map[string]any, error) {
	kwargs := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, oops.Code("CONFIG_INVALID").
				With("argument", pair).
				Errorf("expected key=value, got %q", pair)
		}
		var value any
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			value = raw
		}
		kwargs[key] = value
	}
	return kwargs, nil
}

func renderPluginHelp(cmd *cobra.Command, m *manifest.Manifest, cfg *config.Config, ref string) error {
	pkg, plugin, err := m.Resolve(ref)
	if err != nil {
		return err
	}
	bindings := manifest.BuildRuntimeBindings(plugin)

	cmd.Printf("%s (%s, from %s)\n", plugin.Name, string(plugin.Kind), pkg.Name)
	cmd.Printf("  target: %s\n", bindings.Target())

	if params := plugin.Parameters(); len(params) > 0 {
		cmd.Println("  parameters:")
		for _, p := range params {
			cmd.Printf("    %s\n", describeArgument(p))
		}
	}
	if plugin.Config != nil {
		cmd.Printf("  config (%s):\n", plugin.Config.Name)
		for _, f := range plugin.Config.Fields {
			line := "    " + f.Name
			if len(f.Types) > 0 {
				line += ": " + strings.Join(f.Types, " | ")
			}
			if f.Default != "" {
				line += " = " + f.Default
			}
			cmd.Println(line)
		}
	}

	// Guest docstring, when the environment is available.
	if interp, err := venv.Interpreter(cfg.VenvPath); err == nil {
		b := bridge.NewPythonBridge(interp)
		defer func() { _ = b.Close() }()
		if doc, err := b.Help(cmd.Context(), bindings.Target()); err == nil && doc != "" {
			cmd.Println()
			cmd.Println(doc)
		} else if err != nil {
			slog.Debug("guest help unavailable", "target", bindings.Target(), "error", err)
		}
	}
	return nil
}

func describeArgument(p manifest.ArgumentSpec) string {
	line := p.Name
	if p.Annotation != "" {
		line += ": " + p.Annotation
	}
	switch {
	case pipeline.IsAutoProvided(p.Name):
		line += " (provided by the host)"
	case p.Required:
		line += " (required)"
	case p.Default != "":
		line += " = " + p.Default
	}
	return line
}
