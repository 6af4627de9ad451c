// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 R2X Contributors

package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"

	"github.com/samber/oops"

	"github.com/r2x-tools/r2x/internal/bridge"
	"github.com/r2x-tools/r2x/internal/manifest"
)

// Runner executes one pipeline sequentially, plumbing each stage's stdout
// into the next.
type Runner struct {
	Manifest *manifest.Manifest
	Bridge   bridge.Host
	// CacheDir receives persisted system payloads.
	CacheDir string
	// Output, when set, receives the final stage's stdout.
	Output string
	// PrintStdout controls echoing the final stdout when Output is unset.
	PrintStdout bool
	// DryRun stops before kwargs materialization and prints the plan.
	DryRun bool
	// Verify, when set, runs against each stage's package before
	// execution.
	Verify func(packageName string) error
	// LogStdout records each stage's stdout in the debug log.
	LogStdout bool
	// Out is the destination for plan and result printing. Defaults to
	// os.Stdout.
	Out io.Writer
}

func (r *Runner) out() io.Writer {
	if r.Out != nil {
		return r.Out
	}
	return os.Stdout
}

// Run validates and executes the named pipeline from the document.
func (r *Runner) Run(ctx context.Context, doc *Document, pipelineName string) error {
	stages, err := doc.Pipeline(pipelineName)
	if err != nil {
		return err
	}
	if err := Validate(doc, r.Manifest, pipelineName); err != nil {
		return err
	}

	if r.DryRun {
		return r.printPlan(stages)
	}
	if r.Bridge == nil {
		return oops.Code("BRIDGE_NOT_LOADED").
			Errorf("no guest bridge is configured")
	}

	upstream := ""
	inheritedStore := ""
	for i, ref := range stages {
		pkg, plugin, err := r.Manifest.Resolve(ref)
		if err != nil {
			return err
		}
		if r.Verify != nil {
			if err := r.Verify(pkg.Name); err != nil {
				return err
			}
		}

		bindings := manifest.BuildRuntimeBindings(plugin)
		bound, err := BindStage(BindInput{
			Plugin:             plugin,
			Bindings:           bindings,
			UserConfig:         doc.StageConfig(ref, pkg, plugin),
			Upstream:           upstream,
			OutputFolder:       doc.OutputFolder,
			InheritedStorePath: inheritedStore,
			CacheDir:           r.CacheDir,
		})
		if err != nil {
			return err
		}
		inheritedStore = bound.StorePath

		inv := bridge.Invocation{
			Target:        bindings.Target(),
			Kwargs:        bound.Kwargs,
			RequiresStore: bindings.RequiresStore,
			Stdin:         stageStdin(plugin, upstream),
		}
		if plugin.Config != nil {
			inv.Config = configRef(plugin, bound.Kwargs)
		}

		slog.Info("running stage",
			"stage", ref, "target", inv.Target, "position", i+1, "total", len(stages))
		stdout, err := r.Bridge.Invoke(ctx, inv)
		if err != nil {
			return oops.Code("PIPELINE_STAGE_FAILED").
				With("stage", ref).
				Wrap(err)
		}
		if r.LogStdout {
			slog.Debug("stage stdout", "stage", ref, "stdout", stdout)
		}
		upstream = stdout
	}

	return r.writeResult(upstream)
}

// RunPlugin invokes a single plugin outside any pipeline, with kwargs
// supplied directly.
func (r *Runner) RunPlugin(ctx context.Context, ref string, kwargs map[string]any, outputFolder string) error {
	pkg, plugin, err := r.Manifest.Resolve(ref)
	if err != nil {
		return err
	}
	if r.Verify != nil {
		if err := r.Verify(pkg.Name); err != nil {
			return err
		}
	}
	if r.Bridge == nil {
		return oops.Code("BRIDGE_NOT_LOADED").
			Errorf("no guest bridge is configured")
	}

	bindings := manifest.BuildRuntimeBindings(plugin)
	bound, err := BindStage(BindInput{
		Plugin:       plugin,
		Bindings:     bindings,
		UserConfig:   kwargs,
		OutputFolder: outputFolder,
		CacheDir:     r.CacheDir,
	})
	if err != nil {
		return err
	}

	inv := bridge.Invocation{
		Target:        bindings.Target(),
		Kwargs:        bound.Kwargs,
		RequiresStore: bindings.RequiresStore,
	}
	if plugin.Config != nil {
		inv.Config = configRef(plugin, bound.Kwargs)
	}

	stdout, err := r.Bridge.Invoke(ctx, inv)
	if err != nil {
		return err
	}
	return r.writeResult(stdout)
}

// stageStdin decides what the stage reads on stdin. Upgraders take a path
// input only; empty and null payloads are dropped.
func stageStdin(plugin *manifest.PluginSpec, upstream string) string {
	if plugin.Kind == manifest.KindUpgrader {
		return ""
	}
	if upstream == "" || upstream == "null" {
		return ""
	}
	return upstream
}

// configRef names the kwargs the guest folds into the config class: every
// key not claimed by a declared parameter or by the store machinery
// belongs to the config class, whether the extractor saw the field or not.
func configRef(plugin *manifest.PluginSpec, kwargs map[string]any) *bridge.ConfigRef {
	fields := make([]string, 0, len(kwargs))
	for key := range kwargs {
		if plugin.Parameter(key) != nil || isStoreKey(key) || key == "config" {
			continue
		}
		fields = append(fields, key)
	}
	sort.Strings(fields)
	return &bridge.ConfigRef{
		Module: plugin.Config.Module,
		Class:  plugin.Config.Name,
		Fields: fields,
	}
}

func isStoreKey(key string) bool {
	switch key {
	case "store", "data_store", "store_path":
		return true
	}
	return false
}

// printPlan renders the resolved per-stage plan without materializing
// kwargs.
func (r *Runner) printPlan(stages []string) error {
	for i, ref := range stages {
		pkg, plugin, err := r.Manifest.Resolve(ref)
		if err != nil {
			return err
		}
		bindings := manifest.BuildRuntimeBindings(plugin)
		fmt.Fprintf(r.out(), "%d. %s -> %s (%s, %s)\n",
			i+1, ref, bindings.Target(), pkg.Name, plugin.Kind)
	}
	return nil
}

// writeResult delivers the final stage's stdout: to the output file when
// set, otherwise echoed unless suppressed.
func (r *Runner) writeResult(stdout string) error {
	if stdout == "" {
		return nil
	}
	if r.Output != "" {
		if err := os.WriteFile(r.Output, []byte(stdout), 0o600); err != nil {
			return oops.Code("PIPELINE_OUTPUT_FAILED").
				With("path", r.Output).
				Wrap(err)
		}
		return nil
	}
	if r.PrintStdout {
		fmt.Fprintln(r.out(), stdout)
	}
	return nil
}
