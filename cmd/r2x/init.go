// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 R2X Contributors

package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/r2x-tools/r2x/internal/pipeline"
)

// EnvInitYes skips the overwrite confirmation when set.
const EnvInitYes = "R2X_INIT_YES"

// NewInitCmd creates the init subcommand.
func NewInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init [file]",
		Short: "Write a starter pipeline document",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "pipeline.yaml"
			if len(args) > 0 {
				path = args[0]
			}

			if _, err := os.Stat(path); err == nil {
				if os.Getenv(EnvInitYes) == "" && !confirm(cmd, path+" exists, overwrite?") {
					cmd.Println("aborted")
					return nil
				}
				if err := os.Remove(path); err != nil {
					return err
				}
			}

			if err := pipeline.WriteTemplate(path); err != nil {
				return err
			}
			cmd.Printf("wrote %s\n", path)
			return nil
		},
	}
}
