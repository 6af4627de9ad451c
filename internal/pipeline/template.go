// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 R2X Contributors

package pipeline

import (
	"os"

	"github.com/samber/oops"
)

// Template is the starter pipeline document emitted by init.
const Template = `# Pipeline definition
#
# Variables are substituted into string values with ${name} or $(name).
variables:
  solve_year: 2030

# Each pipeline is an ordered list of stage references. A reference can be
# a plugin name, package.plugin, or package.<kind> (parser, exporter, ...).
pipelines:
  default:
    - r2x-reeds.parser
    - r2x-plexos.exporter

# Per-stage configuration, keyed by stage reference.
config:
  r2x-reeds.parser:
    solve_year: ${solve_year}
  r2x-plexos.exporter: {}

output_folder: ./output
`

// WriteTemplate writes the starter document to path, refusing to clobber
// an existing file.
func WriteTemplate(path string) error {
	if _, err := os.Stat(path); err == nil {
		return oops.Code("CONFIG_INVALID").
			With("path", path).
			Errorf("file already exists: %s", path)
	}
	if err := os.WriteFile(path, []byte(Template), 0o600); err != nil {
		return oops.Code("CONFIG_INVALID").
			With("path", path).
			Wrap(err)
	}
	return nil
}
