// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 R2X Contributors

package ast_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r2x-tools/r2x/internal/ast"
	"github.com/r2x-tools/r2x/internal/manifest"
)

// writePackage lays out a package source tree and returns its root.
func writePackage(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}
	return root
}

func TestExtractSingleParserFromConstructor(t *testing.T) {
	root := writePackage(t, map[string]string{
		"parser.py": `
class DemoConfig:
    """Settings for the demo parser."""

    system_base_power: int = 100

class DemoParser:
    def __init__(self, config: DemoConfig, path: str):
        self.config = config
`,
		"__init__.py": `
from demo.parser import DemoParser, DemoConfig
from r2x_core import Package, ParserPlugin

package = Package(
    name="demo",
    plugins=[
        ParserPlugin(
            name="demo-parser",
            obj=DemoParser,
            call_method="build_system",
            config=DemoConfig,
        ),
    ],
)
`,
	})

	ex, err := ast.New(filepath.Join(root, "__init__.py"), "demo", root)
	require.NoError(t, err)

	plugins, err := ex.ExtractPlugins()
	require.NoError(t, err)
	require.Len(t, plugins, 1)

	p := plugins[0]
	assert.Equal(t, "demo-parser", p.Name)
	assert.Equal(t, manifest.KindParser, p.Kind)
	assert.Equal(t, "demo.parser:DemoParser", p.Entry())
	assert.Equal(t, manifest.ImplClass, p.Implementation)
	assert.Equal(t, "build_system", p.CallMethod)

	require.Len(t, p.Constructor, 2)
	assert.Equal(t, "config", p.Constructor[0].Name)
	assert.Equal(t, "DemoConfig", p.Constructor[0].Annotation)
	assert.True(t, p.Constructor[0].Required)
	assert.Equal(t, "path", p.Constructor[1].Name)
	assert.Equal(t, "str", p.Constructor[1].Annotation)
	assert.True(t, p.Constructor[1].Required)

	require.NotNil(t, p.Config)
	assert.Equal(t, "demo.parser", p.Config.Module)
	assert.Equal(t, "DemoConfig", p.Config.Name)
	require.Len(t, p.Config.Fields, 1)
	field := p.Config.Fields[0]
	assert.Equal(t, "system_base_power", field.Name)
	assert.Equal(t, []string{"int"}, field.Types)
	assert.Equal(t, "100", field.Default)
	assert.False(t, field.Required)

	assert.Equal(t, []manifest.IOSlot{manifest.SlotStoreFolder, manifest.SlotConfigFile}, p.IO.Consumes)
	assert.Equal(t, []manifest.IOSlot{manifest.SlotSystem}, p.IO.Produces)
}

func TestExtractFromManifestAddHelpers(t *testing.T) {
	root := writePackage(t, map[string]string{
		"mods.py": `
def break_gens(system, threshold: float = 0.5):
    return system
`,
		"__init__.py": `
from demo.mods import break_gens
from r2x_core import PluginManifest, PluginSpec

manifest = PluginManifest()
manifest.add(PluginSpec.function(name="break-gens", entry=break_gens, description="Split generators"))
manifest.add(PluginSpec.parser(name="demo-parser", entry="demo.parser.DemoParser"))
`,
	})

	ex, err := ast.New(filepath.Join(root, "__init__.py"), "demo", root)
	require.NoError(t, err)

	plugins, err := ex.ExtractPlugins()
	require.NoError(t, err)
	require.Len(t, plugins, 2)

	fn := plugins[0]
	assert.Equal(t, "break-gens", fn.Name)
	assert.Equal(t, manifest.KindModifier, fn.Kind)
	assert.Equal(t, manifest.ImplFunction, fn.Implementation)
	assert.Equal(t, "demo.mods:break_gens", fn.Entry())
	assert.Equal(t, "Split generators", fn.Description)
	require.Len(t, fn.Call, 2)
	assert.Equal(t, "system", fn.Call[0].Name)
	assert.True(t, fn.Call[0].Required)
	assert.Equal(t, "threshold", fn.Call[1].Name)
	assert.Equal(t, "0.5", fn.Call[1].Default)
	assert.False(t, fn.Call[1].Required)

	parser := plugins[1]
	assert.Equal(t, manifest.KindParser, parser.Kind)
	assert.Equal(t, "build_system", parser.CallMethod)
}

func TestExtractNameDefaultsToKebabCase(t *testing.T) {
	root := writePackage(t, map[string]string{
		"parser.py": `
class XMLParser:
    def __init__(self, path: str):
        self.path = path
`,
		"__init__.py": `
from demo.parser import XMLParser
from r2x_core import ParserPlugin

plugin = ParserPlugin(obj=XMLParser)
`,
	})

	ex, err := ast.New(filepath.Join(root, "__init__.py"), "demo", root)
	require.NoError(t, err)

	plugins, err := ex.ExtractPlugins()
	require.NoError(t, err)
	require.Len(t, plugins, 1)
	assert.Equal(t, "xml-parser", plugins[0].Name)
}

func TestExtractFollowsReexportImports(t *testing.T) {
	root := writePackage(t, map[string]string{
		"api.py": `
from demo.impl.parser import DeepParser
`,
		"impl/parser.py": `
class DeepParser:
    def __init__(self, path: str, year: int = 2030):
        pass
`,
		"__init__.py": `
from demo.api import DeepParser
from r2x_core import ParserPlugin

plugin = ParserPlugin(name="deep", obj=DeepParser)
`,
	})

	ex, err := ast.New(filepath.Join(root, "__init__.py"), "demo", root)
	require.NoError(t, err)

	plugins, err := ex.ExtractPlugins()
	require.NoError(t, err)
	require.Len(t, plugins, 1)

	require.Len(t, plugins[0].Constructor, 2)
	assert.Equal(t, "path", plugins[0].Constructor[0].Name)
	assert.Equal(t, "year", plugins[0].Constructor[1].Name)
	assert.False(t, plugins[0].Constructor[1].Required)
}

func TestExtractMultiLineSignature(t *testing.T) {
	root := writePackage(t, map[string]string{
		"exporter.py": `
class PlexosExporter:
    def __init__(
        self,
        config,  # exporter settings
        folder_path: str,
        horizon: list[int] = [2030, 2040],
    ):
        pass
`,
		"__init__.py": `
from demo.exporter import PlexosExporter
from r2x_core import ExporterPlugin

plugin = ExporterPlugin(name="plexos", obj=PlexosExporter)
`,
	})

	ex, err := ast.New(filepath.Join(root, "__init__.py"), "demo", root)
	require.NoError(t, err)

	plugins, err := ex.ExtractPlugins()
	require.NoError(t, err)
	require.Len(t, plugins, 1)

	p := plugins[0]
	assert.Equal(t, manifest.KindExporter, p.Kind)
	assert.Equal(t, "export", p.CallMethod)
	require.Len(t, p.Constructor, 3)
	assert.Equal(t, "config", p.Constructor[0].Name)
	assert.Equal(t, "folder_path", p.Constructor[1].Name)
	assert.Equal(t, "horizon", p.Constructor[2].Name)
	assert.Equal(t, "[2030, 2040]", p.Constructor[2].Default)
}

func TestExtractZeroParameterClass(t *testing.T) {
	root := writePackage(t, map[string]string{
		"util.py": `
class HelperPlugin:
    pass
`,
		"__init__.py": `
from demo.util import HelperPlugin
from r2x_core import UtilityPlugin

plugin = UtilityPlugin(name="helper", obj=HelperPlugin)
`,
	})

	ex, err := ast.New(filepath.Join(root, "__init__.py"), "demo", root)
	require.NoError(t, err)

	plugins, err := ex.ExtractPlugins()
	require.NoError(t, err)
	require.Len(t, plugins, 1)
	assert.Empty(t, plugins[0].Constructor)
}

func TestExtractMissingSymbolSkipsOnlyThatPlugin(t *testing.T) {
	root := writePackage(t, map[string]string{
		"parser.py": `
class GoodParser:
    def __init__(self, path: str):
        pass
`,
		"__init__.py": `
from demo.parser import GoodParser
from r2x_core import ParserPlugin

good = ParserPlugin(name="good", obj=GoodParser)
bad = ParserPlugin(name="bad")
`,
	})

	ex, err := ast.New(filepath.Join(root, "__init__.py"), "demo", root)
	require.NoError(t, err)

	plugins, err := ex.ExtractPlugins()
	require.NoError(t, err)
	require.Len(t, plugins, 1)
	assert.Equal(t, "good", plugins[0].Name)
}

func TestExtractorPurity(t *testing.T) {
	root := writePackage(t, map[string]string{
		"parser.py": `
class DemoParser:
    def __init__(self, path: str):
        pass
`,
		"__init__.py": `
from demo.parser import DemoParser
from r2x_core import ParserPlugin

plugin = ParserPlugin(name="demo", obj=DemoParser)
`,
	})

	ex, err := ast.New(filepath.Join(root, "__init__.py"), "demo", root)
	require.NoError(t, err)

	first, err := ex.ExtractPlugins()
	require.NoError(t, err)
	second, err := ex.ExtractPlugins()
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestExtractNoFactoryErrors(t *testing.T) {
	root := writePackage(t, map[string]string{
		"__init__.py": "VERSION = \"1.0\"\n",
	})

	ex, err := ast.New(filepath.Join(root, "__init__.py"), "demo", root)
	require.NoError(t, err)

	_, err = ex.ExtractPlugins()
	require.Error(t, err)
}

func TestConfigFieldUnionTypes(t *testing.T) {
	root := writePackage(t, map[string]string{
		"config.py": `
class WideConfig:
    """Docstring mentioning fields: not real ones."""

    model_year: int | str
    weather_year: int = 2012
    solve_years: list[int] = [
        2030,
        2040,
    ]

    def ignored(self):
        marker = 1
`,
		"__init__.py": `
from demo.config import WideConfig
from demo.parser import DemoParser
from r2x_core import ParserPlugin

plugin = ParserPlugin(name="demo", obj=DemoParser, config=WideConfig)
`,
		"parser.py": `
class DemoParser:
    def __init__(self, config):
        pass
`,
	})

	ex, err := ast.New(filepath.Join(root, "__init__.py"), "demo", root)
	require.NoError(t, err)

	plugins, err := ex.ExtractPlugins()
	require.NoError(t, err)
	require.Len(t, plugins, 1)
	require.NotNil(t, plugins[0].Config)

	fields := plugins[0].Config.Fields
	require.Len(t, fields, 3)

	assert.Equal(t, "model_year", fields[0].Name)
	assert.Equal(t, []string{"int", "str"}, fields[0].Types)
	assert.True(t, fields[0].Required)

	assert.Equal(t, "weather_year", fields[1].Name)
	assert.Equal(t, "2012", fields[1].Default)
	assert.False(t, fields[1].Required)

	assert.Equal(t, "solve_years", fields[2].Name)
	assert.Equal(t, "[ 2030, 2040, ]", fields[2].Default)
	assert.False(t, fields[2].Required)
}
