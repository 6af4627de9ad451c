// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 R2X Contributors

package bridge_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/r2x-tools/r2x/internal/bridge"
)

// fakeGuest captures the invocation payload and plays back a scripted
// result.
type fakeGuest struct {
	lastArgs  []string
	lastStdin string
	stdout    string
	stderr    string
	err       error
}

func (f *fakeGuest) run(_ context.Context, _ string, args []string, stdin string) (string, string, error) {
	f.lastArgs = args
	f.lastStdin = stdin
	return f.stdout, f.stderr, f.err
}

func TestInvokePassesSpecAndStdin(t *testing.T) {
	defer goleak.VerifyNone(t)

	guest := &fakeGuest{stdout: `{"components": []}`}
	b := bridge.NewPythonBridgeWithRunner("/venv/bin/python", guest.run)

	out, err := b.Invoke(context.Background(), bridge.Invocation{
		Target: "r2x_reeds.parser:ReedsParser.build_system",
		Kwargs: map[string]any{"path": "/data", "weather_year": 2012},
		Config: &bridge.ConfigRef{
			Module: "r2x_reeds.config",
			Class:  "ReedsConfig",
			Fields: []string{"weather_year"},
		},
		RequiresStore: true,
		Stdin:         `{"system": {}}`,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"components": []}`, out)
	assert.Equal(t, `{"system": {}}`, guest.lastStdin)

	require.Len(t, guest.lastArgs, 3)
	assert.Equal(t, "-c", guest.lastArgs[0])

	var spec map[string]any
	require.NoError(t, json.Unmarshal([]byte(guest.lastArgs[2]), &spec))
	assert.Equal(t, "r2x_reeds.parser:ReedsParser.build_system", spec["target"])
	assert.Equal(t, true, spec["requires_store"])
	config, ok := spec["config"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "ReedsConfig", config["class"])
}

func TestInvokeWrapsGuestFailure(t *testing.T) {
	guest := &fakeGuest{stderr: "ModuleNotFoundError: No module named 'r2x_ghost'", err: errors.New("exit status 1")}
	b := bridge.NewPythonBridgeWithRunner("python", guest.run)

	_, err := b.Invoke(context.Background(), bridge.Invocation{Target: "r2x_ghost:Parser"})
	require.Error(t, err)
}

func TestInvokeAfterCloseFails(t *testing.T) {
	b := bridge.NewPythonBridgeWithRunner("python", (&fakeGuest{}).run)
	require.NoError(t, b.Close())

	_, err := b.Invoke(context.Background(), bridge.Invocation{Target: "m:f"})
	require.ErrorIs(t, err, bridge.ErrClosed)
}

func TestHelpQueriesTarget(t *testing.T) {
	guest := &fakeGuest{stdout: "(path: str)\n\nParse a model."}
	b := bridge.NewPythonBridgeWithRunner("python", guest.run)

	out, err := b.Help(context.Background(), "r2x_reeds:ReedsParser")
	require.NoError(t, err)
	assert.Contains(t, out, "Parse a model.")
	assert.Equal(t, "r2x_reeds:ReedsParser", guest.lastArgs[2])
}

func TestDefaultIsSwappable(t *testing.T) {
	assert.Nil(t, bridge.Default())

	b := bridge.NewPythonBridge("python")
	bridge.SetDefault(b)
	t.Cleanup(func() { bridge.SetDefault(nil) })

	assert.Equal(t, bridge.Host(b), bridge.Default())
}
