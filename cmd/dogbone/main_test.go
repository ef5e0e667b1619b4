package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestRunCommand(t *testing.T) {
	dir := t.TempDir()
	outPath := filepath.Join(dir, "out.json")

	out, err := execute(t, "run", "../../examples/pocket.dogbone",
		"--config", "../../examples/params.yaml", "--mesh-cells", "24", "--out", outPath, "--tools")
	require.NoError(t, err, out)
	assert.Contains(t, out, "plate-1: 4 reliefs, cut")
	assert.Contains(t, out, "1 occurrences, 4 reliefs, 2 meshes, 0 errors")

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	var res EvalResult
	require.NoError(t, json.Unmarshal(data, &res))
	require.Len(t, res.Meshes, 2)
	assert.Equal(t, "body", res.Meshes[0].Role)
	assert.Equal(t, "tool", res.Meshes[1].Role)
	assert.Zero(t, res.ErrorCount)
}

func TestRunFlagsOverrideConfig(t *testing.T) {
	out, err := execute(t, "run", "../../examples/pocket.dogbone",
		"--config", "../../examples/params.yaml", "--mesh-cells", "16", "--style", "dovetail")
	assert.ErrorIs(t, err, errRunFailed)
	assert.Contains(t, out, "dovetail")
}

func TestRunFlagsOverrideScript(t *testing.T) {
	// acute.dogbone asks for acute corners; the flag wins.
	out, err := execute(t, "run", "../../examples/acute.dogbone", "--mesh-cells", "16", "--preview", "--acute=false")
	require.NoError(t, err, out)
	assert.Contains(t, out, "wedge-1: 2 reliefs, not cut")

	out, err = execute(t, "run", "../../examples/acute.dogbone", "--mesh-cells", "16", "--preview")
	require.NoError(t, err, out)
	assert.Contains(t, out, "wedge-1: 3 reliefs, not cut")
}

func TestRunMissingScript(t *testing.T) {
	_, err := execute(t, "run", filepath.Join(t.TempDir(), "nope.dogbone"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRunNeedsOneArg(t *testing.T) {
	_, err := execute(t, "run")
	assert.Error(t, err)
}

func TestCheckCommand(t *testing.T) {
	out, err := execute(t, "check", "../../examples/params.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "params.yaml: ok")

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("tool_diameter: 0\nmax_angle: 45\n"), 0o644))
	out, err = execute(t, "check", bad)
	assert.ErrorIs(t, err, errInvalidConfig)
	assert.Contains(t, out, "tool_diameter")
	assert.Contains(t, out, "max_angle")
	assert.Equal(t, 2, strings.Count(out, bad+": "))

	unknown := filepath.Join(t.TempDir(), "unknown.yaml")
	require.NoError(t, os.WriteFile(unknown, []byte("cutter: 6\n"), 0o644))
	_, err = execute(t, "check", unknown)
	assert.ErrorContains(t, err, "cutter")
}

func TestNewLogger(t *testing.T) {
	for _, verbose := range []bool{false, true} {
		log, err := newLogger(verbose)
		require.NoError(t, err)
		assert.Equal(t, verbose, log.Core().Enabled(-1), "debug enabled only when verbose")
	}
}
