package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_PositionalPath(t *testing.T) {
	out := &bytes.Buffer{}
	cfg, shouldExit, err := Parse([]string{"experiments/scan.hcl"}, out)

	require.NoError(t, err)
	assert.False(t, shouldExit)
	require.NotNil(t, cfg)
	assert.Equal(t, "experiments/scan.hcl", cfg.ExperimentPath)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.DryRun)
}

func TestParse_Flags(t *testing.T) {
	out := &bytes.Buffer{}
	cfg, shouldExit, err := Parse([]string{
		"--experiment", "scan.hcl",
		"--log-format", "json",
		"--log-level", "debug",
		"--dry-run",
	}, out)

	require.NoError(t, err)
	assert.False(t, shouldExit)
	assert.Equal(t, "scan.hcl", cfg.ExperimentPath)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.DryRun)
}

func TestParse_ShorthandFlag(t *testing.T) {
	out := &bytes.Buffer{}
	cfg, _, err := Parse([]string{"-e", "scan.hcl"}, out)

	require.NoError(t, err)
	assert.Equal(t, "scan.hcl", cfg.ExperimentPath)
}

func TestParse_LongFlagWinsOverShorthand(t *testing.T) {
	out := &bytes.Buffer{}
	cfg, _, err := Parse([]string{"--experiment", "a.hcl", "-e", "b.hcl"}, out)

	require.NoError(t, err)
	assert.Equal(t, "a.hcl", cfg.ExperimentPath)
}

func TestParse_NoPathPrintsUsage(t *testing.T) {
	out := &bytes.Buffer{}
	cfg, shouldExit, err := Parse(nil, out)

	require.NoError(t, err)
	assert.True(t, shouldExit)
	assert.Nil(t, cfg)
	assert.Contains(t, out.String(), "Usage:")
}

func TestParse_HelpFlag(t *testing.T) {
	out := &bytes.Buffer{}
	cfg, shouldExit, err := Parse([]string{"-h"}, out)

	require.NoError(t, err)
	assert.True(t, shouldExit)
	assert.Nil(t, cfg)
	assert.Contains(t, out.String(), "Usage:")
}

func TestParse_InvalidValues(t *testing.T) {
	testCases := []struct {
		name    string
		args    []string
		wantMsg string
	}{
		{"bad log format", []string{"--log-format", "xml", "scan.hcl"}, "invalid log-format"},
		{"bad log level", []string{"--log-level", "verbose", "scan.hcl"}, "invalid log-level"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			out := &bytes.Buffer{}
			_, _, err := Parse(tc.args, out)

			var exitErr *ExitError
			require.ErrorAs(t, err, &exitErr)
			assert.Equal(t, 2, exitErr.Code)
			assert.Contains(t, exitErr.Message, tc.wantMsg)
		})
	}
}

func TestParse_UnknownFlag(t *testing.T) {
	out := &bytes.Buffer{}
	_, _, err := Parse([]string{"--no-such-flag"}, out)

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.Code)
}

func TestParse_CaseInsensitiveLevels(t *testing.T) {
	out := &bytes.Buffer{}
	cfg, _, err := Parse([]string{"--log-level", "WARN", "scan.hcl"}, out)

	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
}
