package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jittakal/rwbuffer/internal/bench"
	rwerrors "github.com/jittakal/rwbuffer/internal/errors"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(&stdout, &stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), err
}

func TestRootCmd_TableReport(t *testing.T) {
	out, err := execute(t, "-R", "2", "-W", "1", "-I", "50", "--log-level", "error")
	require.NoError(t, err)
	assert.Equal(t, exitOK, exitCode(err))
	assert.Contains(t, out, "counters agree")
	assert.Contains(t, out, "reads (observed)")
}

func TestRootCmd_CloudEventReport(t *testing.T) {
	out, err := execute(t, "--readers", "1", "--writers", "1", "--iterations", "10",
		"--output", "cloudevent", "--log-level", "error")
	require.NoError(t, err)

	var envelope map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &envelope))
	assert.Equal(t, bench.EventTypeReport, envelope["type"])
	assert.Equal(t, true, envelope["consistent"])
}

func TestRootCmd_Help(t *testing.T) {
	out, err := execute(t, "-h")
	require.NoError(t, err)
	assert.Equal(t, exitOK, exitCode(err))
	assert.Contains(t, out, "--readers")
	assert.Contains(t, out, "-S, --seconds")
}

func TestRootCmd_UsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown flag", []string{"--bogus"}},
		{"non numeric count", []string{"-R", "many"}},
		{"positional argument", []string{"extra"}},
		{"unknown output", []string{"--output", "xml"}},
		{"zero capacity", []string{"--capacity", "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, exitUsage, exitCode(err))
		})
	}
}

func TestRootCmd_AllocationFailure(t *testing.T) {
	_, err := execute(t, "-R", "5000", "-W", "0", "--log-level", "error")
	require.Error(t, err)
	assert.ErrorIs(t, err, rwerrors.ErrAllocationFailure)
	assert.Equal(t, exitAllocation, exitCode(err))
}

func TestRootCmd_NegativeCountsRunNothing(t *testing.T) {
	out, err := execute(t, "--readers=-3", "--writers=-1", "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, "counters agree")
}
