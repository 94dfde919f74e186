// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package probe

import (
	"context"
	"os/exec"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// EXEC RUNNER TESTS
// =============================================================================

func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	if _, ok := LookPath("sh"); !ok {
		t.Skip("sh not on PATH")
	}
}

func TestExecRunner_MissingBinary(t *testing.T) {
	r := NewExecRunner(time.Second)
	out, ok := r.Run(context.Background(), "gpusetup-definitely-not-a-real-binary")
	assert.False(t, ok)
	assert.Empty(t, out)
}

func TestExecRunner_TrimsOutput(t *testing.T) {
	requireShell(t)

	r := NewExecRunner(5 * time.Second)
	out, ok := r.Run(context.Background(), "sh", "-c", "printf '  hello\\n\\n'")
	require.True(t, ok)
	assert.Equal(t, "hello", out)
}

func TestExecRunner_CapturesStderr(t *testing.T) {
	requireShell(t)

	r := NewExecRunner(5 * time.Second)
	out, ok := r.Run(context.Background(), "sh", "-c", "echo oops 1>&2")
	require.True(t, ok)
	assert.Equal(t, "oops", out)
}

func TestExecRunner_NonZeroExit(t *testing.T) {
	requireShell(t)

	r := NewExecRunner(5 * time.Second)
	out, ok := r.Run(context.Background(), "sh", "-c", "echo partial; exit 3")
	assert.False(t, ok)
	assert.Empty(t, out)
}

func TestExecRunner_Timeout(t *testing.T) {
	requireShell(t)

	tests := []struct {
		name   string
		script string
	}{
		{"sleep", "sleep 5"},
		{"child holds output", "sleep 5; echo done"},
		{"background grandchild", "sleep 5 & sleep 5; echo done"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewExecRunner(200 * time.Millisecond)
			start := time.Now()
			out, ok := r.Run(context.Background(), "sh", "-c", tt.script)
			assert.False(t, ok)
			assert.Empty(t, out)
			assert.Less(t, time.Since(start), 200*time.Millisecond+WaitDelay+time.Second)
		})
	}
}

func TestPrepare(t *testing.T) {
	cmd := exec.Command("sh")
	Prepare(cmd)
	assert.Equal(t, WaitDelay, cmd.WaitDelay)
	if runtime.GOOS != "windows" {
		assert.NotNil(t, cmd.Cancel, "cancellation should kill the process group")
	}
}

func TestExecRunner_CancelledContext(t *testing.T) {
	requireShell(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewExecRunner(5 * time.Second)
	_, ok := r.Run(ctx, "sh", "-c", "echo never")
	assert.False(t, ok)
}

func TestExecRunner_ZeroTimeoutUsesDefault(t *testing.T) {
	requireShell(t)

	r := &ExecRunner{}
	out, ok := r.Run(context.Background(), "sh", "-c", "echo ok")
	require.True(t, ok)
	assert.Equal(t, "ok", out)
}

// =============================================================================
// SCRIPTED RUNNER TESTS
// =============================================================================

func TestScriptedRunner(t *testing.T) {
	r := NewScriptedRunner(map[string]string{
		"nvidia-smi --query-gpu=name": "  RTX 4090 \n",
	})
	r.Responses["rocm-smi"] = Response{Output: "ignored", OK: false}

	out, ok := r.Run(context.Background(), "nvidia-smi", "--query-gpu=name")
	require.True(t, ok)
	assert.Equal(t, "RTX 4090", out)

	_, ok = r.Run(context.Background(), "rocm-smi")
	assert.False(t, ok, "failed responses yield no data")

	_, ok = r.Run(context.Background(), "lspci")
	assert.False(t, ok, "unknown commands behave like missing binaries")

	assert.Equal(t, []string{"nvidia-smi --query-gpu=name", "rocm-smi", "lspci"}, r.Calls())
}

func TestScriptedRunner_CancelledContext(t *testing.T) {
	r := NewScriptedRunner(map[string]string{"lspci": "00:02.0 VGA compatible controller: Intel"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, ok := r.Run(ctx, "lspci")
	assert.False(t, ok)
}

func TestCommandLine(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"lspci", nil, "lspci"},
		{"sysctl", []string{"-n", "hw.memsize"}, "sysctl -n hw.memsize"},
	}
	for _, tc := range tests {
		if got := CommandLine(tc.name, tc.args...); got != tc.want {
			t.Errorf("CommandLine(%q, %v) = %q, want %q", tc.name, tc.args, got, tc.want)
		}
	}
}
