// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package probe runs read-only hardware query commands for gpusetup.
//
// Every probe is a single external command run with an argument vector (never
// through a shell) under a timeout. A probe either yields its trimmed combined
// output or nothing at all: missing binaries, non-zero exits, timeouts and OS
// errors are all folded into "no data" so that callers can treat absence of a
// vendor tool as a normal outcome.
package probe

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultTimeout bounds a single probe command.
const DefaultTimeout = 10 * time.Second

// Runner executes a probe command.
//
// Run returns the trimmed combined stdout/stderr of the command and true when
// the command exited with status 0. Any other outcome returns "", false.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (string, bool)
}

// ExecRunner is the Runner backed by os/exec.
type ExecRunner struct {
	// Timeout applies to each command. Zero means DefaultTimeout.
	Timeout time.Duration
}

// NewExecRunner creates an ExecRunner with the given per-command timeout.
func NewExecRunner(timeout time.Duration) *ExecRunner {
	return &ExecRunner{Timeout: timeout}
}

// Run executes name with args and reports its output.
// CANCELLATION: Context enables timeout and cancellation
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (string, bool) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	Prepare(cmd)
	output, err := cmd.CombinedOutput()
	if err != nil {
		logFailure(ctx, name, args, err)
		return "", false
	}
	return strings.TrimSpace(string(output)), true
}

// logFailure records why a probe yielded nothing. Failures are expected on
// machines without a given vendor's tools, so they stay at debug level.
func logFailure(ctx context.Context, name string, args []string, err error) {
	event := log.Debug().Str("cmd", name).Strs("args", args)

	var exitErr *exec.ExitError
	switch {
	case errors.Is(err, exec.ErrNotFound):
		event.Msg("probe command not found")
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		event.Msg("probe command timed out")
	case errors.Is(ctx.Err(), context.Canceled):
		event.Msg("probe command cancelled")
	case errors.As(err, &exitErr):
		event.Int("exit_code", exitErr.ExitCode()).Msg("probe command failed")
	default:
		event.Err(err).Msg("probe command error")
	}
}

// LookPath reports whether an executable is on PATH without running it.
func LookPath(name string) (string, bool) {
	path, err := exec.LookPath(name)
	if err != nil {
		return "", false
	}
	return path, true
}
