// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package probe

import (
	"context"
	"strings"
	"sync"
)

// Response is a canned probe result.
type Response struct {
	Output string
	OK     bool
}

// ScriptedRunner answers probes from a fixed table keyed by the full command
// line ("name arg1 arg2"). Unknown commands behave like a missing binary.
// It is used to exercise detection paths without real hardware.
type ScriptedRunner struct {
	Responses map[string]Response

	mu    sync.Mutex
	calls []string
}

// NewScriptedRunner creates a ScriptedRunner. Each entry in outputs maps a
// command line to a successful output.
func NewScriptedRunner(outputs map[string]string) *ScriptedRunner {
	responses := make(map[string]Response, len(outputs))
	for cmd, out := range outputs {
		responses[cmd] = Response{Output: out, OK: true}
	}
	return &ScriptedRunner{Responses: responses}
}

// Run implements Runner.
func (s *ScriptedRunner) Run(ctx context.Context, name string, args ...string) (string, bool) {
	key := CommandLine(name, args...)

	s.mu.Lock()
	s.calls = append(s.calls, key)
	s.mu.Unlock()

	if ctx.Err() != nil {
		return "", false
	}
	resp, ok := s.Responses[key]
	if !ok || !resp.OK {
		return "", false
	}
	return strings.TrimSpace(resp.Output), true
}

// Calls returns the command lines seen so far, in order.
func (s *ScriptedRunner) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.calls))
	copy(out, s.calls)
	return out
}

// CommandLine joins a command and its arguments with single spaces.
func CommandLine(name string, args ...string) string {
	if len(args) == 0 {
		return name
	}
	return name + " " + strings.Join(args, " ")
}
