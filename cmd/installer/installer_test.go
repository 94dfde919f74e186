// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/gpusetup/internal/cli"
	"github.com/jeranaias/gpusetup/internal/config"
	"github.com/jeranaias/gpusetup/internal/install"
	"github.com/jeranaias/gpusetup/internal/probe"
)

// =============================================================================
// FIXTURES
// =============================================================================

const nvidiaQuery = "nvidia-smi --query-gpu=name,memory.total,driver_version --format=csv,noheader,nounits"

var (
	keyEnter = tea.KeyMsg{Type: tea.KeyEnter}
	keyCtrlC = tea.KeyMsg{Type: tea.KeyCtrlC}
	keyQ     = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}}
)

type pipCall struct {
	name string
	args []string
}

// harness is an Installer on a fake RTX 4090 machine with a temp project root.
type harness struct {
	*Installer
	root   string
	pipOut *bytes.Buffer
	calls  []pipCall
	pipErr error
}

func newHarness(t *testing.T, args cli.Args) *harness {
	t.Helper()
	cfg := config.Default()
	cfg.Probe.ROCmPath = t.TempDir()
	cfg.Install.Python = "python3"
	root := t.TempDir()
	cfg.Install.ProjectRoot = root

	h := &harness{root: root, pipOut: &bytes.Buffer{}}
	env := &cli.Env{
		Out:    &bytes.Buffer{},
		Err:    &bytes.Buffer{},
		Config: cfg,
		Runner: probe.NewScriptedRunner(map[string]string{
			nvidiaQuery:     "NVIDIA GeForce RTX 4090, 24564, 550.54.14",
			"nvcc --version": "Cuda compilation tools, release 12.2, V12.2.140",
		}),
		GOOS:    "linux",
		Machine: "x86_64",
		Exec: func(_ context.Context, name string, args ...string) error {
			h.calls = append(h.calls, pipCall{name: name, args: args})
			return h.pipErr
		},
	}
	h.Installer = NewInstaller(env, args, h.pipOut)
	h.diskFree = func(string) (uint64, error) { return 200 << 30, nil }
	return h
}

func (h *harness) writeRequirements(t *testing.T, rel, content string) {
	t.Helper()
	path := filepath.Join(h.root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

// press sends a key and returns the resulting command.
func (h *harness) press(t *testing.T, key tea.KeyMsg) tea.Cmd {
	t.Helper()
	_, cmd := h.Update(key)
	return cmd
}

// settle runs cmd and every command it produces, feeding installer
// messages back into the model. Animation and quit messages are dropped.
func settle(m *Installer, cmd tea.Cmd) {
	queue := []tea.Cmd{cmd}
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		if c == nil {
			continue
		}
		switch msg := c().(type) {
		case tea.BatchMsg:
			queue = append(queue, msg...)
		case detectDoneMsg, stepMsg, installDoneMsg:
			_, next := m.Update(msg)
			queue = append(queue, next)
		}
	}
}

// toReview drives the model from the welcome screen to the plan review.
func (h *harness) toReview(t *testing.T) {
	t.Helper()
	settle(h.Installer, h.press(t, keyEnter))
	require.Equal(t, PhaseReview, h.phase)
}

// =============================================================================
// FLAGS
// =============================================================================

func TestParseOptions(t *testing.T) {
	tests := []struct {
		name    string
		argv    []string
		want    options
		wantErr bool
	}{
		{"none", nil, options{}, false},
		{"text", []string{"--text"}, options{text: true}, false},
		{"simple alias", []string{"--simple"}, options{text: true}, false},
		{"dry run and yes", []string{"-n", "-y"}, options{dryRun: true, yes: true}, false},
		{"root", []string{"--root", "/srv/project"}, options{root: "/srv/project"}, false},
		{"help", []string{"-h"}, options{help: true}, false},
		{"version", []string{"--version"}, options{version: true}, false},
		{"root without value", []string{"--root"}, options{}, true},
		{"unknown", []string{"--fast"}, options{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseOptions(tt.argv)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, cli.ExitUsageError, cli.GetExitCode(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOptions_Args(t *testing.T) {
	args := options{dryRun: true, yes: true, root: "/srv"}.args()
	assert.True(t, args.DryRun)
	assert.True(t, args.Yes)
	assert.Equal(t, "/srv", args.Root)
}

func TestPrintHelp(t *testing.T) {
	var buf bytes.Buffer
	printHelp(&buf)
	for _, flag := range []string{"--text", "--dry-run", "--root", cli.Version} {
		assert.Contains(t, buf.String(), flag)
	}
}

func TestPhase_String(t *testing.T) {
	for phase, want := range map[Phase]string{
		PhaseWelcome:    "welcome",
		PhaseDetecting:  "detecting",
		PhaseReview:     "review",
		PhaseInstalling: "installing",
		PhaseComplete:   "complete",
		Phase(42):       "unknown",
	} {
		if got := phase.String(); got != want {
			t.Errorf("Phase(%d).String() = %q, want %q", phase, got, want)
		}
	}
}

// =============================================================================
// FLOW
// =============================================================================

func TestInstaller_Welcome(t *testing.T) {
	h := newHarness(t, cli.Args{})
	view := h.View()
	assert.Contains(t, view, cli.InstallerTitle)
	assert.Contains(t, view, "Press ENTER to begin")
	assert.NotContains(t, view, "Dry run")

	dry := newHarness(t, cli.Args{DryRun: true})
	assert.Contains(t, dry.View(), "Dry run")
}

func TestInstaller_DetectShowsPlan(t *testing.T) {
	h := newHarness(t, cli.Args{})

	cmd := h.press(t, keyEnter)
	assert.Equal(t, PhaseDetecting, h.phase)
	assert.Contains(t, h.View(), "Detecting GPU hardware")

	settle(h.Installer, cmd)
	require.Equal(t, PhaseReview, h.phase)

	view := h.View()
	assert.Contains(t, view, "NVIDIA GeForce RTX 4090")
	assert.Contains(t, view, "Backend:  cuda")
	assert.Contains(t, view, "https://download.pytorch.org/whl/cu121")
	assert.Contains(t, view, "Press ENTER to install")
	assert.NotContains(t, view, "[!!]")
}

func TestInstaller_ReviewWarnings(t *testing.T) {
	t.Run("missing root", func(t *testing.T) {
		h := newHarness(t, cli.Args{Root: filepath.Join(t.TempDir(), "missing")})
		h.toReview(t)
		assert.Contains(t, h.View(), "requirement files will be skipped")
	})

	t.Run("low disk", func(t *testing.T) {
		h := newHarness(t, cli.Args{})
		h.diskFree = func(string) (uint64, error) { return 3 << 30, nil }
		h.toReview(t)
		assert.Contains(t, h.View(), "Only 3.0 GB free")
	})

	t.Run("disk lookup failure is ignored", func(t *testing.T) {
		h := newHarness(t, cli.Args{})
		h.diskFree = func(string) (uint64, error) { return 0, errors.New("statfs failed") }
		h.toReview(t)
		assert.NotContains(t, h.View(), "GB free")
	})
}

func TestInstaller_InstallRunsPip(t *testing.T) {
	h := newHarness(t, cli.Args{})
	h.writeRequirements(t, filepath.Join("silhouette", "requirements.txt"), "numpy>=1.24\n")
	h.toReview(t)

	cmd := h.press(t, keyEnter)
	assert.Equal(t, PhaseInstalling, h.phase)
	settle(h.Installer, cmd)

	require.Equal(t, PhaseComplete, h.phase)
	report := h.Report()
	require.NotNil(t, report)
	assert.True(t, report.OK())
	assert.False(t, h.Aborted())

	require.GreaterOrEqual(t, len(h.calls), 2)
	first := h.calls[0]
	assert.Equal(t, "python3", first.name)
	assert.Equal(t, []string{"-m", "pip", "install"}, first.args[:3])
	assert.Contains(t, strings.Join(first.args, " "), "--index-url https://download.pytorch.org/whl/cu121")
	assert.Contains(t, h.calls[1].args, "numpy>=1.24")

	view := h.View()
	assert.Contains(t, view, "Installation Complete")
	assert.Contains(t, view, "Device config: cuda")
	assert.Contains(t, view, "not found")
}

func TestInstaller_DryRun(t *testing.T) {
	h := newHarness(t, cli.Args{DryRun: true})
	h.toReview(t)
	assert.Contains(t, h.View(), "preview the pip commands")

	settle(h.Installer, h.press(t, keyEnter))

	require.Equal(t, PhaseComplete, h.phase)
	assert.Empty(t, h.calls, "dry run never executes pip")
	assert.Contains(t, h.pipOut.String(), "[DRY RUN]")
	assert.Contains(t, h.View(), "dry run: nothing was installed")
}

func TestInstaller_FailedStep(t *testing.T) {
	h := newHarness(t, cli.Args{})
	h.pipErr = errors.New("exit status 1")
	h.toReview(t)

	settle(h.Installer, h.press(t, keyEnter))

	require.Equal(t, PhaseComplete, h.phase)
	assert.False(t, h.Report().OK())
	assert.Equal(t, install.StepFailed, h.Report().Steps[0].Status)
	view := h.View()
	assert.Contains(t, view, "failed step(s)")
	assert.Contains(t, view, "[FAIL]")
}

func TestInstaller_InstallingView(t *testing.T) {
	h := newHarness(t, cli.Args{})
	h.phase = PhaseInstalling
	assert.Contains(t, h.View(), "[2/3] Installing PyTorch")
	assert.Contains(t, h.View(), "Starting...")

	h.Update(stepMsg{step: 2, total: 5, status: "Installing silhouette/requirements.txt"})
	view := h.View()
	assert.Contains(t, view, "[3/3] Installing project dependencies")
	assert.Contains(t, view, "Installing silhouette/requirements.txt")
	assert.Contains(t, view, "step 2 of 5")
}

// =============================================================================
// KEYS
// =============================================================================

func TestInstaller_QuitBeforeInstall(t *testing.T) {
	h := newHarness(t, cli.Args{})
	cmd := h.press(t, keyQ)

	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.True(t, h.Aborted())
	assert.Error(t, h.ctx.Err(), "quitting cancels the context")
	assert.Nil(t, h.Report())
}

func TestInstaller_QIgnoredWhileInstalling(t *testing.T) {
	h := newHarness(t, cli.Args{})
	h.phase = PhaseInstalling

	assert.Nil(t, h.press(t, keyQ))
	assert.False(t, h.Aborted())
	assert.NoError(t, h.ctx.Err())

	cmd := h.press(t, keyCtrlC)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.True(t, h.Aborted())
	assert.Error(t, h.ctx.Err())
}

func TestInstaller_EnterExitsWhenComplete(t *testing.T) {
	h := newHarness(t, cli.Args{DryRun: true})
	h.toReview(t)
	settle(h.Installer, h.press(t, keyEnter))
	require.Equal(t, PhaseComplete, h.phase)

	cmd := h.press(t, keyEnter)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.False(t, h.Aborted())
}

func TestInstaller_WindowSize(t *testing.T) {
	saved := boxStyle
	t.Cleanup(func() { boxStyle = saved })

	h := newHarness(t, cli.Args{})
	h.Update(tea.WindowSizeMsg{Width: 300, Height: 60})
	assert.Equal(t, 100, h.progress.Width)

	h.Update(tea.WindowSizeMsg{Width: 30, Height: 90})
	assert.Equal(t, 20, h.progress.Width)
	assert.True(t, strings.HasPrefix(h.View(), "\n"), "content is pushed down from the top")
}
