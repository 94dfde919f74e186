// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jeranaias/gpusetup/internal/config"
	"github.com/jeranaias/gpusetup/internal/probe"
)

func TestMain(m *testing.M) {
	ForceColorsEnabled(false)
	os.Exit(m.Run())
}

// =============================================================================
// FIXTURES
// =============================================================================

const (
	cmdNvidiaQuery = "nvidia-smi --query-gpu=name,memory.total,driver_version --format=csv,noheader,nounits"
	cmdNvcc        = "nvcc --version"
	cmdRocmProduct = "rocm-smi --showproductname"
	cmdLspci       = "lspci"
	cmdPyVersion   = "python3 --version"
	cmdPyInspect   = "python3 -c"
	cmdPipVersion  = "python3 -m pip --version"
)

const nvccOutput = `nvcc: NVIDIA (R) Cuda compiler driver
Cuda compilation tools, release 12.2, V12.2.140`

const rocmProduct = `GPU[0]		: Card series: 		Navi 31 [Radeon RX 7900 XTX]`

// nvidiaProbes is a machine with an RTX 4090 and the CUDA toolkit.
func nvidiaProbes() map[string]string {
	return map[string]string{
		cmdNvidiaQuery: "NVIDIA GeForce RTX 4090, 24564, 550.54.14",
		cmdNvcc:        nvccOutput,
	}
}

// fakeRunner answers by exact command line. "python3 -c <script>" is
// matched by the "python3 -c" prefix so tests need not repeat the script.
type fakeRunner struct {
	responses map[string]string

	mu    sync.Mutex
	calls []string
}

func newFakeRunner(responses map[string]string) *fakeRunner {
	if responses == nil {
		responses = map[string]string{}
	}
	return &fakeRunner{responses: responses}
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) (string, bool) {
	key := probe.CommandLine(name, args...)
	if len(args) > 0 && args[0] == "-c" {
		key = name + " -c"
	}
	f.mu.Lock()
	f.calls = append(f.calls, key)
	f.mu.Unlock()

	out, ok := f.responses[key]
	return strings.TrimSpace(out), ok
}

func (f *fakeRunner) called(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c == key {
			return true
		}
	}
	return false
}

type testEnv struct {
	*Env
	out    *bytes.Buffer
	errOut *bytes.Buffer
	runner *fakeRunner
	root   string
}

// newTestEnv returns a Linux Env with no tools on PATH, an empty project
// root and a config file path inside a temp dir.
func newTestEnv(t *testing.T, responses map[string]string) *testEnv {
	t.Helper()
	cfg := config.Default()
	cfg.Probe.ROCmPath = t.TempDir()
	cfg.Install.Python = "python3"
	root := t.TempDir()
	cfg.Install.ProjectRoot = root

	runner := newFakeRunner(responses)
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	env := &Env{
		Out:        out,
		Err:        errOut,
		Config:     cfg,
		ConfigPath: filepath.Join(t.TempDir(), "config.toml"),
		Runner:     runner,
		GOOS:       "linux",
		Machine:    "x86_64",
		LookPath:   func(string) (string, bool) { return "", false },
	}
	return &testEnv{Env: env, out: out, errOut: errOut, runner: runner, root: root}
}

func (e *testEnv) writeFile(t *testing.T, rel, content string) {
	t.Helper()
	path := filepath.Join(e.root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

// =============================================================================
// ENV HELPERS
// =============================================================================

func TestEnv_Python(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		goos       string
		want       string
	}{
		{"configured wins", "/opt/venv/bin/python", "linux", "/opt/venv/bin/python"},
		{"linux default", "", "linux", "python3"},
		{"darwin default", "", "darwin", "python3"},
		{"windows default", "", "windows", "python"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Install.Python = tt.configured
			env := &Env{Config: cfg, GOOS: tt.goos}
			if got := env.python(); got != tt.want {
				t.Errorf("python() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEnv_ROCmPathOverride(t *testing.T) {
	cfg := config.Default()
	env := &Env{Config: cfg}
	if got := env.rocmPathOverride(); got != "" {
		t.Errorf("default rocm path should defer to $ROCM_PATH, got %q", got)
	}

	cfg.Probe.ROCmPath = "/custom/rocm"
	if got := env.detector().ROCmPath; got != "/custom/rocm" {
		t.Errorf("detector ROCmPath = %q, want /custom/rocm", got)
	}
}

func TestEnv_ProjectRoot(t *testing.T) {
	cfg := config.Default()
	cfg.Install.ProjectRoot = "/from/config"
	env := &Env{Config: cfg}

	if got := env.ProjectRoot(Args{Root: "/from/flag"}); got != "/from/flag" {
		t.Errorf("--root should win, got %q", got)
	}
	if got := env.ProjectRoot(Args{}); got != "/from/config" {
		t.Errorf("config root = %q", got)
	}
	if got := (&Env{}).ProjectRoot(Args{}); got != "." {
		t.Errorf("fallback root = %q, want .", got)
	}
}

func TestEnv_NewInstaller(t *testing.T) {
	te := newTestEnv(t, nil)
	te.Config.Install.RequirementFiles = []string{"requirements.txt"}

	in := te.NewInstaller(Args{DryRun: true}, te.out)
	if in.Python != "python3" || !in.DryRun {
		t.Errorf("installer = python %q dry-run %v", in.Python, in.DryRun)
	}
	if in.ProjectRoot != te.root {
		t.Errorf("ProjectRoot = %q, want %q", in.ProjectRoot, te.root)
	}
	if len(in.RequirementFiles) != 1 || in.RequirementFiles[0] != "requirements.txt" {
		t.Errorf("RequirementFiles = %v", in.RequirementFiles)
	}
}

func TestEnv_Analyze(t *testing.T) {
	te := newTestEnv(t, nvidiaProbes())
	rec, p := te.Analyze(context.Background())
	if rec.Name != "NVIDIA GeForce RTX 4090" {
		t.Errorf("Name = %q", rec.Name)
	}
	if p.DeviceConfig.Device != "cuda" {
		t.Errorf("device = %q, want cuda", p.DeviceConfig.Device)
	}
}

func TestEnv_PlatformLabel(t *testing.T) {
	env := &Env{GOOS: "linux", Machine: "x86_64"}
	if got := env.platformLabel(); got != "Linux x86_64" {
		t.Errorf("platformLabel() = %q", got)
	}
	if got := env.platform(); got != "linux" {
		t.Errorf("platform() = %q", got)
	}
}

func TestNewEnv_TimeoutFlag(t *testing.T) {
	cfg := config.Default()
	env := NewEnv(cfg, Args{TimeoutSecs: 30})
	if cfg.Probe.TimeoutSecs != 30 {
		t.Errorf("TimeoutSecs = %d, want 30", cfg.Probe.TimeoutSecs)
	}
	if env.Runner == nil || env.Inspector == nil || env.CopyText == nil || env.LookPath == nil {
		t.Error("NewEnv should wire runners, clipboard and LookPath")
	}
	if r, ok := env.Inspector.(*probe.ExecRunner); !ok || r.Timeout != cfg.InspectTimeout() {
		t.Errorf("Inspector = %#v, want ExecRunner with %v", env.Inspector, cfg.InspectTimeout())
	}
}
