// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/gpusetup/internal/config"
	"github.com/jeranaias/gpusetup/internal/detect"
	"github.com/jeranaias/gpusetup/internal/install"
)

// =============================================================================
// DETECT
// =============================================================================

func TestHandleDetect_Report(t *testing.T) {
	env := newTestEnv(t, nvidiaProbes())

	require.NoError(t, HandleDetect(context.Background(), env.Env, Args{}))

	out := env.out.String()
	for _, want := range []string{
		ReportTitle,
		"Linux x86_64",
		"NVIDIA GeForce RTX 4090",
		"24564 MB (24.0 GB)",
		"550.54.14",
		"CUDA:",
		"12.2",
		"$ pip install torch torchvision torchaudio",
		"https://download.pytorch.org/whl/cu121",
		"Extra packages: bitsandbytes>=0.42.0",
		"Config -> device: cuda",
		"Config -> mixed_precision: bf16",
		"Config -> max_memory_gb: 20.4",
	} {
		assert.Contains(t, out, want)
	}
}

func TestHandleDetect_JSON(t *testing.T) {
	env := newTestEnv(t, nvidiaProbes())

	require.NoError(t, HandleDetect(context.Background(), env.Env, Args{JSON: true}))

	var doc struct {
		GPU             map[string]interface{} `json:"gpu"`
		Recommendations map[string]interface{} `json:"recommendations"`
	}
	require.NoError(t, json.Unmarshal(env.out.Bytes(), &doc))

	assert.Equal(t, "nvidia", doc.GPU["vendor"])
	assert.Equal(t, "cuda", doc.GPU["torch_backend"])
	assert.Equal(t, "cuda", doc.GPU["device"])
	assert.Equal(t, "linux", doc.GPU["platform"])
	assert.Equal(t, "https://download.pytorch.org/whl/cu121", doc.GPU["torch_index_url"])
	assert.EqualValues(t, 24564, doc.GPU["vram_mb"])

	assert.Contains(t, doc.Recommendations["torch_install"], "--index-url https://download.pytorch.org/whl/cu121")
	dc := doc.Recommendations["device_config"].(map[string]interface{})
	assert.Equal(t, "bf16", dc["mixed_precision"])
	assert.Equal(t, true, dc["compile_model"])
}

func TestHandleDetect_NoGPU(t *testing.T) {
	env := newTestEnv(t, nil)

	require.NoError(t, HandleDetect(context.Background(), env.Env, Args{JSON: true}))

	var doc DetectDocument
	require.NoError(t, json.Unmarshal(env.out.Bytes(), &doc))
	assert.Equal(t, detect.VendorNone, doc.GPU.Vendor)
	assert.Equal(t, detect.CPUOnlyName, doc.GPU.Name)
	assert.Equal(t, detect.BackendCPU, doc.GPU.Backend)
	assert.Equal(t, "cpu", doc.GPU.Device)
	assert.Equal(t, "https://download.pytorch.org/whl/cpu", doc.GPU.TorchIndexURL)
	assert.Equal(t, "cpu", doc.Recommendations.DeviceConfig.Device)
	assert.NotEmpty(t, doc.Recommendations.Warnings)
}

func TestHandleDetect_AMDWithROCm(t *testing.T) {
	env := newTestEnv(t, map[string]string{cmdRocmProduct: rocmProduct})

	require.NoError(t, HandleDetect(context.Background(), env.Env, Args{JSON: true}))

	var doc DetectDocument
	require.NoError(t, json.Unmarshal(env.out.Bytes(), &doc))
	assert.Equal(t, detect.VendorAMD, doc.GPU.Vendor)
	assert.Equal(t, "cuda", doc.GPU.Device, "ROCm builds expose the cuda device")
	assert.Contains(t, doc.Recommendations.SkipPackages, "bitsandbytes")
}

func TestHandleDetect_Copy(t *testing.T) {
	env := newTestEnv(t, nil)
	var copied string
	env.CopyText = func(s string) error {
		copied = s
		return nil
	}

	require.NoError(t, HandleDetect(context.Background(), env.Env, Args{JSON: true, Copy: true}))

	assert.Equal(t, "pip install torch torchvision torchaudio --index-url https://download.pytorch.org/whl/cpu", copied)
	assert.Contains(t, env.errOut.String(), "Copied install command")
	// stdout is still a single JSON document
	assert.True(t, json.Valid(env.out.Bytes()))
}

func TestHandleDetect_CopyFails(t *testing.T) {
	env := newTestEnv(t, nil)
	env.CopyText = func(string) error { return errors.New("no xclip") }

	err := HandleDetect(context.Background(), env.Env, Args{Copy: true})

	var cmdErr *CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, "copy", cmdErr.Action)
	assert.Equal(t, ExitGeneralError, GetExitCode(err))
}

// =============================================================================
// INSTALL
// =============================================================================

type execCall struct {
	name string
	args []string
}

func recordExec(calls *[]execCall) install.Executor {
	return func(ctx context.Context, name string, args ...string) error {
		*calls = append(*calls, execCall{name: name, args: append([]string(nil), args...)})
		return nil
	}
}

func TestHandleInstall_DryRun(t *testing.T) {
	env := newTestEnv(t, nil)
	env.Config.Install.RequirementFiles = []string{"requirements.txt"}
	env.writeFile(t, "requirements.txt", "torch==2.1.0\nnumpy>=1.24\nbitsandbytes>=0.42.0\n")
	var calls []execCall
	env.Exec = recordExec(&calls)
	env.Confirm = func(string) (bool, error) {
		t.Fatal("dry run must not prompt")
		return false, nil
	}

	require.NoError(t, HandleInstall(context.Background(), env.Env, Args{DryRun: true}))

	assert.Empty(t, calls, "dry run never executes")
	out := env.out.String()
	assert.Contains(t, out, InstallerTitle)
	assert.Contains(t, out, "[1/3] Detecting GPU hardware...")
	assert.Contains(t, out, "Detected: CPU Only - CPU Only")
	assert.Contains(t, out, "[2/3] Installing PyTorch...")
	assert.Contains(t, out, "[3/3] Installing project dependencies...")
	assert.Contains(t, out, "[DRY RUN] python3 -m pip install numpy>=1.24")
	assert.Contains(t, out, "Installation complete!")
	assert.Contains(t, out, "Device config: cpu")
}

func TestHandleInstall_RunsPip(t *testing.T) {
	env := newTestEnv(t, nvidiaProbes())
	env.Config.Install.RequirementFiles = []string{"requirements.txt", "missing/requirements.txt"}
	env.writeFile(t, "requirements.txt", "numpy\n")
	var calls []execCall
	env.Exec = recordExec(&calls)

	require.NoError(t, HandleInstall(context.Background(), env.Env, Args{Yes: true}))

	require.Len(t, calls, 3, "runtime, one requirement file, extras")
	assert.Equal(t, "python3", calls[0].name)
	assert.Equal(t, []string{"-m", "pip", "install", "--index-url", "https://download.pytorch.org/whl/cu121",
		"torch", "torchvision", "torchaudio"}, calls[0].args)
	assert.Equal(t, []string{"-m", "pip", "install", "numpy"}, calls[1].args)
	assert.Equal(t, []string{"-m", "pip", "install", "bitsandbytes>=0.42.0"}, calls[2].args)
	assert.Contains(t, env.out.String(), "Skipping missing/requirements.txt (not found)")
	assert.Contains(t, env.out.String(), "Device config: cuda")
}

func TestHandleInstall_Declined(t *testing.T) {
	env := newTestEnv(t, nil)
	var calls []execCall
	env.Exec = recordExec(&calls)
	var asked string
	env.Confirm = func(q string) (bool, error) {
		asked = q
		return false, nil
	}

	require.NoError(t, HandleInstall(context.Background(), env.Env, Args{}))

	assert.Contains(t, asked, "install cpu packages")
	assert.Empty(t, calls)
	assert.Contains(t, env.out.String(), "Cancelled.")
}

func TestHandleInstall_FailureStillExitsZero(t *testing.T) {
	env := newTestEnv(t, nil)
	env.Config.Install.RequirementFiles = []string{}
	env.Exec = func(ctx context.Context, name string, args ...string) error {
		return errors.New("exit status 1")
	}

	err := HandleInstall(context.Background(), env.Env, Args{Yes: true})

	require.NoError(t, err)
	out := env.out.String()
	assert.Contains(t, out, "Installation finished with 1 failed step(s):")
	assert.Contains(t, out, "PyTorch runtime: Failed")
}

func TestHandleInstall_JSON(t *testing.T) {
	env := newTestEnv(t, nil)
	env.Config.Install.RequirementFiles = []string{}

	require.NoError(t, HandleInstall(context.Background(), env.Env, Args{JSON: true, DryRun: true}))

	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			Report struct {
				RunID  string `json:"run_id"`
				DryRun bool   `json:"dry_run"`
				Steps  []struct {
					Name   string `json:"name"`
					Status string `json:"status"`
				} `json:"steps"`
			} `json:"report"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(env.out.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.True(t, resp.Data.Report.DryRun)
	assert.NotEmpty(t, resp.Data.Report.RunID)
	require.Len(t, resp.Data.Report.Steps, 1)
	assert.Contains(t, env.errOut.String(), "[1/3] Detecting GPU hardware...", "progress goes to stderr")
}

// =============================================================================
// CHECK
// =============================================================================

func TestAssessTorch(t *testing.T) {
	nvidia := detect.HardwareRecord{Vendor: detect.VendorNvidia, CUDAAvailable: true, Backend: detect.BackendCUDA}
	amd := detect.HardwareRecord{Vendor: detect.VendorAMD, ROCmAvailable: true, Backend: detect.BackendROCm}
	amdNoROCm := detect.HardwareRecord{Vendor: detect.VendorAMD, Backend: detect.BackendCPU}
	apple := detect.HardwareRecord{Vendor: detect.VendorApple, Backend: detect.BackendMPS}
	none := detect.NoneRecord()

	installed := install.TorchStatus{PythonFound: true, Inspected: true, Installed: true, Version: "2.3.0"}
	broken := install.TorchStatus{PythonFound: true, Inspected: true, Installed: true, Error: "OSError: libcudnn.so.9: cannot open shared object file"}
	withCUDA := installed
	withCUDA.CUDAAvailable = true
	withCUDA.CUDAVersion = "12.1"
	withMPS := installed
	withMPS.MPSAvailable = true

	tests := []struct {
		name      string
		rec       detect.HardwareRecord
		st        install.TorchStatus
		wantReady bool
		wantText  string
	}{
		{"no python", nvidia, install.TorchStatus{}, false, "Python not found"},
		{"inspection failed", nvidia, install.TorchStatus{PythonFound: true}, false, "Could not inspect PyTorch"},
		{"torch missing", nvidia, install.TorchStatus{PythonFound: true, Inspected: true}, false, "PyTorch not installed"},
		{"torch import error", nvidia, broken, false, "libcudnn.so.9"},
		{"nvidia ready", nvidia, withCUDA, true, "CUDA Version: `12.1`"},
		{"nvidia cpu wheel", nvidia, installed, false, "Reinstall PyTorch with CUDA"},
		{"amd ready", amd, withCUDA, true, "ROCm/HIP Available: `true`"},
		{"amd rocm unseen", amd, installed, false, "Reinstall PyTorch for ROCm"},
		{"amd without rocm", amdNoROCm, installed, false, ROCmDocsURL},
		{"apple ready", apple, withMPS, true, "Apple Silicon GPU acceleration is ready."},
		{"apple no mps", apple, installed, false, "macOS 12.3+"},
		{"cpu only", none, installed, true, "Running in CPU-only mode."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ready, guidance := assessTorch(tt.rec, tt.st, "python3", "pip install torch")
			if ready != tt.wantReady {
				t.Errorf("ready = %v, want %v", ready, tt.wantReady)
			}
			joined := strings.Join(guidance, "\n")
			if !strings.Contains(joined, tt.wantText) {
				t.Errorf("guidance %q does not contain %q", joined, tt.wantText)
			}
		})
	}
}

func TestHandleCheck_Text(t *testing.T) {
	probes := nvidiaProbes()
	probes[cmdPyVersion] = "Python 3.11.4"
	probes[cmdPyInspect] = `{"installed": true, "version": "2.3.0+cu121", "cuda_available": true, "cuda_version": "12.1", "device_name": "NVIDIA GeForce RTX 4090"}`
	env := newTestEnv(t, probes)

	require.NoError(t, HandleCheck(context.Background(), env.Env, Args{}))

	out := env.out.String()
	assert.Contains(t, out, "Python 3.11.4")
	assert.Contains(t, out, "2.3.0+cu121")
	assert.Contains(t, out, "CUDA Available: `true`")
	assert.True(t, env.runner.called(cmdPyInspect))
}

func TestHandleCheck_JSONNotInstalled(t *testing.T) {
	env := newTestEnv(t, map[string]string{
		cmdPyVersion: "Python 3.11.4",
		cmdPyInspect: `{"installed": false}`,
	})

	require.NoError(t, HandleCheck(context.Background(), env.Env, Args{JSON: true}))

	var resp struct {
		Success bool      `json:"success"`
		Command string    `json:"command"`
		Data    CheckData `json:"data"`
	}
	require.NoError(t, json.Unmarshal(env.out.Bytes(), &resp))
	assert.Equal(t, "check", resp.Command)
	assert.False(t, resp.Data.Ready)
	assert.True(t, resp.Data.Torch.Inspected)
	assert.False(t, resp.Data.Torch.Installed)
	assert.Equal(t, "cpu", resp.Data.Device)
}

func TestHandleCheck_InspectionTimeout(t *testing.T) {
	env := newTestEnv(t, map[string]string{cmdPyVersion: "Python 3.11.4"})
	// The introspection runner has no answer, like a run that timed out.
	env.Inspector = newFakeRunner(map[string]string{cmdPyVersion: "Python 3.11.4"})

	require.NoError(t, HandleCheck(context.Background(), env.Env, Args{JSON: true}))

	var resp struct {
		Data CheckData `json:"data"`
	}
	require.NoError(t, json.Unmarshal(env.out.Bytes(), &resp))
	assert.False(t, resp.Data.Ready)
	assert.True(t, resp.Data.Torch.PythonFound)
	assert.False(t, resp.Data.Torch.Inspected)
	assert.Contains(t, resp.Data.Guidance[0], "Could not inspect PyTorch")
	assert.False(t, env.runner.called(cmdPyInspect), "introspection uses the inspector")
}

// =============================================================================
// DOCTOR
// =============================================================================

func TestHandleDoctor_AllGood(t *testing.T) {
	probes := nvidiaProbes()
	probes[cmdPyVersion] = "Python 3.11.4"
	probes[cmdPipVersion] = "pip 23.2.1 from /usr/lib/python3/dist-packages/pip (python 3.11)"
	env := newTestEnv(t, probes)
	env.LookPath = func(name string) (string, bool) { return "/usr/bin/" + name, true }
	env.Config.Install.RequirementFiles = []string{"requirements.txt"}
	env.writeFile(t, "requirements.txt", "numpy\n")

	require.NoError(t, HandleDoctor(context.Background(), env.Env, Args{}))

	out := env.out.String()
	assert.Contains(t, out, "NVIDIA NVIDIA GeForce RTX 4090 (backend cuda)")
	assert.Contains(t, out, "pip 23.2.1")
	assert.Contains(t, out, "1 of 1 requirement files found")
	assert.NotContains(t, out, "[FAIL]")
}

func TestHandleDoctor_NoPython(t *testing.T) {
	env := newTestEnv(t, nil)

	err := HandleDoctor(context.Background(), env.Env, Args{JSON: true})
	require.Error(t, err)
	assert.Equal(t, ExitGeneralError, GetExitCode(err))

	var resp struct {
		Success bool       `json:"success"`
		Data    DoctorData `json:"data"`
	}
	require.NoError(t, json.Unmarshal(env.out.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.False(t, resp.Data.Summary.Healthy)

	statuses := map[string]string{}
	for _, c := range resp.Data.Checks {
		statuses[c.Name] = c.Status
	}
	assert.Equal(t, "warn", statuses["GPU Detected"])
	assert.Equal(t, "fail", statuses["Python"])
	assert.Equal(t, "skip", statuses["nvidia-smi"], "no NVIDIA GPU, so the tool is not needed")
	assert.Equal(t, "skip", statuses["rocm-smi"])
	assert.Equal(t, "warn", statuses["lspci"])
	_, hasPip := statuses["pip"]
	assert.False(t, hasPip, "pip is not checked without python")
}

func TestHandleDoctor_ConfigError(t *testing.T) {
	env := newTestEnv(t, map[string]string{
		cmdPyVersion:  "Python 3.11.4",
		cmdPipVersion: "pip 23.2.1",
	})
	env.ConfigErr = errors.New("unknown keys in config.toml: probe.bogus")

	err := HandleDoctor(context.Background(), env.Env, Args{})
	require.Error(t, err)
	assert.Contains(t, env.out.String(), "config init --force")
}

func TestPlatformTools(t *testing.T) {
	names := func(tools []vendorTool) []string {
		var out []string
		for _, tool := range tools {
			out = append(out, tool.name)
		}
		return out
	}
	assert.Equal(t, []string{"nvidia-smi", "nvcc", "rocm-smi", "lspci"}, names(platformTools("linux")))
	assert.Equal(t, []string{"system_profiler", "sysctl"}, names(platformTools("darwin")))
	assert.Equal(t, []string{"nvidia-smi", "nvcc", "powershell"}, names(platformTools("windows")))
}

// =============================================================================
// CONFIG
// =============================================================================

func TestHandleConfig_InitThenGetSet(t *testing.T) {
	env := newTestEnv(t, nil)

	require.NoError(t, HandleConfig(env.Env, Args{Subcommand: "init"}))
	assert.FileExists(t, env.ConfigPath)

	err := HandleConfig(env.Env, Args{Subcommand: "init"})
	require.Error(t, err, "init refuses to overwrite without --force")
	assert.Equal(t, ExitConfigError, GetExitCode(err))
	require.NoError(t, HandleConfig(env.Env, Args{Subcommand: "init", Force: true}))

	env.out.Reset()
	require.NoError(t, HandleConfig(env.Env, Args{Subcommand: "set", ConfigKey: "probe.timeout_secs", ConfigVal: "30"}))
	assert.Contains(t, env.out.String(), "probe.timeout_secs = 30")

	saved := config.Default()
	require.NoError(t, config.LoadTOML(saved, env.ConfigPath))
	assert.Equal(t, 30, saved.Probe.TimeoutSecs)

	env.out.Reset()
	require.NoError(t, HandleConfig(env.Env, Args{Subcommand: "get", ConfigKey: "index.cuda"}))
	assert.Equal(t, "https://download.pytorch.org/whl/cu121\n", env.out.String())
}

func TestHandleConfig_SetRejectsInvalid(t *testing.T) {
	env := newTestEnv(t, nil)

	err := HandleConfig(env.Env, Args{Subcommand: "set", ConfigKey: "probe.timeout_secs", ConfigVal: "9999"})
	require.Error(t, err)
	assert.Equal(t, ExitConfigError, GetExitCode(err))
	_, statErr := os.Stat(env.ConfigPath)
	assert.True(t, os.IsNotExist(statErr), "invalid values are never saved")

	err = HandleConfig(env.Env, Args{Subcommand: "set", ConfigKey: "probe.nope", ConfigVal: "1"})
	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
}

func TestHandleConfig_SetList(t *testing.T) {
	env := newTestEnv(t, nil)

	require.NoError(t, HandleConfig(env.Env, Args{Subcommand: "set", ConfigKey: "install.requirement_files", ConfigVal: "a.txt, b.txt"}))
	assert.Contains(t, env.out.String(), "install.requirement_files = a.txt,b.txt")
}

func TestHandleConfig_ShowAndPath(t *testing.T) {
	env := newTestEnv(t, nil)

	require.NoError(t, HandleConfig(env.Env, Args{}))
	assert.Contains(t, env.out.String(), "[probe]")
	assert.Contains(t, env.out.String(), "timeout_secs = 10")

	env.out.Reset()
	require.NoError(t, HandleConfig(env.Env, Args{Subcommand: "path", JSON: true}))
	var resp struct {
		Data ConfigPathData `json:"data"`
	}
	require.NoError(t, json.Unmarshal(env.out.Bytes(), &resp))
	assert.Equal(t, env.ConfigPath, resp.Data.Path)
	assert.False(t, resp.Data.Exists)
}

func TestFormatConfigValue(t *testing.T) {
	assert.Equal(t, "a,b", formatConfigValue([]string{"a", "b"}))
	assert.Equal(t, "10", formatConfigValue(10))
	assert.Equal(t, "", formatConfigValue([]string{}))
}

// =============================================================================
// VERSION / DISPATCH
// =============================================================================

func TestHandleVersion_JSON(t *testing.T) {
	env := newTestEnv(t, nil)

	require.NoError(t, HandleVersion(env.Env, Args{JSON: true}))

	var resp struct {
		Data VersionData `json:"data"`
	}
	require.NoError(t, json.Unmarshal(env.out.Bytes(), &resp))
	assert.Equal(t, Version, resp.Data.Version)
	assert.NotEmpty(t, resp.Data.GoVersion)
}

func TestDispatch_Help(t *testing.T) {
	env := newTestEnv(t, nil)

	require.NoError(t, Dispatch(context.Background(), CmdHelp, env.Env, Args{}))
	assert.Contains(t, env.out.String(), "Usage:")
}
