// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package install

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jeranaias/gpusetup/internal/probe"
)

// =============================================================================
// TORCH INTROSPECTION
// =============================================================================

// DefaultInspectTimeout bounds the introspection run. Importing torch loads
// the CUDA or ROCm libraries and can take far longer than a vendor tool.
const DefaultInspectTimeout = 2 * time.Minute

// torchInspectScript prints one JSON line describing the installed torch.
// Only a missing torch module counts as "not installed"; any other import
// failure is reported as an error of an installed torch.
const torchInspectScript = `import json
try:
    import torch
except Exception as exc:
    missing = isinstance(exc, ModuleNotFoundError) and exc.name == "torch"
    print(json.dumps({
        "installed": not missing,
        "error": "" if missing else "%s: %s" % (type(exc).__name__, exc),
    }))
    raise SystemExit(0)
mps = hasattr(torch.backends, "mps") and torch.backends.mps.is_available()
cuda = torch.cuda.is_available()
print(json.dumps({
    "installed": True,
    "version": torch.__version__,
    "cuda_available": cuda,
    "cuda_version": torch.version.cuda or "",
    "hip_version": getattr(torch.version, "hip", None) or "",
    "mps_available": bool(mps),
    "device_name": torch.cuda.get_device_name(0) if cuda else "",
}))`

// TorchStatus is what the interpreter reports about PyTorch.
type TorchStatus struct {
	// PythonVersion is the interpreter's "Python X.Y.Z" banner.
	PythonVersion string `json:"python_version"`
	// PythonFound is false when the interpreter could not be run.
	PythonFound bool `json:"python_found"`

	// Inspected is false when the introspection timed out, crashed or
	// printed nothing usable; Installed is then unknown.
	Inspected bool `json:"inspected"`
	// Error is set when torch is installed but failed to import.
	Error string `json:"error,omitempty"`

	Installed     bool   `json:"installed"`
	Version       string `json:"version,omitempty"`
	CUDAAvailable bool   `json:"cuda_available"`
	CUDAVersion   string `json:"cuda_version,omitempty"`
	HIPVersion    string `json:"hip_version,omitempty"`
	MPSAvailable  bool   `json:"mps_available"`
	DeviceName    string `json:"device_name,omitempty"`
}

// InspectTorch asks python whether torch imports and which backends it sees.
// It only reads; nothing is installed or changed. runner should carry a
// timeout of at least DefaultInspectTimeout.
// CANCELLATION: Context enables timeout and cancellation
func InspectTorch(ctx context.Context, runner probe.Runner, python string) TorchStatus {
	var st TorchStatus
	if python == "" {
		python = DefaultPython()
	}

	banner, ok := runner.Run(ctx, python, "--version")
	if !ok {
		log.Debug().Str("python", python).Msg("python interpreter not available")
		return st
	}
	st.PythonFound = true
	st.PythonVersion = strings.TrimSpace(banner)

	out, ok := runner.Run(ctx, python, "-c", torchInspectScript)
	if !ok {
		log.Debug().Str("python", python).Msg("torch inspection failed or timed out")
		return st
	}
	line := lastJSONLine(out)
	if line == "" {
		log.Debug().Str("output", out).Msg("torch inspection produced no JSON")
		return st
	}
	if err := json.Unmarshal([]byte(line), &st); err != nil {
		log.Debug().Err(err).Msg("torch inspection output not parseable")
		return TorchStatus{PythonFound: true, PythonVersion: st.PythonVersion}
	}
	st.Inspected = true
	return st
}

// lastJSONLine returns the last line that looks like a JSON object. Import
// warnings from torch share the combined output stream.
func lastJSONLine(out string) string {
	lines := strings.Split(strings.ReplaceAll(out, "\r\n", "\n"), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		l := strings.TrimSpace(lines[i])
		if strings.HasPrefix(l, "{") && strings.HasSuffix(l, "}") {
			return l
		}
	}
	return ""
}
