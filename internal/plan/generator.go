// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package plan

import (
	"strconv"

	"github.com/jeranaias/gpusetup/internal/detect"
)

// =============================================================================
// WHEEL INDEXES
// =============================================================================

// Indexes are the PyTorch wheel indexes per backend. An empty URL selects the
// default index.
type Indexes struct {
	CUDA string `toml:"cuda" json:"cuda"`
	ROCm string `toml:"rocm" json:"rocm"`
	MPS  string `toml:"mps" json:"mps"`
	CPU  string `toml:"cpu" json:"cpu"`
}

// DefaultIndexes returns the upstream PyTorch indexes.
func DefaultIndexes() Indexes {
	return Indexes{
		CUDA: "https://download.pytorch.org/whl/cu121",
		ROCm: "https://download.pytorch.org/whl/rocm6.1",
		MPS:  "",
		CPU:  "https://download.pytorch.org/whl/cpu",
	}
}

// For returns the index for a backend. Unknown backends use the CPU index.
func (idx Indexes) For(b detect.Backend) string {
	switch b {
	case detect.BackendCUDA:
		return idx.CUDA
	case detect.BackendROCm:
		return idx.ROCm
	case detect.BackendMPS:
		return idx.MPS
	default:
		return idx.CPU
	}
}

// =============================================================================
// WARNINGS
// =============================================================================

const (
	WarnROCmQuantization  = "bitsandbytes is not compatible with AMD GPUs - skipping"
	WarnROCmMissing       = "AMD GPU detected but ROCm is not installed. Install ROCm first: https://rocm.docs.amd.com/"
	WarnMPSFallback       = "Apple MPS backend: some operations may fall back to CPU"
	WarnNoGPU             = "No GPU detected - running in CPU-only mode (slower inference)"
	WarnAMDNoRuntime      = "AMD GPU detected but no ROCm runtime is usable here - installing the CPU-only build"
	WarnIntelExperimental = "Intel GPU detected - PyTorch XPU support is experimental, installing the CPU-only build"
	WarnCPUFallback       = "GPU compute runtime unavailable - running in CPU-only mode (slower inference)"
)

// =============================================================================
// GENERATOR
// =============================================================================

const (
	// bf16Threshold is the VRAM from which CUDA uses bf16.
	bf16Threshold = 8192

	cudaHeadroom = 0.85
	mpsHeadroom  = 0.5

	rocmFallbackGB = 4.0
	mpsFallbackGB  = 8.0
)

// Generator maps hardware records to install plans.
type Generator struct {
	indexes Indexes
}

// NewGenerator creates a Generator using the given wheel indexes.
func NewGenerator(indexes Indexes) *Generator {
	return &Generator{indexes: indexes}
}

// Recommend builds the install plan for a record. It depends only on the
// record's backend, VRAM, vendor and ROCm flag, and returns equal plans for
// equal records.
func (g *Generator) Recommend(rec detect.HardwareRecord) InstallPlan {
	backend := rec.Backend
	if !backend.Valid() {
		backend = detect.BackendCPU
	}

	p := InstallPlan{
		RuntimePackages: append([]string(nil), RuntimePackages...),
		IndexURL:        g.indexes.For(backend),
		ExtraPackages:   []string{},
		SkipPackages:    []string{},
		Warnings:        []string{},
	}

	switch backend {
	case detect.BackendCUDA:
		p.ExtraPackages = []string{quantizationRequirement}
		precision := PrecisionFP16
		if rec.VRAMMB >= bf16Threshold {
			precision = PrecisionBF16
		}
		p.DeviceConfig = DeviceConfig{
			Device:         "cuda",
			CompileModel:   true,
			MixedPrecision: precision,
			MaxMemoryGB:    memoryBudget(rec.VRAMMB, cudaHeadroom, 0),
		}

	case detect.BackendROCm:
		p.SkipPackages = []string{QuantizationPackage}
		p.Warnings = append(p.Warnings, WarnROCmQuantization)
		if !rec.ROCmAvailable {
			p.Warnings = append(p.Warnings, WarnROCmMissing)
		}
		// ROCm builds expose the GPU as the cuda device.
		p.DeviceConfig = DeviceConfig{
			Device:         "cuda",
			CompileModel:   true,
			MixedPrecision: PrecisionFP16,
			MaxMemoryGB:    memoryBudget(rec.VRAMMB, cudaHeadroom, rocmFallbackGB),
		}

	case detect.BackendMPS:
		p.SkipPackages = []string{QuantizationPackage}
		p.Warnings = append(p.Warnings, WarnMPSFallback)
		p.DeviceConfig = DeviceConfig{
			Device:         "mps",
			CompileModel:   false,
			MixedPrecision: PrecisionFP16,
			MaxMemoryGB:    memoryBudget(rec.VRAMMB, mpsHeadroom, mpsFallbackGB),
		}

	default:
		p.SkipPackages = []string{QuantizationPackage}
		p.Warnings = append(p.Warnings, cpuWarning(rec.Vendor))
		p.DeviceConfig = DeviceConfig{
			Device:         "cpu",
			CompileModel:   false,
			MixedPrecision: PrecisionFP32,
			MaxMemoryGB:    0,
		}
	}

	p.TorchInstall = TorchInstallCommand(p.RuntimePackages, p.IndexURL)
	return p
}

// cpuWarning explains why a record landed on the CPU build.
func cpuWarning(v detect.Vendor) string {
	switch v {
	case detect.VendorNone:
		return WarnNoGPU
	case detect.VendorAMD:
		return WarnAMDNoRuntime
	case detect.VendorIntel:
		return WarnIntelExperimental
	default:
		return WarnCPUFallback
	}
}

// memoryBudget returns VRAM in GB times headroom, rounded to one decimal.
// Zero VRAM yields fallback.
func memoryBudget(vramMB int, headroom, fallback float64) float64 {
	if vramMB <= 0 {
		return fallback
	}
	return roundTenth(float64(vramMB) / 1024 * headroom)
}

// roundTenth rounds the exact binary value of x to one decimal, with exact
// ties going to the even digit.
func roundTenth(x float64) float64 {
	r, err := strconv.ParseFloat(strconv.FormatFloat(x, 'f', 1, 64), 64)
	if err != nil {
		return x
	}
	return r
}
