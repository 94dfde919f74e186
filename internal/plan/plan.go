// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package plan

import "strings"

// =============================================================================
// PACKAGES
// =============================================================================

// RuntimePackages are installed together in the runtime step.
var RuntimePackages = []string{"torch", "torchvision", "torchaudio"}

// QuantizationPackage is the CUDA-only quantization library.
const QuantizationPackage = "bitsandbytes"

// quantizationRequirement is the extra installed on CUDA.
const quantizationRequirement = QuantizationPackage + ">=0.42.0"

// IsRuntimePackage reports whether name is one of RuntimePackages.
func IsRuntimePackage(name string) bool {
	for _, p := range RuntimePackages {
		if p == name {
			return true
		}
	}
	return false
}

// =============================================================================
// PRECISION
// =============================================================================

// Precision is the mixed-precision mode in the device config.
type Precision string

const (
	PrecisionBF16 Precision = "bf16"
	PrecisionFP16 Precision = "fp16"
	PrecisionFP32 Precision = "fp32"
)

// =============================================================================
// INSTALL PLAN
// =============================================================================

// DeviceConfig is the runtime configuration suggested for the hardware.
type DeviceConfig struct {
	Device         string    `json:"device"`
	CompileModel   bool      `json:"compile_model"`
	MixedPrecision Precision `json:"mixed_precision"`
	MaxMemoryGB    float64   `json:"max_memory_gb"`
}

// InstallPlan is the set of package actions and settings for one record.
type InstallPlan struct {
	// TorchInstall is the runtime install command as shown to the user.
	TorchInstall string `json:"torch_install"`
	// RuntimePackages are the packages of the runtime step.
	RuntimePackages []string `json:"runtime_packages"`
	// IndexURL is the wheel index for the runtime step. Empty means the default index.
	IndexURL string `json:"index_url"`
	// ExtraPackages are installed after the requirement files.
	ExtraPackages []string `json:"extra_packages"`
	// SkipPackages are dropped from requirement files.
	SkipPackages []string `json:"skip_packages"`
	// Warnings are advisory and never stop an install.
	Warnings []string `json:"warnings"`
	// DeviceConfig is the suggested runtime configuration.
	DeviceConfig DeviceConfig `json:"device_config"`
}

// Skips reports whether name is in the skip list.
func (p InstallPlan) Skips(name string) bool {
	for _, s := range p.SkipPackages {
		if strings.EqualFold(s, name) {
			return true
		}
	}
	return false
}

// HasWarnings reports whether the plan carries any warnings.
func (p InstallPlan) HasWarnings() bool {
	return len(p.Warnings) > 0
}

// TorchInstallCommand renders the user-facing runtime install command.
func TorchInstallCommand(packages []string, indexURL string) string {
	cmd := "pip install " + strings.Join(packages, " ")
	if indexURL != "" {
		cmd += " --index-url " + indexURL
	}
	return cmd
}
