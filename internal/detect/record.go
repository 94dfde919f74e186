// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package detect

import "fmt"

// =============================================================================
// VENDOR
// =============================================================================

// Vendor identifies the GPU manufacturer.
type Vendor string

const (
	// VendorNone means no supported GPU was found.
	VendorNone Vendor = "none"
	// VendorNvidia is an NVIDIA GPU.
	VendorNvidia Vendor = "nvidia"
	// VendorAMD is an AMD GPU.
	VendorAMD Vendor = "amd"
	// VendorIntel is an Intel integrated or Arc GPU.
	VendorIntel Vendor = "intel"
	// VendorApple is Apple Silicon with unified memory.
	VendorApple Vendor = "apple"
)

// Label returns the display name used in reports.
func (v Vendor) Label() string {
	switch v {
	case VendorNvidia:
		return "NVIDIA"
	case VendorAMD:
		return "AMD"
	case VendorIntel:
		return "Intel"
	case VendorApple:
		return "Apple Silicon"
	case VendorNone:
		return "No GPU"
	default:
		return string(v)
	}
}

// =============================================================================
// BACKEND
// =============================================================================

// Backend is the compute backend the PyTorch install is selected for.
type Backend string

const (
	BackendCPU  Backend = "cpu"
	BackendCUDA Backend = "cuda"
	BackendROCm Backend = "rocm"
	BackendMPS  Backend = "mps"
)

// Valid reports whether b is one of the known backends.
func (b Backend) Valid() bool {
	switch b {
	case BackendCPU, BackendCUDA, BackendROCm, BackendMPS:
		return true
	}
	return false
}

// =============================================================================
// HARDWARE RECORD
// =============================================================================

// DefaultName is the model name used when the probe output carries none.
const DefaultName = "Unknown"

// CPUOnlyName is the model name of the no-GPU record.
const CPUOnlyName = "CPU Only"

// HardwareRecord is the result of a detection run.
type HardwareRecord struct {
	Vendor        Vendor  `json:"vendor"`
	Name          string  `json:"name"`
	VRAMMB        int     `json:"vram_mb"`
	DriverVersion string  `json:"driver_version"`
	CUDAAvailable bool    `json:"cuda_available"`
	CUDAVersion   string  `json:"cuda_version"`
	ROCmAvailable bool    `json:"rocm_available"`
	ROCmVersion   string  `json:"rocm_version"`
	Backend       Backend `json:"torch_backend"`
}

// newRecord returns a record with the defaults every vendor parser starts from.
func newRecord(vendor Vendor) HardwareRecord {
	return HardwareRecord{
		Vendor:  vendor,
		Name:    DefaultName,
		Backend: BackendCPU,
	}
}

// NoneRecord is the CPU-only record returned when no GPU is found.
func NoneRecord() HardwareRecord {
	rec := newRecord(VendorNone)
	rec.Name = CPUOnlyName
	return rec
}

// Device returns the torch device string for the record.
//
// ROCm builds of PyTorch expose the GPU through the "cuda" device, so an AMD
// record with ROCm available maps to "cuda" as well. Apple records map to
// "cpu" here; the MPS device is selected through the plan's device config.
func (r HardwareRecord) Device() string {
	switch {
	case r.Vendor == VendorNvidia && r.CUDAAvailable:
		return "cuda"
	case r.Vendor == VendorAMD && r.ROCmAvailable:
		return "cuda"
	default:
		return "cpu"
	}
}

// VRAMGB returns VRAM in gigabytes.
func (r HardwareRecord) VRAMGB() float64 {
	return float64(r.VRAMMB) / 1024
}

// String returns a one-line summary.
func (r HardwareRecord) String() string {
	s := fmt.Sprintf("%s %s", r.Vendor.Label(), r.Name)
	if r.VRAMMB > 0 {
		s += fmt.Sprintf(" (%d MB VRAM)", r.VRAMMB)
	}
	if r.DriverVersion != "" {
		s += fmt.Sprintf(" [Driver: %s]", r.DriverVersion)
	}
	return s + fmt.Sprintf(" backend=%s", r.Backend)
}
