// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package detect identifies the GPU in the local machine for gpusetup.
//
// Detection shells out to vendor diagnostic tools through a probe.Runner and
// parses their human-readable output into exactly one HardwareRecord. Probes
// are tried in a fixed priority order and the first vendor that answers wins.
//
// # Detection Order
//
//  1. macOS display report (system_profiler): Apple Silicon or AMD discrete
//  2. NVIDIA (nvidia-smi, with nvcc or the nvidia-smi banner for the CUDA version)
//  3. AMD (rocm-smi, then lspci on Linux or the video-controller query on Windows)
//  4. Intel (lspci on Linux or the video-controller query on Windows)
//  5. No GPU: CPU-only record
//
// # Key Types
//
//   - HardwareRecord: vendor, model, VRAM in MB, driver and runtime versions, backend
//   - Vendor: none, nvidia, amd, intel, apple
//   - Backend: cpu, cuda, rocm, mps
//   - Detector: the detection chain with injectable runner, platform and filesystem
//
// # Usage
//
//	d := detect.New(probe.NewExecRunner(probe.DefaultTimeout))
//	rec := d.Detect(ctx)
//	fmt.Printf("%s: %s (%d MB, backend %s)\n", rec.Vendor.Label(), rec.Name, rec.VRAMMB, rec.Backend)
//
// Parsing never fails loudly: a pattern that does not match leaves the field
// at its zero value, and a vendor whose tool is absent is simply skipped.
package detect
