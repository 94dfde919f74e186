// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package detect

import (
	"context"
	"regexp"
	"strings"
)

// =============================================================================
// NVIDIA DETECTION
// =============================================================================

var nvidiaQueryArgs = []string{
	"--query-gpu=name,memory.total,driver_version",
	"--format=csv,noheader,nounits",
}

// PERFORMANCE: Pre-compiled regex (compiled once at startup)
var (
	nvccReleaseRegex = regexp.MustCompile(`release (\d+\.\d+)`)
	cudaBannerRegex  = regexp.MustCompile(`CUDA Version:\s*(\d+\.\d+)`)
)

// nvidiaQuery is the parsed first row of the nvidia-smi CSV query.
type nvidiaQuery struct {
	Name   string
	VRAMMB int
	Driver string
}

// detectNvidia probes nvidia-smi and resolves the CUDA version.
func (d *Detector) detectNvidia(ctx context.Context) (HardwareRecord, bool) {
	var smi, out string
	var ok bool
	for _, path := range nvidiaSmiPaths(d.GOOS) {
		if out, ok = d.run(ctx, path, nvidiaQueryArgs...); ok {
			smi = path
			break
		}
		if ctx.Err() != nil {
			return HardwareRecord{}, false
		}
	}
	if !ok {
		return HardwareRecord{}, false
	}

	q, ok := parseNvidiaQuery(out)
	if !ok {
		return HardwareRecord{}, false
	}

	rec := newRecord(VendorNvidia)
	rec.Name = q.Name
	rec.VRAMMB = q.VRAMMB
	rec.DriverVersion = q.Driver
	rec.CUDAAvailable = true
	rec.Backend = BackendCUDA

	if nvcc, ok := d.run(ctx, "nvcc", "--version"); ok {
		rec.CUDAVersion = parseNvccRelease(nvcc)
	}
	if rec.CUDAVersion == "" {
		if banner, ok := d.run(ctx, smi); ok {
			rec.CUDAVersion = parseCUDABanner(banner)
		}
	}
	return rec, true
}

// nvidiaSmiPaths returns the nvidia-smi locations to try for the platform.
func nvidiaSmiPaths(goos string) []string {
	if goos == "windows" {
		return []string{
			"nvidia-smi",
			`C:\Windows\System32\nvidia-smi.exe`,
			`C:\Program Files\NVIDIA Corporation\NVSMI\nvidia-smi.exe`,
		}
	}
	return []string{"nvidia-smi"}
}

// parseNvidiaQuery parses "name, memory.total, driver_version" from the first
// line. Memory is reported in MiB; a non-numeric value degrades to 0.
func parseNvidiaQuery(out string) (nvidiaQuery, bool) {
	first := strings.TrimSpace(lines(out)[0])
	parts := strings.Split(first, ",")
	if len(parts) < 3 {
		return nvidiaQuery{}, false
	}

	q := nvidiaQuery{
		Name:   strings.TrimSpace(parts[0]),
		Driver: strings.TrimSpace(parts[2]),
	}
	if q.Name == "" {
		q.Name = DefaultName
	}
	if mb, ok := ParseMemoryMB(strings.TrimSpace(parts[1]) + " MB"); ok {
		q.VRAMMB = mb
	}
	return q, true
}

// parseNvccRelease extracts X.Y from nvcc's "release X.Y" line.
func parseNvccRelease(out string) string {
	if m := nvccReleaseRegex.FindStringSubmatch(out); m != nil {
		return m[1]
	}
	return ""
}

// parseCUDABanner extracts X.Y from the nvidia-smi "CUDA Version: X.Y" banner.
func parseCUDABanner(out string) string {
	if m := cudaBannerRegex.FindStringSubmatch(out); m != nil {
		return m[1]
	}
	return ""
}
