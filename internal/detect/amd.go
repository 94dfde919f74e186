// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package detect

import (
	"context"
	"path/filepath"
	"regexp"
	"strings"
)

// =============================================================================
// AMD DETECTION
// =============================================================================

// PERFORMANCE: Pre-compiled regex (compiled once at startup)
var amdNumericRegex = regexp.MustCompile(`(\d+)`)

// detectAMD tries rocm-smi, then the platform's display listing.
func (d *Detector) detectAMD(ctx context.Context) (HardwareRecord, bool) {
	if rec, ok := d.detectROCm(ctx); ok {
		return rec, true
	}
	if ctx.Err() != nil {
		return HardwareRecord{}, false
	}

	name, ok := d.findDisplayAdapter(ctx, amdKeywords)
	if !ok {
		return HardwareRecord{}, false
	}

	// AMD hardware without a usable ROCm runtime installs the CPU build.
	rec := newRecord(VendorAMD)
	rec.Name = name
	return rec, true
}

// detectROCm probes rocm-smi. The product listing must mention a GPU.
func (d *Detector) detectROCm(ctx context.Context) (HardwareRecord, bool) {
	out, ok := d.run(ctx, "rocm-smi", "--showproductname")
	if !ok || !strings.Contains(out, "GPU") {
		return HardwareRecord{}, false
	}

	rec := newRecord(VendorAMD)
	rec.ROCmAvailable = true
	rec.Backend = BackendROCm
	if name, ok := parseROCmProductName(out); ok {
		rec.Name = name
	}

	if drv, ok := d.run(ctx, "rocm-smi", "--showdriverversion"); ok {
		rec.DriverVersion = parseROCmDriverVersion(drv)
	}

	rec.ROCmVersion = d.readTrimmed(filepath.Join(d.rocmPath(), ".info", "version"))

	if mem, ok := d.run(ctx, "rocm-smi", "--showmeminfo", "vram"); ok {
		rec.VRAMMB = parseROCmVRAM(mem)
	}
	return rec, true
}

// parseROCmProductName takes the model from the first Card/GPU line, e.g.
// "GPU[0] : Card series: Navi 31 [Radeon RX 7900 XTX]".
func parseROCmProductName(out string) (string, bool) {
	for _, line := range lines(out) {
		if !strings.Contains(line, "Card") && !strings.Contains(line, "GPU") {
			continue
		}
		if name, ok := afterLastColon(line); ok && name != "" {
			return name, true
		}
	}
	return "", false
}

// parseROCmDriverVersion reads "Driver version: X" from rocm-smi.
func parseROCmDriverVersion(out string) string {
	for _, line := range lines(out) {
		if !strings.Contains(line, "Driver") {
			continue
		}
		if v, ok := afterLastColon(line); ok && v != "" {
			return v
		}
	}
	return ""
}

// parseROCmVRAM reads the total VRAM line of "rocm-smi --showmeminfo vram".
//
// The value is the number after the last colon; values above 1,000,000 are
// bytes, smaller ones are already MB. "Total Used" lines are ignored.
func parseROCmVRAM(out string) int {
	for _, line := range lines(out) {
		if !strings.Contains(line, "Total") || strings.Contains(line, "Used") {
			continue
		}
		field, ok := afterLastColon(line)
		if !ok {
			continue
		}
		m := amdNumericRegex.FindString(field)
		if m == "" {
			continue
		}
		if mb, ok := ParseMemoryMB(m); ok {
			return mb
		}
	}
	return 0
}
