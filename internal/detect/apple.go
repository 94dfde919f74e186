// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package detect

import (
	"context"
	"regexp"
	"strings"
)

// =============================================================================
// MACOS DETECTION
// =============================================================================

// PERFORMANCE: Pre-compiled regex (compiled once at startup)
var (
	chipsetModelRegex = regexp.MustCompile(`Chipset Model:\s*(.+)`)
	macVRAMRegex      = regexp.MustCompile(`VRAM.*?:\s*(\d+)\s*(MB|GB)`)
)

// detectMac reads the macOS display report. Apple Silicon uses MPS with
// unified memory sized from hw.memsize; an AMD discrete GPU has no ROCm on
// macOS and falls back to the CPU build.
func (d *Detector) detectMac(ctx context.Context) (HardwareRecord, bool) {
	out, ok := d.run(ctx, "system_profiler", "SPDisplaysDataType")
	if !ok || out == "" {
		return HardwareRecord{}, false
	}

	switch {
	case strings.Contains(out, "Apple"):
		rec := newRecord(VendorApple)
		rec.Backend = BackendMPS
		if name, ok := parseChipsetModel(out); ok {
			rec.Name = name
		}
		if mem, ok := d.run(ctx, "sysctl", "-n", "hw.memsize"); ok {
			rec.VRAMMB = parseMemsize(mem)
		}
		return rec, true

	case strings.Contains(out, "AMD") || strings.Contains(out, "Radeon"):
		rec := newRecord(VendorAMD)
		if name, ok := parseChipsetModel(out); ok {
			rec.Name = name
		}
		rec.VRAMMB = parseMacVRAM(out)
		return rec, true
	}
	return HardwareRecord{}, false
}

func parseChipsetModel(out string) (string, bool) {
	m := chipsetModelRegex.FindStringSubmatch(out)
	if m == nil {
		return "", false
	}
	name := strings.TrimSpace(m[1])
	return name, name != ""
}

// parseMacVRAM reads "VRAM (Total): 8 GB" style lines.
func parseMacVRAM(out string) int {
	m := macVRAMRegex.FindStringSubmatch(out)
	if m == nil {
		return 0
	}
	mb, _ := ParseMemoryMB(m[1] + " " + m[2])
	return mb
}

// parseMemsize converts the hw.memsize byte count to MB.
func parseMemsize(out string) int {
	mb, ok := ParseMemoryMB(strings.TrimSpace(out) + " B")
	if !ok {
		return 0
	}
	return mb
}
