// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package detect

import (
	"context"
	"strings"
)

// =============================================================================
// DISPLAY CONTROLLER LISTINGS
// =============================================================================

// videoControllerQuery lists adapter names, one per line, on Windows.
const videoControllerQuery = "Get-CimInstance Win32_VideoController | Select-Object -ExpandProperty Name"

var (
	amdKeywords   = []string{"amd", "radeon", "advanced micro"}
	intelKeywords = []string{"intel"}
)

// pciDisplayClasses are the lspci device classes that denote a GPU.
var pciDisplayClasses = []string{"VGA", "3D", "Display"}

// scanPCI runs lspci and returns the device name of the first display
// controller whose line mentions any keyword (case-insensitive).
func (d *Detector) scanPCI(ctx context.Context, keywords []string) (string, bool) {
	out, ok := d.run(ctx, "lspci")
	if !ok {
		return "", false
	}
	return matchPCIDisplay(out, keywords)
}

// matchPCIDisplay implements the lspci line match for scanPCI.
func matchPCIDisplay(listing string, keywords []string) (string, bool) {
	for _, line := range lines(listing) {
		if !containsAny(line, pciDisplayClasses) {
			continue
		}
		if !containsAnyFold(line, keywords) {
			continue
		}
		name, _ := afterLastColon(line)
		if name == "" {
			name = DefaultName
		}
		return name, true
	}
	return "", false
}

// queryVideoControllers asks Windows for adapter names and returns the first
// one mentioning any keyword.
func (d *Detector) queryVideoControllers(ctx context.Context, keywords []string) (string, bool) {
	out, ok := d.run(ctx, "powershell", "-NoProfile", "-Command", videoControllerQuery)
	if !ok {
		return "", false
	}
	return matchVideoController(out, keywords)
}

func matchVideoController(listing string, keywords []string) (string, bool) {
	for _, line := range lines(listing) {
		name := strings.TrimSpace(line)
		if name != "" && containsAnyFold(name, keywords) {
			return name, true
		}
	}
	return "", false
}

// findDisplayAdapter dispatches to the platform's listing.
func (d *Detector) findDisplayAdapter(ctx context.Context, keywords []string) (string, bool) {
	switch d.GOOS {
	case "linux":
		return d.scanPCI(ctx, keywords)
	case "windows":
		return d.queryVideoControllers(ctx, keywords)
	default:
		return "", false
	}
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func containsAnyFold(s string, subs []string) bool {
	return containsAny(strings.ToLower(s), subs)
}
