// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package detect

import (
	"runtime"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// =============================================================================
// PLATFORM
// =============================================================================

// Platform returns the lower-case OS name reported alongside a record.
func Platform() string {
	return strings.ToLower(runtime.GOOS)
}

// PlatformLabel returns the OS and machine architecture for reports,
// e.g. "Linux x86_64" or "Darwin arm64".
func PlatformLabel(goos, machine string) string {
	name := cases.Title(language.English).String(goos)
	if machine == "" {
		return name
	}
	return name + " " + machine
}

// goarchMachine maps GOARCH to the kernel-style machine names uname reports.
func goarchMachine(goarch string) string {
	switch goarch {
	case "amd64":
		return "x86_64"
	case "386":
		return "i686"
	case "arm64":
		return "arm64"
	default:
		return goarch
	}
}
