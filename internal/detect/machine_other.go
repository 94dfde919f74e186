// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build !(linux || darwin || freebsd || netbsd || openbsd)

package detect

import "runtime"

// Machine returns the hardware name derived from GOARCH.
func Machine() string {
	return goarchMachine(runtime.GOARCH)
}
