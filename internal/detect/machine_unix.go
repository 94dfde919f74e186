// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build linux || darwin || freebsd || netbsd || openbsd

package detect

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// Machine returns the hardware name from uname(2).
func Machine() string {
	var u unix.Utsname
	if err := unix.Uname(&u); err != nil {
		return goarchMachine(runtime.GOARCH)
	}
	if m := unix.ByteSliceToString(u.Machine[:]); m != "" {
		return m
	}
	return goarchMachine(runtime.GOARCH)
}
