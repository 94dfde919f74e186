// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build linux || darwin || freebsd

package main

import "golang.org/x/sys/unix"

// freeDiskSpace returns the bytes available to an unprivileged user on the
// filesystem holding path.
func freeDiskSpace(path string) (uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, err
	}
	// Bavail, not Bfree: pip does not run as root.
	return uint64(stat.Bavail) * uint64(stat.Bsize), nil
}
