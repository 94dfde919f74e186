// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build !(linux || darwin || freebsd || windows)

package main

import "errors"

func freeDiskSpace(string) (uint64, error) {
	return 0, errors.New("free space not available on this platform")
}
