// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build !unix

package probe

import "os/exec"

// setProcessGroup leaves the default cancellation in place; WaitDelay still
// releases Wait when children keep the output pipes open.
func setProcessGroup(cmd *exec.Cmd) {}
