// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package probe

import (
	"os/exec"
	"time"
)

// WaitDelay bounds how long a killed command may keep its output pipes open.
// Children that outlive the command would otherwise hold Wait indefinitely.
const WaitDelay = 2 * time.Second

// Prepare configures a context-bound command so cancellation stops the
// command together with any children it started.
func Prepare(cmd *exec.Cmd) {
	setProcessGroup(cmd)
	cmd.WaitDelay = WaitDelay
}
