// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util holds small helpers shared by the config and CLI packages.
//
//   - AtomicWriteFile: crash-safe file writing with fsync, used for config.toml
//   - StringWidth, TruncateWidth, PadRight: column-aware text for report boxes
package util
