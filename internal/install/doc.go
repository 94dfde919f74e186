// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package install applies a plan.InstallPlan with pip.
//
// An install is a linear pipeline:
//
//  1. runtime: "<python> -m pip install [--index-url URL] torch torchvision torchaudio"
//  2. requirements: each file is read and comments dropped; pip options,
//     local paths, entries the plan skips and runtime packages are reported
//     as skipped, and the rest installed in one batch; missing files are
//     reported and skipped
//  3. extras: the plan's GPU-specific packages in one batch
//
// No step stops the ones after it and nothing is retried. Dry-run mode
// prints each command and never calls the Executor.
//
// The package also carries InspectTorch, a read-only probe of the installed
// PyTorch used by the check command.
package install
