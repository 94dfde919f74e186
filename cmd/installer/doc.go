// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package installer provides the gpusetup interactive installer, a guided
PyTorch setup for new checkouts.

# Overview

The installer detects the GPU, shows the install plan for review and then
runs pip with the backend's wheel index. It is a Bubble Tea application
with a text fallback that runs the same steps as "gpusetup install".

# Command Line Options

	--text, -t     Run in text mode (copy/paste friendly, no TUI)
	--dry-run, -n  Show the pip commands without running them
	--yes, -y      Skip the confirmation prompt (text mode)
	--root DIR     Project root holding the requirement files
	--help, -h     Show help information
	--version, -v  Show version number

Text mode is also used when stdin or stdout is not a terminal.

# Usage Examples

Run the interactive TUI installer (default):

	gpusetup-installer

Preview the pip commands for another checkout:

	gpusetup-installer --dry-run --root ~/src/project

# Files

The installer reads ~/.gpusetup/config.toml when present. In TUI mode logs
and pip output are written to ~/.gpusetup/logs/gpusetup_YYYY-MM-DD.log.

# Architecture

  - main.go: Entry point, flag parsing, text mode and TUI startup
  - installer.go: TUI model with its phases and views
  - disk_*.go: Free space lookup for the review screen

The TUI uses a phase-based state machine:

  - PhaseWelcome: Introduction
  - PhaseDetecting: GPU detection and plan generation
  - PhaseReview: Detected hardware, install command and warnings
  - PhaseInstalling: pip steps with a spinner and progress bar
  - PhaseComplete: Per-step results
*/
package main
