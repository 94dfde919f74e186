// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads and saves the gpusetup configuration.
//
// # Key Types
//
//   - Config: probe, install, index and log sections
//   - ValidationError / ValidateErrors: per-field validation failures
//
// # Configuration Precedence
//
// Configuration is resolved from (highest first):
//   - Command-line flags (applied by the caller)
//   - Environment variables (GPUSETUP_*)
//   - ~/.gpusetup/config.toml, or the file named by --config
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
//	}
//	runner := probe.NewExecRunner(cfg.Timeout())
//
// A config error is never fatal: Load always returns a usable config.
package config
