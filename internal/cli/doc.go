// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides command-line parsing and the command handlers of
// gpusetup.
//
// # Key Types
//
//   - Command: Enumeration of the CLI commands
//   - Args: Parsed command-line arguments with global and command-specific flags
//   - Env: Output streams, config and the probe runner a handler works with
//   - JSONResponse: Envelope for --json output of check, doctor, config and version
//
// # Usage
//
//	cmd, args, err := cli.Parse(os.Args[1:])
//	if err != nil {
//	    cli.DisplayError(os.Stderr, err, args.JSON)
//	    os.Exit(cli.GetExitCode(err))
//	}
//	env := cli.NewEnv(cfg, args)
//	err = cli.Dispatch(ctx, cmd, env, args)
//
// # Commands Overview
//
//   - detect: Hardware report and install recommendation (default)
//   - install: Text installer for PyTorch and the requirement files
//   - check: GPU and installed PyTorch status
//   - doctor: Vendor tools, Python, pip and config checks
//   - config: Show, init, get and set configuration
//
// "gpusetup --json" prints the bare {gpu, recommendations} document so it
// can be piped to other tools. The other commands wrap their data in a
// JSONResponse.
package cli
