// gpusetup - GPU detection and PyTorch installer.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/jeranaias/gpusetup/internal/cli"
	"github.com/jeranaias/gpusetup/internal/config"
	"github.com/jeranaias/gpusetup/internal/logging"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	// Sync version info with cli package
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	os.Exit(run(os.Args[1:]))
}

// run parses argv, executes the command and returns the exit code.
func run(argv []string) int {
	cmd, args, err := cli.Parse(argv)
	if err != nil {
		cli.DisplayError(os.Stderr, err, args.JSON)
		return cli.GetExitCode(err)
	}

	// Config problems are reported and the run continues on defaults.
	cfg, cfgErr := config.Load(args.ConfigPath)

	if _, err := logging.Setup(logging.Options{
		Level:   cfg.Log.Level,
		Verbose: args.Verbose,
		NoColor: !cli.ColorsEnabled(),
	}); err != nil {
		log.Warn().Err(err).Msg("invalid log level, using default")
	}
	if cfgErr != nil {
		log.Warn().Err(cfgErr).Msg("config not loaded, using defaults")
		if !args.JSON && cmd != cli.CmdDoctor {
			fmt.Fprintf(os.Stderr, "%s %v (using defaults)\n",
				cli.RenderConditional(cli.WarningStyle, "WARNING:"), cfgErr)
		}
	}

	env := cli.NewEnv(cfg, args)
	env.ConfigErr = cfgErr

	// CANCELLATION: Ctrl+C stops running probes and pip
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.Dispatch(ctx, cmd, env, args); err != nil {
		cli.DisplayError(os.Stderr, err, args.JSON)
		return cli.GetExitCode(err)
	}
	return cli.ExitSuccess
}
