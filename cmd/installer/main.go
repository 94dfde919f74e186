// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package main provides the gpusetup installer - a guided PyTorch setup.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"

	"github.com/jeranaias/gpusetup/internal/cli"
	"github.com/jeranaias/gpusetup/internal/config"
	"github.com/jeranaias/gpusetup/internal/logging"
)

// options are the installer's command-line flags.
type options struct {
	text    bool
	dryRun  bool
	yes     bool
	help    bool
	version bool
	root    string
}

func parseOptions(argv []string) (options, error) {
	var opts options
	for idx := 0; idx < len(argv); idx++ {
		switch arg := argv[idx]; arg {
		case "--text", "-t", "--simple":
			opts.text = true
		case "--dry-run", "-n":
			opts.dryRun = true
		case "--yes", "-y":
			opts.yes = true
		case "--help", "-h":
			opts.help = true
		case "--version", "-v":
			opts.version = true
		case "--root":
			if idx+1 >= len(argv) {
				return opts, cli.ErrMissingArgument("--root", "gpusetup-installer --root DIR")
			}
			idx++
			opts.root = argv[idx]
		default:
			return opts, cli.NewValidationError("flag", arg, "unknown installer flag")
		}
	}
	return opts, nil
}

func (o options) args() cli.Args {
	return cli.Args{DryRun: o.dryRun, Yes: o.yes, Root: o.root}
}

func main() {
	opts, err := parseOptions(os.Args[1:])
	if err != nil {
		cli.DisplayError(os.Stderr, err, false)
		os.Exit(cli.GetExitCode(err))
	}
	if opts.help {
		printHelp(os.Stdout)
		return
	}
	if opts.version {
		fmt.Printf("gpusetup installer v%s\n", cli.Version)
		return
	}

	cfg, cfgErr := config.Load("")

	// Without a terminal there is nothing to draw on.
	if opts.text || !cli.IsTTY() || !cli.IsStdoutTTY() {
		os.Exit(runText(cfg, cfgErr, opts))
	}
	os.Exit(runTUI(cfg, cfgErr, opts))
}

// printHelp shows usage information
func printHelp(w io.Writer) {
	fmt.Fprintln(w, `gpusetup installer v`+cli.Version+`

Usage: gpusetup-installer [OPTIONS]

Options:
  --text, -t     Run in text mode (copy/paste friendly)
  --dry-run, -n  Show the pip commands without running them
  --yes, -y      Skip the confirmation prompt (text mode)
  --root DIR     Project root holding the requirement files
  --help, -h     Show this help
  --version, -v  Show version

The default mode is an interactive TUI. It falls back to text mode when
stdin or stdout is not a terminal.`)
}

// =============================================================================
// TEXT MODE INSTALLER (Copy/Paste Friendly)
// =============================================================================

func runText(cfg *config.Config, cfgErr error, opts options) int {
	if _, err := logging.Setup(logging.Options{Level: cfg.Log.Level, NoColor: !cli.ColorsEnabled()}); err != nil {
		log.Warn().Err(err).Msg("invalid log level, using default")
	}
	if cfgErr != nil {
		log.Warn().Err(cfgErr).Msg("config not loaded, using defaults")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env := cli.NewEnv(cfg, opts.args())
	env.ConfigErr = cfgErr
	if err := cli.HandleInstall(ctx, env, opts.args()); err != nil {
		cli.DisplayError(os.Stderr, err, false)
		return cli.GetExitCode(err)
	}
	return cli.ExitSuccess
}

// =============================================================================
// TUI MODE
// =============================================================================

func runTUI(cfg *config.Config, cfgErr error, opts options) int {
	// Logs and pip output go to a file; the alternate screen owns the terminal.
	logDir, err := config.LogDir()
	if err == nil {
		var closeLog func() error
		closeLog, err = logging.SetupFile(logDir, cfg.Log.Level, false)
		if err == nil {
			defer closeLog()
		}
	}
	if err != nil {
		logDir = ""
		logging.Discard()
	}
	if cfgErr != nil {
		log.Warn().Err(cfgErr).Msg("config not loaded, using defaults")
	}

	env := cli.NewEnv(cfg, opts.args())
	env.ConfigErr = cfgErr
	// The review screen is the confirmation.
	env.Confirm = nil

	pipLog := log.With().Str("component", "pip").Logger()
	model := NewInstaller(env, opts.args(), pipLog)

	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running installer: %v\n", err)
		return cli.ExitGeneralError
	}

	// Leave a record on the normal screen once the alt screen is gone.
	if report := model.Report(); report != nil {
		cli.PrintInstallSummary(os.Stdout, report, model.plan)
		if logDir != "" {
			fmt.Printf("  Logs: %s\n", logDir)
		}
		return cli.ExitSuccess
	}
	if model.Aborted() {
		fmt.Println("Installation cancelled.")
	}
	return cli.ExitSuccess
}
