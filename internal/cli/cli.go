// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - Command-line parsing for gpusetup.
//
// CLI: Comprehensive help and examples for all commands
package cli

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"strings"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdDetect Command = iota
	CmdInstall
	CmdCheck
	CmdDoctor
	CmdConfig
	CmdVersion
	CmdHelp
)

// String returns the command name as typed.
func (c Command) String() string {
	switch c {
	case CmdDetect:
		return "detect"
	case CmdInstall:
		return "install"
	case CmdCheck:
		return "check"
	case CmdDoctor:
		return "doctor"
	case CmdConfig:
		return "config"
	case CmdVersion:
		return "version"
	case CmdHelp:
		return "help"
	default:
		return "unknown"
	}
}

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	Verbose     bool
	JSON        bool
	ConfigPath  string
	TimeoutSecs int // 0 means "use config"

	// detect
	Copy bool

	// install
	DryRun bool
	Yes    bool
	Root   string

	// config
	Subcommand string
	ConfigKey  string
	ConfigVal  string
	Force      bool

	// Raw args after the command name
	Raw []string
}

const usageText = `gpusetup - GPU detection and PyTorch installer

Detects the GPU (NVIDIA, AMD, Intel, Apple Silicon), picks the matching
PyTorch build and installs it together with the project's requirements.

Usage:
  gpusetup [detect]              Print the hardware report (default)
  gpusetup install               Install PyTorch and project dependencies
  gpusetup check                 Check the GPU and the installed PyTorch
  gpusetup doctor                Check for vendor tools, Python and pip
  gpusetup config [subcommand]   Configuration
  gpusetup version               Show version information
  gpusetup help                  Show this help

Detect:
  --json                         Machine-readable output
  --copy                         Copy the install command to the clipboard

Install:
  --dry-run                      Print pip commands without running them
  --yes, -y                      Do not ask for confirmation
  --root DIR                     Project root holding the requirement files

Config:
  gpusetup config show           Show the effective configuration
  gpusetup config path           Print the config file path
  gpusetup config init [--force] Write the default configuration
  gpusetup config get KEY        Print one value (e.g. probe.timeout_secs)
  gpusetup config set KEY VALUE  Change one value and save

Global flags:
  --verbose, -v                  Debug logging on stderr
  --config PATH                  Use PATH instead of ~/.gpusetup/config.toml
  --timeout SECS                 Per-probe timeout (default 10)
  --json                         JSON output for check, doctor and version

Environment:
  GPUSETUP_PYTHON                Python interpreter used for pip
  GPUSETUP_PROJECT_ROOT          Project root for requirement files
  GPUSETUP_TIMEOUT               Per-probe timeout in seconds
  GPUSETUP_LOG_LEVEL             debug, info, warn, error or off
  ROCM_PATH                      ROCm install prefix (default /opt/rocm)

Examples:
  gpusetup --json | jq .recommendations.torch_install
  gpusetup install --dry-run
  gpusetup --timeout 30 check

Version: %s
`

// PrintUsage prints the usage/help text.
func PrintUsage(w io.Writer) {
	fmt.Fprintf(w, usageText, Version)
}

// PrintVersion prints version information.
func PrintVersion(w io.Writer) {
	fmt.Fprintf(w, "gpusetup version %s\n", Version)
	fmt.Fprintf(w, "  Git commit: %s\n", GitCommit)
	fmt.Fprintf(w, "  Build date: %s\n", BuildDate)
	fmt.Fprintf(w, "  Go:         %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// HandleVersion handles the "version" command.
func HandleVersion(env *Env, args Args) error {
	if args.JSON {
		return NewJSONResponse("version", VersionData{
			Version:   Version,
			GitCommit: GitCommit,
			BuildDate: BuildDate,
			GoVersion: runtime.Version(),
		}).Write(env.Out, env.Color)
	}
	PrintVersion(env.Out)
	return nil
}

// Dispatch runs the handler for cmd.
// CANCELLATION: Context enables timeout and cancellation
func Dispatch(ctx context.Context, cmd Command, env *Env, args Args) error {
	switch cmd {
	case CmdDetect:
		return HandleDetect(ctx, env, args)
	case CmdInstall:
		return HandleInstall(ctx, env, args)
	case CmdCheck:
		return HandleCheck(ctx, env, args)
	case CmdDoctor:
		return HandleDoctor(ctx, env, args)
	case CmdConfig:
		return HandleConfig(env, args)
	case CmdVersion:
		return HandleVersion(env, args)
	default:
		PrintUsage(env.Out)
		return nil
	}
}

// =============================================================================
// PARSING
// =============================================================================

// Parse parses command-line arguments (without the program name) and
// returns the command and args. Usage mistakes come back as
// *ValidationError.
func Parse(argv []string) (Command, Args, error) {
	remaining, parsedArgs, err := parseGlobalFlags(argv)
	if err != nil {
		return CmdHelp, parsedArgs, err
	}

	if len(remaining) == 0 {
		return CmdDetect, parsedArgs, nil
	}

	// Flags before any command belong to detect: "gpusetup --copy".
	cmd := strings.ToLower(remaining[0])
	if strings.HasPrefix(cmd, "-") {
		cmd = "detect"
	} else {
		remaining = remaining[1:]
	}
	parsedArgs.Raw = remaining

	switch cmd {
	case "detect", "d":
		return CmdDetect, parsedArgs, parseDetectArgs(&parsedArgs, remaining)

	case "install", "setup":
		return CmdInstall, parsedArgs, parseInstallArgs(&parsedArgs, remaining)

	case "check", "status", "s":
		return CmdCheck, parsedArgs, rejectUnknown("check", remaining)

	case "doctor", "diag":
		return CmdDoctor, parsedArgs, rejectUnknown("doctor", remaining)

	case "config":
		return CmdConfig, parsedArgs, parseConfigArgs(&parsedArgs, remaining)

	case "version":
		return CmdVersion, parsedArgs, nil

	case "help":
		return CmdHelp, parsedArgs, nil

	default:
		return CmdHelp, parsedArgs, &ValidationError{
			Field:   "command",
			Value:   cmd,
			Reason:  "unknown command",
			Example: "gpusetup help",
		}
	}
}

// parseGlobalFlags extracts global flags from args and returns remaining args.
func parseGlobalFlags(args []string) ([]string, Args, error) {
	var remaining []string
	var parsedArgs Args

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch {
		case arg == "-v" || arg == "--verbose":
			parsedArgs.Verbose = true
		case arg == "--json":
			parsedArgs.JSON = true
		case arg == "-h" || arg == "--help":
			remaining = append([]string{"help"}, remaining...)
		case arg == "--version":
			remaining = append([]string{"version"}, remaining...)
		case arg == "--config":
			if i+1 >= len(args) {
				return nil, parsedArgs, ErrMissingArgument("--config", "gpusetup --config ./config.toml")
			}
			i++
			parsedArgs.ConfigPath = args[i]
		case strings.HasPrefix(arg, "--config="):
			parsedArgs.ConfigPath = strings.TrimPrefix(arg, "--config=")
		case arg == "--timeout" || strings.HasPrefix(arg, "--timeout="):
			value := strings.TrimPrefix(arg, "--timeout=")
			if arg == "--timeout" {
				if i+1 >= len(args) {
					return nil, parsedArgs, ErrMissingArgument("--timeout", "gpusetup --timeout 30")
				}
				i++
				value = args[i]
			}
			secs, err := ParseIntWithValidation(value, "--timeout")
			if err != nil {
				return nil, parsedArgs, err
			}
			parsedArgs.TimeoutSecs = secs
		default:
			remaining = append(remaining, arg)
		}
	}

	return remaining, parsedArgs, nil
}

func parseDetectArgs(args *Args, remaining []string) error {
	p := NewArgParser(remaining, "json", "copy")
	if unknown := p.Unknown("json", "copy"); len(unknown) > 0 {
		return NewValidationError("flag", unknown[0], "not a detect flag")
	}
	if p.Subcommand() != "" {
		return NewValidationError("argument", p.Subcommand(), "detect takes no arguments")
	}
	args.JSON = args.JSON || p.BoolFlag("json")
	args.Copy = p.BoolFlag("copy")
	return nil
}

func parseInstallArgs(args *Args, remaining []string) error {
	p := NewArgParser(remaining, "dry-run", "yes", "y")
	if unknown := p.Unknown("dry-run", "yes", "y", "root"); len(unknown) > 0 {
		return NewValidationError("flag", unknown[0], "not an install flag")
	}
	args.DryRun = p.BoolFlag("dry-run")
	args.Yes = p.BoolFlag("yes") || p.BoolFlag("y")
	if p.HasFlag("root") {
		args.Root = p.Flag("root")
		if args.Root == "" {
			return ErrMissingArgument("--root", "gpusetup install --root ~/silhouette")
		}
	}
	return nil
}

func parseConfigArgs(args *Args, remaining []string) error {
	p := NewArgParser(remaining, "force")
	args.Subcommand = strings.ToLower(p.Subcommand())
	args.Force = p.BoolFlag("force")

	switch args.Subcommand {
	case "", "show", "path", "init":
	case "get":
		args.ConfigKey = p.Positional(1)
		if args.ConfigKey == "" {
			return ErrMissingArgument("KEY", "gpusetup config get probe.timeout_secs")
		}
	case "set":
		args.ConfigKey = p.Positional(1)
		args.ConfigVal = strings.Join(p.PositionalFrom(2), " ")
		if args.ConfigKey == "" || p.Positional(2) == "" {
			return ErrMissingArgument("KEY VALUE", "gpusetup config set probe.timeout_secs 20")
		}
	default:
		return &ValidationError{
			Field:   "config subcommand",
			Value:   args.Subcommand,
			Reason:  "must be one of show, path, init, get, set",
			Example: "gpusetup config show",
		}
	}
	return nil
}

// rejectUnknown fails on any argument for commands that take none.
func rejectUnknown(command string, remaining []string) error {
	for _, arg := range remaining {
		if arg == "--json" {
			continue
		}
		return NewValidationError("argument", arg, command+" takes no arguments")
	}
	return nil
}
