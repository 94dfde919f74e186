// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"io"
	"os"
	"runtime"

	"github.com/atotto/clipboard"

	"github.com/jeranaias/gpusetup/internal/config"
	"github.com/jeranaias/gpusetup/internal/detect"
	"github.com/jeranaias/gpusetup/internal/install"
	"github.com/jeranaias/gpusetup/internal/plan"
	"github.com/jeranaias/gpusetup/internal/probe"
)

// Env carries everything a command handler touches outside its arguments.
// NewEnv wires the real system; tests build one with fakes.
type Env struct {
	Out io.Writer
	Err io.Writer

	Config     *config.Config
	ConfigPath string // "" means the default location
	// ConfigErr is the error from loading the config, if any. The run
	// continues on defaults; doctor reports it.
	ConfigErr error

	// Runner executes hardware probes and the python version check.
	Runner probe.Runner
	// Inspector runs the torch introspection with its longer timeout.
	// Nil falls back to Runner.
	Inspector probe.Runner
	// GOOS and Machine describe the platform in reports.
	GOOS    string
	Machine string

	// Exec runs pip; nil runs it for real.
	Exec install.Executor
	// Confirm asks a yes/no question; nil means "yes".
	Confirm func(question string) (bool, error)
	// CopyText writes to the system clipboard.
	CopyText func(string) error
	// LookPath finds executables for doctor.
	LookPath func(string) (string, bool)
	// Color enables ANSI output (JSON highlighting, markdown styling).
	Color bool
}

// NewEnv builds an Env for a real run from cfg and the parsed args.
func NewEnv(cfg *config.Config, args Args) *Env {
	if args.TimeoutSecs > 0 {
		cfg.Probe.TimeoutSecs = args.TimeoutSecs
	}
	env := &Env{
		Out:        os.Stdout,
		Err:        os.Stderr,
		Config:     cfg,
		ConfigPath: args.ConfigPath,
		Runner:     probe.NewExecRunner(cfg.Timeout()),
		Inspector:  probe.NewExecRunner(cfg.InspectTimeout()),
		GOOS:       runtime.GOOS,
		Machine:    detect.Machine(),
		CopyText:   clipboard.WriteAll,
		LookPath:   probe.LookPath,
		Color:      ColorsEnabled(),
	}
	if CanPrompt() {
		env.Confirm = confirmPrompt
	}
	return env
}

// inspector returns the runner for torch introspection.
func (e *Env) inspector() probe.Runner {
	if e.Inspector != nil {
		return e.Inspector
	}
	return e.Runner
}

// detector returns a Detector configured from the environment.
func (e *Env) detector() *detect.Detector {
	d := detect.New(e.Runner)
	if e.GOOS != "" {
		d.GOOS = e.GOOS
	}
	if e.Config != nil {
		d.ROCmPath = e.rocmPathOverride()
	}
	return d
}

// rocmPathOverride returns the configured ROCm path unless it is the
// default, so $ROCM_PATH still applies to untouched configs.
func (e *Env) rocmPathOverride() string {
	if e.Config.Probe.ROCmPath == detect.DefaultROCmPath {
		return ""
	}
	return e.Config.Probe.ROCmPath
}

// generator returns a plan generator using the configured indexes.
func (e *Env) generator() *plan.Generator {
	if e.Config == nil {
		return plan.NewGenerator(plan.DefaultIndexes())
	}
	return plan.NewGenerator(e.Config.Index)
}

// python returns the configured interpreter or the platform default.
func (e *Env) python() string {
	if e.Config != nil && e.Config.Install.Python != "" {
		return e.Config.Install.Python
	}
	switch e.GOOS {
	case "":
		return install.DefaultPython()
	case "windows":
		return "python"
	default:
		return "python3"
	}
}

func (e *Env) platformLabel() string {
	goos := e.GOOS
	if goos == "" {
		goos = runtime.GOOS
	}
	return detect.PlatformLabel(goos, e.Machine)
}

func (e *Env) platform() string {
	if e.GOOS == "" {
		return detect.Platform()
	}
	return e.GOOS
}
