// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package install

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jeranaias/gpusetup/internal/plan"
	"github.com/jeranaias/gpusetup/internal/probe"
)

// DefaultRequirementFiles are the per-subsystem requirement files, relative
// to the project root.
var DefaultRequirementFiles = []string{
	filepath.Join("silhouette", "requirements.txt"),
	filepath.Join("voice_engine", "requirements.txt"),
	filepath.Join("reasoning_engine", "requirements.txt"),
	filepath.Join("scripts", "render", "requirements.txt"),
}

// DefaultPython returns the interpreter name for the platform.
func DefaultPython() string {
	if runtime.GOOS == "windows" {
		return "python"
	}
	return "python3"
}

// =============================================================================
// EXECUTION
// =============================================================================

// Executor runs a package-manager command to completion.
type Executor func(ctx context.Context, name string, args ...string) error

// ProgressCallback is called before each step with its 1-based index.
type ProgressCallback func(step int, total int, status string)

// CommandExecutor returns an Executor that runs commands with os/exec,
// streaming their output to out.
func CommandExecutor(out io.Writer) Executor {
	return func(ctx context.Context, name string, args ...string) error {
		cmd := exec.CommandContext(ctx, name, args...)
		probe.Prepare(cmd)
		cmd.Stdout = out
		cmd.Stderr = out
		return cmd.Run()
	}
}

// =============================================================================
// INSTALLER
// =============================================================================

// Installer applies an InstallPlan with pip.
//
// Steps run in a fixed order: the runtime packages, one batch per
// requirement file, then the plan's extras. A failing step is recorded and
// the remaining steps still run.
type Installer struct {
	// Python is the interpreter used as "<python> -m pip".
	Python string
	// DryRun prints commands instead of running them.
	DryRun bool
	// Out receives progress text. Nil discards it.
	Out io.Writer
	// Exec runs pip. Nil uses CommandExecutor(Out).
	Exec Executor
	// ProjectRoot anchors relative requirement file paths.
	ProjectRoot string
	// RequirementFiles are installed in order.
	RequirementFiles []string
	// OnProgress is notified before each step.
	OnProgress ProgressCallback
}

// NewInstaller creates an Installer with default files and interpreter.
func NewInstaller(projectRoot string, out io.Writer) *Installer {
	return &Installer{
		Python:           DefaultPython(),
		Out:              out,
		ProjectRoot:      projectRoot,
		RequirementFiles: append([]string(nil), DefaultRequirementFiles...),
	}
}

// Run executes the plan and reports every step.
// CANCELLATION: Context enables timeout and cancellation
func (in *Installer) Run(ctx context.Context, p plan.InstallPlan) *Report {
	report := &Report{RunID: uuid.New().String(), DryRun: in.DryRun}
	logger := log.With().Str("run_id", report.RunID).Bool("dry_run", in.DryRun).Logger()
	logger.Info().Int("requirement_files", len(in.RequirementFiles)).Msg("install started")

	total := 1 + len(in.RequirementFiles)
	if len(p.ExtraPackages) > 0 {
		total++
	}
	step := 0
	next := func(status string) {
		step++
		if in.OnProgress != nil {
			in.OnProgress(step, total, status)
		}
	}

	in.printf("\n[2/3] Installing PyTorch...\n")
	next("Installing PyTorch")
	report.add(in.runtimeStep(ctx, logger, p))

	in.printf("\n[3/3] Installing project dependencies...\n")
	for _, file := range in.RequirementFiles {
		next("Installing " + in.relPath(file))
		report.add(in.requirementsStep(ctx, logger, file, p))
	}

	if len(p.ExtraPackages) > 0 {
		in.printf("\n  Installing GPU-specific extras...\n")
		next("Installing GPU-specific extras")
		res := StepResult{Kind: StepExtras, Name: "GPU-specific extras", Packages: append([]string(nil), p.ExtraPackages...)}
		res.Args = in.pipArgs(nil, p.ExtraPackages)
		in.pip(ctx, logger, &res)
		report.add(res)
	}

	logger.Info().Int("failed", report.Failed()).Msg("install finished")
	return report
}

// runtimeStep installs the runtime packages from the plan's index.
func (in *Installer) runtimeStep(ctx context.Context, logger zerolog.Logger, p plan.InstallPlan) StepResult {
	packages := p.RuntimePackages
	if len(packages) == 0 {
		packages = plan.RuntimePackages
	}
	var opts []string
	if p.IndexURL != "" {
		opts = []string{"--index-url", p.IndexURL}
	}
	res := StepResult{
		Kind:     StepRuntime,
		Name:     "PyTorch runtime",
		Packages: append([]string(nil), packages...),
		Args:     in.pipArgs(opts, packages),
	}
	in.pip(ctx, logger, &res)
	return res
}

// requirementsStep filters and installs one requirement file.
func (in *Installer) requirementsStep(ctx context.Context, logger zerolog.Logger, file string, p plan.InstallPlan) StepResult {
	rel := in.relPath(file)
	res := StepResult{Kind: StepRequirements, Name: rel}
	in.printf("\n  Installing from %s...\n", rel)

	reqs, err := ReadRequirementsFile(in.absPath(file))
	if errors.Is(err, fs.ErrNotExist) {
		in.printf("  Skipping %s (not found)\n", rel)
		logger.Warn().Str("file", rel).Msg("requirements file not found")
		res.Status = StepSkipped
		res.Note = "not found"
		return res
	}
	if err != nil {
		in.printf("  Could not read %s: %v\n", rel, err)
		res.Status = StepFailed
		res.Err = fmt.Errorf("read %s: %w", rel, err)
		return res
	}

	keep, skipped := Filter(reqs, p)
	for _, s := range skipped {
		res.Skipped = append(res.Skipped, s.Name)
		if s.Reason == SkipIncompatible || s.Reason == SkipOption {
			in.printf("  Skipping %s (%s)\n", s.Name, s.Reason)
		}
	}
	if len(keep) == 0 {
		res.Status = StepSkipped
		res.Note = "nothing to install"
		return res
	}

	res.Packages = Specs(keep)
	res.Args = in.pipArgs(nil, res.Packages)
	in.pip(ctx, logger, &res)
	return res
}

// pip runs or prints res.Args and records the outcome.
func (in *Installer) pip(ctx context.Context, logger zerolog.Logger, res *StepResult) {
	python := in.python()
	cmdline := python + " " + strings.Join(res.Args, " ")

	if in.DryRun {
		in.printf("  [DRY RUN] %s\n", cmdline)
		res.Status = StepComplete
		res.Note = "dry run"
		return
	}

	in.printf("  $ %s\n", cmdline)
	run := in.Exec
	if run == nil {
		run = CommandExecutor(in.out())
	}
	if err := run(ctx, python, res.Args...); err != nil {
		res.Status = StepFailed
		res.Err = fmt.Errorf("pip install %s: %w", res.Name, err)
		in.printf("  FAILED: %v\n", res.Err)
		logger.Error().Err(err).Str("step", res.Name).Msg("pip install failed")
		return
	}
	res.Status = StepComplete
	logger.Debug().Str("step", res.Name).Msg("pip install succeeded")
}

// pipArgs builds "-m pip install [opts...] packages...".
func (in *Installer) pipArgs(opts, packages []string) []string {
	args := []string{"-m", "pip", "install"}
	args = append(args, opts...)
	return append(args, packages...)
}

func (in *Installer) python() string {
	if in.Python != "" {
		return in.Python
	}
	return DefaultPython()
}

func (in *Installer) out() io.Writer {
	if in.Out == nil {
		return io.Discard
	}
	return in.Out
}

func (in *Installer) printf(format string, args ...interface{}) {
	fmt.Fprintf(in.out(), format, args...)
}

func (in *Installer) absPath(file string) string {
	if filepath.IsAbs(file) || in.ProjectRoot == "" {
		return file
	}
	return filepath.Join(in.ProjectRoot, file)
}

// relPath shows file relative to the project root when possible.
func (in *Installer) relPath(file string) string {
	if !filepath.IsAbs(file) || in.ProjectRoot == "" {
		return filepath.ToSlash(file)
	}
	if rel, err := filepath.Rel(in.ProjectRoot, file); err == nil && !strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(rel)
	}
	return file
}

// ProjectRootExists reports whether dir exists and is a directory.
func ProjectRootExists(dir string) bool {
	info, err := os.Stat(dir)
	return err == nil && info.IsDir()
}
