// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// install_cmd.go - Text installer.
//
// Command: install
// Short:   Install PyTorch and the project's requirements
// Aliases: setup
//
// Steps:
//   [1/3] Detect the GPU and build the install plan
//   [2/3] Install torch, torchvision and torchaudio from the backend index
//   [3/3] Install each requirement file, then GPU-specific extras
//
// Failed pip steps are reported and the run continues. The command exits 0
// once every step has been attempted.

package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"

	"github.com/jeranaias/gpusetup/internal/detect"
	"github.com/jeranaias/gpusetup/internal/install"
	"github.com/jeranaias/gpusetup/internal/plan"
)

// InstallerTitle is the banner of both installers.
const InstallerTitle = "Smart Dependency Installer"

// InstallData is the JSON payload of "gpusetup install --json".
type InstallData struct {
	GPU    detect.HardwareRecord `json:"gpu"`
	Plan   plan.InstallPlan      `json:"plan"`
	Report *install.Report       `json:"report"`
}

// HandleInstall handles the "install" command.
// CANCELLATION: Context enables timeout and cancellation
func HandleInstall(ctx context.Context, env *Env, args Args) error {
	// Progress goes to stderr when stdout carries JSON.
	out := env.Out
	if args.JSON {
		out = env.Err
	}

	PrintBanner(out, InstallerTitle)
	fmt.Fprintln(out, "\n[1/3] Detecting GPU hardware...")
	rec, p := env.Analyze(ctx)
	PrintDetectionSummary(out, rec, p)

	root := env.ProjectRoot(args)
	if !install.ProjectRootExists(root) {
		fmt.Fprintf(out, "  %s project root %s does not exist; requirement files will be skipped\n",
			RenderConditional(WarningStyle, "WARNING:"), root)
	}

	if !args.DryRun {
		ok, err := RequireConfirmation("install "+string(rec.Backend)+" packages",
			ConfirmationOptions{Yes: args.Yes, JSONMode: args.JSON}, env.Confirm)
		if err != nil {
			return NewCommandError("install", "confirm", "could not read answer", err)
		}
		if !ok {
			fmt.Fprintln(out, "Cancelled.")
			return nil
		}
	}

	report := env.NewInstaller(args, out).Run(ctx, p)
	PrintInstallSummary(out, report, p)

	if args.JSON {
		return NewJSONResponse("install", InstallData{GPU: rec, Plan: p, Report: report}).Write(env.Out, env.Color)
	}
	return nil
}

// Analyze detects the GPU and builds its install plan.
// CANCELLATION: Context enables timeout and cancellation
func (e *Env) Analyze(ctx context.Context) (detect.HardwareRecord, plan.InstallPlan) {
	rec := e.detector().Detect(ctx)
	return rec, e.generator().Recommend(rec)
}

// NewInstaller builds an installer from the config and args. Progress and
// pip output go to out.
func (e *Env) NewInstaller(args Args, out io.Writer) *install.Installer {
	in := install.NewInstaller(e.ProjectRoot(args), out)
	in.Python = e.python()
	in.DryRun = args.DryRun
	in.Exec = e.Exec
	if e.Config != nil && e.Config.Install.RequirementFiles != nil {
		in.RequirementFiles = e.Config.Install.RequirementFiles
	}
	return in
}

// ProjectRoot resolves --root, then config (which carries GPUSETUP_PROJECT_ROOT).
func (e *Env) ProjectRoot(args Args) string {
	if args.Root != "" {
		return args.Root
	}
	if e.Config != nil && e.Config.Install.ProjectRoot != "" {
		return e.Config.Install.ProjectRoot
	}
	return "."
}

// =============================================================================
// SHARED OUTPUT
// =============================================================================

// PrintBanner prints a "=" framed title.
func PrintBanner(w io.Writer, title string) {
	fmt.Fprintln(w, RenderSeparator("=", ReportWidth))
	fmt.Fprintln(w, "  "+RenderConditional(TitleStyle, title))
	fmt.Fprintln(w, RenderSeparator("=", ReportWidth))
}

// PrintDetectionSummary prints the detected hardware and plan warnings.
func PrintDetectionSummary(w io.Writer, rec detect.HardwareRecord, p plan.InstallPlan) {
	label := rec.Vendor.Label()
	if rec.Vendor == detect.VendorNone {
		label = detect.CPUOnlyName
	}
	fmt.Fprintf(w, "  Detected: %s - %s\n", label, rec.Name)
	fmt.Fprintf(w, "  Backend:  %s\n", rec.Backend)
	for _, warning := range p.Warnings {
		fmt.Fprintf(w, "  %s %s\n", RenderConditional(WarningStyle, "WARNING:"), warning)
	}
}

// PrintInstallSummary prints the closing lines of an install run.
func PrintInstallSummary(w io.Writer, report *install.Report, p plan.InstallPlan) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, RenderSeparator("=", ReportWidth))
	if report.OK() {
		fmt.Fprintln(w, "  "+RenderConditional(SuccessStyle, "Installation complete!"))
	} else {
		log.Warn().Int("failed", report.Failed()).Str("run_id", report.RunID).Msg("install finished with failures")
		fmt.Fprintf(w, "  %s\n", RenderConditional(WarningStyle,
			fmt.Sprintf("Installation finished with %d failed step(s):", report.Failed())))
		for _, step := range report.Steps {
			if !step.OK() {
				fmt.Fprintf(w, "    %s %s\n", RenderStatus("fail"), step)
			}
		}
	}
	fmt.Fprintf(w, "  Device config: %s\n", p.DeviceConfig.Device)
	if report.DryRun {
		fmt.Fprintln(w, "  "+RenderConditional(DimStyle, "(dry run: nothing was installed)"))
	}
	fmt.Fprintln(w, RenderSeparator("=", ReportWidth))
}
