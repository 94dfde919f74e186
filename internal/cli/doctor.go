// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// doctor.go - Doctor command implementation for gpusetup.
//
// CLI: Comprehensive help and examples for all commands
//
// Command: doctor
// Short:   Check the tools gpusetup relies on
// Aliases: diag
//
// Examples:
//   gpusetup doctor                Run all health checks
//   gpusetup doctor --json         Health check results in JSON
//
// Health Checks Performed:
//   1. GPU Detected       - Result of the detector
//   2. Vendor tools       - nvidia-smi, nvcc, rocm-smi and the platform's
//                           display listing tool
//   3. Python             - The configured interpreter runs
//   4. pip                - "python -m pip --version" works
//   5. Requirement files  - Each configured file exists under the root
//   6. Config Valid       - The config file loaded and validated
//
// A vendor tool that the detected hardware does not need is reported as
// skipped, never as a failure.
//
// Exit Codes:
//   0   No check failed
//   1   One or more checks failed

package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/gpusetup/internal/config"
	"github.com/jeranaias/gpusetup/internal/detect"
	"github.com/jeranaias/gpusetup/internal/install"
)

// =============================================================================
// DOCTOR STYLES
// =============================================================================

var (
	// Doctor title style
	doctorTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("39")). // Cyan
				MarginBottom(1)

	// Check message style
	checkMsgStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	// Fix suggestion style
	fixStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Italic(true)
)

// =============================================================================
// HEALTH CHECK TYPES
// =============================================================================

// CheckStatus represents the status of a health check.
type CheckStatus int

const (
	// CheckPass indicates the check passed successfully.
	CheckPass CheckStatus = iota
	// CheckSkip indicates the check does not apply to this machine.
	CheckSkip
	// CheckWarn indicates a non-critical issue.
	CheckWarn
	// CheckFail indicates the check failed.
	CheckFail
)

// String returns the string representation of the check status.
func (s CheckStatus) String() string {
	switch s {
	case CheckPass:
		return "pass"
	case CheckSkip:
		return "skip"
	case CheckWarn:
		return "warn"
	case CheckFail:
		return "fail"
	default:
		return "unknown"
	}
}

// Symbol returns the bracketed tag for the check status.
func (s CheckStatus) Symbol() string {
	switch s {
	case CheckPass:
		return RenderConditional(SuccessStyle, "[OK]")
	case CheckSkip:
		return RenderConditional(DimStyle, "[--]")
	case CheckWarn:
		return RenderConditional(WarningStyle, "[!!]")
	case CheckFail:
		return RenderConditional(ErrorStyle, "[FAIL]")
	default:
		return "?"
	}
}

// HealthCheck represents a single health check result.
type HealthCheck struct {
	Name    string
	Status  CheckStatus
	Message string
	Fix     string // Suggested fix command or instruction
}

// Render returns a formatted string representation of the health check.
func (c *HealthCheck) Render() string {
	result := fmt.Sprintf("%s %s", c.Status.Symbol(), RenderConditional(checkMsgStyle, c.Message))
	if (c.Status == CheckWarn || c.Status == CheckFail) && c.Fix != "" {
		result += "\n       " + RenderConditional(fixStyle, "-> "+c.Fix)
	}
	return result
}

// =============================================================================
// HANDLE DOCTOR
// =============================================================================

// HandleDoctor handles the "doctor" command.
// CANCELLATION: Context enables timeout and cancellation
func HandleDoctor(ctx context.Context, env *Env, args Args) error {
	checks := runAllChecks(ctx, env)
	summary := summarize(checks)

	if args.JSON {
		return handleDoctorJSON(env, checks, summary)
	}

	w := env.Out
	fmt.Fprintln(w)
	fmt.Fprintln(w, RenderConditional(doctorTitleStyle, "gpusetup Doctor"))
	fmt.Fprintln(w, RenderSeparator("=", ReportWidth))
	for _, check := range checks {
		fmt.Fprintln(w, check.Render())
	}
	fmt.Fprintln(w, RenderSeparator("-", ReportWidth))

	parts := []string{fmt.Sprintf("%d passed", summary.Passed)}
	if summary.Warned > 0 {
		parts = append(parts, RenderConditional(WarningStyle, fmt.Sprintf("%d warning", summary.Warned)))
	}
	if summary.Failed > 0 {
		parts = append(parts, RenderConditional(ErrorStyle, fmt.Sprintf("%d failed", summary.Failed)))
	}
	fmt.Fprintln(w, RenderConditional(DimStyle, strings.Join(parts, ", ")))
	fmt.Fprintln(w)

	if summary.Failed > 0 {
		return NewCommandError("doctor", "check", fmt.Sprintf("%d health check(s) failed", summary.Failed), nil)
	}
	return nil
}

func summarize(checks []*HealthCheck) DoctorSummary {
	var s DoctorSummary
	for _, check := range checks {
		switch check.Status {
		case CheckPass:
			s.Passed++
		case CheckWarn:
			s.Warned++
		case CheckFail:
			s.Failed++
		}
	}
	s.Healthy = s.Failed == 0
	return s
}

// handleDoctorJSON outputs doctor results in JSON format.
func handleDoctorJSON(env *Env, checks []*HealthCheck, summary DoctorSummary) error {
	jsonChecks := make([]DoctorCheck, 0, len(checks))
	for _, check := range checks {
		jsonChecks = append(jsonChecks, DoctorCheck{
			Name:    check.Name,
			Status:  check.Status.String(),
			Message: check.Message,
			Fix:     check.Fix,
		})
	}

	resp := NewJSONResponse("doctor", DoctorData{Checks: jsonChecks, Summary: summary})
	if summary.Failed > 0 {
		resp.Fail(fmt.Sprintf("%d health check(s) failed", summary.Failed))
	}
	if err := resp.Write(env.Out, env.Color); err != nil {
		return err
	}
	if summary.Failed > 0 {
		return NewCommandError("doctor", "check", fmt.Sprintf("%d health check(s) failed", summary.Failed), nil)
	}
	return nil
}

// =============================================================================
// HEALTH CHECK FUNCTIONS
// =============================================================================

// vendorTool is an external program the detector may call.
type vendorTool struct {
	name   string
	vendor detect.Vendor // VendorNone means every machine on the platform needs it
	fix    string
}

// platformTools lists the tools the detector uses on goos.
func platformTools(goos string) []vendorTool {
	nvidia := vendorTool{"nvidia-smi", detect.VendorNvidia, "Install the NVIDIA driver: https://www.nvidia.com/drivers"}
	nvcc := vendorTool{"nvcc", detect.VendorNvidia, "Optional: install the CUDA toolkit for an exact CUDA version"}
	switch goos {
	case "darwin":
		return []vendorTool{
			{"system_profiler", detect.VendorNone, "system_profiler ships with macOS; check PATH"},
			{"sysctl", detect.VendorNone, "sysctl ships with macOS; check PATH"},
		}
	case "windows":
		return []vendorTool{
			nvidia, nvcc,
			{"powershell", detect.VendorNone, "Install Windows PowerShell or add it to PATH"},
		}
	default:
		return []vendorTool{
			nvidia, nvcc,
			{"rocm-smi", detect.VendorAMD, "Install ROCm: " + ROCmDocsURL},
			{"lspci", detect.VendorNone, "Install pciutils"},
		}
	}
}

// runAllChecks runs all health checks and returns the results.
func runAllChecks(ctx context.Context, env *Env) []*HealthCheck {
	rec := env.detector().Detect(ctx)

	checks := []*HealthCheck{checkGPUDetected(rec)}
	for _, tool := range platformTools(env.platform()) {
		checks = append(checks, checkTool(env, tool, rec.Vendor))
	}
	python := checkPython(ctx, env)
	checks = append(checks, python)
	if python.Status == CheckPass {
		checks = append(checks, checkPip(ctx, env))
	}
	checks = append(checks, checkRequirementFiles(env))
	checks = append(checks, checkConfigValid(env))
	return checks
}

func checkGPUDetected(rec detect.HardwareRecord) *HealthCheck {
	check := &HealthCheck{Name: "GPU Detected"}
	if rec.Vendor == detect.VendorNone {
		check.Status = CheckWarn
		check.Message = "No GPU detected; PyTorch will be installed for CPU"
		check.Fix = "Run with --verbose to see which probes failed"
		return check
	}
	check.Status = CheckPass
	check.Message = fmt.Sprintf("%s %s (backend %s)", rec.Vendor.Label(), rec.Name, rec.Backend)
	return check
}

func checkTool(env *Env, tool vendorTool, detected detect.Vendor) *HealthCheck {
	check := &HealthCheck{Name: tool.name}
	if env.LookPath != nil {
		if path, ok := env.LookPath(tool.name); ok {
			check.Status = CheckPass
			check.Message = fmt.Sprintf("%s found (%s)", tool.name, path)
			return check
		}
	}

	check.Message = tool.name + " not found"
	switch {
	case tool.vendor == detect.VendorNone:
		check.Status = CheckWarn
	case tool.vendor == detected:
		check.Status = CheckWarn
	default:
		check.Status = CheckSkip
		check.Message += fmt.Sprintf(" (only used for %s GPUs)", tool.vendor.Label())
		return check
	}
	check.Fix = tool.fix
	return check
}

func checkPython(ctx context.Context, env *Env) *HealthCheck {
	python := env.python()
	check := &HealthCheck{Name: "Python"}
	out, ok := env.Runner.Run(ctx, python, "--version")
	if !ok {
		check.Status = CheckFail
		check.Message = python + " not found"
		check.Fix = "Install Python 3.9+ or set GPUSETUP_PYTHON"
		return check
	}
	check.Status = CheckPass
	check.Message = strings.TrimSpace(out)
	return check
}

func checkPip(ctx context.Context, env *Env) *HealthCheck {
	python := env.python()
	check := &HealthCheck{Name: "pip"}
	out, ok := env.Runner.Run(ctx, python, "-m", "pip", "--version")
	if !ok {
		check.Status = CheckFail
		check.Message = "pip not available for " + python
		check.Fix = "Run: " + python + " -m ensurepip --upgrade"
		return check
	}
	// "pip 23.2.1 from /usr/lib/python3/dist-packages/pip (python 3.11)"
	fields := strings.Fields(out)
	if len(fields) >= 2 {
		check.Message = fields[0] + " " + fields[1]
	} else {
		check.Message = strings.TrimSpace(out)
	}
	check.Status = CheckPass
	return check
}

func checkRequirementFiles(env *Env) *HealthCheck {
	check := &HealthCheck{Name: "Requirement Files"}
	root := env.ProjectRoot(Args{})
	files := install.DefaultRequirementFiles
	if env.Config != nil && env.Config.Install.RequirementFiles != nil {
		files = env.Config.Install.RequirementFiles
	}
	if len(files) == 0 {
		check.Status = CheckSkip
		check.Message = "No requirement files configured"
		return check
	}

	var missing []string
	for _, f := range files {
		path := f
		if !filepath.IsAbs(path) {
			path = filepath.Join(root, f)
		}
		if !fileExists(path) {
			missing = append(missing, filepath.ToSlash(f))
		}
	}

	found := len(files) - len(missing)
	check.Message = fmt.Sprintf("%d of %d requirement files found under %s", found, len(files), root)
	if len(missing) == 0 {
		check.Status = CheckPass
		return check
	}
	check.Status = CheckWarn
	check.Message += "; missing " + strings.Join(missing, ", ")
	check.Fix = "Run from the project root or pass --root DIR to install"
	return check
}

func checkConfigValid(env *Env) *HealthCheck {
	check := &HealthCheck{Name: "Config Valid"}
	if env.ConfigErr != nil {
		check.Status = CheckFail
		check.Message = "Config error: " + env.ConfigErr.Error()
		check.Fix = "Run: gpusetup config init --force"
		return check
	}
	if env.Config == nil {
		check.Status = CheckSkip
		check.Message = "No configuration loaded"
		return check
	}
	if err := env.Config.Validate(); err != nil {
		check.Status = CheckFail
		check.Message = "Config invalid: " + err.Error()
		check.Fix = "Run: gpusetup config show"
		return check
	}
	check.Status = CheckPass
	check.Message = "Config valid"
	if path, err := env.configPath(); err == nil {
		check.Message += " (" + path + ")"
	}
	return check
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// configPath returns the file the config command reads and writes.
func (e *Env) configPath() (string, error) {
	if e.ConfigPath != "" {
		return e.ConfigPath, nil
	}
	return config.ConfigPath()
}
