// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// check_cmd.go - GPU and PyTorch status.
//
// Command: check
// Short:   Show the detected GPU and what the installed PyTorch can use
// Aliases: status, s
//
// The check only reads: it runs the detector and asks the interpreter
// whether torch imports. Nothing is installed.

package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/gpusetup/internal/detect"
	"github.com/jeranaias/gpusetup/internal/install"
)

// ROCmDocsURL is where users are sent to install ROCm.
const ROCmDocsURL = "https://rocm.docs.amd.com/"

// CheckData is the JSON payload of "gpusetup check --json".
type CheckData struct {
	GPU      detect.HardwareRecord `json:"gpu"`
	Device   string                `json:"device"`
	Torch    install.TorchStatus   `json:"torch"`
	Ready    bool                  `json:"ready"`
	Guidance []string              `json:"guidance"`
}

// HandleCheck handles the "check" command.
// CANCELLATION: Context enables timeout and cancellation
func HandleCheck(ctx context.Context, env *Env, args Args) error {
	rec := env.detector().Detect(ctx)
	python := env.python()
	st := install.InspectTorch(ctx, env.inspector(), python)
	installCmd := env.generator().Recommend(rec).TorchInstall

	ready, guidance := assessTorch(rec, st, python, installCmd)

	if args.JSON {
		data := CheckData{GPU: rec, Device: rec.Device(), Torch: st, Ready: ready, Guidance: guidance}
		return NewJSONResponse("check", data).Write(env.Out, env.Color)
	}

	w := env.Out
	fmt.Fprintln(w)
	fmt.Fprintln(w, RenderConditional(TitleStyle, "GPU Status"))
	fmt.Fprintln(w, RenderSeparator("=", ReportWidth))
	printField(w, "Python Version:", orDash(st.PythonVersion))
	printField(w, "GPU Vendor:", rec.Vendor.Label())
	printField(w, "GPU Model:", rec.Name)
	printField(w, "Backend:", string(rec.Backend))
	if rec.VRAMMB > 0 {
		printField(w, "VRAM:", fmt.Sprintf("%d MB (%.1f GB)", rec.VRAMMB, rec.VRAMGB()))
	}
	if rec.DriverVersion != "" {
		printField(w, "Driver:", rec.DriverVersion)
	}
	if st.Installed {
		printField(w, "PyTorch Version:", st.Version)
	}
	fmt.Fprintln(w, RenderSeparator("-", ReportWidth))

	md := strings.Join(guidance, "\n\n") + "\n"
	if env.Color {
		md = renderMarkdown(md)
	}
	fmt.Fprint(w, md)
	return nil
}

func printField(w io.Writer, label, value string) {
	fmt.Fprintf(w, "  %s %s\n",
		RenderConditional(LabelStyle, fmt.Sprintf("%-16s", label)),
		RenderConditional(ValueStyle, value))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// assessTorch decides whether the installed torch can use the detected
// hardware and returns markdown guidance paragraphs.
func assessTorch(rec detect.HardwareRecord, st install.TorchStatus, python, installCmd string) (bool, []string) {
	if !st.PythonFound {
		return false, []string{
			fmt.Sprintf("**Python not found.** `%s` could not be run.", python),
			"Install Python 3.9 or newer, or set `GPUSETUP_PYTHON` to the interpreter to use.",
		}
	}
	if !st.Inspected {
		return false, []string{
			fmt.Sprintf("**Could not inspect PyTorch.** `%s` timed out or crashed while importing torch.", python),
			"Run `" + python + " -c \"import torch\"` to see the error, or raise `probe.inspect_timeout_secs`.",
		}
	}
	if !st.Installed {
		return false, []string{
			"**PyTorch not installed.**",
			"Run: `gpusetup install`",
		}
	}
	if st.Error != "" {
		return false, []string{
			"**PyTorch is installed but failed to import.**",
			"- Error: `" + st.Error + "`",
			"Reinstall PyTorch for this machine:",
			"`" + installCmd + "`",
		}
	}

	switch rec.Vendor {
	case detect.VendorNvidia:
		lines := []string{fmt.Sprintf("- CUDA Available: `%t`", st.CUDAAvailable)}
		if !st.CUDAAvailable {
			return false, []string{lines[0], "Reinstall PyTorch with CUDA:", "`" + installCmd + "`"}
		}
		lines = append(lines, "- CUDA Version: `"+orDash(st.CUDAVersion)+"`")
		if st.DeviceName != "" {
			lines = append(lines, "- Device: "+st.DeviceName)
		}
		return true, []string{strings.Join(lines, "\n")}

	case detect.VendorAMD:
		// ROCm builds expose HIP through torch.cuda.
		avail := fmt.Sprintf("- ROCm/HIP Available: `%t`", st.CUDAAvailable)
		if st.CUDAAvailable {
			lines := []string{avail}
			if st.HIPVersion != "" {
				lines = append(lines, "- HIP Version: `"+st.HIPVersion+"`")
			}
			if st.DeviceName != "" {
				lines = append(lines, "- Device: "+st.DeviceName)
			}
			return true, []string{strings.Join(lines, "\n")}
		}
		if rec.ROCmAvailable {
			return false, []string{avail, "ROCm is installed but PyTorch does not see it. Reinstall PyTorch for ROCm:", "`" + installCmd + "`"}
		}
		return false, []string{avail, "Install ROCm: " + ROCmDocsURL}

	case detect.VendorApple:
		avail := fmt.Sprintf("- MPS Available: `%t`", st.MPSAvailable)
		if st.MPSAvailable {
			return true, []string{avail, "Apple Silicon GPU acceleration is ready."}
		}
		return false, []string{avail, "MPS not available. Ensure PyTorch >= 2.0 on macOS 12.3+."}

	default:
		return true, []string{"Running in CPU-only mode."}
	}
}

// =============================================================================
// MARKDOWN RENDERING
// =============================================================================

// renderMarkdown renders markdown for terminal display.
// Returns the original content if rendering fails.
// USABILITY: Renders guidance with formatting when stdout is a terminal.
func renderMarkdown(content string) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(min(GetTerminalWidth(), DefaultTerminalWidth)),
	)
	if err != nil {
		return content
	}
	rendered, err := r.Render(content)
	if err != nil {
		return content
	}
	return rendered
}
