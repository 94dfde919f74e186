// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// report.go - The bordered hardware report printed by "gpusetup detect".

package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/gpusetup/internal/detect"
	"github.com/jeranaias/gpusetup/internal/plan"
	"github.com/jeranaias/gpusetup/internal/util"
)

// ReportWidth is the total width of the report box in columns.
const ReportWidth = 62

const (
	// reportIndent is the space between the left border and the text.
	reportIndent = 2
	// fieldLabelWidth aligns values after "Torch Device: " style labels.
	fieldLabelWidth = 15
)

// ReportTitle heads the detection report.
const ReportTitle = "GPU Hardware Detection Report"

// =============================================================================
// REPORT
// =============================================================================

// RenderReport writes the human-readable report for rec and p.
// Every line is exactly ReportWidth columns wide.
func RenderReport(w io.Writer, platformLabel string, rec detect.HardwareRecord, p plan.InstallPlan) {
	r := &boxWriter{w: w, width: ReportWidth}

	r.border()
	r.line(ReportTitle, &TitleStyle)
	r.border()

	r.field("Platform:", platformLabel)
	r.field("GPU Vendor:", rec.Vendor.Label())
	r.field("GPU Model:", rec.Name)
	if rec.VRAMMB > 0 {
		r.field("VRAM:", fmt.Sprintf("%d MB (%.1f GB)", rec.VRAMMB, rec.VRAMGB()))
	}
	if rec.DriverVersion != "" {
		r.field("Driver:", rec.DriverVersion)
	}
	if rec.CUDAAvailable {
		r.field("CUDA:", orAvailable(rec.CUDAVersion))
	}
	if rec.ROCmAvailable {
		r.field("ROCm:", orAvailable(rec.ROCmVersion))
	}
	r.field("Backend:", string(rec.Backend))
	r.border()

	r.line("Install Command:", &SectionStyle)
	r.wrapped("$ ", "  ", p.TorchInstall, &HighlightStyle)
	if len(p.SkipPackages) > 0 || len(p.ExtraPackages) > 0 || len(p.Warnings) > 0 {
		r.line("", nil)
	}
	if len(p.SkipPackages) > 0 {
		r.wrapped("Skip packages: ", "  ", strings.Join(p.SkipPackages, ", "), nil)
	}
	if len(p.ExtraPackages) > 0 {
		r.wrapped("Extra packages: ", "  ", strings.Join(p.ExtraPackages, ", "), nil)
	}
	for _, warning := range p.Warnings {
		r.wrapped("WARNING: ", "         ", warning, &WarningStyle)
	}
	r.border()

	dc := p.DeviceConfig
	r.line("Config -> device: "+dc.Device, nil)
	r.line("Config -> mixed_precision: "+string(dc.MixedPrecision), nil)
	if dc.MaxMemoryGB > 0 {
		r.line("Config -> max_memory_gb: "+strconv.FormatFloat(dc.MaxMemoryGB, 'f', -1, 64), nil)
	}
	r.line("Config -> compile_model: "+strconv.FormatBool(dc.CompileModel), nil)
	r.border()
}

func orAvailable(version string) string {
	if version == "" {
		return "Available"
	}
	return version
}

// =============================================================================
// BOX WRITER
// =============================================================================

// boxWriter draws fixed-width rows between "|" borders. Text is padded
// by display width before styling so ANSI codes never shift the border.
type boxWriter struct {
	w     io.Writer
	width int
}

// inner is the text width of a row.
func (b *boxWriter) inner() int {
	return b.width - 2 - reportIndent - 1
}

func (b *boxWriter) border() {
	fmt.Fprintln(b.w, RenderConditional(SeparatorStyle, "+"+strings.Repeat("-", b.width-2)+"+"))
}

func (b *boxWriter) row(content string) {
	edge := RenderConditional(SeparatorStyle, "|")
	fmt.Fprintf(b.w, "%s%s%s %s\n", edge, strings.Repeat(" ", reportIndent), content, edge)
}

// line writes one row, truncating text that does not fit.
func (b *boxWriter) line(text string, style *lipgloss.Style) {
	padded := util.PadRight(text, b.inner())
	if style != nil {
		padded = RenderConditional(*style, padded)
	}
	b.row(padded)
}

// field writes "Label:        value", wrapping long values under the value column.
func (b *boxWriter) field(label, value string) {
	valueWidth := b.inner() - fieldLabelWidth
	for i, part := range wrapWords(value, valueWidth) {
		l := ""
		if i == 0 {
			l = label
		}
		b.row(RenderConditional(LabelStyle, util.PadRight(l, fieldLabelWidth)) +
			RenderConditional(ValueStyle, util.PadRight(part, valueWidth)))
	}
}

// wrapped writes prefix+text across as many rows as needed, indenting
// continuation rows with cont.
func (b *boxWriter) wrapped(prefix, cont, text string, style *lipgloss.Style) {
	first := b.inner() - util.StringWidth(prefix)
	rest := b.inner() - util.StringWidth(cont)

	lines := wrapWords(text, first)
	if len(lines) > 1 {
		// Re-wrap the tail at the continuation width.
		tail := strings.Join(lines[1:], " ")
		lines = append(lines[:1], wrapWords(tail, rest)...)
	}
	for i, l := range lines {
		lead := cont
		if i == 0 {
			lead = prefix
		}
		b.line(lead+l, style)
	}
}

// wrapWords splits text into lines of at most width columns at spaces.
// A single word wider than width gets a line of its own and is truncated
// when drawn. Empty text yields one empty line.
func wrapWords(text string, width int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{""}
	}

	var lines []string
	current := words[0]
	for _, word := range words[1:] {
		if util.StringWidth(current)+1+util.StringWidth(word) <= width {
			current += " " + word
			continue
		}
		lines = append(lines, current)
		current = word
	}
	return append(lines, current)
}
