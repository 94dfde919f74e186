// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// detect_cmd.go - Detect command implementation.
//
// Command: detect (default)
// Short:   Detect the GPU and print the recommended PyTorch install
// Aliases: d
//
// Examples:
//   gpusetup                      Bordered hardware report
//   gpusetup --json               {gpu, recommendations} document
//   gpusetup detect --copy        Also copy the install command

package cli

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/jeranaias/gpusetup/internal/detect"
	"github.com/jeranaias/gpusetup/internal/plan"
)

// DetectGPU is the "gpu" object of the detect JSON document: the hardware
// record plus the derived device, platform and wheel index.
type DetectGPU struct {
	detect.HardwareRecord
	Device        string `json:"device"`
	Platform      string `json:"platform"`
	TorchIndexURL string `json:"torch_index_url"`
}

// DetectDocument is the JSON written by "gpusetup --json".
type DetectDocument struct {
	GPU             DetectGPU        `json:"gpu"`
	Recommendations plan.InstallPlan `json:"recommendations"`
}

// NewDetectDocument assembles the JSON document for rec and p.
func NewDetectDocument(rec detect.HardwareRecord, p plan.InstallPlan, platform string) DetectDocument {
	return DetectDocument{
		GPU: DetectGPU{
			HardwareRecord: rec,
			Device:         rec.Device(),
			Platform:       platform,
			TorchIndexURL:  p.IndexURL,
		},
		Recommendations: p,
	}
}

// HandleDetect handles the "detect" command.
// CANCELLATION: Context enables timeout and cancellation
func HandleDetect(ctx context.Context, env *Env, args Args) error {
	rec := env.detector().Detect(ctx)
	p := env.generator().Recommend(rec)
	log.Debug().Str("record", rec.String()).Str("install", p.TorchInstall).Msg("detection complete")

	if args.JSON {
		if err := WriteJSON(env.Out, NewDetectDocument(rec, p, env.platform()), env.Color); err != nil {
			return NewCommandError("detect", "write", "could not write JSON", err)
		}
	} else {
		RenderReport(env.Out, env.platformLabel(), rec, p)
	}

	if args.Copy {
		return copyInstallCommand(env, p.TorchInstall)
	}
	return nil
}

// copyInstallCommand puts cmd on the clipboard. The confirmation goes to
// stderr so JSON on stdout stays parseable.
func copyInstallCommand(env *Env, cmd string) error {
	if env.CopyText == nil {
		return NewCommandError("detect", "copy", "clipboard not available", nil)
	}
	if err := env.CopyText(cmd); err != nil {
		return NewCommandError("detect", "copy", "clipboard not available", err)
	}
	fmt.Fprintln(env.Err, RenderConditional(SuccessStyle, "Copied install command to clipboard."))
	return nil
}
