// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package detect

import (
	"context"
	"os"
	"runtime"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/jeranaias/gpusetup/internal/probe"
)

// DefaultROCmPath is used when neither the detector nor $ROCM_PATH names one.
const DefaultROCmPath = "/opt/rocm"

// Detector runs the vendor detection chain.
//
// Every external dependency is a field so detection can be exercised with
// canned probe output on any machine.
type Detector struct {
	// Runner executes probe commands.
	Runner probe.Runner
	// GOOS selects the platform-specific probes ("linux", "darwin", "windows").
	GOOS string
	// Getenv reads environment variables (ROCM_PATH).
	Getenv func(string) string
	// ReadFile reads the ROCm version marker.
	ReadFile func(string) ([]byte, error)
	// ROCmPath overrides $ROCM_PATH when non-empty.
	ROCmPath string
}

// New creates a Detector for the running platform.
func New(runner probe.Runner) *Detector {
	return &Detector{
		Runner:   runner,
		GOOS:     runtime.GOOS,
		Getenv:   os.Getenv,
		ReadFile: os.ReadFile,
	}
}

// Detect returns exactly one HardwareRecord.
//
// Vendors are tried in priority order and the first match wins:
//  1. macOS display report (Apple Silicon, or AMD discrete on Intel Macs)
//  2. NVIDIA
//  3. AMD (rocm-smi, then platform fallbacks)
//  4. Intel
//
// If nothing matches, the CPU-only record is returned.
// CANCELLATION: Context enables timeout and cancellation
func (d *Detector) Detect(ctx context.Context) HardwareRecord {
	if d.GOOS == "darwin" {
		if rec, ok := d.detectMac(ctx); ok {
			return d.found(rec)
		}
	}

	if rec, ok := d.detectNvidia(ctx); ok {
		return d.found(rec)
	}

	if rec, ok := d.detectAMD(ctx); ok {
		return d.found(rec)
	}

	if rec, ok := d.detectIntel(ctx); ok {
		return d.found(rec)
	}

	log.Debug().Msg("no GPU detected, using CPU-only record")
	return NoneRecord()
}

func (d *Detector) found(rec HardwareRecord) HardwareRecord {
	log.Debug().
		Str("vendor", string(rec.Vendor)).
		Str("name", rec.Name).
		Int("vram_mb", rec.VRAMMB).
		Str("backend", string(rec.Backend)).
		Msg("GPU detected")
	return rec
}

// run is a nil-safe wrapper around the runner.
func (d *Detector) run(ctx context.Context, name string, args ...string) (string, bool) {
	if d.Runner == nil {
		return "", false
	}
	return d.Runner.Run(ctx, name, args...)
}

func (d *Detector) getenv(key string) string {
	if d.Getenv == nil {
		return ""
	}
	return d.Getenv(key)
}

// rocmPath resolves the ROCm installation root.
func (d *Detector) rocmPath() string {
	if d.ROCmPath != "" {
		return d.ROCmPath
	}
	if p := d.getenv("ROCM_PATH"); p != "" {
		return p
	}
	return DefaultROCmPath
}

// readTrimmed reads a small text file. A missing or unreadable file yields "".
func (d *Detector) readTrimmed(path string) string {
	if d.ReadFile == nil {
		return ""
	}
	data, err := d.ReadFile(path)
	if err != nil {
		log.Debug().Err(err).Str("path", path).Msg("version file not readable")
		return ""
	}
	return strings.TrimSpace(string(data))
}

// lines splits probe output into lines, tolerating CRLF.
func lines(s string) []string {
	return strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
}

// afterLastColon returns the trimmed text after the final ':' in line.
func afterLastColon(line string) (string, bool) {
	idx := strings.LastIndex(line, ":")
	if idx < 0 {
		return "", false
	}
	return strings.TrimSpace(line[idx+1:]), true
}
