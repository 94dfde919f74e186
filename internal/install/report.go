// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package install

import "fmt"

// =============================================================================
// STEP KIND
// =============================================================================

// StepKind identifies which part of the pipeline a step belongs to.
type StepKind int

const (
	// StepRuntime installs torch, torchvision and torchaudio.
	StepRuntime StepKind = iota
	// StepRequirements installs one filtered requirements file.
	StepRequirements
	// StepExtras installs the plan's GPU-specific extras.
	StepExtras
)

// String returns the string representation of a step kind.
func (k StepKind) String() string {
	switch k {
	case StepRuntime:
		return "runtime"
	case StepRequirements:
		return "requirements"
	case StepExtras:
		return "extras"
	default:
		return "unknown"
	}
}

// =============================================================================
// STEP STATUS
// =============================================================================

// StepStatus represents the outcome of a step.
type StepStatus int

const (
	// StepPending - Step not yet run
	StepPending StepStatus = iota

	// StepComplete - pip succeeded, or the command was printed in dry-run mode
	StepComplete

	// StepFailed - pip failed or the requirements file could not be read
	StepFailed

	// StepSkipped - nothing to install (missing file or empty batch)
	StepSkipped
)

// String returns the string representation of a step status.
func (s StepStatus) String() string {
	switch s {
	case StepPending:
		return "Pending"
	case StepComplete:
		return "Complete"
	case StepFailed:
		return "Failed"
	case StepSkipped:
		return "Skipped"
	default:
		return "Unknown"
	}
}

// MarshalText renders the status in JSON output.
func (s StepStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// =============================================================================
// RESULTS
// =============================================================================

// StepResult is the outcome of one pip invocation (or skipped invocation).
type StepResult struct {
	Kind     StepKind   `json:"-"`
	Name     string     `json:"name"`
	Args     []string   `json:"args,omitempty"`
	Packages []string   `json:"packages,omitempty"`
	Skipped  []string   `json:"skipped,omitempty"`
	Status   StepStatus `json:"status"`
	Note     string     `json:"note,omitempty"`
	Err      error      `json:"-"`
}

// OK reports whether the step did not fail.
func (r StepResult) OK() bool {
	return r.Status != StepFailed
}

// String returns a one-line summary.
func (r StepResult) String() string {
	s := fmt.Sprintf("%s: %s", r.Name, r.Status)
	if r.Note != "" {
		s += " (" + r.Note + ")"
	}
	if r.Err != nil {
		s += ": " + r.Err.Error()
	}
	return s
}

// Report collects every step of an install run.
type Report struct {
	RunID  string       `json:"run_id"`
	DryRun bool         `json:"dry_run"`
	Steps  []StepResult `json:"steps"`
}

func (r *Report) add(res StepResult) {
	r.Steps = append(r.Steps, res)
}

// Failed returns the number of failed steps.
func (r *Report) Failed() int {
	count := 0
	for _, s := range r.Steps {
		if s.Status == StepFailed {
			count++
		}
	}
	return count
}

// OK reports whether no step failed.
func (r *Report) OK() bool {
	return r.Failed() == 0
}

// Errors returns the errors of failed steps.
func (r *Report) Errors() []error {
	var errs []error
	for _, s := range r.Steps {
		if s.Err != nil {
			errs = append(errs, s.Err)
		}
	}
	return errs
}
