// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package install

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/jeranaias/gpusetup/internal/plan"
)

// =============================================================================
// REQUIREMENT PARSING
// =============================================================================

// Requirement is one package entry of a requirements file.
type Requirement struct {
	// Spec is the entry as passed to pip, e.g. "numpy>=1.24; python_version>='3.9'".
	Spec string
	// Name is the normalized bare package name, e.g. "numpy". Option lines
	// use the trimmed line itself.
	Name string
	// Option marks pip option lines ("-r", "-e", "--index-url", ...) and
	// local paths. They are reported but never passed to the batch.
	Option bool
}

// PERFORMANCE: Pre-compiled regex (compiled once at startup)
var (
	// requirementNameRegex captures the leading distribution name.
	requirementNameRegex = regexp.MustCompile(`^([A-Za-z0-9][A-Za-z0-9._-]*)`)
	// nameSeparatorRegex matches runs of separators folded by normalization.
	nameSeparatorRegex = regexp.MustCompile(`[-_.]+`)
)

// NormalizeName folds a distribution name for comparison: lower case with
// runs of "-", "_" and "." collapsed to "-".
func NormalizeName(name string) string {
	return nameSeparatorRegex.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
}

// ParseRequirement parses one requirements line.
//
// Blank lines and comments return false. Pip option lines and local paths
// come back with Option set. Inline comments are removed from the spec; the
// name is the text before any extras, version operator, URL or environment
// marker.
func ParseRequirement(line string) (Requirement, bool) {
	spec := stripInlineComment(strings.TrimSpace(line))
	if spec == "" || strings.HasPrefix(spec, "#") {
		return Requirement{}, false
	}

	m := requirementNameRegex.FindStringSubmatch(spec)
	if m == nil || strings.HasPrefix(spec, "-") || isLocalPath(spec, m[1]) {
		return Requirement{Spec: spec, Name: spec, Option: true}, true
	}
	return Requirement{Spec: spec, Name: NormalizeName(m[1])}, true
}

// archiveSuffixes are distribution files pip installs from a path.
var archiveSuffixes = []string{".whl", ".tar.gz", ".tgz", ".zip"}

// isLocalPath reports whether spec names a file or directory rather than a
// package. name is the leading distribution-name match.
func isLocalPath(spec, name string) bool {
	if strings.Contains(spec, " @ ") || strings.Contains(spec, "://") {
		return false
	}
	rest := spec[len(name):]
	if strings.HasPrefix(rest, "/") || strings.HasPrefix(rest, `\`) || strings.HasPrefix(rest, ":") {
		return true
	}
	lower := strings.ToLower(spec)
	for _, suffix := range archiveSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}

// stripInlineComment drops a " #" comment. A "#" without leading whitespace
// is part of a URL fragment and kept.
func stripInlineComment(s string) string {
	for i := 1; i < len(s); i++ {
		if s[i] == '#' && (s[i-1] == ' ' || s[i-1] == '\t') {
			return strings.TrimSpace(s[:i])
		}
	}
	return s
}

// ParseRequirements reads every requirement from r.
func ParseRequirements(r io.Reader) ([]Requirement, error) {
	var reqs []Requirement
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if req, ok := ParseRequirement(scanner.Text()); ok {
			reqs = append(reqs, req)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading requirements: %w", err)
	}
	return reqs, nil
}

// ReadRequirementsFile parses the file at path. The file is closed before
// returning.
func ReadRequirementsFile(path string) ([]Requirement, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reqs, err := ParseRequirements(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return reqs, nil
}

// =============================================================================
// FILTERING
// =============================================================================

// SkipReason says why a requirement was left out of a batch.
type SkipReason int

const (
	// SkipNone means the requirement is kept.
	SkipNone SkipReason = iota
	// SkipIncompatible means the plan marks the package incompatible.
	SkipIncompatible
	// SkipRuntime means the runtime step already installs the package.
	SkipRuntime
	// SkipOption means the line is a pip option or a local path.
	SkipOption
)

// String returns the string representation of a skip reason.
func (r SkipReason) String() string {
	switch r {
	case SkipNone:
		return "kept"
	case SkipIncompatible:
		return "incompatible with detected GPU"
	case SkipRuntime:
		return "installed with the runtime"
	case SkipOption:
		return "pip option or local path, install it manually"
	default:
		return "unknown"
	}
}

// Skipped is a requirement left out of a batch.
type Skipped struct {
	Requirement
	Reason SkipReason
}

// skipReason classifies a requirement against the plan.
func skipReason(req Requirement, p plan.InstallPlan) SkipReason {
	if req.Option {
		return SkipOption
	}
	for _, s := range p.SkipPackages {
		if NormalizeName(s) == req.Name {
			return SkipIncompatible
		}
	}
	for _, r := range p.RuntimePackages {
		if NormalizeName(r) == req.Name {
			return SkipRuntime
		}
	}
	if plan.IsRuntimePackage(req.Name) {
		return SkipRuntime
	}
	return SkipNone
}

// Filter splits requirements into the batch to install and the ones left out.
func Filter(reqs []Requirement, p plan.InstallPlan) (keep []Requirement, skipped []Skipped) {
	for _, req := range reqs {
		if reason := skipReason(req, p); reason != SkipNone {
			skipped = append(skipped, Skipped{Requirement: req, Reason: reason})
			continue
		}
		keep = append(keep, req)
	}
	return keep, skipped
}

// Specs returns the pip arguments for a batch.
func Specs(reqs []Requirement) []string {
	out := make([]string, len(reqs))
	for i, r := range reqs {
		out[i] = r.Spec
	}
	return out
}
