// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package detect

import (
	"regexp"
	"strconv"
	"strings"
)

// bareBytesThreshold separates unit-less byte counts from unit-less MB values.
// Anything above it is treated as bytes.
const bareBytesThreshold = 1_000_000

const bytesPerMB = 1024 * 1024

// PERFORMANCE: Pre-compiled regex (compiled once at startup)
var memoryValueRegex = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s*([A-Za-z]*)$`)

// ParseMemoryMB converts a memory quantity to megabytes.
//
// Accepted forms are a number with an optional unit: "8 GB", "8192 MB",
// "16GiB", "17179869184 B". A bare number is taken as bytes when it exceeds
// 1,000,000 and as megabytes otherwise. It returns false when the text is
// not a recognisable quantity.
func ParseMemoryMB(s string) (int, bool) {
	m := memoryValueRegex.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, false
	}
	val, err := strconv.ParseFloat(m[1], 64)
	if err != nil || val < 0 {
		return 0, false
	}

	var mb float64
	switch strings.ToLower(m[2]) {
	case "":
		if val > bareBytesThreshold {
			mb = val / bytesPerMB
		} else {
			mb = val
		}
	case "b", "byte", "bytes":
		mb = val / bytesPerMB
	case "k", "kb", "kib":
		mb = val / 1024
	case "m", "mb", "mib":
		mb = val
	case "g", "gb", "gib":
		mb = val * 1024
	case "t", "tb", "tib":
		mb = val * 1024 * 1024
	default:
		return 0, false
	}
	return int(mb), true
}
