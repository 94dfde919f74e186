// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package detect

import "context"

// detectIntel matches Intel display hardware. Integrated and Arc GPUs both
// install the CPU build.
func (d *Detector) detectIntel(ctx context.Context) (HardwareRecord, bool) {
	name, ok := d.findDisplayAdapter(ctx, intelKeywords)
	if !ok {
		return HardwareRecord{}, false
	}
	rec := newRecord(VendorIntel)
	rec.Name = name
	return rec, true
}
