// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package plan turns a detected GPU into a PyTorch install plan.
//
// The mapping is a fixed table keyed by the record's backend:
//
//	backend  index     extras                skips         compile  precision          max memory
//	cuda     cu121     bitsandbytes>=0.42.0  -             yes      bf16 (>=8 GB)/fp16  VRAM x 0.85
//	rocm     rocm6.1   -                     bitsandbytes  yes      fp16               VRAM x 0.85, else 4.0
//	mps      default   -                     bitsandbytes  no       fp16               VRAM x 0.5, else 8.0
//	cpu      cpu       -                     bitsandbytes  no       fp32               0
//
// # Key Types
//
//   - InstallPlan: runtime install command, index, extra and skipped packages, warnings
//   - DeviceConfig: device, compile flag, mixed precision, memory budget in GB
//   - Generator: applies the table with a configurable set of wheel indexes
//
// # Usage
//
//	gen := plan.NewGenerator(plan.DefaultIndexes())
//	p := gen.Recommend(rec)
//	fmt.Println(p.TorchInstall)
package plan
