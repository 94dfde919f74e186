// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package plan_test

import (
	"fmt"

	"github.com/jeranaias/gpusetup/internal/detect"
	"github.com/jeranaias/gpusetup/internal/plan"
)

// ExampleGenerator_Recommend shows the plan for a 16 GB NVIDIA card.
func ExampleGenerator_Recommend() {
	rec := detect.HardwareRecord{
		Vendor:        detect.VendorNvidia,
		Name:          "NVIDIA GeForce RTX 4080",
		VRAMMB:        16384,
		CUDAAvailable: true,
		Backend:       detect.BackendCUDA,
	}

	p := plan.NewGenerator(plan.DefaultIndexes()).Recommend(rec)

	fmt.Println(p.TorchInstall)
	fmt.Println("extras:", p.ExtraPackages)
	fmt.Printf("device=%s precision=%s max_memory_gb=%.1f\n",
		p.DeviceConfig.Device, p.DeviceConfig.MixedPrecision, p.DeviceConfig.MaxMemoryGB)

	// Output:
	// pip install torch torchvision torchaudio --index-url https://download.pytorch.org/whl/cu121
	// extras: [bitsandbytes>=0.42.0]
	// device=cuda precision=bf16 max_memory_gb=13.6
}

// ExampleGenerator_Recommend_cpu shows the CPU-only plan.
func ExampleGenerator_Recommend_cpu() {
	p := plan.NewGenerator(plan.DefaultIndexes()).Recommend(detect.NoneRecord())

	fmt.Println(p.TorchInstall)
	fmt.Println("skip:", p.SkipPackages)
	for _, w := range p.Warnings {
		fmt.Println("WARNING:", w)
	}

	// Output:
	// pip install torch torchvision torchaudio --index-url https://download.pytorch.org/whl/cpu
	// skip: [bitsandbytes]
	// WARNING: No GPU detected - running in CPU-only mode (slower inference)
}
