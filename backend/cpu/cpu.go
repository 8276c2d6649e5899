// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides the pure Go CPU device for the grid-transfer kernels.
//
// Kernels run as goroutine launches over the same block/grid decomposition a
// GPU would use, so results match the WebGPU device entry for entry (up to
// the WebGPU device's float32 storage).
//
// Example:
//
//	import (
//	    "github.com/born-ml/hpcg/backend/cpu"
//	    "github.com/born-ml/hpcg/multigrid"
//	)
//
//	func main() {
//	    be := cpu.New()
//	    fine, err := multigrid.NewLevel(ctx, be, params, multigrid.Options{})
//	}
package cpu

import (
	"github.com/born-ml/hpcg/device"
	internalcpu "github.com/born-ml/hpcg/internal/device/cpu"
)

// Backend is the CPU device.
type Backend = internalcpu.Backend

// Config controls the CPU device: worker pool, launch geometry and an
// optional memory limit.
type Config = internalcpu.Config

// Compile-time check that Backend implements device.Backend.
var _ device.Backend = (*Backend)(nil)

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return internalcpu.DefaultConfig()
}

// New creates a CPU device with the default configuration.
func New() *Backend {
	return internalcpu.New()
}

// NewWithConfig creates a CPU device.
func NewWithConfig(cfg Config) *Backend {
	return internalcpu.NewWithConfig(cfg)
}
