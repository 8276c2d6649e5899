// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package webgpu provides the WebGPU device for the grid-transfer kernels.
//
// Kernels are WGSL compute shaders. Values are stored as float32 on the
// device since core WGSL has no float64. Builds without WebGPU support get a
// device whose New always fails with device.ErrUnavailable.
//
// Example:
//
//	var be device.Backend
//	if webgpu.IsAvailable() {
//	    gpu, err := webgpu.New(webgpu.DefaultLaunchConfig())
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    defer gpu.Release()
//	    be = gpu
//	} else {
//	    be = cpu.New()
//	}
package webgpu

import (
	"github.com/born-ml/hpcg/device"
	internalwebgpu "github.com/born-ml/hpcg/internal/device/webgpu"
	"github.com/born-ml/hpcg/internal/parallel"
)

// Backend is the WebGPU device.
type Backend = internalwebgpu.Backend

// LaunchConfig is the workgroup geometry of the kernels.
type LaunchConfig = parallel.LaunchConfig

// Compile-time check that Backend implements device.Backend.
var _ device.Backend = (*Backend)(nil)

// New initializes the GPU and returns a device ready for kernel launches.
// Call Release when done to free GPU resources.
//
// Returns an error wrapping device.ErrUnavailable if no compatible GPU is found.
func New(launch LaunchConfig) (*Backend, error) {
	return internalwebgpu.New(launch)
}

// IsAvailable reports whether a WebGPU adapter can be obtained.
func IsAvailable() bool {
	return internalwebgpu.IsAvailable()
}

// DefaultLaunchConfig returns the default workgroup geometry.
func DefaultLaunchConfig() LaunchConfig {
	return parallel.DefaultLaunchConfig()
}
