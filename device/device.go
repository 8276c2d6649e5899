// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package device defines the compute-device abstraction of the grid-transfer
// kernels. Implementations live in backend/cpu and backend/webgpu.
package device

import (
	internaldevice "github.com/born-ml/hpcg/internal/device"
)

// Backend executes grid-transfer kernels on a compute device.
type Backend = internaldevice.Backend

// IndexBuffer is an owning handle to a device array of local indices.
type IndexBuffer = internaldevice.IndexBuffer

// ValueBuffer is an owning handle to a device array of reals.
type ValueBuffer = internaldevice.ValueBuffer

// Kind identifies the compute device family.
type Kind = internaldevice.Kind

// MemoryStats reports device memory usage.
type MemoryStats = internaldevice.MemoryStats

// Device kinds.
const (
	CPU    = internaldevice.CPU
	WebGPU = internaldevice.WebGPU
)

// Errors shared by all devices.
var (
	ErrOutOfMemory = internaldevice.ErrOutOfMemory
	ErrUnavailable = internaldevice.ErrUnavailable
	ErrReleased    = internaldevice.ErrReleased
	ErrSize        = internaldevice.ErrSize
	ErrKernel      = internaldevice.ErrKernel
)
