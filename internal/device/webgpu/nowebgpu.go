//go:build !windows

// Package webgpu implements the WebGPU device for the grid-transfer kernels.
// This build has no WebGPU support; New always fails with device.ErrUnavailable.
package webgpu

import (
	"github.com/born-ml/hpcg/internal/device"
	"github.com/born-ml/hpcg/internal/parallel"
)

// Backend is unavailable in this build.
type Backend struct{}

// Compile-time check that Backend implements device.Backend.
var _ device.Backend = (*Backend)(nil)

// New reports that WebGPU is not available in this build.
func New(_ parallel.LaunchConfig) (*Backend, error) {
	return nil, device.ErrUnavailable
}

// IsAvailable reports false in this build.
func IsAvailable() bool { return false }

func (b *Backend) Name() string { return "WebGPU (unavailable)" }
func (b *Backend) Kind() device.Kind { return device.WebGPU }
func (b *Backend) SetMemoryLimit(_ uint64) {}
func (b *Backend) MemoryStats() device.MemoryStats { return device.MemoryStats{} }
func (b *Backend) Release() {}

func (b *Backend) NewIndexBuffer(int) (device.IndexBuffer, error) { return nil, device.ErrUnavailable }
func (b *Backend) NewValueBuffer(int) (device.ValueBuffer, error) { return nil, device.ErrUnavailable }
func (b *Backend) InjectionMap(device.InjectionArgs) error { return device.ErrUnavailable }

func (b *Backend) Prolongate(device.TransferArgs, device.ValueBuffer, device.ValueBuffer) error {
	return device.ErrUnavailable
}

func (b *Backend) Restrict(device.TransferArgs, device.ValueBuffer, device.ValueBuffer, device.ValueBuffer) error {
	return device.ErrUnavailable
}
