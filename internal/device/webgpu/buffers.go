//go:build windows

package webgpu

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/born-ml/hpcg/internal/device"
	"github.com/go-webgpu/webgpu/wgpu"
)

const storageUsage = wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst

// alignedSize returns the byte size of n 4-byte elements, at least 4 bytes.
func alignedSize(n int) uint64 {
	size := uint64(n) * 4 //nolint:gosec // G115: n is non-negative.
	if size < 4 {
		size = 4
	}
	return size
}

// NewIndexBuffer allocates a zeroed index buffer of n entries.
func (b *Backend) NewIndexBuffer(n int) (device.IndexBuffer, error) {
	if n < 0 {
		return nil, fmt.Errorf("webgpu: negative index buffer length %d", n)
	}
	size := alignedSize(n)
	if err := b.tracker.Reserve(size); err != nil {
		return nil, fmt.Errorf("webgpu: allocate %d index entries: %w", n, err)
	}
	ib := &gpuIndexBuffer{buffer: b.bufferPool.Acquire(size, storageUsage), n: n, size: size, owner: b}
	b.writeBuffer(ib.buffer, make([]byte, size))
	return ib, nil
}

// NewValueBuffer allocates a zeroed value buffer of n entries.
// Values are stored as f32 on the device; WGSL core has no f64.
func (b *Backend) NewValueBuffer(n int) (device.ValueBuffer, error) {
	if n < 0 {
		return nil, fmt.Errorf("webgpu: negative value buffer length %d", n)
	}
	size := alignedSize(n)
	if err := b.tracker.Reserve(size); err != nil {
		return nil, fmt.Errorf("webgpu: allocate %d values: %w", n, err)
	}
	vb := &gpuValueBuffer{buffer: b.bufferPool.Acquire(size, storageUsage), n: n, size: size, owner: b}
	b.writeBuffer(vb.buffer, make([]byte, size))
	return vb, nil
}

type gpuIndexBuffer struct {
	buffer *wgpu.Buffer
	n      int
	size   uint64
	owner  *Backend
}

func (ib *gpuIndexBuffer) Len() int { return ib.n }

func (ib *gpuIndexBuffer) Read() ([]int32, error) {
	if ib.owner == nil {
		return nil, device.ErrReleased
	}
	raw, err := ib.owner.readBuffer(ib.buffer, ib.size)
	if err != nil {
		return nil, fmt.Errorf("webgpu: read index buffer: %w", err)
	}
	out := make([]int32, ib.n)
	for i := range out {
		out[i] = int32(binary.LittleEndian.Uint32(raw[4*i:])) //nolint:gosec // G115: bit reinterpretation.
	}
	return out, nil
}

func (ib *gpuIndexBuffer) Write(data []int32) error {
	if ib.owner == nil {
		return device.ErrReleased
	}
	if len(data) != ib.n {
		return fmt.Errorf("webgpu: write %d entries into buffer of %d: %w", len(data), ib.n, device.ErrSize)
	}
	raw := make([]byte, ib.size)
	for i, v := range data {
		binary.LittleEndian.PutUint32(raw[4*i:], uint32(v)) //nolint:gosec // G115: bit reinterpretation.
	}
	ib.owner.writeBuffer(ib.buffer, raw)
	return nil
}

func (ib *gpuIndexBuffer) Fill(v int32) error {
	data := make([]int32, ib.n)
	for i := range data {
		data[i] = v
	}
	return ib.Write(data)
}

func (ib *gpuIndexBuffer) Release() {
	if ib.owner == nil {
		return
	}
	if ib.owner.bufferPool != nil {
		ib.owner.bufferPool.Release(ib.buffer, ib.size, storageUsage)
	}
	ib.owner.tracker.Free(ib.size)
	ib.owner = nil
	ib.buffer = nil
}

type gpuValueBuffer struct {
	buffer *wgpu.Buffer
	n      int
	size   uint64
	owner  *Backend
}

func (vb *gpuValueBuffer) Len() int { return vb.n }

func (vb *gpuValueBuffer) Read() ([]float64, error) {
	if vb.owner == nil {
		return nil, device.ErrReleased
	}
	raw, err := vb.owner.readBuffer(vb.buffer, vb.size)
	if err != nil {
		return nil, fmt.Errorf("webgpu: read value buffer: %w", err)
	}
	out := make([]float64, vb.n)
	for i := range out {
		out[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(raw[4*i:])))
	}
	return out, nil
}

func (vb *gpuValueBuffer) Write(data []float64) error {
	if vb.owner == nil {
		return device.ErrReleased
	}
	if len(data) != vb.n {
		return fmt.Errorf("webgpu: write %d values into buffer of %d: %w", len(data), vb.n, device.ErrSize)
	}
	raw := make([]byte, vb.size)
	for i, v := range data {
		binary.LittleEndian.PutUint32(raw[4*i:], math.Float32bits(float32(v)))
	}
	vb.owner.writeBuffer(vb.buffer, raw)
	return nil
}

func (vb *gpuValueBuffer) Release() {
	if vb.owner == nil {
		return
	}
	if vb.owner.bufferPool != nil {
		vb.owner.bufferPool.Release(vb.buffer, vb.size, storageUsage)
	}
	vb.owner.tracker.Free(vb.size)
	vb.owner = nil
	vb.buffer = nil
}

func (b *Backend) indexBuffer(buf device.IndexBuffer) (*gpuIndexBuffer, error) {
	ib, ok := buf.(*gpuIndexBuffer)
	if !ok || ib == nil {
		return nil, fmt.Errorf("buffer %T does not belong to the WebGPU backend", buf)
	}
	if ib.owner != b {
		return nil, device.ErrReleased
	}
	return ib, nil
}

func (b *Backend) valueBuffer(buf device.ValueBuffer) (*gpuValueBuffer, error) {
	vb, ok := buf.(*gpuValueBuffer)
	if !ok || vb == nil {
		return nil, fmt.Errorf("buffer %T does not belong to the WebGPU backend", buf)
	}
	if vb.owner != b {
		return nil, device.ErrReleased
	}
	return vb, nil
}
