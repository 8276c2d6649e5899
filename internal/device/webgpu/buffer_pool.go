//go:build windows

package webgpu

import (
	"sync"

	"github.com/go-webgpu/webgpu/wgpu"
)

// maxPooledBytes caps the bytes kept alive by the pool while unused.
const maxPooledBytes = 256 << 20

// poolKey identifies interchangeable buffers. Sizes match exactly so binding
// ranges always equal the logical array length.
type poolKey struct {
	size  uint64
	usage wgpu.BufferUsage
}

// PoolStats reports buffer pool activity.
type PoolStats struct {
	Created     uint64 // Buffers created on the device.
	Returned    uint64 // Buffers handed back to the pool.
	Hits        uint64
	Misses      uint64
	Pooled      int    // Buffers currently idle in the pool.
	PooledBytes uint64 // Bytes currently idle in the pool.
}

// BufferPool recycles device buffers between levels of a hierarchy, which
// allocate many arrays of the same few sizes.
type BufferPool struct {
	device *wgpu.Device

	mu    sync.Mutex
	free  map[poolKey][]*wgpu.Buffer
	stats PoolStats
}

// NewBufferPool creates an empty pool for dev.
func NewBufferPool(dev *wgpu.Device) *BufferPool {
	return &BufferPool{device: dev, free: make(map[poolKey][]*wgpu.Buffer)}
}

// Acquire returns an idle buffer of exactly size bytes and the given usage,
// or creates one. Contents of a recycled buffer are unspecified.
func (p *BufferPool) Acquire(size uint64, usage wgpu.BufferUsage) *wgpu.Buffer {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := poolKey{size: size, usage: usage}
	if list := p.free[key]; len(list) > 0 {
		buf := list[len(list)-1]
		p.free[key] = list[:len(list)-1]
		p.stats.Hits++
		p.stats.Pooled--
		p.stats.PooledBytes -= size
		return buf
	}

	p.stats.Misses++
	p.stats.Created++
	return p.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: usage,
		Size:  size,
	})
}

// Release hands buf back for reuse, or destroys it when the pool is full.
func (p *BufferPool) Release(buf *wgpu.Buffer, size uint64, usage wgpu.BufferUsage) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stats.Returned++
	if p.stats.PooledBytes+size > maxPooledBytes {
		buf.Release()
		return
	}
	key := poolKey{size: size, usage: usage}
	p.free[key] = append(p.free[key], buf)
	p.stats.Pooled++
	p.stats.PooledBytes += size
}

// Clear destroys every idle buffer.
func (p *BufferPool) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for key, list := range p.free {
		for _, buf := range list {
			buf.Release()
		}
		delete(p.free, key)
	}
	p.stats.Pooled = 0
	p.stats.PooledBytes = 0
}

// Stats returns a snapshot of pool activity.
func (p *BufferPool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}
