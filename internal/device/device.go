// Package device defines the compute-device abstraction used by the grid-transfer kernels.
package device

import (
	"errors"
	"sync"
)

// Kind identifies the compute device family.
type Kind int

// Supported compute devices.
const (
	CPU Kind = iota
	WebGPU
)

// String returns a human-readable device name.
func (k Kind) String() string {
	switch k {
	case CPU:
		return "CPU"
	case WebGPU:
		return "WebGPU"
	default:
		return "Unknown"
	}
}

// Sentinel errors shared by all backends.
var (
	ErrOutOfMemory = errors.New("device: out of memory")
	ErrUnavailable = errors.New("device: backend not available")
	ErrReleased    = errors.New("device: buffer already released")
	ErrSize        = errors.New("device: size mismatch")
	ErrKernel      = errors.New("device: kernel failed")
)

// IndexBuffer is an owning handle to a device-resident array of local indices.
// Release is idempotent; a released buffer must not be used.
type IndexBuffer interface {
	Len() int
	Read() ([]int32, error)
	Write(data []int32) error
	Fill(v int32) error
	Release()
}

// ValueBuffer is an owning handle to a device-resident array of reals.
type ValueBuffer interface {
	Len() int
	Read() ([]float64, error)
	Write(data []float64) error
	Release()
}

// InjectionArgs describes one launch of the injection-map kernel.
type InjectionArgs struct {
	NXC, NYC, NZC int32 // Coarse extents.
	NXF, NYF, NZF int64 // Fine extents.
	F2C, C2F      IndexBuffer
}

// TransferArgs describes one launch of a prolongation or restriction kernel.
// PermFine and PermCoarse may be nil, meaning identity.
type TransferArgs struct {
	N          int // Number of coarse units.
	F2C        IndexBuffer
	PermFine   IndexBuffer
	PermCoarse IndexBuffer
}

// Backend executes grid-transfer kernels on a compute device.
// Every kernel call returns only after the device has finished it, and a
// failure on the device is reported as ErrKernel.
type Backend interface {
	Name() string
	Kind() Kind

	NewIndexBuffer(n int) (IndexBuffer, error)
	NewValueBuffer(n int) (ValueBuffer, error)

	// InjectionMap writes f2c[c] = f and c2f[f] = c for every coarse cell c
	// and the fine cell f at twice its coordinates.
	InjectionMap(args InjectionArgs) error

	// Prolongate computes fine[permF[f2c[i]]] += coarse[permC[i]] for i < N.
	Prolongate(args TransferArgs, coarse, fine ValueBuffer) error

	// Restrict computes coarse[permC[i]] = rf[permF[f2c[i]]] - axf[permF[f2c[i]]] for i < N.
	Restrict(args TransferArgs, rf, axf, coarse ValueBuffer) error

	MemoryStats() MemoryStats
	Release()
}

// MemoryStats represents device memory usage statistics.
type MemoryStats struct {
	// Bytes currently held by live buffers.
	AllocatedBytes uint64
	// Peak of AllocatedBytes since backend creation.
	PeakBytes uint64
	// Number of currently live buffers.
	ActiveBuffers int64
	// Number of allocations since backend creation.
	Allocations uint64
}

// Tracker records buffer allocations for a backend. The zero value is ready to use.
type Tracker struct {
	mu    sync.Mutex
	stats MemoryStats
	limit uint64
}

// SetLimit caps the bytes that may be live at once. Zero disables the cap.
func (t *Tracker) SetLimit(limit uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.limit = limit
}

// Reserve records an allocation of size bytes, or returns ErrOutOfMemory
// if it would exceed the limit.
func (t *Tracker) Reserve(size uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.limit > 0 && t.stats.AllocatedBytes+size > t.limit {
		return ErrOutOfMemory
	}
	t.stats.AllocatedBytes += size
	t.stats.ActiveBuffers++
	t.stats.Allocations++
	if t.stats.AllocatedBytes > t.stats.PeakBytes {
		t.stats.PeakBytes = t.stats.AllocatedBytes
	}
	return nil
}

// Free records the release of size bytes.
func (t *Tracker) Free(size uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stats.AllocatedBytes >= size {
		t.stats.AllocatedBytes -= size
	}
	t.stats.ActiveBuffers--
}

// Stats returns a snapshot of the recorded statistics.
func (t *Tracker) Stats() MemoryStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats
}

// Release releases every non-nil buffer in order. It is meant for deferred
// cleanup on failure paths.
func Release(bufs ...interface{ Release() }) {
	for _, b := range bufs {
		if b != nil {
			b.Release()
		}
	}
}
