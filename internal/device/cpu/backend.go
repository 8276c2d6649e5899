// Package cpu implements the CPU device: buffers live in host memory and
// kernels run as goroutine launches over the same block/grid decomposition
// a GPU would use.
package cpu

import (
	"fmt"

	"github.com/born-ml/hpcg/internal/device"
	"github.com/born-ml/hpcg/internal/parallel"
)

// Config controls the CPU backend.
type Config struct {
	Parallel    parallel.Config
	Launch      parallel.LaunchConfig
	MemoryLimit uint64 // Bytes; 0 means unlimited.
}

// DefaultConfig returns the default CPU backend configuration.
func DefaultConfig() Config {
	return Config{
		Parallel: parallel.DefaultConfig(),
		Launch:   parallel.DefaultLaunchConfig(),
	}
}

// Backend implements device.Backend on the host.
type Backend struct {
	cfg     Config
	tracker device.Tracker
}

// Compile-time check that Backend implements device.Backend.
var _ device.Backend = (*Backend)(nil)

// New creates a CPU backend with the default configuration.
func New() *Backend {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates a CPU backend.
func NewWithConfig(cfg Config) *Backend {
	cfg.Launch = cfg.Launch.Normalize()
	b := &Backend{cfg: cfg}
	b.tracker.SetLimit(cfg.MemoryLimit)
	return b
}

// Name returns the backend name.
func (b *Backend) Name() string {
	return "CPU"
}

// Kind returns the compute device.
func (b *Backend) Kind() device.Kind {
	return device.CPU
}

// MemoryStats returns current memory usage statistics.
func (b *Backend) MemoryStats() device.MemoryStats {
	return b.tracker.Stats()
}

// Release is a no-op for the CPU backend; buffers are released individually.
func (b *Backend) Release() {}

// NewIndexBuffer allocates a zeroed index buffer of n entries.
func (b *Backend) NewIndexBuffer(n int) (device.IndexBuffer, error) {
	if n < 0 {
		return nil, fmt.Errorf("cpu: negative index buffer length %d", n)
	}
	size := uint64(n) * 4 //nolint:gosec // G115: n checked non-negative above.
	if err := b.tracker.Reserve(size); err != nil {
		return nil, fmt.Errorf("cpu: allocate %d index entries: %w", n, err)
	}
	return &indexBuffer{data: make([]int32, n), size: size, owner: b}, nil
}

// NewValueBuffer allocates a zeroed value buffer of n entries.
func (b *Backend) NewValueBuffer(n int) (device.ValueBuffer, error) {
	if n < 0 {
		return nil, fmt.Errorf("cpu: negative value buffer length %d", n)
	}
	size := uint64(n) * 8 //nolint:gosec // G115: n checked non-negative above.
	if err := b.tracker.Reserve(size); err != nil {
		return nil, fmt.Errorf("cpu: allocate %d values: %w", n, err)
	}
	return &valueBuffer{data: make([]float64, n), size: size, owner: b}, nil
}

type indexBuffer struct {
	data  []int32
	size  uint64
	owner *Backend
}

func (ib *indexBuffer) Len() int { return len(ib.data) }

func (ib *indexBuffer) Read() ([]int32, error) {
	if ib.owner == nil {
		return nil, device.ErrReleased
	}
	out := make([]int32, len(ib.data))
	copy(out, ib.data)
	return out, nil
}

func (ib *indexBuffer) Write(data []int32) error {
	if ib.owner == nil {
		return device.ErrReleased
	}
	if len(data) != len(ib.data) {
		return fmt.Errorf("cpu: write %d entries into buffer of %d: %w", len(data), len(ib.data), device.ErrSize)
	}
	copy(ib.data, data)
	return nil
}

func (ib *indexBuffer) Fill(v int32) error {
	if ib.owner == nil {
		return device.ErrReleased
	}
	for i := range ib.data {
		ib.data[i] = v
	}
	return nil
}

func (ib *indexBuffer) Release() {
	if ib.owner == nil {
		return
	}
	ib.owner.tracker.Free(ib.size)
	ib.owner = nil
	ib.data = nil
}

type valueBuffer struct {
	data  []float64
	size  uint64
	owner *Backend
}

func (vb *valueBuffer) Len() int { return len(vb.data) }

func (vb *valueBuffer) Read() ([]float64, error) {
	if vb.owner == nil {
		return nil, device.ErrReleased
	}
	out := make([]float64, len(vb.data))
	copy(out, vb.data)
	return out, nil
}

func (vb *valueBuffer) Write(data []float64) error {
	if vb.owner == nil {
		return device.ErrReleased
	}
	if len(data) != len(vb.data) {
		return fmt.Errorf("cpu: write %d values into buffer of %d: %w", len(data), len(vb.data), device.ErrSize)
	}
	copy(vb.data, data)
	return nil
}

func (vb *valueBuffer) Release() {
	if vb.owner == nil {
		return
	}
	vb.owner.tracker.Free(vb.size)
	vb.owner = nil
	vb.data = nil
}
