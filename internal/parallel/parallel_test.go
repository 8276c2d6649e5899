package parallel

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFor(t *testing.T) {
	cfg := DefaultConfig()

	var counter int64
	n := 1000

	For(n, func(_ int) {
		atomic.AddInt64(&counter, 1)
	}, cfg)

	assert.Equal(t, int64(n), counter)
}

func TestFor_Sequential(t *testing.T) {
	var counter int64
	For(100, func(_ int) {
		atomic.AddInt64(&counter, 1)
	}, Sequential())

	assert.Equal(t, int64(100), counter)
}

func TestFor_SmallChunk(t *testing.T) {
	// Small work units fall back to sequential.
	cfg := DefaultConfig()

	var counter int64
	n := cfg.MinChunkSize - 1

	For(n, func(_ int) {
		atomic.AddInt64(&counter, 1)
	}, cfg)

	assert.Equal(t, int64(n), counter)
}

func TestCover(t *testing.T) {
	tests := []struct {
		n, block, want int
	}{
		{0, 4, 0},
		{1, 4, 1},
		{4, 4, 1},
		{5, 4, 2},
		{1023, 1024, 1},
		{1025, 1024, 2},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Cover(tt.n, tt.block), "Cover(%d, %d)", tt.n, tt.block)
	}

	g := Cover3(Dim3{X: 3, Y: 4, Z: 5}, Dim3{X: 2, Y: 2, Z: 2})
	assert.Equal(t, Dim3{X: 2, Y: 2, Z: 3}, g)
}

func TestLaunch_CoversEveryUnitOnce(t *testing.T) {
	n := 1000
	block := 64
	grid := Cover(n, block)

	hits := make([]int32, grid*block)
	Launch(grid, block, func(idx int) {
		atomic.AddInt32(&hits[idx], 1)
	}, DefaultConfig())

	for i, h := range hits {
		require.Equal(t, int32(1), h, "unit %d", i)
	}
}

func TestLaunch_SmallGridRunsBlocksConcurrently(t *testing.T) {
	// Four blocks of 1024 units: fewer blocks than MinChunkSize, far more units.
	cfg := Config{Enabled: true, NumWorkers: 4, MinChunkSize: 64}

	var started atomic.Int32
	var overlapped atomic.Bool
	Launch(4, 1024, func(idx int) {
		if idx%1024 != 0 {
			return
		}
		started.Add(1)
		deadline := time.Now().Add(time.Second)
		for time.Now().Before(deadline) {
			if started.Load() >= 2 {
				overlapped.Store(true)
				return
			}
			time.Sleep(time.Millisecond)
		}
	}, cfg)

	assert.True(t, overlapped.Load())
}

func TestPerBlock(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 4, MinChunkSize: 64}
	assert.Equal(t, 1, perBlock(cfg, 1024).MinChunkSize)
	assert.Equal(t, 8, perBlock(cfg, 8).MinChunkSize)
	assert.Equal(t, 64, perBlock(cfg, 1).MinChunkSize)
	assert.Equal(t, 1, perBlock(Sequential(), 1024).MinChunkSize)
}

func TestLaunch3D_CoordinatesAreUnique(t *testing.T) {
	extent := Dim3{X: 3, Y: 5, Z: 2}
	block := Dim3{X: 2, Y: 2, Z: 2}
	grid := Cover3(extent, block)
	span := Dim3{X: grid.X * block.X, Y: grid.Y * block.Y, Z: grid.Z * block.Z}

	hits := make([]int32, span.Volume())
	var inside int64
	Launch3D(grid, block, func(x, y, z int) {
		atomic.AddInt32(&hits[z*span.X*span.Y+y*span.X+x], 1)
		if x < extent.X && y < extent.Y && z < extent.Z {
			atomic.AddInt64(&inside, 1)
		}
	}, DefaultConfig())

	for i, h := range hits {
		require.Equal(t, int32(1), h, "unit %d", i)
	}
	assert.Equal(t, int64(extent.Volume()), inside)
}

func TestLaunchConfigNormalize(t *testing.T) {
	lc := LaunchConfig{}.Normalize()
	assert.Equal(t, DefaultLaunchConfig(), lc)

	lc = LaunchConfig{BlockSize: 32, InjectBlock: Dim3{X: 4, Y: 4, Z: 1}}.Normalize()
	assert.Equal(t, 32, lc.BlockSize)
	assert.Equal(t, Dim3{X: 4, Y: 4, Z: 1}, lc.InjectBlock)
}

func BenchmarkLaunch(b *testing.B) {
	cfg := DefaultConfig()
	n := 1 << 16
	data := make([]float64, n)

	b.Run("parallel", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			Launch(Cover(n, 1024), 1024, func(idx int) {
				if idx >= n {
					return
				}
				data[idx]++
			}, cfg)
		}
	})

	b.Run("sequential", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			Launch(Cover(n, 1024), 1024, func(idx int) {
				if idx >= n {
					return
				}
				data[idx]++
			}, Sequential())
		}
	})
}
