// Package parallel provides parallel execution utilities for grid-transfer kernels.
//
// Kernels are expressed the way device kernels are: a launch covers an index
// space with a grid of fixed-size blocks, so the last block may contain units
// beyond the logical extent. Kernels are responsible for their own boundary guard.
package parallel

import (
	"runtime"
	"sync"
)

// Config controls parallel execution behavior.
type Config struct {
	Enabled      bool // Whether parallel execution is enabled.
	NumWorkers   int  // Number of worker goroutines to use.
	MinChunkSize int  // Minimum items per goroutine to avoid overhead.
}

// DefaultConfig returns sensible defaults based on CPU count.
func DefaultConfig() Config {
	n := runtime.NumCPU()
	return Config{
		Enabled:      n > 1,
		NumWorkers:   n,
		MinChunkSize: 64,
	}
}

// Sequential returns a config that runs everything on the calling goroutine.
func Sequential() Config {
	return Config{Enabled: false, NumWorkers: 1, MinChunkSize: 1}
}

// Dim3 is an extent along x, y and z.
type Dim3 struct {
	X, Y, Z int
}

// Volume returns X*Y*Z.
func (d Dim3) Volume() int {
	return d.X * d.Y * d.Z
}

// Cover returns the number of blocks of size block needed to cover n units.
func Cover(n, block int) int {
	if n <= 0 {
		return 0
	}
	return (n-1)/block + 1
}

// Cover3 returns the grid of blocks needed to cover extent along each axis.
func Cover3(extent, block Dim3) Dim3 {
	return Dim3{
		X: Cover(extent.X, block.X),
		Y: Cover(extent.Y, block.Y),
		Z: Cover(extent.Z, block.Z),
	}
}

// For executes f(i) for i in [0, n) with optional parallelism.
// Falls back to sequential execution if parallelism is disabled or n is too small.
func For(n int, f func(i int), cfg Config) {
	if !cfg.Enabled || n < cfg.MinChunkSize || cfg.NumWorkers <= 1 {
		for i := 0; i < n; i++ {
			f(i)
		}
		return
	}

	var wg sync.WaitGroup
	chunkSize := max((n+cfg.NumWorkers-1)/cfg.NumWorkers, cfg.MinChunkSize)

	for start := 0; start < n; start += chunkSize {
		end := min(start+chunkSize, n)
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			for i := s; i < e; i++ {
				f(i)
			}
		}(start, end)
	}
	wg.Wait()
}

// Launch runs kernel for every unit of a 1D grid of grid blocks with block
// units each. Unit indices run over [0, grid*block); units past the logical
// extent are still invoked and must return early.
// Launch blocks until every unit has completed.
func Launch(grid, block int, kernel func(idx int), cfg Config) {
	For(grid, func(b int) {
		base := b * block
		for t := 0; t < block; t++ {
			kernel(base + t)
		}
	}, perBlock(cfg, block))
}

// perBlock converts cfg.MinChunkSize from units to blocks of size units.
func perBlock(cfg Config, size int) Config {
	if size > 1 {
		cfg.MinChunkSize = max(1, (cfg.MinChunkSize+size-1)/size)
	}
	return cfg
}

// Launch3D is the three-dimensional form of Launch. The kernel receives the
// global unit coordinate along each axis.
func Launch3D(grid, block Dim3, kernel func(x, y, z int), cfg Config) {
	blocksXY := grid.X * grid.Y
	For(grid.Volume(), func(b int) {
		bz := b / blocksXY
		by := (b - bz*blocksXY) / grid.X
		bx := b % grid.X
		for tz := 0; tz < block.Z; tz++ {
			for ty := 0; ty < block.Y; ty++ {
				for tx := 0; tx < block.X; tx++ {
					kernel(bx*block.X+tx, by*block.Y+ty, bz*block.Z+tz)
				}
			}
		}
	}, perBlock(cfg, block.Volume()))
}

// LaunchConfig holds the execution-domain parameters of the grid-transfer
// kernels. They affect occupancy only, never results.
type LaunchConfig struct {
	BlockSize   int  // Units per block for 1D kernels.
	InjectBlock Dim3 // Block shape for the 3D injection kernel.
}

// DefaultLaunchConfig returns the block shapes used by the reference kernels.
func DefaultLaunchConfig() LaunchConfig {
	return LaunchConfig{
		BlockSize:   1024,
		InjectBlock: Dim3{X: 2, Y: 2, Z: 2},
	}
}

// Normalize replaces non-positive block extents with the defaults.
func (lc LaunchConfig) Normalize() LaunchConfig {
	def := DefaultLaunchConfig()
	if lc.BlockSize <= 0 {
		lc.BlockSize = def.BlockSize
	}
	if lc.InjectBlock.X <= 0 || lc.InjectBlock.Y <= 0 || lc.InjectBlock.Z <= 0 {
		lc.InjectBlock = def.InjectBlock
	}
	return lc
}
