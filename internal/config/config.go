// Package config loads the run configuration of the hpcg command.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/born-ml/hpcg/internal/geometry"
	"github.com/born-ml/hpcg/internal/parallel"
	"gopkg.in/yaml.v3"
)

// ErrInvalid is returned by Validate.
var ErrInvalid = errors.New("config: invalid configuration")

// Grid holds the local extents of the finest level.
type Grid struct {
	NX int32 `yaml:"nx"`
	NY int32 `yaml:"ny"`
	NZ int32 `yaml:"nz"`
}

// Processes describes the process grid and the optional z split.
type Processes struct {
	Size int   `yaml:"size"`
	Rank int   `yaml:"rank"`
	NPX  int   `yaml:"npx"`
	NPY  int   `yaml:"npy"`
	NPZ  int   `yaml:"npz"`
	Pz   int   `yaml:"pz"`
	Zl   int32 `yaml:"zl"`
	Zu   int32 `yaml:"zu"`
}

// Launch is the kernel launch geometry of the CPU device.
type Launch struct {
	BlockSize   int    `yaml:"block_size"`
	InjectBlock [3]int `yaml:"inject_block,flow"`
}

// Parallel controls the CPU worker pool.
type Parallel struct {
	Enabled      bool `yaml:"enabled"`
	Workers      int  `yaml:"workers"`
	MinChunkSize int  `yaml:"min_chunk_size"`
}

// Config is the complete run configuration.
type Config struct {
	Device      string    `yaml:"device"`
	Grid        Grid      `yaml:"grid"`
	Processes   Processes `yaml:"processes"`
	Levels      int       `yaml:"levels"`
	Reference   bool      `yaml:"reference"`
	Reorder     bool      `yaml:"reorder"`
	MemoryLimit uint64    `yaml:"memory_limit"`
	Launch      Launch    `yaml:"launch"`
	Parallel    Parallel  `yaml:"parallel"`
	MetricsAddr string    `yaml:"metrics_addr"`
	LogLevel    string    `yaml:"log_level"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	pc := parallel.DefaultConfig()
	lc := parallel.DefaultLaunchConfig()
	return Config{
		Device:    "cpu",
		Grid:      Grid{NX: 16, NY: 16, NZ: 16},
		Processes: Processes{Size: 1},
		Levels:    3,
		Reference: true,
		Launch: Launch{
			BlockSize:   lc.BlockSize,
			InjectBlock: [3]int{lc.InjectBlock.X, lc.InjectBlock.Y, lc.InjectBlock.Z},
		},
		Parallel: Parallel{
			Enabled:      pc.Enabled,
			Workers:      pc.NumWorkers,
			MinChunkSize: pc.MinChunkSize,
		},
		LogLevel: "info",
	}
}

// Load reads a YAML file on top of Default and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the command line.
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := Parse(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML into cfg, keeping fields the document does not set,
// and validates the result. Unknown keys are rejected.
func Parse(raw []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode: %w", err)
	}
	return cfg.Validate()
}

// Validate checks the configuration for values no run can use.
func (c *Config) Validate() error {
	switch c.Device {
	case "cpu", "webgpu":
	default:
		return fmt.Errorf("%w: unknown device %q", ErrInvalid, c.Device)
	}
	if c.Grid.NX <= 0 || c.Grid.NY <= 0 || c.Grid.NZ < 0 {
		return fmt.Errorf("%w: grid %dx%dx%d", ErrInvalid, c.Grid.NX, c.Grid.NY, c.Grid.NZ)
	}
	if c.Levels < 0 {
		return fmt.Errorf("%w: levels %d", ErrInvalid, c.Levels)
	}
	if c.Launch.BlockSize < 0 {
		return fmt.Errorf("%w: block size %d", ErrInvalid, c.Launch.BlockSize)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: log level %q", ErrInvalid, c.LogLevel)
	}
	return nil
}

// GeometryParams returns the parameters of the finest level.
func (c *Config) GeometryParams() geometry.Params {
	return geometry.Params{
		Size:       c.Processes.Size,
		Rank:       c.Processes.Rank,
		NumThreads: c.Parallel.Workers,
		Pz:         c.Processes.Pz,
		Zl:         c.Processes.Zl,
		Zu:         c.Processes.Zu,
		NX:         c.Grid.NX,
		NY:         c.Grid.NY,
		NZ:         c.Grid.NZ,
		NPX:        c.Processes.NPX,
		NPY:        c.Processes.NPY,
		NPZ:        c.Processes.NPZ,
	}
}

// ParallelConfig returns the worker-pool configuration.
func (c *Config) ParallelConfig() parallel.Config {
	return parallel.Config{
		Enabled:      c.Parallel.Enabled,
		NumWorkers:   c.Parallel.Workers,
		MinChunkSize: c.Parallel.MinChunkSize,
	}
}

// LaunchConfig returns the kernel launch geometry.
func (c *Config) LaunchConfig() parallel.LaunchConfig {
	return parallel.LaunchConfig{
		BlockSize: c.Launch.BlockSize,
		InjectBlock: parallel.Dim3{
			X: c.Launch.InjectBlock[0],
			Y: c.Launch.InjectBlock[1],
			Z: c.Launch.InjectBlock[2],
		},
	}.Normalize()
}
