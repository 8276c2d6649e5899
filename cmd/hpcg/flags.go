package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/born-ml/hpcg/internal/config"
	"github.com/born-ml/hpcg/internal/device"
	"github.com/born-ml/hpcg/internal/device/cpu"
	"github.com/born-ml/hpcg/internal/device/webgpu"
	"gopkg.in/yaml.v3"
)

// loadConfig reads the -config file, if any, and applies the flags that were
// set explicitly on top of it.
func loadConfig(name string, args []string) (config.Config, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	path := fs.String("config", "", "YAML configuration file")
	dev := fs.String("device", "", "compute device: cpu or webgpu")
	nx := fs.Int("nx", 0, "local grid extent along x")
	ny := fs.Int("ny", 0, "local grid extent along y")
	nz := fs.Int("nz", 0, "local grid extent along z")
	levels := fs.Int("levels", 0, "number of coarse levels to build")
	reference := fs.Bool("reference", true, "allocate the fine residual scratch vector and check restriction")
	reorder := fs.Bool("reorder", false, "use the multicolor row permutation")
	memLimit := fs.Uint64("memory-limit", 0, "device memory limit in bytes (0 = unlimited)")
	metricsAddr := fs.String("metrics", "", "serve Prometheus metrics on this address")
	logLevel := fs.String("log-level", "", "debug, info, warn or error")
	if err := fs.Parse(args); err != nil {
		return config.Config{}, err
	}

	cfg := config.Default()
	if *path != "" {
		var err error
		if cfg, err = config.Load(*path); err != nil {
			return cfg, err
		}
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "device":
			cfg.Device = *dev
		case "nx":
			cfg.Grid.NX = int32(*nx) //nolint:gosec // G115: validated below.
		case "ny":
			cfg.Grid.NY = int32(*ny) //nolint:gosec // G115: validated below.
		case "nz":
			cfg.Grid.NZ = int32(*nz) //nolint:gosec // G115: validated below.
		case "levels":
			cfg.Levels = *levels
		case "reference":
			cfg.Reference = *reference
		case "reorder":
			cfg.Reorder = *reorder
		case "memory-limit":
			cfg.MemoryLimit = *memLimit
		case "metrics":
			cfg.MetricsAddr = *metricsAddr
		case "log-level":
			cfg.LogLevel = *logLevel
		}
	})
	return cfg, cfg.Validate()
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}

// newBackend creates the configured device. WebGPU falls back to the CPU
// device when no adapter is available.
func newBackend(cfg config.Config, logger *slog.Logger) (device.Backend, error) {
	if cfg.Device == "webgpu" {
		gpu, err := webgpu.New(cfg.LaunchConfig())
		if err == nil {
			gpu.SetMemoryLimit(cfg.MemoryLimit)
			return gpu, nil
		}
		if !errors.Is(err, device.ErrUnavailable) {
			return nil, err
		}
		logger.Warn("WebGPU unavailable, falling back to CPU", "err", err)
	}
	return cpu.NewWithConfig(cpu.Config{
		Parallel:    cfg.ParallelConfig(),
		Launch:      cfg.LaunchConfig(),
		MemoryLimit: cfg.MemoryLimit,
	}), nil
}

func cmdConfig(args []string) {
	cfg, err := loadConfig("config", args)
	if err != nil {
		log.Fatal(err)
	}
	out, err := yaml.Marshal(cfg)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Print(string(out))
}

func cmdDevices() {
	listDevices(os.Stdout)
}

func listDevices(w io.Writer) {
	fmt.Fprintf(w, "%-8s available\n", device.CPU)
	if webgpu.IsAvailable() {
		cfg := config.Default()
		gpu, err := webgpu.New(cfg.LaunchConfig())
		if err != nil {
			fmt.Fprintf(w, "%-8s error: %v\n", device.WebGPU, err)
			return
		}
		defer gpu.Release()
		fmt.Fprintf(w, "%-8s available: %s\n", device.WebGPU, gpu.Name())
		return
	}
	fmt.Fprintf(w, "%-8s not available\n", device.WebGPU)
}
