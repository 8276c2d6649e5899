package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/born-ml/hpcg/internal/parallel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, parallel.DefaultLaunchConfig(), cfg.LaunchConfig())
}

func TestParse_OverridesDefaults(t *testing.T) {
	doc := `
device: webgpu
grid: {nx: 8, ny: 4, nz: 0}
processes:
  size: 2
  npx: 1
  npy: 1
  npz: 2
  pz: 1
  zl: 6
  zu: 4
levels: 2
reorder: true
launch:
  block_size: 256
  inject_block: [4, 2, 1]
`
	cfg := Default()
	require.NoError(t, Parse([]byte(doc), &cfg))

	assert.Equal(t, "webgpu", cfg.Device)
	assert.Equal(t, 2, cfg.Levels)
	assert.True(t, cfg.Reorder)
	assert.True(t, cfg.Reference, "unset keys keep defaults")
	assert.Equal(t, "info", cfg.LogLevel)

	p := cfg.GeometryParams()
	assert.Equal(t, int32(8), p.NX)
	assert.Equal(t, 1, p.Pz)
	assert.Equal(t, int32(6), p.Zl)
	assert.Equal(t, int32(4), p.Zu)
	assert.Equal(t, 2, p.NPZ)

	lc := cfg.LaunchConfig()
	assert.Equal(t, 256, lc.BlockSize)
	assert.Equal(t, parallel.Dim3{X: 4, Y: 2, Z: 1}, lc.InjectBlock)
}

func TestParse_Empty(t *testing.T) {
	cfg := Default()
	require.NoError(t, Parse(nil, &cfg))
	assert.Equal(t, Default(), cfg)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown device", "device: tpu"},
		{"negative levels", "levels: -1"},
		{"zero grid", "grid: {nx: 0, ny: 4, nz: 4}"},
		{"log level", "log_level: loud"},
		{"unknown key", "levles: 3"},
		{"bad type", "levels: many"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			assert.Error(t, Parse([]byte(tt.doc), &cfg))
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte("levels: 1\nmemory_limit: 1048576\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Levels)
	assert.Equal(t, uint64(1<<20), cfg.MemoryLimit)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
