package cpu

import (
	"testing"

	"github.com/born-ml/hpcg/internal/device"
	"github.com/born-ml/hpcg/internal/parallel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryTracking(t *testing.T) {
	b := New()

	ib, err := b.NewIndexBuffer(10)
	require.NoError(t, err)
	vb, err := b.NewValueBuffer(10)
	require.NoError(t, err)

	stats := b.MemoryStats()
	assert.Equal(t, uint64(10*4+10*8), stats.AllocatedBytes)
	assert.Equal(t, int64(2), stats.ActiveBuffers)

	ib.Release()
	ib.Release() // idempotent
	vb.Release()

	stats = b.MemoryStats()
	assert.Equal(t, uint64(0), stats.AllocatedBytes)
	assert.Equal(t, int64(0), stats.ActiveBuffers)
	assert.Equal(t, uint64(120), stats.PeakBytes)
	assert.Equal(t, uint64(2), stats.Allocations)
}

func TestMemoryLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MemoryLimit = 64
	b := NewWithConfig(cfg)

	vb, err := b.NewValueBuffer(8)
	require.NoError(t, err)
	defer vb.Release()

	_, err = b.NewIndexBuffer(1)
	require.ErrorIs(t, err, device.ErrOutOfMemory)
	assert.Equal(t, int64(1), b.MemoryStats().ActiveBuffers)
}

func TestReleasedBuffer(t *testing.T) {
	b := New()
	ib, err := b.NewIndexBuffer(4)
	require.NoError(t, err)
	ib.Release()

	_, err = ib.Read()
	assert.ErrorIs(t, err, device.ErrReleased)
	assert.ErrorIs(t, ib.Fill(1), device.ErrReleased)
}

func TestWriteSizeMismatch(t *testing.T) {
	b := New()
	vb, err := b.NewValueBuffer(4)
	require.NoError(t, err)
	defer vb.Release()

	assert.ErrorIs(t, vb.Write([]float64{1, 2}), device.ErrSize)
}

func TestInjectionMap(t *testing.T) {
	for _, p := range []parallel.Config{parallel.Sequential(), parallel.DefaultConfig()} {
		cfg := DefaultConfig()
		cfg.Parallel = p
		b := NewWithConfig(cfg)

		f2c, err := b.NewIndexBuffer(8)
		require.NoError(t, err)
		c2f, err := b.NewIndexBuffer(64)
		require.NoError(t, err)
		require.NoError(t, c2f.Fill(-1))

		err = b.InjectionMap(device.InjectionArgs{
			NXC: 2, NYC: 2, NZC: 2,
			NXF: 4, NYF: 4, NZF: 4,
			F2C: f2c, C2F: c2f,
		})
		require.NoError(t, err)

		got, err := f2c.Read()
		require.NoError(t, err)
		assert.Equal(t, []int32{0, 2, 8, 10, 32, 34, 40, 42}, got)

		inv, err := c2f.Read()
		require.NoError(t, err)
		sentinels := 0
		for f, c := range inv {
			if c == -1 {
				sentinels++
				continue
			}
			assert.Equal(t, int32(f), got[c])
		}
		assert.Equal(t, 56, sentinels)
	}
}

func TestInjectionMap_ShortBuffer(t *testing.T) {
	b := New()
	f2c, _ := b.NewIndexBuffer(4)
	c2f, _ := b.NewIndexBuffer(64)

	err := b.InjectionMap(device.InjectionArgs{
		NXC: 2, NYC: 2, NZC: 2, NXF: 4, NYF: 4, NZF: 4, F2C: f2c, C2F: c2f,
	})
	assert.ErrorIs(t, err, device.ErrSize)
}

func TestProlongate_Permuted(t *testing.T) {
	b := New()

	f2c, _ := b.NewIndexBuffer(2)
	require.NoError(t, f2c.Write([]int32{0, 2}))
	permF, _ := b.NewIndexBuffer(4)
	require.NoError(t, permF.Write([]int32{3, 2, 1, 0}))
	permC, _ := b.NewIndexBuffer(2)
	require.NoError(t, permC.Write([]int32{1, 0}))

	xc, _ := b.NewValueBuffer(2)
	require.NoError(t, xc.Write([]float64{10, 20}))
	xf, _ := b.NewValueBuffer(4)
	require.NoError(t, xf.Write([]float64{1, 1, 1, 1}))

	err := b.Prolongate(device.TransferArgs{N: 2, F2C: f2c, PermFine: permF, PermCoarse: permC}, xc, xf)
	require.NoError(t, err)

	got, _ := xf.Read()
	// unit 0: fine[perm[0]=3] += coarse[perm[0]=1] = 20
	// unit 1: fine[perm[2]=1] += coarse[perm[1]=0] = 10
	assert.Equal(t, []float64{1, 11, 1, 21}, got)
}

func TestRestrict(t *testing.T) {
	b := New()

	f2c, _ := b.NewIndexBuffer(2)
	require.NoError(t, f2c.Write([]int32{1, 3}))
	rf, _ := b.NewValueBuffer(4)
	require.NoError(t, rf.Write([]float64{1, 2, 3, 4}))
	axf, _ := b.NewValueBuffer(4)
	require.NoError(t, axf.Write([]float64{0.5, 0.5, 0.5, 0.5}))
	rc, _ := b.NewValueBuffer(2)

	err := b.Restrict(device.TransferArgs{N: 2, F2C: f2c}, rf, axf, rc)
	require.NoError(t, err)

	got, _ := rc.Read()
	assert.Equal(t, []float64{1.5, 3.5}, got)
}

func TestForeignBuffer(t *testing.T) {
	a, b := New(), New()
	f2c, _ := a.NewIndexBuffer(1)
	xc, _ := b.NewValueBuffer(1)
	xf, _ := b.NewValueBuffer(1)

	err := b.Prolongate(device.TransferArgs{N: 1, F2C: f2c}, xc, xf)
	assert.Error(t, err)
}
