package vector

import (
	"math"
	"testing"

	"github.com/born-ml/hpcg/internal/device"
	"github.com/born-ml/hpcg/internal/device/cpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVector_Roundtrip(t *testing.T) {
	be := cpu.New()
	v, err := New(be, 4)
	require.NoError(t, err)
	defer v.Release()

	assert.Equal(t, 4, v.Len())
	assert.Nil(t, v.Host())
	assert.ErrorIs(t, v.CopyToDevice(), ErrNoHost)

	v.InitHost()
	require.NoError(t, v.Fill(2))
	require.NoError(t, v.CopyToDevice())

	v.Host()[0] = 99
	require.NoError(t, v.CopyToHost())
	assert.Equal(t, []float64{2, 2, 2, 2}, v.Host())

	n, err := v.Norm()
	require.NoError(t, err)
	assert.InDelta(t, 4.0, n, 1e-12)
}

func TestVector_InitHostKeepsData(t *testing.T) {
	v := NewHost(3)
	require.NoError(t, v.Fill(1))
	v.InitHost()
	assert.Equal(t, []float64{1, 1, 1}, v.Host())
	assert.Nil(t, v.Device())
}

func TestVector_AddScaled(t *testing.T) {
	a := NewHost(3)
	b := NewHost(3)
	copy(a.Host(), []float64{1, 2, 3})
	copy(b.Host(), []float64{1, 1, 1})

	require.NoError(t, a.AddScaled(-2, b))
	assert.Equal(t, []float64{-1, 0, 1}, a.Host())

	c := NewHost(2)
	assert.ErrorIs(t, a.AddScaled(1, c), device.ErrSize)
	assert.False(t, a.EqualApprox(c, 0))
}

func TestVector_EqualApprox(t *testing.T) {
	a := NewHost(2)
	b := NewHost(2)
	copy(a.Host(), []float64{1, math.Pi})
	copy(b.Host(), []float64{1, float64(float32(math.Pi))})

	assert.False(t, a.EqualApprox(b, 1e-12))
	assert.True(t, a.EqualApprox(b, 1e-6))
}

func TestVector_Release(t *testing.T) {
	be := cpu.New()
	v, err := New(be, 8)
	require.NoError(t, err)
	assert.Equal(t, uint64(64), be.MemoryStats().AllocatedBytes)

	v.Release()
	v.Release()
	assert.Zero(t, be.MemoryStats().AllocatedBytes)
	assert.ErrorIs(t, v.CopyToHost(), device.ErrReleased)

	var nilVec *Vector
	nilVec.Release()
}
