package problem

import (
	"testing"

	"github.com/born-ml/hpcg/internal/device/cpu"
	"github.com/born-ml/hpcg/internal/geometry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustGeometry(t *testing.T, p geometry.Params) *geometry.Geometry {
	t.Helper()
	g, err := geometry.Generate(p)
	require.NoError(t, err)
	return g
}

func TestGenerate_SingleProcess(t *testing.T) {
	g := mustGeometry(t, geometry.Params{Size: 1, NX: 4, NY: 4, NZ: 4})
	m, err := Generate(g)
	require.NoError(t, err)

	assert.Equal(t, geometry.LocalInt(64), m.LocalNumberOfRows)
	assert.Equal(t, geometry.GlobalInt(64), m.TotalNumberOfRows)
	assert.Equal(t, geometry.GlobalInt(1000), m.TotalNumberOfNonzeros)
	assert.Equal(t, m.TotalNumberOfNonzeros, m.LocalNumberOfNonzeros)

	h := m.Host()
	require.NotNil(t, h)
	// corner, edge, interior
	assert.Equal(t, int32(8), h.NonzerosInRow[0])
	assert.Equal(t, int32(12), h.NonzerosInRow[1])
	assert.Equal(t, int32(27), h.NonzerosInRow[1*16+1*4+1])

	for i := 0; i < int(m.LocalNumberOfRows); i++ {
		d := h.Diag[i]
		assert.Equal(t, 26.0, h.Values[i*StencilSize+int(d)])
		assert.Equal(t, m.LocalToGlobal[i], h.ColG[i*StencilSize+int(d)])
	}
}

func TestVectors_RowSums(t *testing.T) {
	g := mustGeometry(t, geometry.Params{Size: 1, NX: 3, NY: 2, NZ: 4})
	m, err := Generate(g)
	require.NoError(t, err)

	b, x, xexact, err := Vectors(m)
	require.NoError(t, err)

	h := m.Host()
	for i := range b {
		var sum float64
		for j := 0; j < int(h.NonzerosInRow[i]); j++ {
			sum += h.Values[i*StencilSize+j] * xexact[i]
		}
		assert.Equal(t, sum, b[i], "row %d", i)
		assert.Zero(t, x[i])
	}
}

func TestSetupHalo_SingleProcess(t *testing.T) {
	g := mustGeometry(t, geometry.Params{Size: 1, NX: 4, NY: 4, NZ: 4})
	m, err := Generate(g)
	require.NoError(t, err)
	require.NoError(t, SetupHalo(m))

	halo := m.Halo()
	assert.Zero(t, halo.NumberOfExternalValues)
	assert.Zero(t, halo.NumberOfSendNeighbors)
	assert.Equal(t, m.LocalNumberOfRows, m.LocalNumberOfColumns)

	h := m.Host()
	for i := 0; i < int(m.LocalNumberOfRows); i++ {
		for j := 0; j < int(h.NonzerosInRow[i]); j++ {
			local := h.ColL[i*StencilSize+j]
			assert.Equal(t, h.ColG[i*StencilSize+j], m.LocalToGlobal[local])
		}
	}

	assert.ErrorIs(t, SetupHalo(m), ErrStage)
}

func TestSetupHalo_TwoProcesses(t *testing.T) {
	for rank := 0; rank < 2; rank++ {
		g := mustGeometry(t, geometry.Params{Size: 2, Rank: rank, NX: 2, NY: 2, NZ: 2, NPX: 2, NPY: 1, NPZ: 1})
		m, err := Generate(g)
		require.NoError(t, err)
		require.NoError(t, SetupHalo(m))

		halo := m.Halo()
		assert.Equal(t, []int{1 - rank}, halo.Neighbors)
		assert.Equal(t, geometry.LocalInt(4), halo.NumberOfExternalValues)
		assert.Equal(t, []geometry.LocalInt{4}, halo.ReceiveLength)
		assert.Equal(t, []geometry.LocalInt{4}, halo.SendLength)
		assert.Equal(t, geometry.LocalInt(4), halo.TotalToBeSent)
		assert.Equal(t, geometry.LocalInt(12), m.LocalNumberOfColumns)

		// Boundary plane facing the neighbor: x = 1 on rank 0, x = 0 on rank 1.
		wantX := int32(1 - rank)
		for _, row := range halo.ElementsToSend {
			assert.Equal(t, wantX, row%2)
		}

		// Ghost columns are numbered after owned rows.
		h := m.Host()
		ghosts := 0
		for i := 0; i < int(m.LocalNumberOfRows); i++ {
			for j := 0; j < int(h.NonzerosInRow[i]); j++ {
				if h.ColL[i*StencilSize+j] >= int32(m.LocalNumberOfRows) {
					ghosts++
					assert.Less(t, h.ColL[i*StencilSize+j], int32(m.LocalNumberOfColumns))
				}
			}
		}
		assert.Positive(t, ghosts)
	}
}

func TestUploadAndCopyToHost(t *testing.T) {
	be := cpu.New()
	g := mustGeometry(t, geometry.Params{Size: 2, NX: 2, NY: 2, NZ: 2, NPX: 1, NPY: 1, NPZ: 2})
	m, err := Generate(g)
	require.NoError(t, err)

	assert.ErrorIs(t, m.Upload(be), ErrStage)
	require.NoError(t, SetupHalo(m))

	want := *m.Host()
	wantSend := append([]int32(nil), m.Halo().ElementsToSend...)

	require.NoError(t, m.Upload(be))
	assert.Nil(t, m.Host())
	assert.Nil(t, m.Halo().ElementsToSend)
	assert.NotNil(t, m.Device())
	assert.Positive(t, be.MemoryStats().ActiveBuffers)

	require.NoError(t, m.CopyToHost())
	require.NoError(t, m.CopyHaloToHost())
	got := m.Host()
	assert.Equal(t, want.ColL, got.ColL)
	assert.Equal(t, want.Values, got.Values)
	assert.Equal(t, want.Diag, got.Diag)
	assert.Equal(t, want.NonzerosInRow, got.NonzerosInRow)
	assert.Equal(t, wantSend, m.Halo().ElementsToSend)

	m.Release()
	assert.Zero(t, be.MemoryStats().ActiveBuffers)
	assert.Zero(t, be.MemoryStats().AllocatedBytes)
}

func TestUpload_OutOfMemoryReleasesPartialUpload(t *testing.T) {
	cfg := cpu.DefaultConfig()
	cfg.MemoryLimit = 1024
	be := cpu.NewWithConfig(cfg)

	g := mustGeometry(t, geometry.Params{Size: 1, NX: 4, NY: 4, NZ: 4})
	m, err := Generate(g)
	require.NoError(t, err)
	require.NoError(t, SetupHalo(m))

	assert.Error(t, m.Upload(be))
	assert.Nil(t, m.Device())
	assert.NotNil(t, m.Host())
	assert.Zero(t, be.MemoryStats().ActiveBuffers)
}

func TestColorPermutation(t *testing.T) {
	g := mustGeometry(t, geometry.Params{Size: 1, NX: 4, NY: 3, NZ: 2})
	perm := ColorPermutation(g)
	require.NoError(t, ValidatePermutation(perm, 24))

	// Row (0,0,0) is color 0 and comes first; row (1,0,0) is color 1 and
	// follows all color-0 rows.
	assert.Equal(t, int32(0), perm[0])
	colorZero := 2 * 2 * 1
	assert.Equal(t, int32(colorZero), perm[1])
}

func TestSetPermutation(t *testing.T) {
	be := cpu.New()
	g := mustGeometry(t, geometry.Params{Size: 1, NX: 2, NY: 2, NZ: 2})
	m, err := Generate(g)
	require.NoError(t, err)

	assert.ErrorIs(t, m.SetPermutation(be, []int32{0, 1, 2}), ErrNotPermutation)
	assert.ErrorIs(t, m.SetPermutation(be, []int32{0, 1, 2, 3, 4, 5, 6, 6}), ErrNotPermutation)
	assert.Nil(t, m.Perm())

	perm := ColorPermutation(g)
	require.NoError(t, m.SetPermutation(be, perm))
	got, err := m.Perm().Read()
	require.NoError(t, err)
	assert.Equal(t, perm, got)
	assert.Equal(t, perm, m.HostPerm())

	m.Release()
	assert.Zero(t, be.MemoryStats().ActiveBuffers)
	assert.NotPanics(t, m.Release)

	var none *Matrix
	assert.NotPanics(t, none.Release)
}
