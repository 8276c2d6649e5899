package multigrid

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/born-ml/hpcg/internal/device"
	"github.com/born-ml/hpcg/internal/geometry"
	"github.com/born-ml/hpcg/internal/metrics"
	"github.com/zeebo/xxh3"
)

// Dims are the local extents of one level.
type Dims struct {
	NX, NY, NZ geometry.LocalInt
}

// Cells returns NX*NY*NZ without overflow.
func (d Dims) Cells() int64 {
	return int64(d.NX) * int64(d.NY) * int64(d.NZ)
}

// Half returns the extents of the next coarser level.
func (d Dims) Half() Dims {
	return Dims{NX: d.NX / 2, NY: d.NY / 2, NZ: d.NZ / 2}
}

func (d Dims) even() bool {
	return d.NX%2 == 0 && d.NY%2 == 0 && d.NZ%2 == 0
}

func dimsOf(g *geometry.Geometry) Dims {
	return Dims{NX: g.NX, NY: g.NY, NZ: g.NZ}
}

// checkIndexMap validates a coarse/fine pair before anything is allocated.
func checkIndexMap(coarse, fine Dims) error {
	if fine.NX <= 0 || fine.NY <= 0 || fine.NZ <= 0 {
		return fmt.Errorf("%w: fine %dx%dx%d", ErrDimensionMismatch, fine.NX, fine.NY, fine.NZ)
	}
	if !fine.even() {
		return fmt.Errorf("%w: %dx%dx%d", ErrOddDimension, fine.NX, fine.NY, fine.NZ)
	}
	if fine.Half() != coarse {
		return fmt.Errorf("%w: coarse %dx%dx%d, fine %dx%dx%d", ErrDimensionMismatch,
			coarse.NX, coarse.NY, coarse.NZ, fine.NX, fine.NY, fine.NZ)
	}
	if fine.Cells() > math.MaxInt32 {
		return fmt.Errorf("%w: %d fine cells", ErrIndexOverflow, fine.Cells())
	}
	return nil
}

// BuildIndexMap allocates and fills the injection maps between a fine grid and
// the coarse grid of half its extents: f2c[c] is the fine cell at twice the
// coordinates of coarse cell c, and c2f[f] is the coarse cell injected from
// fine cell f, or -1. Invalid extents are rejected before any allocation.
func BuildIndexMap(be device.Backend, coarse, fine Dims) (f2c, c2f device.IndexBuffer, err error) {
	if err := checkIndexMap(coarse, fine); err != nil {
		return nil, nil, err
	}

	defer func() {
		if err != nil {
			device.Release(f2c, c2f)
			f2c, c2f = nil, nil
		}
	}()

	if f2c, err = be.NewIndexBuffer(int(coarse.Cells())); err != nil {
		return nil, nil, fmt.Errorf("multigrid: allocate f2c: %w", err)
	}
	if c2f, err = be.NewIndexBuffer(int(fine.Cells())); err != nil {
		return f2c, nil, fmt.Errorf("multigrid: allocate c2f: %w", err)
	}
	if err = c2f.Fill(-1); err != nil {
		return f2c, c2f, fmt.Errorf("multigrid: clear c2f: %w", err)
	}

	err = be.InjectionMap(device.InjectionArgs{
		NXC: coarse.NX, NYC: coarse.NY, NZC: coarse.NZ,
		NXF: int64(fine.NX), NYF: int64(fine.NY), NZF: int64(fine.NZ),
		F2C: f2c,
		C2F: c2f,
	})
	metrics.ObserveKernel(metrics.KernelInjection, be.Name(), err)
	if err != nil {
		return f2c, c2f, fmt.Errorf("multigrid: injection kernel: %w", err)
	}
	return f2c, c2f, nil
}

// HostIndexMap computes f2c on the host.
func HostIndexMap(coarse, fine Dims) ([]int32, error) {
	if err := checkIndexMap(coarse, fine); err != nil {
		return nil, err
	}
	nxc, nyc := int64(coarse.NX), int64(coarse.NY)
	nxf, nyf := int64(fine.NX), int64(fine.NY)
	f2c := make([]int32, coarse.Cells())
	for izc := int64(0); izc < int64(coarse.NZ); izc++ {
		for iyc := int64(0); iyc < nyc; iyc++ {
			for ixc := int64(0); ixc < nxc; ixc++ {
				fine := 2*izc*nxf*nyf + 2*iyc*nxf + 2*ixc
				f2c[izc*nxc*nyc+iyc*nxc+ixc] = int32(fine) //nolint:gosec // G115: checked by checkIndexMap.
			}
		}
	}
	return f2c, nil
}

// Digest returns an xxh3 hash of an index map.
func Digest(m []int32) uint64 {
	buf := make([]byte, 4*len(m))
	for i, v := range m {
		binary.LittleEndian.PutUint32(buf[4*i:], uint32(v)) //nolint:gosec // G115: bit pattern only.
	}
	return xxh3.Hash(buf)
}
