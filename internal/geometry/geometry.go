// Package geometry describes one level of a block-decomposed 3D structured grid.
//
// A global nx*ny*nz box is split across a npx*npy*npz process grid. Along z
// the process planes may be split into two blocks with different local nz
// (an asymmetric split): planes [0, Pz) use Zl and planes [Pz, npz) use Zu.
package geometry

import (
	"errors"
	"fmt"
	"math"
)

// LocalInt is the index type of rows and columns owned by one process.
type LocalInt = int32

// GlobalInt is the index type of rows across the whole decomposed domain.
type GlobalInt = int64

// ErrInvalid is returned for inconsistent geometry parameters.
var ErrInvalid = errors.New("geometry: invalid parameters")

// Params are the inputs of Generate.
type Params struct {
	Size       int // Number of processes.
	Rank       int // This process, in [0, Size).
	NumThreads int

	// Pz is the first z process plane of the upper block; 0 means no split.
	Pz     int
	Zl, Zu LocalInt // Local nz of the lower and upper blocks when Pz > 0.

	NX, NY, NZ LocalInt // Local extents. NZ may be 0 when Pz > 0.

	// Process grid. Replaced by ComputeOptimalShape when its product is
	// non-positive or larger than Size.
	NPX, NPY, NPZ int
}

// Geometry is one level's grid description. It is created by Generate and
// must be treated as read-only afterwards; a coarser level gets a new one.
type Geometry struct {
	Size       int
	Rank       int
	NumThreads int

	NX, NY, NZ    LocalInt
	NPX, NPY, NPZ int
	Pz            int

	IPX, IPY, IPZ int

	GNX, GNY, GNZ    GlobalInt
	GIX0, GIY0, GIZ0 GlobalInt

	partzIDs []int      // Last z process plane (exclusive) of each block.
	partzNZ  []LocalInt // Local nz of each block.
}

// Generate builds the geometry of this rank.
func Generate(p Params) (*Geometry, error) {
	if p.Size < 1 {
		return nil, fmt.Errorf("%w: size %d", ErrInvalid, p.Size)
	}
	if p.NX <= 0 || p.NY <= 0 {
		return nil, fmt.Errorf("%w: local extents %dx%d", ErrInvalid, p.NX, p.NY)
	}

	npx, npy, npz := p.NPX, p.NPY, p.NPZ
	if npx*npy*npz <= 0 || npx*npy*npz > p.Size {
		npx, npy, npz = ComputeOptimalShape(p.Size)
	}
	if p.Rank < 0 || p.Rank >= npx*npy*npz {
		return nil, fmt.Errorf("%w: rank %d outside %dx%dx%d process grid", ErrInvalid, p.Rank, npx, npy, npz)
	}

	var ids []int
	var nzs []LocalInt
	if p.Pz == 0 {
		if p.NZ <= 0 {
			return nil, fmt.Errorf("%w: local nz %d", ErrInvalid, p.NZ)
		}
		ids = []int{npz}
		nzs = []LocalInt{p.NZ}
	} else {
		if p.Pz < 0 || p.Pz >= npz {
			return nil, fmt.Errorf("%w: z split at plane %d of %d", ErrInvalid, p.Pz, npz)
		}
		if p.Zl <= 0 || p.Zu <= 0 {
			return nil, fmt.Errorf("%w: z split sizes %d/%d", ErrInvalid, p.Zl, p.Zu)
		}
		ids = []int{p.Pz, npz}
		nzs = []LocalInt{p.Zl, p.Zu}
	}

	ipz := p.Rank / (npx * npy)
	ipy := (p.Rank - ipz*npx*npy) / npx
	ipx := p.Rank % npx

	g := &Geometry{
		Size:       p.Size,
		Rank:       p.Rank,
		NumThreads: p.NumThreads,
		NX:         p.NX,
		NY:         p.NY,
		NPX:        npx,
		NPY:        npy,
		NPZ:        npz,
		Pz:         p.Pz,
		IPX:        ipx,
		IPY:        ipy,
		IPZ:        ipz,
		partzIDs:   ids,
		partzNZ:    nzs,
	}

	nz := g.partitionNZ(ipz)
	if p.NZ != 0 && p.NZ != nz {
		return nil, fmt.Errorf("%w: local nz %d does not match z block size %d of plane %d", ErrInvalid, p.NZ, nz, ipz)
	}
	g.NZ = nz

	g.GNX = GlobalInt(npx) * GlobalInt(p.NX)
	g.GNY = GlobalInt(npy) * GlobalInt(p.NY)
	start := 0
	for i, end := range ids {
		g.GNZ += GlobalInt(nzs[i]) * GlobalInt(end-start)
		start = end
	}

	g.GIX0 = GlobalInt(ipx) * GlobalInt(p.NX)
	g.GIY0 = GlobalInt(ipy) * GlobalInt(p.NY)
	start = 0
	for i, end := range ids {
		if ipz < end {
			g.GIZ0 += GlobalInt(ipz-start) * GlobalInt(nzs[i])
			break
		}
		g.GIZ0 += GlobalInt(end-start) * GlobalInt(nzs[i])
		start = end
	}

	return g, nil
}

// NPartZ returns the number of z blocks (1 or 2).
func (g *Geometry) NPartZ() int {
	return len(g.partzIDs)
}

// PartzID returns the exclusive last z process plane of block i.
func (g *Geometry) PartzID(i int) int {
	return g.partzIDs[i]
}

// PartzNZ returns the local nz of z block i.
func (g *Geometry) PartzNZ(i int) LocalInt {
	return g.partzNZ[i]
}

// LocalRows returns nx*ny*nz as a global-width integer.
func (g *Geometry) LocalRows() GlobalInt {
	return GlobalInt(g.NX) * GlobalInt(g.NY) * GlobalInt(g.NZ)
}

// GlobalRows returns gnx*gny*gnz.
func (g *Geometry) GlobalRows() GlobalInt {
	return g.GNX * g.GNY * g.GNZ
}

func (g *Geometry) partitionNZ(ipz int) LocalInt {
	for i, end := range g.partzIDs {
		if ipz < end {
			return g.partzNZ[i]
		}
	}
	return g.partzNZ[len(g.partzNZ)-1]
}

// RankOfRow returns the rank owning the given global row.
func (g *Geometry) RankOfRow(index GlobalInt) int {
	iz := index / (g.GNY * g.GNX)
	iy := (index - iz*g.GNY*g.GNX) / g.GNX
	ix := index % g.GNX

	ipz := 0
	start := 0
	for i, end := range g.partzIDs {
		span := GlobalInt(g.partzNZ[i]) * GlobalInt(end-start)
		if iz < span {
			ipz += int(iz / GlobalInt(g.partzNZ[i]))
			break
		}
		ipz += end - start
		iz -= span
		start = end
	}
	ipy := int(iy / GlobalInt(g.NY))
	ipx := int(ix / GlobalInt(g.NX))

	return ipx + ipy*g.NPX + ipz*g.NPY*g.NPX
}

// ComputeOptimalShape factors size into the most cube-like process grid,
// minimizing the total interface area. Ties favor larger npx.
func ComputeOptimalShape(size int) (npx, npy, npz int) {
	best := math.MaxInt
	for x := size; x >= 1; x-- {
		if size%x != 0 {
			continue
		}
		rest := size / x
		for y := rest; y >= 1; y-- {
			if rest%y != 0 {
				continue
			}
			z := rest / y
			if x < y || y < z {
				continue
			}
			if area := x*y + y*z + x*z; area < best {
				best = area
				npx, npy, npz = x, y, z
			}
		}
	}
	return npx, npy, npz
}
