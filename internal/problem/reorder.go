package problem

import "github.com/born-ml/hpcg/internal/geometry"

// NumColors is the number of colors of the parity coloring of a 27-point grid.
const NumColors = 8

// ColorPermutation returns the multicolor ordering of geom's local rows:
// rows are grouped by the parity of their (x, y, z) coordinates, and within a
// color keep their natural order. perm[logical] is the stored row index.
// No two rows of one color are stencil neighbors.
func ColorPermutation(geom *geometry.Geometry) []int32 {
	nx, ny, nz := int(geom.NX), int(geom.NY), int(geom.NZ)

	var counts [NumColors]int32
	color := func(ix, iy, iz int) int {
		return ix&1 + 2*(iy&1) + 4*(iz&1)
	}
	for iz := 0; iz < nz; iz++ {
		for iy := 0; iy < ny; iy++ {
			for ix := 0; ix < nx; ix++ {
				counts[color(ix, iy, iz)]++
			}
		}
	}

	var offsets [NumColors]int32
	for c := 1; c < NumColors; c++ {
		offsets[c] = offsets[c-1] + counts[c-1]
	}

	perm := make([]int32, nx*ny*nz)
	for iz := 0; iz < nz; iz++ {
		for iy := 0; iy < ny; iy++ {
			for ix := 0; ix < nx; ix++ {
				c := color(ix, iy, iz)
				perm[iz*nx*ny+iy*nx+ix] = offsets[c]
				offsets[c]++
			}
		}
	}
	return perm
}
