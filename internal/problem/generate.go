package problem

import (
	"fmt"
	"math"

	"github.com/born-ml/hpcg/internal/geometry"
)

const (
	diagonalValue    = 26.0
	offDiagonalValue = -1.0
)

// Generate builds the host 27-point operator for the rows owned by geom's rank.
// Column indices are global; call SetupHalo before using the matrix.
func Generate(geom *geometry.Geometry) (*Matrix, error) {
	localRows := geom.LocalRows()
	if localRows <= 0 || localRows > math.MaxInt32 || localRows*StencilSize > math.MaxInt32 {
		return nil, fmt.Errorf("%w: %dx%dx%d", ErrTooLarge, geom.NX, geom.NY, geom.NZ)
	}

	nx, ny, nz := int(geom.NX), int(geom.NY), int(geom.NZ)
	gnx, gny, gnz := geom.GNX, geom.GNY, geom.GNZ
	rows := int(localRows)

	h := &HostMatrix{
		NonzerosInRow: make([]int32, rows),
		ColG:          make([]geometry.GlobalInt, rows*StencilSize),
		Values:        make([]float64, rows*StencilSize),
		Diag:          make([]int32, rows),
	}
	m := &Matrix{
		Geom:                  geom,
		TotalNumberOfRows:     geom.GlobalRows(),
		TotalNumberOfNonzeros: (3*gnx - 2) * (3*gny - 2) * (3*gnz - 2),
		LocalNumberOfRows:     geometry.LocalInt(rows),
		LocalNumberOfColumns:  geometry.LocalInt(rows),
		LocalToGlobal:         make([]geometry.GlobalInt, rows),
		GlobalToLocal:         make(map[geometry.GlobalInt]geometry.LocalInt, rows),
		host:                  h,
	}

	var nnzTotal geometry.GlobalInt
	for iz := 0; iz < nz; iz++ {
		giz := geom.GIZ0 + geometry.GlobalInt(iz)
		for iy := 0; iy < ny; iy++ {
			giy := geom.GIY0 + geometry.GlobalInt(iy)
			for ix := 0; ix < nx; ix++ {
				gix := geom.GIX0 + geometry.GlobalInt(ix)

				row := iz*nx*ny + iy*nx + ix
				globalRow := giz*gnx*gny + giy*gnx + gix
				m.GlobalToLocal[globalRow] = geometry.LocalInt(row)
				m.LocalToGlobal[row] = globalRow

				base := row * StencilSize
				nnz := 0
				for sz := geometry.GlobalInt(-1); sz <= 1; sz++ {
					if giz+sz < 0 || giz+sz >= gnz {
						continue
					}
					for sy := geometry.GlobalInt(-1); sy <= 1; sy++ {
						if giy+sy < 0 || giy+sy >= gny {
							continue
						}
						for sx := geometry.GlobalInt(-1); sx <= 1; sx++ {
							if gix+sx < 0 || gix+sx >= gnx {
								continue
							}
							col := globalRow + sz*gnx*gny + sy*gnx + sx
							if col == globalRow {
								h.Diag[row] = int32(nnz) //nolint:gosec // G115: nnz < StencilSize.
								h.Values[base+nnz] = diagonalValue
							} else {
								h.Values[base+nnz] = offDiagonalValue
							}
							h.ColG[base+nnz] = col
							nnz++
						}
					}
				}
				h.NonzerosInRow[row] = int32(nnz) //nolint:gosec // G115: nnz <= StencilSize.
				nnzTotal += geometry.GlobalInt(nnz)
			}
		}
	}
	m.LocalNumberOfNonzeros = nnzTotal

	return m, nil
}

// Vectors returns the right-hand side, initial guess and exact solution of the
// generated system: b is the row sum of the operator so that the exact
// solution is all ones.
func Vectors(m *Matrix) (b, x, xexact []float64, err error) {
	if m.host == nil {
		return nil, nil, nil, fmt.Errorf("%w: vectors require the host matrix", ErrStage)
	}
	rows := int(m.LocalNumberOfRows)
	b = make([]float64, rows)
	x = make([]float64, rows)
	xexact = make([]float64, rows)
	for i := 0; i < rows; i++ {
		b[i] = diagonalValue - float64(m.host.NonzerosInRow[i]-1)
		xexact[i] = 1
	}
	return b, x, xexact, nil
}
