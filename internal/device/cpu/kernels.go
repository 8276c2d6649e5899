package cpu

import (
	"fmt"

	"github.com/born-ml/hpcg/internal/device"
	"github.com/born-ml/hpcg/internal/parallel"
)

// InjectionMap launches the injection kernel over the coarse grid.
func (b *Backend) InjectionMap(args device.InjectionArgs) error {
	f2c, err := b.indices(args.F2C)
	if err != nil {
		return fmt.Errorf("cpu: injection f2c: %w", err)
	}
	c2f, err := b.indices(args.C2F)
	if err != nil {
		return fmt.Errorf("cpu: injection c2f: %w", err)
	}

	nc := int64(args.NXC) * int64(args.NYC) * int64(args.NZC)
	nf := args.NXF * args.NYF * args.NZF
	if int64(len(f2c)) < nc || int64(len(c2f)) < nf {
		return fmt.Errorf("cpu: injection buffers %d/%d for %d/%d cells: %w",
			len(f2c), len(c2f), nc, nf, device.ErrSize)
	}

	extent := parallel.Dim3{X: int(args.NXC), Y: int(args.NYC), Z: int(args.NZC)}
	block := b.cfg.Launch.InjectBlock
	parallel.Launch3D(parallel.Cover3(extent, block), block, injectionKernel(args, f2c, c2f), b.cfg.Parallel)
	return nil
}

func injectionKernel(a device.InjectionArgs, f2c, c2f []int32) func(x, y, z int) {
	nxc, nyc, nzc := int64(a.NXC), int64(a.NYC), int64(a.NZC)
	nxf, nyf := a.NXF, a.NYF
	return func(x, y, z int) {
		ixc, iyc, izc := int64(x), int64(y), int64(z)
		if izc >= nzc || iyc >= nyc || ixc >= nxc {
			return
		}

		ixf := ixc << 1
		iyf := iyc << 1
		izf := izc << 1

		coarse := izc*nxc*nyc + iyc*nxc + ixc
		fine := izf*nxf*nyf + iyf*nxf + ixf

		f2c[coarse] = int32(fine) //nolint:gosec // G115: fine cell count checked to fit int32 by the caller.
		c2f[fine] = int32(coarse) //nolint:gosec // G115: coarse cell count fits int32.
	}
}

// Prolongate launches the prolongation kernel, one unit per coarse index.
func (b *Backend) Prolongate(args device.TransferArgs, coarse, fine device.ValueBuffer) error {
	t, err := b.transfer(args)
	if err != nil {
		return fmt.Errorf("cpu: prolongation: %w", err)
	}
	xc, err := b.values(coarse)
	if err != nil {
		return fmt.Errorf("cpu: prolongation coarse: %w", err)
	}
	xf, err := b.values(fine)
	if err != nil {
		return fmt.Errorf("cpu: prolongation fine: %w", err)
	}
	if len(xc) < args.N {
		return fmt.Errorf("cpu: prolongation coarse length %d < %d: %w", len(xc), args.N, device.ErrSize)
	}

	n := args.N
	block := b.cfg.Launch.BlockSize
	parallel.Launch(parallel.Cover(n, block), block, func(idx int) {
		if idx >= n {
			return
		}
		fi := t.fine(t.f2c[idx])
		xf[fi] += xc[t.coarse(idx)]
	}, b.cfg.Parallel)
	return nil
}

// Restrict launches the injection restriction kernel, one unit per coarse index.
func (b *Backend) Restrict(args device.TransferArgs, rf, axf, coarse device.ValueBuffer) error {
	t, err := b.transfer(args)
	if err != nil {
		return fmt.Errorf("cpu: restriction: %w", err)
	}
	r, err := b.values(rf)
	if err != nil {
		return fmt.Errorf("cpu: restriction rf: %w", err)
	}
	ax, err := b.values(axf)
	if err != nil {
		return fmt.Errorf("cpu: restriction axf: %w", err)
	}
	rc, err := b.values(coarse)
	if err != nil {
		return fmt.Errorf("cpu: restriction coarse: %w", err)
	}
	if len(rc) < args.N {
		return fmt.Errorf("cpu: restriction coarse length %d < %d: %w", len(rc), args.N, device.ErrSize)
	}

	n := args.N
	block := b.cfg.Launch.BlockSize
	parallel.Launch(parallel.Cover(n, block), block, func(idx int) {
		if idx >= n {
			return
		}
		fi := t.fine(t.f2c[idx])
		rc[t.coarse(idx)] = r[fi] - ax[fi]
	}, b.cfg.Parallel)
	return nil
}

// transferView resolves the optional permutations of a transfer launch.
type transferView struct {
	f2c   []int32
	permF []int32
	permC []int32
}

func (t transferView) fine(i int32) int {
	if t.permF == nil {
		return int(i)
	}
	return int(t.permF[i])
}

func (t transferView) coarse(i int) int {
	if t.permC == nil {
		return i
	}
	return int(t.permC[i])
}

func (b *Backend) transfer(args device.TransferArgs) (transferView, error) {
	var t transferView
	var err error
	if t.f2c, err = b.indices(args.F2C); err != nil {
		return t, fmt.Errorf("f2c: %w", err)
	}
	if len(t.f2c) < args.N {
		return t, fmt.Errorf("f2c length %d < %d: %w", len(t.f2c), args.N, device.ErrSize)
	}
	if args.PermFine != nil {
		if t.permF, err = b.indices(args.PermFine); err != nil {
			return t, fmt.Errorf("fine permutation: %w", err)
		}
	}
	if args.PermCoarse != nil {
		if t.permC, err = b.indices(args.PermCoarse); err != nil {
			return t, fmt.Errorf("coarse permutation: %w", err)
		}
		if len(t.permC) < args.N {
			return t, fmt.Errorf("coarse permutation length %d < %d: %w", len(t.permC), args.N, device.ErrSize)
		}
	}
	return t, nil
}

func (b *Backend) indices(buf device.IndexBuffer) ([]int32, error) {
	ib, ok := buf.(*indexBuffer)
	if !ok || ib == nil {
		return nil, fmt.Errorf("buffer %T does not belong to the CPU backend", buf)
	}
	if ib.owner != b {
		return nil, device.ErrReleased
	}
	return ib.data, nil
}

func (b *Backend) values(buf device.ValueBuffer) ([]float64, error) {
	vb, ok := buf.(*valueBuffer)
	if !ok || vb == nil {
		return nil, fmt.Errorf("buffer %T does not belong to the CPU backend", buf)
	}
	if vb.owner != b {
		return nil, device.ErrReleased
	}
	return vb.data, nil
}
