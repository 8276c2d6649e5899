package multigrid

import (
	"github.com/born-ml/hpcg/internal/device"
	"github.com/born-ml/hpcg/internal/vector"
)

// Data links a fine level to its coarse level. It is created by
// BuildCoarseLevel and owned by the fine level.
type Data struct {
	// F2C maps each coarse cell to the fine cell it was injected from.
	F2C device.IndexBuffer
	// C2F maps each fine cell to its coarse cell, or -1.
	C2F device.IndexBuffer

	// Rc is the coarse residual, one entry per coarse row.
	Rc *vector.Vector
	// Xc is the coarse correction, one entry per coarse column.
	Xc *vector.Vector
	// Axf is the fine-level scratch A*x, one entry per fine column. Nil
	// unless built with Options.Reference or mirrored to the host.
	Axf *vector.Vector

	hostF2C []int32
}

// HostF2C returns the host copy of F2C, or nil before MirrorCoarseLevelToHost.
func (d *Data) HostF2C() []int32 { return d.hostF2C }

func (d *Data) release() {
	if d == nil {
		return
	}
	device.Release(d.F2C, d.C2F)
	d.Rc.Release()
	d.Xc.Release()
	d.Axf.Release()
	d.F2C, d.C2F, d.Rc, d.Xc, d.Axf = nil, nil, nil, nil, nil
	d.hostF2C = nil
}
