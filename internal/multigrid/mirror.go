package multigrid

import (
	"fmt"

	"github.com/born-ml/hpcg/internal/vector"
)

// MirrorCoarseLevelToHost gives the coarse level of fine a host copy for
// reference computations: the coarse operator and halo, host storage for Rc,
// Xc and Axf, and the f2c map. Axf gets host storage even when the level was
// built without its device buffer. Device data is not modified.
func MirrorCoarseLevelToHost(fine *Level) error {
	if fine.data == nil || fine.coarse == nil {
		return ErrNotCoarsened
	}
	a := fine.coarse.a
	if err := a.CopyToHost(); err != nil {
		return fmt.Errorf("multigrid: mirror coarse operator: %w", err)
	}
	if err := a.CopyHaloToHost(); err != nil {
		return fmt.Errorf("multigrid: mirror coarse halo: %w", err)
	}

	d := fine.data
	d.Rc.InitHost()
	d.Xc.InitHost()
	if d.Axf == nil {
		d.Axf = vector.NewHost(int(fine.a.LocalNumberOfColumns))
	} else {
		d.Axf.InitHost()
	}

	f2c, err := d.F2C.Read()
	if err != nil {
		return fmt.Errorf("multigrid: mirror f2c: %w", err)
	}
	d.hostF2C = f2c
	return nil
}
