// Package problem generates the 27-point operator of one grid level and the
// metadata the level needs to live on a compute device.
//
// A Matrix is produced in three steps: Generate builds the host structure with
// global column indices, SetupHalo numbers ghost columns and converts columns
// to local indices, Upload moves the operator to a device and drops the host
// copy. CopyToHost and CopyHaloToHost bring it back for reference paths.
package problem

import (
	"errors"
	"fmt"

	"github.com/born-ml/hpcg/internal/device"
	"github.com/born-ml/hpcg/internal/geometry"
)

// StencilSize is the maximum number of nonzeros per row.
const StencilSize = 27

// Errors returned by this package.
var (
	ErrTooLarge       = errors.New("problem: local row count overflows the local index type")
	ErrStage          = errors.New("problem: operation out of order")
	ErrNotPermutation = errors.New("problem: not a permutation")
)

// HostMatrix is the host-resident operator in fixed-width rows of StencilSize.
type HostMatrix struct {
	NonzerosInRow []int32
	// Column indices, StencilSize per row. Global until SetupHalo runs;
	// ColG is dropped after Upload and not restored by CopyToHost.
	ColG   []geometry.GlobalInt
	ColL   []int32
	Values []float64
	// Position of the diagonal within each row.
	Diag []int32
}

// DeviceMatrix is the device-resident operator.
type DeviceMatrix struct {
	NonzerosInRow device.IndexBuffer
	ColL          device.IndexBuffer
	Values        device.ValueBuffer
	Diag          device.IndexBuffer
}

func (d *DeviceMatrix) release() {
	device.Release(d.NonzerosInRow, d.ColL, d.Values, d.Diag)
}

// Matrix is the sparse operator of one level plus its halo metadata.
type Matrix struct {
	Geom *geometry.Geometry

	TotalNumberOfRows     geometry.GlobalInt
	TotalNumberOfNonzeros geometry.GlobalInt
	LocalNumberOfRows     geometry.LocalInt
	// Owned rows plus ghost columns; equal to LocalNumberOfRows until SetupHalo.
	LocalNumberOfColumns  geometry.LocalInt
	LocalNumberOfNonzeros geometry.GlobalInt

	LocalToGlobal []geometry.GlobalInt
	GlobalToLocal map[geometry.GlobalInt]geometry.LocalInt

	host     *HostMatrix
	dev      *DeviceMatrix
	halo     *Halo
	perm     device.IndexBuffer
	hostPerm []int32
}

// Host returns the host operator, or nil when it is device-resident only.
func (m *Matrix) Host() *HostMatrix { return m.host }

// Device returns the device operator, or nil before Upload.
func (m *Matrix) Device() *DeviceMatrix { return m.dev }

// Halo returns the halo metadata, or nil before SetupHalo.
func (m *Matrix) Halo() *Halo { return m.halo }

// Perm returns the device permutation from logical to stored row index,
// or nil for the identity.
func (m *Matrix) Perm() device.IndexBuffer { return m.perm }

// HostPerm returns the host copy of the permutation, or nil for the identity.
func (m *Matrix) HostPerm() []int32 { return m.hostPerm }

// Upload copies the operator and halo send list to the device and releases
// the host copy. SetupHalo must have run.
func (m *Matrix) Upload(be device.Backend) (err error) {
	if m.halo == nil || m.host == nil || m.dev != nil {
		return fmt.Errorf("%w: upload requires a host matrix with halo", ErrStage)
	}

	rows := int(m.LocalNumberOfRows)
	d := &DeviceMatrix{}
	defer func() {
		if err != nil {
			d.release()
		}
	}()

	if d.NonzerosInRow, err = uploadIndices(be, m.host.NonzerosInRow); err != nil {
		return err
	}
	if d.ColL, err = uploadIndices(be, m.host.ColL); err != nil {
		return err
	}
	if d.Diag, err = uploadIndices(be, m.host.Diag); err != nil {
		return err
	}
	if d.Values, err = be.NewValueBuffer(rows * StencilSize); err != nil {
		return fmt.Errorf("problem: allocate values: %w", err)
	}
	if err = d.Values.Write(m.host.Values); err != nil {
		return fmt.Errorf("problem: upload values: %w", err)
	}
	if err = m.halo.upload(be); err != nil {
		return err
	}

	m.dev = d
	m.host = nil
	return nil
}

// CopyToHost copies the device operator into a fresh host copy.
func (m *Matrix) CopyToHost() error {
	if m.dev == nil {
		return fmt.Errorf("%w: matrix is not on a device", ErrStage)
	}
	h := &HostMatrix{}
	var err error
	if h.NonzerosInRow, err = m.dev.NonzerosInRow.Read(); err != nil {
		return fmt.Errorf("problem: copy nonzeros to host: %w", err)
	}
	if h.ColL, err = m.dev.ColL.Read(); err != nil {
		return fmt.Errorf("problem: copy columns to host: %w", err)
	}
	if h.Diag, err = m.dev.Diag.Read(); err != nil {
		return fmt.Errorf("problem: copy diagonal to host: %w", err)
	}
	if h.Values, err = m.dev.Values.Read(); err != nil {
		return fmt.Errorf("problem: copy values to host: %w", err)
	}
	m.host = h
	return nil
}

// SetPermutation installs a logical-to-stored row permutation. perm must be
// a bijection on [0, LocalNumberOfRows).
func (m *Matrix) SetPermutation(be device.Backend, perm []int32) error {
	if err := ValidatePermutation(perm, int(m.LocalNumberOfRows)); err != nil {
		return err
	}
	buf, err := uploadIndices(be, perm)
	if err != nil {
		return err
	}
	if m.perm != nil {
		m.perm.Release()
	}
	m.perm = buf
	m.hostPerm = append([]int32(nil), perm...)
	return nil
}

// Release frees every device buffer held by the matrix. It is safe to call
// on a nil matrix and more than once.
func (m *Matrix) Release() {
	if m == nil {
		return
	}
	if m.dev != nil {
		m.dev.release()
		m.dev = nil
	}
	if m.halo != nil {
		m.halo.release()
	}
	if m.perm != nil {
		m.perm.Release()
		m.perm = nil
	}
}

// ValidatePermutation checks that perm is a bijection on [0, n).
func ValidatePermutation(perm []int32, n int) error {
	if len(perm) != n {
		return fmt.Errorf("%w: length %d, want %d", ErrNotPermutation, len(perm), n)
	}
	seen := make([]bool, n)
	for i, p := range perm {
		if p < 0 || int(p) >= n || seen[p] {
			return fmt.Errorf("%w: entry %d = %d", ErrNotPermutation, i, p)
		}
		seen[p] = true
	}
	return nil
}

func uploadIndices(be device.Backend, data []int32) (device.IndexBuffer, error) {
	buf, err := be.NewIndexBuffer(len(data))
	if err != nil {
		return nil, fmt.Errorf("problem: allocate %d indices: %w", len(data), err)
	}
	if err := buf.Write(data); err != nil {
		buf.Release()
		return nil, fmt.Errorf("problem: upload indices: %w", err)
	}
	return buf, nil
}
