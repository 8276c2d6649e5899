package problem

import (
	"fmt"
	"maps"
	"slices"

	"github.com/born-ml/hpcg/internal/device"
	"github.com/born-ml/hpcg/internal/geometry"
)

// Halo describes the ghost columns of a level and the rows other ranks need
// from it. Neighbors are in ascending rank order and the receive/send
// lengths are parallel to Neighbors.
type Halo struct {
	NumberOfExternalValues geometry.LocalInt
	NumberOfSendNeighbors  int
	TotalToBeSent          geometry.LocalInt

	Neighbors     []int
	ReceiveLength []geometry.LocalInt
	SendLength    []geometry.LocalInt

	// Local rows to send, grouped by neighbor. Nil once uploaded until
	// CopyHaloToHost.
	ElementsToSend []int32

	devElementsToSend device.IndexBuffer
}

// DeviceElementsToSend returns the device copy of the send list, or nil before upload.
func (h *Halo) DeviceElementsToSend() device.IndexBuffer { return h.devElementsToSend }

func (h *Halo) upload(be device.Backend) error {
	buf, err := uploadIndices(be, h.ElementsToSend)
	if err != nil {
		return fmt.Errorf("problem: upload halo: %w", err)
	}
	h.devElementsToSend = buf
	h.ElementsToSend = nil
	return nil
}

func (h *Halo) release() {
	if h.devElementsToSend != nil {
		h.devElementsToSend.Release()
		h.devElementsToSend = nil
	}
}

// SetupHalo finds the columns owned by other ranks, numbers them after the
// owned rows (by neighbor rank, then global index), records what every
// neighbor needs from this rank and converts the operator to local columns.
func SetupHalo(m *Matrix) error {
	if m.host == nil || m.host.ColG == nil || m.halo != nil {
		return fmt.Errorf("%w: halo setup requires a freshly generated matrix", ErrStage)
	}

	geom := m.Geom
	h := m.host
	rows := int(m.LocalNumberOfRows)

	receive := map[int]map[geometry.GlobalInt]struct{}{}
	send := map[int]map[geometry.GlobalInt]struct{}{}
	for i := 0; i < rows; i++ {
		base := i * StencilSize
		for j := 0; j < int(h.NonzerosInRow[i]); j++ {
			col := h.ColG[base+j]
			owner := geom.RankOfRow(col)
			if owner == geom.Rank {
				continue
			}
			if receive[owner] == nil {
				receive[owner] = map[geometry.GlobalInt]struct{}{}
				send[owner] = map[geometry.GlobalInt]struct{}{}
			}
			receive[owner][col] = struct{}{}
			send[owner][m.LocalToGlobal[i]] = struct{}{}
		}
	}

	halo := &Halo{}
	external := map[geometry.GlobalInt]int32{}
	next := int32(rows) //nolint:gosec // G115: rows fits int32, checked by Generate.
	for _, neighbor := range slices.Sorted(maps.Keys(receive)) {
		cols := slices.Sorted(maps.Keys(receive[neighbor]))
		for _, col := range cols {
			external[col] = next
			next++
		}
		halo.Neighbors = append(halo.Neighbors, neighbor)
		halo.ReceiveLength = append(halo.ReceiveLength, geometry.LocalInt(len(cols)))

		sendRows := slices.Sorted(maps.Keys(send[neighbor]))
		for _, g := range sendRows {
			halo.ElementsToSend = append(halo.ElementsToSend, m.GlobalToLocal[g])
		}
		halo.SendLength = append(halo.SendLength, geometry.LocalInt(len(sendRows)))
		halo.TotalToBeSent += geometry.LocalInt(len(sendRows))
	}
	halo.NumberOfSendNeighbors = len(halo.Neighbors)
	halo.NumberOfExternalValues = geometry.LocalInt(len(external))

	h.ColL = make([]int32, len(h.ColG))
	for i := 0; i < rows; i++ {
		base := i * StencilSize
		for j := 0; j < int(h.NonzerosInRow[i]); j++ {
			col := h.ColG[base+j]
			if local, ok := m.GlobalToLocal[col]; ok {
				h.ColL[base+j] = local
			} else {
				h.ColL[base+j] = external[col]
			}
		}
	}

	m.halo = halo
	m.LocalNumberOfColumns = m.LocalNumberOfRows + halo.NumberOfExternalValues
	return nil
}

// CopyHaloToHost restores the host send list from the device copy.
func (m *Matrix) CopyHaloToHost() error {
	if m.halo == nil || m.halo.devElementsToSend == nil {
		return fmt.Errorf("%w: halo is not on a device", ErrStage)
	}
	elems, err := m.halo.devElementsToSend.Read()
	if err != nil {
		return fmt.Errorf("problem: copy halo to host: %w", err)
	}
	m.halo.ElementsToSend = elems
	return nil
}
