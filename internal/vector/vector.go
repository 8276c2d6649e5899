// Package vector provides a real vector with a device copy and an optional
// host copy. Transfers between the two are explicit.
package vector

import (
	"errors"
	"fmt"

	"github.com/born-ml/hpcg/internal/device"
	"gonum.org/v1/gonum/floats"
)

// ErrNoHost is returned when a host operation runs before InitHost or CopyToHost.
var ErrNoHost = errors.New("vector: host copy not initialized")

// Vector is a device-resident array of reals with an optional host mirror.
type Vector struct {
	n    int
	dev  device.ValueBuffer
	host []float64
}

// New allocates a zeroed device vector of n entries.
func New(be device.Backend, n int) (*Vector, error) {
	buf, err := be.NewValueBuffer(n)
	if err != nil {
		return nil, fmt.Errorf("vector: allocate %d values: %w", n, err)
	}
	return &Vector{n: n, dev: buf}, nil
}

// NewHost creates a host-only vector of n zeros.
func NewHost(n int) *Vector {
	return &Vector{n: n, host: make([]float64, n)}
}

// Len returns the declared length.
func (v *Vector) Len() int { return v.n }

// Device returns the device buffer, or nil for a host-only vector.
func (v *Vector) Device() device.ValueBuffer { return v.dev }

// Host returns the host copy, or nil if none exists.
func (v *Vector) Host() []float64 { return v.host }

// InitHost allocates a zeroed host copy. An existing host copy is kept.
func (v *Vector) InitHost() {
	if v.host == nil {
		v.host = make([]float64, v.n)
	}
}

// CopyToHost overwrites the host copy with the device contents.
func (v *Vector) CopyToHost() error {
	if v.dev == nil {
		return fmt.Errorf("vector: copy to host: %w", device.ErrReleased)
	}
	data, err := v.dev.Read()
	if err != nil {
		return fmt.Errorf("vector: copy to host: %w", err)
	}
	v.host = data
	return nil
}

// CopyToDevice overwrites the device contents with the host copy.
func (v *Vector) CopyToDevice() error {
	if v.host == nil {
		return ErrNoHost
	}
	if v.dev == nil {
		return fmt.Errorf("vector: copy to device: %w", device.ErrReleased)
	}
	if err := v.dev.Write(v.host); err != nil {
		return fmt.Errorf("vector: copy to device: %w", err)
	}
	return nil
}

// Fill sets every host entry to value.
func (v *Vector) Fill(value float64) error {
	if v.host == nil {
		return ErrNoHost
	}
	for i := range v.host {
		v.host[i] = value
	}
	return nil
}

// Norm returns the Euclidean norm of the host copy.
func (v *Vector) Norm() (float64, error) {
	if v.host == nil {
		return 0, ErrNoHost
	}
	return floats.Norm(v.host, 2), nil
}

// AddScaled computes v += alpha*s on the host copies.
func (v *Vector) AddScaled(alpha float64, s *Vector) error {
	if v.host == nil || s.host == nil {
		return ErrNoHost
	}
	if len(v.host) != len(s.host) {
		return fmt.Errorf("vector: add scaled: length %d != %d: %w", len(v.host), len(s.host), device.ErrSize)
	}
	floats.AddScaled(v.host, alpha, s.host)
	return nil
}

// EqualApprox reports whether the host copies agree within tol.
func (v *Vector) EqualApprox(s *Vector, tol float64) bool {
	if v.host == nil || s.host == nil || len(v.host) != len(s.host) {
		return false
	}
	return floats.EqualApprox(v.host, s.host, tol)
}

// Release frees the device buffer and drops the host copy.
func (v *Vector) Release() {
	if v == nil {
		return
	}
	if v.dev != nil {
		v.dev.Release()
		v.dev = nil
	}
	v.host = nil
}
