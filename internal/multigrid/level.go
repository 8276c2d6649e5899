// Package multigrid builds the coarse levels of a geometric multigrid
// hierarchy on a compute device and moves corrections between adjacent levels.
//
// A Level owns its operator, at most one coarser Level and the transfer Data
// linking the two. Levels form a singly linked chain from fine to coarse;
// releasing a level releases everything below it.
package multigrid

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/born-ml/hpcg/internal/device"
	"github.com/born-ml/hpcg/internal/geometry"
	"github.com/born-ml/hpcg/internal/problem"
)

// Errors returned by this package.
var (
	ErrOddDimension          = errors.New("multigrid: fine grid dimension is not even")
	ErrDimensionMismatch     = errors.New("multigrid: fine dimensions are not twice the coarse dimensions")
	ErrIndexOverflow         = errors.New("multigrid: cell count overflows the local index type")
	ErrAlreadyCoarsened      = errors.New("multigrid: level already has a coarse level")
	ErrNotCoarsened          = errors.New("multigrid: level has no coarse level")
	ErrLengthMismatch        = errors.New("multigrid: vector shorter than the level")
	ErrNoFineResidualScratch = errors.New("multigrid: level was built without the fine residual scratch vector")
)

// Options control level construction.
type Options struct {
	// Reference allocates the fine-level scratch vector Axf used by Restrict.
	Reference bool
	// Reorder installs the multicolor row permutation on every level built.
	Reorder bool
	// Logger receives debug records for each construction step. Nil means slog.Default().
	Logger *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

// Level is one resolution level of the hierarchy.
type Level struct {
	a      *problem.Matrix
	be     device.Backend
	coarse *Level
	data   *Data
}

// NewLevel builds the finest level: geometry, operator, halo, optional
// permutation, then upload to be.
func NewLevel(ctx context.Context, be device.Backend, p geometry.Params, opts Options) (*Level, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	geom, err := geometry.Generate(p)
	if err != nil {
		return nil, fmt.Errorf("multigrid: generate geometry: %w", err)
	}
	a, err := assemble(be, geom, opts)
	if err != nil {
		return nil, err
	}
	opts.logger().Debug("level created",
		"device", be.Name(),
		"nx", geom.NX, "ny", geom.NY, "nz", geom.NZ,
		"rows", a.LocalNumberOfRows,
		"columns", a.LocalNumberOfColumns)
	return &Level{a: a, be: be}, nil
}

// assemble generates the operator of geom and makes it device-resident.
func assemble(be device.Backend, geom *geometry.Geometry, opts Options) (*problem.Matrix, error) {
	m, err := problem.Generate(geom)
	if err != nil {
		return nil, fmt.Errorf("multigrid: generate problem: %w", err)
	}
	defer func() {
		if err != nil {
			m.Release()
		}
	}()
	if err = problem.SetupHalo(m); err != nil {
		return nil, fmt.Errorf("multigrid: setup halo: %w", err)
	}
	if opts.Reorder {
		if err = m.SetPermutation(be, problem.ColorPermutation(geom)); err != nil {
			return nil, fmt.Errorf("multigrid: set permutation: %w", err)
		}
	}
	if err = m.Upload(be); err != nil {
		return nil, fmt.Errorf("multigrid: upload operator: %w", err)
	}
	return m, nil
}

// Matrix returns the level's operator.
func (l *Level) Matrix() *problem.Matrix { return l.a }

// Geometry returns the level's grid description.
func (l *Level) Geometry() *geometry.Geometry { return l.a.Geom }

// Backend returns the device the level lives on.
func (l *Level) Backend() device.Backend { return l.be }

// Coarse returns the next coarser level, or nil.
func (l *Level) Coarse() *Level { return l.coarse }

// MGData returns the transfer data to the coarse level, or nil.
func (l *Level) MGData() *Data { return l.data }

// Depth returns the number of levels in the chain starting at l.
func (l *Level) Depth() int {
	n := 0
	for lv := l; lv != nil; lv = lv.coarse {
		n++
	}
	return n
}

// Release frees the level, its transfer data and every coarser level.
func (l *Level) Release() {
	if l == nil {
		return
	}
	l.detach()
	if l.a != nil {
		l.a.Release()
	}
}

// detach releases everything below l and leaves l uncoarsened.
func (l *Level) detach() {
	for lv := l.coarse; lv != nil; {
		next := lv.coarse
		lv.data.release()
		lv.a.Release()
		lv.coarse, lv.data = nil, nil
		lv = next
	}
	l.data.release()
	l.coarse, l.data = nil, nil
}
