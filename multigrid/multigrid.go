// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package multigrid builds geometric multigrid hierarchies of the 27-point
// operator on a compute device and transfers corrections between levels.
//
// Example:
//
//	be := cpu.New()
//	fine, err := multigrid.NewLevel(ctx, be, geometry, multigrid.Options{Reference: true})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer fine.Release()
//
//	if err := multigrid.BuildHierarchy(ctx, fine, 3, multigrid.Options{Reference: true}); err != nil {
//	    log.Fatal(err)
//	}
//	err = multigrid.Prolongate(ctx, fine, xf)
package multigrid

import (
	"context"

	"github.com/born-ml/hpcg/device"
	"github.com/born-ml/hpcg/internal/geometry"
	internalmg "github.com/born-ml/hpcg/internal/multigrid"
	"github.com/born-ml/hpcg/internal/vector"
)

// Level is one resolution level of a hierarchy.
type Level = internalmg.Level

// Data links a level to its coarse level.
type Data = internalmg.Data

// Options control level construction.
type Options = internalmg.Options

// Dims are the local extents of one level.
type Dims = internalmg.Dims

// GeometryParams describe the decomposition of the finest level.
type GeometryParams = geometry.Params

// Vector is a device array with an optional host mirror.
type Vector = vector.Vector

// Errors returned by this package.
var (
	ErrOddDimension          = internalmg.ErrOddDimension
	ErrDimensionMismatch     = internalmg.ErrDimensionMismatch
	ErrIndexOverflow         = internalmg.ErrIndexOverflow
	ErrAlreadyCoarsened      = internalmg.ErrAlreadyCoarsened
	ErrNotCoarsened          = internalmg.ErrNotCoarsened
	ErrLengthMismatch        = internalmg.ErrLengthMismatch
	ErrNoFineResidualScratch = internalmg.ErrNoFineResidualScratch
)

// NewLevel builds the finest level on be.
func NewLevel(ctx context.Context, be device.Backend, p GeometryParams, opts Options) (*Level, error) {
	return internalmg.NewLevel(ctx, be, p, opts)
}

// NewVector allocates a zeroed device vector of n entries.
func NewVector(be device.Backend, n int) (*Vector, error) {
	return vector.New(be, n)
}

// BuildIndexMap builds the injection maps between fine and its half-resolution coarse grid.
func BuildIndexMap(be device.Backend, coarse, fine Dims) (f2c, c2f device.IndexBuffer, err error) {
	return internalmg.BuildIndexMap(be, coarse, fine)
}

// BuildCoarseLevel builds and attaches the coarse level of fine.
func BuildCoarseLevel(ctx context.Context, fine *Level, opts Options) error {
	return internalmg.BuildCoarseLevel(ctx, fine, opts)
}

// BuildHierarchy coarsens fine depth times.
func BuildHierarchy(ctx context.Context, fine *Level, depth int, opts Options) error {
	return internalmg.BuildHierarchy(ctx, fine, depth, opts)
}

// Prolongate adds the coarse correction of fine onto xf.
func Prolongate(ctx context.Context, fine *Level, xf *Vector) error {
	return internalmg.Prolongate(ctx, fine, xf)
}

// Restrict injects rf - Axf into the coarse residual of fine.
func Restrict(ctx context.Context, fine *Level, rf *Vector) error {
	return internalmg.Restrict(ctx, fine, rf)
}

// MirrorCoarseLevelToHost copies the coarse level of fine to the host.
func MirrorCoarseLevelToHost(fine *Level) error {
	return internalmg.MirrorCoarseLevelToHost(fine)
}
