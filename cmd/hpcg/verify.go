package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/born-ml/hpcg/internal/geometry"
	"github.com/born-ml/hpcg/internal/multigrid"
	"github.com/born-ml/hpcg/internal/vector"
)

type check int

const (
	checkSkipped check = iota
	checkPassed
	checkFailed
)

func status(c check) string {
	switch c {
	case checkPassed:
		return "ok"
	case checkFailed:
		return "MISMATCH"
	default:
		return "skipped"
	}
}

type report struct {
	Digest       uint64
	Prolongation check
	Restriction  check
}

var errIndexMap = errors.New("device index map differs from host reference")

func dimsOf(g *geometry.Geometry) multigrid.Dims {
	return multigrid.Dims{NX: g.NX, NY: g.NY, NZ: g.NZ}
}

// verifyLevel mirrors the coarse level of fine to the host and checks the
// device index map and transfer kernels against host computations.
func verifyLevel(ctx context.Context, fine *multigrid.Level, tol float64) (report, error) {
	var rep report
	if err := multigrid.MirrorCoarseLevelToHost(fine); err != nil {
		return rep, err
	}
	d := fine.MGData()
	coarse := fine.Coarse()

	want, err := multigrid.HostIndexMap(dimsOf(coarse.Geometry()), dimsOf(fine.Geometry()))
	if err != nil {
		return rep, err
	}
	rep.Digest = multigrid.Digest(d.HostF2C())
	if rep.Digest != multigrid.Digest(want) {
		return rep, errIndexMap
	}

	permF := fine.Matrix().HostPerm()
	permC := coarse.Matrix().HostPerm()
	be := fine.Backend()
	nf := int(fine.Matrix().LocalNumberOfRows)

	xf, err := vector.New(be, nf)
	if err != nil {
		return rep, err
	}
	defer xf.Release()
	xf.InitHost()
	pattern(xf.Host(), 13, 0.25)
	pattern(d.Xc.Host(), 97, 0.5)
	if err := xf.CopyToDevice(); err != nil {
		return rep, err
	}
	if err := d.Xc.CopyToDevice(); err != nil {
		return rep, err
	}

	expected := vector.NewHost(nf)
	copy(expected.Host(), xf.Host())
	hostProlongate(d.HostF2C(), permF, permC, d.Xc.Host(), expected.Host())

	if err := multigrid.Prolongate(ctx, fine, xf); err != nil {
		return rep, err
	}
	if err := xf.CopyToHost(); err != nil {
		return rep, err
	}
	rep.Prolongation = compare(xf, expected, tol)

	if d.Axf.Device() == nil {
		return rep, nil
	}

	rf, err := vector.New(be, nf)
	if err != nil {
		return rep, err
	}
	defer rf.Release()
	rf.InitHost()
	pattern(rf.Host(), 31, 1)
	pattern(d.Axf.Host(), 7, 0.125)
	if err := rf.CopyToDevice(); err != nil {
		return rep, err
	}
	if err := d.Axf.CopyToDevice(); err != nil {
		return rep, err
	}

	rc := vector.NewHost(d.Rc.Len())
	hostRestrict(d.HostF2C(), permF, permC, rf.Host(), d.Axf.Host(), rc.Host())

	if err := multigrid.Restrict(ctx, fine, rf); err != nil {
		return rep, err
	}
	if err := d.Rc.CopyToHost(); err != nil {
		return rep, fmt.Errorf("read coarse residual: %w", err)
	}
	rep.Restriction = compare(d.Rc, rc, tol)
	return rep, nil
}

func compare(got, want *vector.Vector, tol float64) check {
	if got.EqualApprox(want, tol) {
		return checkPassed
	}
	return checkFailed
}

// pattern fills v with small, exactly representable values.
func pattern(v []float64, period int, scale float64) {
	for i := range v {
		v[i] = float64(i%period+1) * scale
	}
}

func permuted(perm []int32, i int32) int32 {
	if perm == nil {
		return i
	}
	return perm[i]
}

func hostProlongate(f2c, permF, permC []int32, xc, xf []float64) {
	for i, f := range f2c {
		xf[permuted(permF, f)] += xc[permuted(permC, int32(i))] //nolint:gosec // G115: i < len(f2c) fits int32.
	}
}

func hostRestrict(f2c, permF, permC []int32, rf, axf, rc []float64) {
	for i, f := range f2c {
		j := permuted(permF, f)
		rc[permuted(permC, int32(i))] = rf[j] - axf[j] //nolint:gosec // G115: i < len(f2c) fits int32.
	}
}
