package multigrid

import (
	"context"
	"fmt"

	"github.com/born-ml/hpcg/internal/device"
	"github.com/born-ml/hpcg/internal/metrics"
	"github.com/born-ml/hpcg/internal/vector"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// transferArgs describes a launch over the coarse rows of fine's coarse level.
func (l *Level) transferArgs() device.TransferArgs {
	return device.TransferArgs{
		N:          int(l.coarse.a.LocalNumberOfRows),
		F2C:        l.data.F2C,
		PermFine:   l.a.Perm(),
		PermCoarse: l.coarse.a.Perm(),
	}
}

func (l *Level) checkFineVector(name string, v *vector.Vector) error {
	if v == nil || v.Device() == nil {
		return fmt.Errorf("multigrid: %s: %w", name, device.ErrReleased)
	}
	if v.Len() < int(l.a.LocalNumberOfRows) {
		return fmt.Errorf("%w: %s has %d entries, level has %d rows", ErrLengthMismatch, name, v.Len(), l.a.LocalNumberOfRows)
	}
	return nil
}

// Prolongate adds the coarse correction Xc onto the injected cells of xf:
// xf[permF[f2c[i]]] += xc[permC[i]] for every coarse row i. Fine cells that
// are not injected are left untouched.
func Prolongate(ctx context.Context, fine *Level, xf *vector.Vector) (err error) {
	_, span := otel.Tracer(tracerName).Start(ctx, "multigrid.Prolongate",
		trace.WithAttributes(attribute.String("device", fine.be.Name())))
	defer span.End()
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "prolongation failed")
		}
	}()

	if fine.data == nil || fine.coarse == nil {
		return ErrNotCoarsened
	}
	if err = fine.checkFineVector("xf", xf); err != nil {
		return err
	}

	args := fine.transferArgs()
	span.SetAttributes(attribute.Int("coarse_rows", args.N))
	err = fine.be.Prolongate(args, fine.data.Xc.Device(), xf.Device())
	metrics.ObserveKernel(metrics.KernelProlongation, fine.be.Name(), err)
	if err != nil {
		return fmt.Errorf("multigrid: prolongation kernel: %w", err)
	}
	return nil
}

// Restrict injects the fine residual into Rc: rc[permC[i]] = rf[j] - Axf[j]
// with j = permF[f2c[i]]. The level must have been built with Options.Reference.
func Restrict(ctx context.Context, fine *Level, rf *vector.Vector) (err error) {
	_, span := otel.Tracer(tracerName).Start(ctx, "multigrid.Restrict",
		trace.WithAttributes(attribute.String("device", fine.be.Name())))
	defer span.End()
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "restriction failed")
		}
	}()

	if fine.data == nil || fine.coarse == nil {
		return ErrNotCoarsened
	}
	if fine.data.Axf == nil || fine.data.Axf.Device() == nil {
		return ErrNoFineResidualScratch
	}
	if err = fine.checkFineVector("rf", rf); err != nil {
		return err
	}

	args := fine.transferArgs()
	span.SetAttributes(attribute.Int("coarse_rows", args.N))
	err = fine.be.Restrict(args, rf.Device(), fine.data.Axf.Device(), fine.data.Rc.Device())
	metrics.ObserveKernel(metrics.KernelRestriction, fine.be.Name(), err)
	if err != nil {
		return fmt.Errorf("multigrid: restriction kernel: %w", err)
	}
	return nil
}
