package multigrid

import (
	"context"
	"fmt"
	"time"

	"github.com/born-ml/hpcg/internal/geometry"
	"github.com/born-ml/hpcg/internal/metrics"
	"github.com/born-ml/hpcg/internal/vector"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/born-ml/hpcg/internal/multigrid"

// BuildCoarseLevel builds the level at half the resolution of fine on fine's
// device and attaches it together with the transfer data. Either everything
// is attached or nothing is: on error every buffer allocated by the call is
// released and fine is left unchanged.
func BuildCoarseLevel(ctx context.Context, fine *Level, opts Options) (err error) {
	geom := fine.a.Geom
	be := fine.be
	fd := dimsOf(geom)

	ctx, span := otel.Tracer(tracerName).Start(ctx, "multigrid.BuildCoarseLevel",
		trace.WithAttributes(
			attribute.String("device", be.Name()),
			attribute.Int("nx", int(fd.NX)),
			attribute.Int("ny", int(fd.NY)),
			attribute.Int("nz", int(fd.NZ)),
			attribute.Bool("reference", opts.Reference),
		),
	)
	defer span.End()
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "coarse level construction failed")
		}
	}()

	if fine.coarse != nil || fine.data != nil {
		return ErrAlreadyCoarsened
	}
	if !fd.even() {
		return fmt.Errorf("%w: %dx%dx%d", ErrOddDimension, fd.NX, fd.NY, fd.NZ)
	}
	for i := 0; i < geom.NPartZ(); i++ {
		if geom.PartzNZ(i)%2 != 0 {
			return fmt.Errorf("%w: z block %d has nz %d", ErrOddDimension, i, geom.PartzNZ(i))
		}
	}

	start := time.Now()
	log := opts.logger().With("device", be.Name())
	cd := fd.Half()

	var (
		data   = &Data{}
		coarse *Level
	)
	defer func() {
		if err != nil {
			data.release()
			if coarse != nil {
				coarse.a.Release()
			}
		}
	}()

	if data.F2C, data.C2F, err = BuildIndexMap(be, cd, fd); err != nil {
		return err
	}
	log.Debug("index map built", "coarse_cells", cd.Cells(), "fine_cells", fd.Cells())
	if err = ctx.Err(); err != nil {
		return err
	}

	p := geometry.Params{
		Size:       geom.Size,
		Rank:       geom.Rank,
		NumThreads: geom.NumThreads,
		NX:         cd.NX,
		NY:         cd.NY,
		NZ:         cd.NZ,
		NPX:        geom.NPX,
		NPY:        geom.NPY,
		NPZ:        geom.NPZ,
	}
	if geom.Pz > 0 {
		p.Pz = geom.Pz
		p.Zl = geom.PartzNZ(0) / 2
		p.Zu = geom.PartzNZ(1) / 2
	}
	cgeom, err := geometry.Generate(p)
	if err != nil {
		return fmt.Errorf("multigrid: generate coarse geometry: %w", err)
	}

	a, err := assemble(be, cgeom, opts)
	if err != nil {
		return err
	}
	coarse = &Level{a: a, be: be}
	log.Debug("coarse operator uploaded",
		"nx", cgeom.NX, "ny", cgeom.NY, "nz", cgeom.NZ,
		"rows", a.LocalNumberOfRows,
		"columns", a.LocalNumberOfColumns,
		"externals", a.Halo().NumberOfExternalValues)
	if err = ctx.Err(); err != nil {
		return err
	}

	if data.Rc, err = vector.New(be, int(a.LocalNumberOfRows)); err != nil {
		return fmt.Errorf("multigrid: allocate coarse residual: %w", err)
	}
	if data.Xc, err = vector.New(be, int(a.LocalNumberOfColumns)); err != nil {
		return fmt.Errorf("multigrid: allocate coarse correction: %w", err)
	}
	if opts.Reference {
		if data.Axf, err = vector.New(be, int(fine.a.LocalNumberOfColumns)); err != nil {
			return fmt.Errorf("multigrid: allocate fine residual scratch: %w", err)
		}
	}

	fine.coarse = coarse
	fine.data = data

	stats := be.MemoryStats()
	metrics.LevelBuildDuration.WithLabelValues(be.Name()).Observe(time.Since(start).Seconds())
	metrics.LevelRows.Observe(float64(a.LocalNumberOfRows))
	metrics.ObserveDeviceBytes(be.Name(), stats.AllocatedBytes)
	span.SetAttributes(attribute.Int("coarse_rows", int(a.LocalNumberOfRows)))
	log.Debug("coarse level attached",
		"allocated_bytes", stats.AllocatedBytes,
		"active_buffers", stats.ActiveBuffers,
		"elapsed", time.Since(start))
	return nil
}

// BuildHierarchy coarsens fine depth times down the chain. On error the
// levels built by this call are released and fine is left uncoarsened.
func BuildHierarchy(ctx context.Context, fine *Level, depth int, opts Options) error {
	lv := fine
	for i := 0; i < depth; i++ {
		if err := BuildCoarseLevel(ctx, lv, opts); err != nil {
			if i > 0 {
				fine.detach()
			}
			return fmt.Errorf("multigrid: level %d: %w", i+1, err)
		}
		lv = lv.coarse
	}
	return nil
}

// Levels returns the chain starting at l, finest first.
func (l *Level) Levels() []*Level {
	var out []*Level
	for lv := l; lv != nil; lv = lv.coarse {
		out = append(out, lv)
	}
	return out
}
