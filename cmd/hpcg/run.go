package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/born-ml/hpcg/internal/config"
	"github.com/born-ml/hpcg/internal/multigrid"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func cmdRun(args []string) {
	cfg, err := loadConfig("run", args)
	if err != nil {
		log.Fatal(err)
	}
	logger := newLogger(cfg.LogLevel).With("run", uuid.NewString())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if cfg.MetricsAddr != "" {
		srv := serveMetrics(cfg.MetricsAddr, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("run failed", "err", err)
		stop()
		os.Exit(1)
	}
}

func serveMetrics(addr string, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "err", err)
		}
	}()
	logger.Info("serving metrics", "addr", addr)
	return srv
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	be, err := newBackend(cfg, logger)
	if err != nil {
		return err
	}
	defer be.Release()
	logger = logger.With("device", be.Name())

	opts := multigrid.Options{Reference: cfg.Reference, Reorder: cfg.Reorder, Logger: logger}
	start := time.Now()
	fine, err := multigrid.NewLevel(ctx, be, cfg.GeometryParams(), opts)
	if err != nil {
		return err
	}
	defer fine.Release()

	if err := multigrid.BuildHierarchy(ctx, fine, cfg.Levels, opts); err != nil {
		return err
	}
	logger.Info("hierarchy built", "levels", fine.Depth(), "elapsed", time.Since(start))

	for i, lv := range fine.Levels() {
		a := lv.Matrix()
		g := lv.Geometry()
		fmt.Printf("level %d: %dx%dx%d local, %dx%dx%d global, rows %d, columns %d, nonzeros %d\n",
			i, g.NX, g.NY, g.NZ, g.GNX, g.GNY, g.GNZ,
			a.LocalNumberOfRows, a.LocalNumberOfColumns, a.LocalNumberOfNonzeros)
	}

	tol := 1e-9
	if be.Name() != "CPU" {
		tol = 1e-4
	}
	for i, lv := range fine.Levels() {
		if lv.Coarse() == nil {
			break
		}
		rep, err := verifyLevel(ctx, lv, tol)
		if err != nil {
			return fmt.Errorf("level %d: %w", i, err)
		}
		fmt.Printf("transfer %d->%d: f2c digest %016x, prolongation %s, restriction %s\n",
			i, i+1, rep.Digest, status(rep.Prolongation), status(rep.Restriction))
		if rep.Prolongation == checkFailed || rep.Restriction == checkFailed {
			return fmt.Errorf("level %d: transfer mismatch", i)
		}
	}

	stats := be.MemoryStats()
	fmt.Printf("device memory: %d bytes live in %d buffers, peak %d bytes, %d allocations\n",
		stats.AllocatedBytes, stats.ActiveBuffers, stats.PeakBytes, stats.Allocations)
	return nil
}
