// Package metrics holds the Prometheus collectors of the grid-transfer core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// KernelLaunches counts kernel launches by kernel and device.
	KernelLaunches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hpcg_kernel_launches_total",
		Help: "Grid-transfer kernel launches by kernel and device",
	}, []string{"kernel", "device"})

	// KernelErrors counts failed kernel launches by kernel and device.
	KernelErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hpcg_kernel_errors_total",
		Help: "Failed grid-transfer kernel launches by kernel and device",
	}, []string{"kernel", "device"})

	// DeviceBytes reports bytes held by live device buffers.
	DeviceBytes = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "hpcg_device_allocated_bytes",
		Help: "Bytes held by live device buffers",
	}, []string{"device"})

	// LevelBuildDuration tracks coarse-level construction time.
	LevelBuildDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hpcg_level_build_duration_seconds",
		Help:    "Coarse level construction time",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10), // 0.1ms to ~26s
	}, []string{"device"})

	// LevelRows records the local row count of each coarse level built.
	LevelRows = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "hpcg_level_rows",
		Help:    "Local rows of constructed coarse levels",
		Buckets: prometheus.ExponentialBuckets(1, 8, 10),
	})
)

// Kernel names used as label values.
const (
	KernelInjection    = "injection"
	KernelProlongation = "prolongation"
	KernelRestriction  = "restriction"
)

// ObserveKernel records one launch of kernel on dev and whether it failed.
func ObserveKernel(kernel, dev string, err error) {
	KernelLaunches.WithLabelValues(kernel, dev).Inc()
	if err != nil {
		KernelErrors.WithLabelValues(kernel, dev).Inc()
	}
}

// ObserveDeviceBytes sets the allocated-bytes gauge of dev.
func ObserveDeviceBytes(dev string, bytes uint64) {
	DeviceBytes.WithLabelValues(dev).Set(float64(bytes))
}
