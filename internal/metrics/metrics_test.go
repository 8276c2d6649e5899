package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveKernel(t *testing.T) {
	launches := testutil.ToFloat64(KernelLaunches.WithLabelValues(KernelProlongation, "test"))
	failures := testutil.ToFloat64(KernelErrors.WithLabelValues(KernelProlongation, "test"))

	ObserveKernel(KernelProlongation, "test", nil)
	ObserveKernel(KernelProlongation, "test", errors.New("boom"))

	assert.InDelta(t, launches+2, testutil.ToFloat64(KernelLaunches.WithLabelValues(KernelProlongation, "test")), 0)
	assert.InDelta(t, failures+1, testutil.ToFloat64(KernelErrors.WithLabelValues(KernelProlongation, "test")), 0)
}

func TestObserveDeviceBytes(t *testing.T) {
	ObserveDeviceBytes("test", 4096)
	assert.InDelta(t, 4096.0, testutil.ToFloat64(DeviceBytes.WithLabelValues("test")), 0)
	ObserveDeviceBytes("test", 0)
	assert.Zero(t, testutil.ToFloat64(DeviceBytes.WithLabelValues("test")))
}
