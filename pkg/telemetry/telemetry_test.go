package telemetry

import (
	"testing"
	"time"

	"github.com/chaosmend/chaosmend-go/pkg/types"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveExperiment(t *testing.T) {
	m := New()

	m.ObserveExperiment(types.CPUStress, types.SuccessStatus, 2, 90*time.Second)
	m.ObserveExperiment(types.CPUStress, types.FailedStatus, 2, 200*time.Second)

	assert.Equal(t, float64(1),
		testutil.ToFloat64(m.experiments.WithLabelValues("cpu-stress", types.SuccessStatus)))
	assert.Equal(t, float64(1),
		testutil.ToFloat64(m.remediationSuccess.WithLabelValues("cpu-stress")))
}

func TestObserveInjectionFailure(t *testing.T) {
	m := New()

	m.ObserveInjectionFailure(types.DiskIO)
	m.ObserveInjectionFailure(types.DiskIO)

	assert.Equal(t, float64(2),
		testutil.ToFloat64(m.injectionFailures.WithLabelValues("disk-io")))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveExperiment(types.PodFail, types.FailedStatus, 1, time.Second)
		m.ObserveInjectionFailure(types.PodFail)
		m.Serve(":0")
	})
}
