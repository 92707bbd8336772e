// Package telemetry exposes campaign progress as prometheus metrics. All
// methods are nil-safe so the campaign can run without a metrics listener.
package telemetry

import (
	"net/http"
	"time"

	"github.com/chaosmend/chaosmend-go/pkg/log"
	"github.com/chaosmend/chaosmend-go/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the campaign's prometheus collectors
type Metrics struct {
	experiments         *prometheus.CounterVec
	injectionFailures   *prometheus.CounterVec
	remediationSuccess  *prometheus.CounterVec
	remediationAttempts prometheus.Histogram
	remediationDuration prometheus.Histogram

	registry *prometheus.Registry
}

// New registers the campaign collectors on a fresh registry
func New() *Metrics {
	m := &Metrics{
		experiments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chaosmend_experiments_total",
			Help: "Experiments run, by failure kind and verdict",
		}, []string{"failure_kind", "status"}),
		injectionFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chaosmend_injection_failures_total",
			Help: "Injections that failed or never manifested, by failure kind",
		}, []string{"failure_kind"}),
		remediationSuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chaosmend_remediation_success_total",
			Help: "Verified recoveries, by failure kind",
		}, []string{"failure_kind"}),
		remediationAttempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "chaosmend_remediation_attempts",
			Help:    "Playbook attempts consumed per experiment",
			Buckets: []float64{1, 2, 3, 4, 5},
		}),
		remediationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "chaosmend_remediation_duration_seconds",
			Help:    "Wall clock time of the remediation loop per experiment",
			Buckets: prometheus.ExponentialBuckets(10, 2, 8),
		}),
		registry: prometheus.NewRegistry(),
	}
	m.registry.MustRegister(m.experiments, m.injectionFailures, m.remediationSuccess,
		m.remediationAttempts, m.remediationDuration)
	return m
}

// ObserveExperiment records one finished experiment
func (m *Metrics) ObserveExperiment(kind types.FailureKind, status string, attempts int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.experiments.WithLabelValues(string(kind), status).Inc()
	m.remediationAttempts.Observe(float64(attempts))
	m.remediationDuration.Observe(elapsed.Seconds())
	if status == types.SuccessStatus {
		m.remediationSuccess.WithLabelValues(string(kind)).Inc()
	}
}

// ObserveInjectionFailure records an injection that failed or never manifested
func (m *Metrics) ObserveInjectionFailure(kind types.FailureKind) {
	if m == nil {
		return
	}
	m.injectionFailures.WithLabelValues(string(kind)).Inc()
}

// Serve exposes /metrics on addr in the background. An empty addr disables
// the listener.
func (m *Metrics) Serve(addr string) {
	if m == nil || addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	go func() {
		log.Infof("[Telemetry]: Serving metrics on %v", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Errorf("[Telemetry]: Metrics listener stopped, err: %v", err)
		}
	}()
}
