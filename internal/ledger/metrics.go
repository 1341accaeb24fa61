package ledger

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for ledger computations.
type Metrics struct {
	fallbacks  *prometheus.CounterVec
	missing    *prometheus.CounterVec
	violations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewMetrics registers the ledger collectors against registerer, or the
// default Prometheus registerer when nil.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_privileged_fallback_total",
			Help: "Scoped queries used because the privileged accessor was unavailable.",
		}, []string{"source"}),
		missing: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_optional_source_missing_total",
			Help: "Optional sources skipped because they are not provisioned.",
		}, []string{"source"}),
		violations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_invariant_violations_total",
			Help: "Failed ledger consistency checks by check name.",
		}, []string{"check"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ledger_compute_duration_seconds",
			Help:    "Duration of ledger computations by operation and outcome.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation", "status"}),
	}
	registerer.MustRegister(m.fallbacks, m.missing, m.violations, m.duration)
	return m
}

// RecordFallback implements FallbackRecorder.
func (m *Metrics) RecordFallback(source string) {
	if m == nil {
		return
	}
	m.fallbacks.WithLabelValues(source).Inc()
}

// RecordMissing counts an optional source that is not provisioned.
func (m *Metrics) RecordMissing(source string) {
	if m == nil {
		return
	}
	m.missing.WithLabelValues(source).Inc()
}

// RecordViolation implements ViolationRecorder.
func (m *Metrics) RecordViolation(check string) {
	if m == nil {
		return
	}
	m.violations.WithLabelValues(check).Inc()
}

// observe records one computation and returns err untouched.
func (m *Metrics) observe(operation string, start time.Time, err error) error {
	if m == nil {
		return err
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	m.duration.WithLabelValues(operation, status).Observe(time.Since(start).Seconds())
	return err
}
