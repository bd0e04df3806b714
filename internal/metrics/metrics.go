// Package metrics holds the Prometheus collectors of the rule engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// CodeOK labels successful calls.
const CodeOK = "OK"

// Metrics groups the engine collectors. A nil *Metrics records nothing.
type Metrics struct {
	// CallsTotal counts calls by method name and result code.
	CallsTotal *prometheus.CounterVec
	// CallDuration is the latency of resolve plus invoke.
	CallDuration *prometheus.HistogramVec
	// BatchSize is the number of requests per CallBatch.
	BatchSize prometheus.Histogram
	// JournalErrors counts failed journal writes.
	JournalErrors prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		CallsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tablets_calls_total",
				Help: "Total number of rule method calls",
			},
			[]string{"method", "code"},
		),
		CallDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tablets_call_duration_seconds",
				Help:    "Rule method call latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		BatchSize: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "tablets_batch_size",
			Help:    "Number of calls per batch",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		}),
		JournalErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "tablets_journal_errors_total",
			Help: "Total number of failed journal writes",
		}),
	}
}

// ObserveCall records one call outcome. An empty code means success.
func (m *Metrics) ObserveCall(method, code string, d time.Duration) {
	if m == nil {
		return
	}
	if code == "" {
		code = CodeOK
	}
	m.CallsTotal.WithLabelValues(method, code).Inc()
	m.CallDuration.WithLabelValues(method).Observe(d.Seconds())
}

// ObserveBatch records the size of one batch.
func (m *Metrics) ObserveBatch(n int) {
	if m == nil {
		return
	}
	m.BatchSize.Observe(float64(n))
}

// JournalError counts one failed journal write.
func (m *Metrics) JournalError() {
	if m == nil {
		return
	}
	m.JournalErrors.Inc()
}
