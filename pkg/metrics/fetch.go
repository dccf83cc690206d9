package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// FetchMetrics provides observability for a single fetch driver run.
//
// Implementations collect metrics about RPC call volume, error rates,
// bytes delivered downstream, and overall fetch duration. This interface
// is optional - if not provided, a no-op implementation is used with
// zero overhead.
type FetchMetrics interface {
	// RecordRPCCall records one RPC call issued, labeled by procedure
	// name (e.g. "GETPORT", "MNT", "LOOKUP", "READ", "UMNT").
	RecordRPCCall(procedure string)

	// RecordRPCError records one terminal fetch failure, labeled by its
	// errs.Code taxonomy string (e.g. "REMOTE", "NETWORK", "CANCELLED").
	RecordRPCError(code string)

	// RecordBytesDelivered records bytes handed to the downstream sink.
	RecordBytesDelivered(bytes int)

	// RecordFetchDuration records the wall-clock time from the start of
	// Run to the terminal state (DONE or FAILED).
	RecordFetchDuration(d time.Duration)
}

// fetchMetrics is the Prometheus implementation of FetchMetrics.
type fetchMetrics struct {
	rpcCallsTotal  *prometheus.CounterVec
	rpcErrorsTotal *prometheus.CounterVec
	bytesDelivered prometheus.Counter
	fetchDuration  prometheus.Histogram
}

// NewFetchMetrics creates a new Prometheus-backed FetchMetrics instance.
//
// Returns a no-op implementation if metrics are not enabled (InitRegistry
// not called).
func NewFetchMetrics() FetchMetrics {
	if !IsEnabled() {
		return noopFetchMetrics{}
	}

	reg := GetRegistry()

	return &fetchMetrics{
		rpcCallsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "nfsfetch_rpc_calls_total",
				Help: "Total number of RPC calls issued, by procedure",
			},
			[]string{"procedure"},
		),
		rpcErrorsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "nfsfetch_errors_total",
				Help: "Total number of terminal fetch errors, by taxonomy code",
			},
			[]string{"code"},
		),
		bytesDelivered: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "nfsfetch_bytes_delivered_total",
				Help: "Total bytes delivered to the downstream sink",
			},
		),
		fetchDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name: "nfsfetch_fetch_duration_seconds",
				Help: "Duration of a complete fetch, from open to terminal state",
				Buckets: []float64{
					0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 10.0, 30.0,
				},
			},
		),
	}
}

func (m *fetchMetrics) RecordRPCCall(procedure string) {
	m.rpcCallsTotal.WithLabelValues(procedure).Inc()
}

func (m *fetchMetrics) RecordRPCError(code string) {
	m.rpcErrorsTotal.WithLabelValues(code).Inc()
}

func (m *fetchMetrics) RecordBytesDelivered(bytes int) {
	m.bytesDelivered.Add(float64(bytes))
}

func (m *fetchMetrics) RecordFetchDuration(d time.Duration) {
	m.fetchDuration.Observe(d.Seconds())
}

// noopFetchMetrics is a no-op implementation of FetchMetrics with zero
// overhead.
type noopFetchMetrics struct{}

func (noopFetchMetrics) RecordRPCCall(procedure string)      {}
func (noopFetchMetrics) RecordRPCError(code string)          {}
func (noopFetchMetrics) RecordBytesDelivered(bytes int)      {}
func (noopFetchMetrics) RecordFetchDuration(d time.Duration) {}
