package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// WaterfallMetrics covers ad server fetches and candidate traversal.
type WaterfallMetrics struct {
	FetchLatency prometheus.Histogram
	Fetches      *prometheus.CounterVec
	Candidates   *prometheus.CounterVec
	Skipped      *prometheus.CounterVec

	CircuitBreakerOpen prometheus.Gauge
}

func NewWaterfallMetrics(reg prometheus.Registerer, namespace string) *WaterfallMetrics {
	f := promauto.With(reg)
	const subsystem = "waterfall"
	return &WaterfallMetrics{
		FetchLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "fetch_latency_seconds",
			Help:      "Ad server waterfall fetch latency in seconds",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0},
		}),
		Fetches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "fetches_total",
			Help:      "Waterfall fetches by result (ok, error, rejected).",
		}, []string{"result"}),
		Candidates: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "candidates_total",
			Help:      "Candidates served to slots, by kind.",
		}, []string{"kind"}),
		Skipped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "skipped_total",
			Help:      "Candidates skipped because their network is unhealthy.",
		}, []string{"network"}),
		CircuitBreakerOpen: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "circuit_breaker_open",
			Help:      "1 when the ad server circuit breaker is open.",
		}),
	}
}

func (m *WaterfallMetrics) RecordFetch(result string, latencySeconds float64) {
	if m == nil {
		return
	}
	m.Fetches.WithLabelValues(result).Inc()
	if latencySeconds > 0 {
		m.FetchLatency.Observe(latencySeconds)
	}
}

func (m *WaterfallMetrics) RecordCandidate(kind string) {
	if m == nil {
		return
	}
	m.Candidates.WithLabelValues(kind).Inc()
}

func (m *WaterfallMetrics) RecordSkip(network string) {
	if m == nil {
		return
	}
	m.Skipped.WithLabelValues(network).Inc()
}

func (m *WaterfallMetrics) UpdateCircuitBreaker(open bool) {
	if m == nil {
		return
	}
	if open {
		m.CircuitBreakerOpen.Set(1)
	} else {
		m.CircuitBreakerOpen.Set(0)
	}
}

// TrackingMetrics counts beacon deliveries.
type TrackingMetrics struct {
	Beacons *prometheus.CounterVec
}

func NewTrackingMetrics(reg prometheus.Registerer, namespace string) *TrackingMetrics {
	return &TrackingMetrics{
		Beacons: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tracking",
			Name:      "beacons_total",
			Help:      "Tracking beacons fired, by kind and result.",
		}, []string{"kind", "result"}),
	}
}

func (m *TrackingMetrics) RecordBeacon(kind, result string) {
	if m == nil {
		return
	}
	m.Beacons.WithLabelValues(kind, result).Inc()
}
