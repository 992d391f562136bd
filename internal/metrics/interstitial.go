package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// InterstitialMetrics covers the mediation state machine of every slot in
// the process. All methods are safe on a nil receiver.
type InterstitialMetrics struct {
	Loads          *prometheus.CounterVec
	Outcomes       *prometheus.CounterVec
	Handoffs       *prometheus.CounterVec
	AdapterEvents  *prometheus.CounterVec
	Failures       *prometheus.CounterVec
	StaleCallbacks *prometheus.CounterVec
	Shows          *prometheus.CounterVec

	LiveSlots  prometheus.Gauge
	ReadySlots prometheus.Gauge
}

// NewInterstitialMetrics registers the collectors with reg. A nil reg
// yields working but unregistered collectors.
func NewInterstitialMetrics(reg prometheus.Registerer, namespace string) *InterstitialMetrics {
	f := promauto.With(reg)
	const subsystem = "interstitial"
	return &InterstitialMetrics{
		Loads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "loads_total",
			Help:      "Load attempts started, by mode (load, force_refresh).",
		}, []string{"mode"}),
		Outcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "outcomes_total",
			Help:      "Terminal outcomes delivered to slot listeners.",
		}, []string{"outcome"}),
		Handoffs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "handoffs_total",
			Help:      "Mediation hand-offs received from the serving source, by adapter type.",
		}, []string{"adapter_type"}),
		AdapterEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "adapter_events_total",
			Help:      "Callbacks accepted from live adapters.",
		}, []string{"adapter_type", "event"}),
		Failures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "failures_total",
			Help:      "Recoverable mediation failures, by kind.",
		}, []string{"kind"}),
		StaleCallbacks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "stale_callbacks_total",
			Help:      "Callbacks dropped because their adapter or load attempt was superseded.",
		}, []string{"callback"}),
		Shows: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "shows_total",
			Help:      "Presentations attempted, by first_party or adapter type.",
		}, []string{"source"}),
		LiveSlots: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "live_slots",
			Help:      "Slots created and not yet destroyed.",
		}),
		ReadySlots: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "ready_slots",
			Help:      "Slots currently holding a presentable ad.",
		}),
	}
}

func (m *InterstitialMetrics) RecordLoad(mode string) {
	if m == nil {
		return
	}
	m.Loads.WithLabelValues(mode).Inc()
}

func (m *InterstitialMetrics) RecordOutcome(outcome string) {
	if m == nil {
		return
	}
	m.Outcomes.WithLabelValues(outcome).Inc()
}

func (m *InterstitialMetrics) RecordHandoff(adapterType string) {
	if m == nil {
		return
	}
	m.Handoffs.WithLabelValues(adapterType).Inc()
}

func (m *InterstitialMetrics) RecordAdapterEvent(adapterType, event string) {
	if m == nil {
		return
	}
	m.AdapterEvents.WithLabelValues(adapterType, event).Inc()
}

func (m *InterstitialMetrics) RecordFailure(kind string) {
	if m == nil {
		return
	}
	m.Failures.WithLabelValues(kind).Inc()
}

func (m *InterstitialMetrics) RecordStale(callback string) {
	if m == nil {
		return
	}
	m.StaleCallbacks.WithLabelValues(callback).Inc()
}

func (m *InterstitialMetrics) RecordShow(source string) {
	if m == nil {
		return
	}
	m.Shows.WithLabelValues(source).Inc()
}

func (m *InterstitialMetrics) SlotCreated() {
	if m == nil {
		return
	}
	m.LiveSlots.Inc()
}

func (m *InterstitialMetrics) SlotDestroyed() {
	if m == nil {
		return
	}
	m.LiveSlots.Dec()
}

// ReadyChanged adjusts the ready gauge on a readiness edge.
func (m *InterstitialMetrics) ReadyChanged(wasReady, isReady bool) {
	if m == nil || wasReady == isReady {
		return
	}
	if isReady {
		m.ReadySlots.Inc()
	} else {
		m.ReadySlots.Dec()
	}
}
