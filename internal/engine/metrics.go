package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is nil-safe: a nil *Metrics records nothing.
type Metrics struct {
	saves         *prometheus.CounterVec
	saveDuration  *prometheus.HistogramVec
	items         *prometheus.CounterVec
	auditFailures prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		saves: f.NewCounterVec(prometheus.CounterOpts{
			Name: "drafts_save_total",
			Help: "Draft saves by address mode and outcome.",
		}, []string{"mode", "outcome"}),
		saveDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "drafts_save_duration_seconds",
			Help:    "Time spent saving a draft, validation included.",
			Buckets: prometheus.DefBuckets,
		}, []string{"mode"}),
		items: f.NewCounterVec(prometheus.CounterOpts{
			Name: "drafts_items_total",
			Help: "Collection items reconciled by kind and operation.",
		}, []string{"kind", "op"}),
		auditFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "drafts_audit_failures_total",
			Help: "Audit events that could not be delivered.",
		}),
	}
}

func (m *Metrics) ObserveSave(mode AddressMode, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.saves.WithLabelValues(mode.String(), outcome).Inc()
	m.saveDuration.WithLabelValues(mode.String()).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveItem(kind string, op ItemOp) {
	if m == nil {
		return
	}
	m.items.WithLabelValues(kind, string(op)).Inc()
}

func (m *Metrics) AuditFailed() {
	if m == nil {
		return
	}
	m.auditFailures.Inc()
}
