package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Reconcile outcomes.
const (
	ReconcileNoElection = "no_election"
	ReconcileLedger     = "ledger"
	ReconcileDegraded   = "degraded"
)

// Metrics covers lifecycle fan-outs and reconciliation.
type Metrics struct {
	FanOutUnits      *prometheus.CounterVec
	FanOutDuration   *prometheus.HistogramVec
	ReconcileResults *prometheus.CounterVec
	DriftCleared     prometheus.Counter
}

func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		FanOutUnits: f.NewCounterVec(prometheus.CounterOpts{
			Name: "electa_election_fanout_units_total",
			Help: "Per-account fan-out units by transition and result",
		}, []string{"transition", "result"}),
		FanOutDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "electa_election_fanout_duration_seconds",
			Help:    "Wall time of a full lifecycle fan-out",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"transition"}),
		ReconcileResults: f.NewCounterVec(prometheus.CounterOpts{
			Name: "electa_election_reconcile_total",
			Help: "Reconciliations by outcome",
		}, []string{"outcome"}),
		DriftCleared: f.NewCounter(prometheus.CounterOpts{
			Name: "electa_election_drift_cleared_total",
			Help: "Times reconciliation cleared a finished election reference",
		}),
	}
}

func (m *Metrics) ObserveUnit(transition string, ok bool) {
	result := "success"
	if !ok {
		result = "failure"
	}
	m.FanOutUnits.WithLabelValues(transition, result).Inc()
}

func (m *Metrics) ObserveFanOut(transition string, d time.Duration) {
	m.FanOutDuration.WithLabelValues(transition).Observe(d.Seconds())
}

func (m *Metrics) ObserveReconcile(outcome string) {
	m.ReconcileResults.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementDriftCleared() { m.DriftCleared.Inc() }
