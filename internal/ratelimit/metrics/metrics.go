package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Rejections     *prometheus.CounterVec
	StoreFallbacks prometheus.Counter
}

func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Rejections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "electa_ratelimit_rejections_total",
			Help: "Requests rejected with 429, by policy",
		}, []string{"policy"}),
		StoreFallbacks: f.NewCounter(prometheus.CounterOpts{
			Name: "electa_ratelimit_store_fallbacks_total",
			Help: "Checks served by the in-memory fallback while the shared store was unavailable",
		}),
	}
}

func (m *Metrics) IncrementRejections(policy string) {
	m.Rejections.WithLabelValues(policy).Inc()
}

func (m *Metrics) IncrementStoreFallbacks() {
	m.StoreFallbacks.Inc()
}
