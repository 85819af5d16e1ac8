package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds process-wide HTTP and account metrics.
type Metrics struct {
	AccountsRegistered prometheus.Counter
	AccountsDeleted    prometheus.Counter
	VotesRecorded      prometheus.Counter
	RequestDuration    *prometheus.HistogramVec
}

// New creates and registers the metrics with the default registry.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer lets tests use an isolated registry.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		AccountsRegistered: f.NewCounter(prometheus.CounterOpts{
			Name: "electa_accounts_registered_total",
			Help: "Total number of accounts registered by admins",
		}),
		AccountsDeleted: f.NewCounter(prometheus.CounterOpts{
			Name: "electa_accounts_deleted_total",
			Help: "Total number of accounts deleted by admins",
		}),
		VotesRecorded: f.NewCounter(prometheus.CounterOpts{
			Name: "electa_votes_recorded_total",
			Help: "Total number of votes recorded against accounts",
		}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "electa_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern and status",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"method", "route", "status"}),
	}
}

func (m *Metrics) IncrementAccountsRegistered() { m.AccountsRegistered.Inc() }
func (m *Metrics) IncrementAccountsDeleted()    { m.AccountsDeleted.Inc() }
func (m *Metrics) IncrementVotesRecorded()      { m.VotesRecorded.Inc() }

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Latency records request duration labelled by the chi route pattern.
func (m *Metrics) Latency(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		m.RequestDuration.WithLabelValues(r.Method, route, strconv.Itoa(sw.status)).
			Observe(time.Since(start).Seconds())
	})
}
