package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Login outcomes recorded by LoginAttempts.
const (
	OutcomeSuccess           = "success"
	OutcomeInvalidOrExpired  = "invalid_or_expired"
	OutcomeInvalidCredential = "invalid_credential"
)

type Metrics struct {
	LoginCodesIssued prometheus.Counter
	DeliveryFailures prometheus.Counter
	LoginAttempts    *prometheus.CounterVec
	TokensRevoked    prometheus.Counter
}

func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		LoginCodesIssued: f.NewCounter(prometheus.CounterOpts{
			Name: "electa_login_codes_issued_total",
			Help: "Login codes generated and delivered",
		}),
		DeliveryFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "electa_login_code_delivery_failures_total",
			Help: "Login codes invalidated because delivery failed",
		}),
		LoginAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "electa_login_attempts_total",
			Help: "Login code verifications by outcome",
		}, []string{"outcome"}),
		TokensRevoked: f.NewCounter(prometheus.CounterOpts{
			Name: "electa_tokens_revoked_total",
			Help: "Session tokens revoked on logout",
		}),
	}
}

func (m *Metrics) IncrementLoginCodesIssued() { m.LoginCodesIssued.Inc() }
func (m *Metrics) IncrementDeliveryFailures() { m.DeliveryFailures.Inc() }
func (m *Metrics) IncrementTokensRevoked()    { m.TokensRevoked.Inc() }

func (m *Metrics) ObserveLogin(outcome string) {
	m.LoginAttempts.WithLabelValues(outcome).Inc()
}
