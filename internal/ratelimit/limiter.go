package ratelimit

import (
	"context"
	"log/slog"

	"electa/internal/ratelimit/metrics"
	"electa/pkg/platform/circuit"
)

// Limiter checks the primary store and falls back to an in-process window
// while the primary is failing.
type Limiter struct {
	primary  Store
	fallback Store
	breaker  *circuit.Breaker
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type LimiterOption func(*Limiter)

func WithFallback(store Store) LimiterOption {
	return func(l *Limiter) {
		l.fallback = store
	}
}

func WithBreaker(b *circuit.Breaker) LimiterOption {
	return func(l *Limiter) {
		if b != nil {
			l.breaker = b
		}
	}
}

func WithLimiterLogger(logger *slog.Logger) LimiterOption {
	return func(l *Limiter) {
		l.logger = logger
	}
}

func WithLimiterMetrics(m *metrics.Metrics) LimiterOption {
	return func(l *Limiter) {
		l.metrics = m
	}
}

func NewLimiter(primary Store, opts ...LimiterOption) *Limiter {
	l := &Limiter{
		primary: primary,
		breaker: circuit.New("ratelimit"),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Limiter) Check(ctx context.Context, policy Policy, ip string) (Result, error) {
	key := keyFor(policy.Name, ip)
	if l.fallback == nil {
		return l.primary.Allow(ctx, key, policy.Limit, policy.Window)
	}

	if l.breaker.Allow() {
		res, err := l.primary.Allow(ctx, key, policy.Limit, policy.Window)
		if err == nil {
			if _, change := l.breaker.RecordSuccess(); change.Closed {
				l.logger.InfoContext(ctx, "rate limit store recovered")
			}
			return res, nil
		}
		if _, change := l.breaker.RecordFailure(); change.Opened {
			l.logger.WarnContext(ctx, "rate limit store failing, using in-memory fallback", "error", err)
		}
	}
	if l.metrics != nil {
		l.metrics.IncrementStoreFallbacks()
	}
	return l.fallback.Allow(ctx, key, policy.Limit, policy.Window)
}
