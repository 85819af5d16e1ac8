// Package ratelimit throttles the unauthenticated login endpoints per client
// IP with a sliding window.
package ratelimit

import (
	"context"
	"time"
)

// Policy caps requests per window for one endpoint class.
type Policy struct {
	Name   string
	Limit  int
	Window time.Duration
}

// Result is the outcome of one check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
	// RetryAfter is whole seconds until a slot frees, set only when denied.
	RetryAfter int
}

// Store counts requests per key inside a sliding window.
type Store interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (Result, error)
}

func keyFor(policy, ip string) string {
	return "electa:rl:" + policy + ":" + ip
}

func retryAfter(now, resetAt time.Time) int {
	secs := int(resetAt.Sub(now).Round(time.Second) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}
