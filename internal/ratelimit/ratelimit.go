// Package ratelimit provides per-host token buckets for outbound fetches.
// Two strategies exist: a distributed limiter that delegates accounting to a
// coordination service, and an in-process limiter shared per process.
package ratelimit

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/govatlas/catalog-cli/internal/model"
)

// Strategy blocks the caller until one token is available for the host.
type Strategy interface {
	Consume(ctx context.Context, host string, budget model.RateBudget) error
}

// LocalLimiter holds one token bucket per host. State is shared across all
// runner instances in the same process so concurrent invocations correctly
// throttle shared hosts.
type LocalLimiter struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

// NewLocalLimiter creates an empty in-process limiter.
func NewLocalLimiter() *LocalLimiter {
	return &LocalLimiter{buckets: make(map[string]*rate.Limiter)}
}

func (l *LocalLimiter) bucketFor(host string, budget model.RateBudget) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.buckets[host]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(budget.RPS), budget.Burst)
		l.buckets[host] = lim
		return lim
	}

	// Sources sharing a host may declare different budgets; the most recent
	// caller's budget wins so the bucket tracks current registry config.
	if lim.Limit() != rate.Limit(budget.RPS) {
		lim.SetLimit(rate.Limit(budget.RPS))
	}
	if lim.Burst() != budget.Burst {
		lim.SetBurst(budget.Burst)
	}
	return lim
}

// Consume waits for one token for the host, suspending the calling flow
// without blocking other goroutines.
func (l *LocalLimiter) Consume(ctx context.Context, host string, budget model.RateBudget) error {
	if budget.RPS <= 0 || budget.Burst <= 0 {
		return eris.Errorf("ratelimit: invalid budget for %s (rps=%v burst=%d)", host, budget.RPS, budget.Burst)
	}
	if err := l.bucketFor(host, budget).Wait(ctx); err != nil {
		return eris.Wrapf(err, "ratelimit: wait for %s", host)
	}
	return nil
}
