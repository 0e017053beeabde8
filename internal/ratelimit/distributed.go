package ratelimit

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/govatlas/catalog-cli/internal/model"
)

const defaultRetryWait = 500 * time.Millisecond

// DistributedLimiter delegates token accounting to a remote coordination
// service so separate processes throttle shared hosts together. Any
// transport failure silently falls back to the in-process limiter for that
// call; a throttled (non-200) response honors the Retry-After hint.
type DistributedLimiter struct {
	endpoint string
	client   *http.Client
	fallback *LocalLimiter
}

// NewDistributedLimiter creates a limiter backed by the coordination
// endpoint, with the given local limiter as its degraded path.
func NewDistributedLimiter(endpoint string, fallback *LocalLimiter) *DistributedLimiter {
	if fallback == nil {
		fallback = NewLocalLimiter()
	}
	return &DistributedLimiter{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 5 * time.Second},
		fallback: fallback,
	}
}

type consumeRequest struct {
	Host string           `json:"host"`
	Rate model.RateBudget `json:"rate"`
}

// Consume requests one token from the coordination service, sleeping and
// retrying while the service reports the bucket empty.
func (d *DistributedLimiter) Consume(ctx context.Context, host string, budget model.RateBudget) error {
	for {
		body, err := json.Marshal(consumeRequest{Host: host, Rate: budget})
		if err != nil {
			return d.fallback.Consume(ctx, host, budget)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(body))
		if err != nil {
			return d.fallback.Consume(ctx, host, budget)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := d.client.Do(req)
		if err != nil {
			zap.L().Debug("rate coordination unreachable, using local bucket",
				zap.String("host", host),
				zap.Error(err),
			)
			return d.fallback.Consume(ctx, host, budget)
		}
		status := resp.StatusCode
		retryAfter := resp.Header.Get("Retry-After")
		_ = resp.Body.Close()

		if status == http.StatusOK {
			return nil
		}

		wait := defaultRetryWait
		if secs, parseErr := strconv.ParseFloat(retryAfter, 64); parseErr == nil && secs > 0 {
			wait = time.Duration(secs * float64(time.Second))
		}

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}
