package ratelimit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/govatlas/catalog-cli/internal/model"
)

func TestLocalLimiter_BurstThenThrottle(t *testing.T) {
	l := NewLocalLimiter()
	budget := model.RateBudget{RPS: 50, Burst: 2}
	ctx := context.Background()

	start := time.Now()
	for range 4 {
		require.NoError(t, l.Consume(ctx, "api.example.gov", budget))
	}
	elapsed := time.Since(start)

	// Two tokens are free from the burst; the remaining two refill at
	// 50/s, so the loop cannot finish faster than 2/50 seconds.
	assert.GreaterOrEqual(t, elapsed, 40*time.Millisecond)
}

func TestLocalLimiter_HostsIndependent(t *testing.T) {
	l := NewLocalLimiter()
	budget := model.RateBudget{RPS: 1, Burst: 1}
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, l.Consume(ctx, "a.example.gov", budget))
	require.NoError(t, l.Consume(ctx, "b.example.gov", budget))
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestLocalLimiter_InvalidBudget(t *testing.T) {
	l := NewLocalLimiter()
	err := l.Consume(context.Background(), "api.example.gov", model.RateBudget{})
	assert.Error(t, err)
}

func TestLocalLimiter_BudgetChangeApplies(t *testing.T) {
	l := NewLocalLimiter()
	ctx := context.Background()

	require.NoError(t, l.Consume(ctx, "api.example.gov", model.RateBudget{RPS: 1, Burst: 1}))
	require.NoError(t, l.Consume(ctx, "api.example.gov", model.RateBudget{RPS: 100, Burst: 100}))

	lim := l.bucketFor("api.example.gov", model.RateBudget{RPS: 100, Burst: 100})
	assert.Equal(t, 100, lim.Burst())
}

func TestLocalLimiter_CancelledContext(t *testing.T) {
	l := NewLocalLimiter()
	budget := model.RateBudget{RPS: 0.1, Burst: 1}
	ctx := context.Background()

	require.NoError(t, l.Consume(ctx, "api.example.gov", budget))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.Error(t, l.Consume(cancelled, "api.example.gov", budget))
}

func TestDistributedLimiter_Grants(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var req consumeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "api.example.gov", req.Host)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := NewDistributedLimiter(srv.URL, nil)
	err := d.Consume(context.Background(), "api.example.gov", model.RateBudget{RPS: 1, Burst: 1})
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDistributedLimiter_RetryAfter(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0.05")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := NewDistributedLimiter(srv.URL, nil)
	start := time.Now()
	err := d.Consume(context.Background(), "api.example.gov", model.RateBudget{RPS: 1, Burst: 1})
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestDistributedLimiter_TransportErrorFallsBack(t *testing.T) {
	// Endpoint that refuses connections.
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	d := NewDistributedLimiter(srv.URL, NewLocalLimiter())
	err := d.Consume(context.Background(), "api.example.gov", model.RateBudget{RPS: 10, Burst: 1})
	assert.NoError(t, err)
}

func TestDistributedLimiter_CancelledDuringRetry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	d := NewDistributedLimiter(srv.URL, nil)
	err := d.Consume(ctx, "api.example.gov", model.RateBudget{RPS: 1, Burst: 1})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
