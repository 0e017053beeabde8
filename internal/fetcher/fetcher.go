// Package fetcher executes prepared source requests over HTTP with
// per-host rate limiting.
package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/govatlas/catalog-cli/internal/model"
	"github.com/govatlas/catalog-cli/internal/ratelimit"
	"github.com/govatlas/catalog-cli/internal/request"
)

const maxBodyBytes = 32 << 20

// HTTPStatusError reports a non-2xx response. Its Error string doubles
// as the run note recorded for the failure.
type HTTPStatusError struct {
	StatusCode int
	URL        string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("http_%d", e.StatusCode)
}

// IsHTTPStatus unwraps err into an HTTPStatusError when one is present.
func IsHTTPStatus(err error) (*HTTPStatusError, bool) {
	var statusErr *HTTPStatusError
	if eris.As(err, &statusErr) {
		return statusErr, true
	}
	return nil, false
}

// Client fetches source payloads. Each fetch consumes a rate token for
// the target host before the request goes out.
type Client struct {
	http      *http.Client
	limiter   ratelimit.Strategy
	userAgent string
}

// New creates a Client using the given rate limiting strategy.
func New(limiter ratelimit.Strategy, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	transport := &http.Transport{
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     20,
		IdleConnTimeout:     90 * time.Second,
	}
	return &Client{
		http: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		limiter: limiter,
	}
}

// SetUserAgent overrides the User-Agent on every outbound request.
func (c *Client) SetUserAgent(ua string) {
	c.userAgent = ua
}

// Fetch executes req and returns the response body. A non-2xx status
// yields an HTTPStatusError; the body is still read and returned so
// callers can archive it.
func (c *Client) Fetch(ctx context.Context, req request.Request, budget model.RateBudget) ([]byte, error) {
	u, err := url.Parse(req.URL)
	if err != nil {
		return nil, eris.Wrapf(err, "fetch: parse url %s", req.URL)
	}
	if err := c.limiter.Consume(ctx, u.Host, budget); err != nil {
		return nil, eris.Wrap(err, "fetch: rate limit")
	}

	var bodyReader io.Reader
	if len(req.Body) > 0 {
		bodyReader = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, bodyReader)
	if err != nil {
		return nil, eris.Wrap(err, "fetch: create request")
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if c.userAgent != "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrapf(err, "fetch: %s %s", req.Method, req.URL)
	}
	defer resp.Body.Close() //nolint:errcheck

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, eris.Wrapf(err, "fetch: read body from %s", req.URL)
	}

	zap.L().Debug("fetched source payload",
		zap.String("url", req.URL),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(payload)),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return payload, eris.Wrapf(&HTTPStatusError{StatusCode: resp.StatusCode, URL: req.URL},
			"fetch: %s", req.URL)
	}
	return payload, nil
}
