// Package client implements the storefront's upstream collaborators over HTTP:
// exchange rates, shipping quotes and card payments. All three share one retrying
// transport that records per-provider metrics and can sit behind a circuit breaker.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net"
	"net/http"
	"time"

	"github.com/kjstillabower/storefront-service/internal/circuitbreaker"
	"github.com/kjstillabower/storefront-service/internal/observability"
)

var (
	ErrInvalidAPIKey   = errors.New("invalid API key")
	ErrNotFound        = errors.New("not found")
	ErrUpstreamFailure = errors.New("upstream failure")
	ErrRateLimited     = errors.New("rate limited")
	ErrRejected        = errors.New("upstream rejected request")
	ErrInvalidResponse = errors.New("invalid upstream response")
)

// maxBodyBytes bounds how much of an upstream response is read.
const maxBodyBytes = 1 << 20

// Options tunes the shared transport. Zero values get defaults.
type Options struct {
	Timeout        time.Duration
	RetryAttempts  int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	Breaker        *circuitbreaker.CircuitBreaker
	HTTPClient     *http.Client
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = 2 * time.Second
	}
	if o.RetryAttempts <= 0 {
		o.RetryAttempts = 3
	}
	if o.RetryBaseDelay <= 0 {
		o.RetryBaseDelay = 100 * time.Millisecond
	}
	if o.RetryMaxDelay <= 0 {
		o.RetryMaxDelay = 2 * time.Second
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: o.Timeout}
	}
	return o
}

// transport performs one logical upstream call with retries.
type transport struct {
	provider string
	opts     Options
}

func newTransport(provider string, opts Options) transport {
	return transport{provider: provider, opts: opts.withDefaults()}
}

// response is a fully read upstream reply.
type response struct {
	status int
	body   []byte
}

// requestFunc builds a fresh request for each attempt.
type requestFunc func(ctx context.Context) (*http.Request, error)

// execute runs newReq until it succeeds, fails with a non-retryable error, or
// attempts run out. accept lets a caller treat a non-2xx status as a result
// (e.g. 404 for shipping, 402 for payments).
func (t transport) execute(ctx context.Context, newReq requestFunc, accept func(status int) bool) (response, error) {
	var lastErr error

	for attempt := 0; attempt < t.opts.RetryAttempts; attempt++ {
		if attempt > 0 {
			observability.UpstreamRetriesTotal.WithLabelValues(t.provider).Inc()
			delay := t.calculateBackoff(attempt)
			select {
			case <-ctx.Done():
				return response{}, ctx.Err()
			case <-time.After(delay):
			}
		}

		var resp response
		call := func() error {
			var err error
			resp, err = t.callOnce(ctx, newReq, accept)
			return err
		}
		var err error
		if t.opts.Breaker != nil {
			err = t.opts.Breaker.Call(ctx, call)
		} else {
			err = call()
		}
		if err == nil {
			return resp, nil
		}

		lastErr = err
		observability.UpstreamErrorsTotal.WithLabelValues(t.provider, string(CategorizeError(err))).Inc()
		if !t.isRetryable(ctx, err) {
			return response{}, err
		}
	}

	return response{}, fmt.Errorf("exhausted retries: %w", lastErr)
}

func (t transport) callOnce(ctx context.Context, newReq requestFunc, accept func(int) bool) (response, error) {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, t.opts.Timeout)
	defer cancel()

	req, err := newReq(reqCtx)
	if err != nil {
		observability.UpstreamCallsTotal.WithLabelValues(t.provider, "error").Inc()
		return response{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if corrID := extractCorrelationID(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	httpResp, err := t.opts.HTTPClient.Do(req)
	if err != nil {
		duration := time.Since(start).Seconds()
		observability.UpstreamCallsTotal.WithLabelValues(t.provider, "error").Inc()
		observability.UpstreamDuration.WithLabelValues(t.provider, "error").Observe(duration)
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return response{}, fmt.Errorf("request timeout: %w", err)
		}
		return response{}, fmt.Errorf("http request failed: %w", err)
	}
	defer httpResp.Body.Close()

	status := statusLabel(httpResp.StatusCode)
	observability.UpstreamCallsTotal.WithLabelValues(t.provider, status).Inc()
	observability.UpstreamDuration.WithLabelValues(t.provider, status).Observe(time.Since(start).Seconds())

	accepted := accept != nil && accept(httpResp.StatusCode)
	if !accepted {
		if err := handleErrorResponse(httpResp.StatusCode); err != nil {
			return response{}, err
		}
	}

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodyBytes))
	if err != nil {
		return response{}, fmt.Errorf("read response body: %w", err)
	}
	return response{status: httpResp.StatusCode, body: body}, nil
}

// isRetryable reports whether another attempt may succeed. Cancellation of the
// caller's context and an open breaker are final.
func (t transport) isRetryable(ctx context.Context, err error) bool {
	if err == nil || ctx.Err() != nil {
		return false
	}
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return false
	}
	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrUpstreamFailure) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func (t transport) calculateBackoff(attempt int) time.Duration {
	delay := float64(t.opts.RetryBaseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(t.opts.RetryMaxDelay) {
		delay = float64(t.opts.RetryMaxDelay)
	}

	jitter := delay * 0.1 * rand.Float64()
	return time.Duration(delay + jitter)
}

func handleErrorResponse(statusCode int) error {
	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: HTTP %d", ErrInvalidAPIKey, statusCode)
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusTooManyRequests:
		return ErrRateLimited
	}

	if statusCode >= 400 && statusCode < 500 {
		return fmt.Errorf("%w: HTTP %d", ErrRejected, statusCode)
	}
	if statusCode < 200 || statusCode >= 300 {
		return fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, statusCode)
	}
	return nil
}

func extractCorrelationID(ctx context.Context) string {
	if corrIDVal := ctx.Value("correlation_id"); corrIDVal != nil {
		if corrID, ok := corrIDVal.(string); ok {
			return corrID
		}
	}
	return ""
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == 429 {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}
