package service

import (
	"context"
	"sync"
	"time"

	"github.com/kjstillabower/storefront-service/internal/models"
)

// inFlightRequest is a single upstream fetch that several callers may wait on.
type inFlightRequest struct {
	done   chan struct{}
	result models.ExchangeRate
	err    error
}

// requestCoalescer collapses concurrent fetches for the same key into one upstream call.
type requestCoalescer struct {
	mu       sync.Mutex
	inFlight map[string]*inFlightRequest
	timeout  time.Duration
}

func newRequestCoalescer(timeout time.Duration) *requestCoalescer {
	return &requestCoalescer{
		inFlight: make(map[string]*inFlightRequest),
		timeout:  timeout,
	}
}

// GetOrDo returns the result of fn for key, running fn at most once across
// concurrent callers. shared is true when the caller joined a fetch started by
// someone else. fn runs detached from the first caller's cancellation, bounded
// by the coalescer timeout, so one caller going away does not fail the others.
func (rc *requestCoalescer) GetOrDo(ctx context.Context, key string, fn func(ctx context.Context) (models.ExchangeRate, error)) (result models.ExchangeRate, shared bool, err error) {
	rc.mu.Lock()
	req, exists := rc.inFlight[key]
	if !exists {
		req = &inFlightRequest{done: make(chan struct{})}
		rc.inFlight[key] = req
		rc.mu.Unlock()

		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rc.timeout)
		go func() {
			defer cancel()
			req.result, req.err = fn(fetchCtx)
			rc.cleanup(key)
			close(req.done)
		}()
	} else {
		rc.mu.Unlock()
	}

	waitCtx, cancel := context.WithTimeout(ctx, rc.timeout)
	defer cancel()
	select {
	case <-req.done:
		return req.result, exists, req.err
	case <-waitCtx.Done():
		return models.ExchangeRate{}, exists, waitCtx.Err()
	}
}

// cleanup removes key so later misses start a fresh fetch.
func (rc *requestCoalescer) cleanup(key string) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	delete(rc.inFlight, key)
}
