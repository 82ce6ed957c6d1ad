// Package service provides the exchange-rate provider used by the storefront:
// cache-aside over the upstream rates API with request coalescing.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/storefront-service/internal/cache"
	"github.com/kjstillabower/storefront-service/internal/clock"
	"github.com/kjstillabower/storefront-service/internal/models"
	"github.com/kjstillabower/storefront-service/internal/observability"
)

// ErrInvalidCurrency is returned for codes that are not three ASCII letters.
var ErrInvalidCurrency = errors.New("invalid currency code")

// RateFetcher is the upstream rates source (client.ExchangeRateClient in production).
type RateFetcher interface {
	GetRate(ctx context.Context, from, to string) (float64, error)
}

// RateService serves exchange rates from cache, falling back to the upstream
// fetcher on a miss and populating the cache on success.
type RateService struct {
	fetcher   RateFetcher
	cache     cache.Cache
	ttl       time.Duration
	clock     clock.Clock
	coalescer *requestCoalescer // nil when coalescing is disabled
}

// NewRateService creates a RateService. coalesceTimeout of 0 disables coalescing.
func NewRateService(fetcher RateFetcher, c cache.Cache, ttl, coalesceTimeout time.Duration, clk clock.Clock) *RateService {
	var coalescer *requestCoalescer
	if coalesceTimeout > 0 {
		coalescer = newRequestCoalescer(coalesceTimeout)
	}
	if clk == nil {
		clk = clock.System{}
	}
	return &RateService{
		fetcher:   fetcher,
		cache:     c,
		ttl:       ttl,
		clock:     clk,
		coalescer: coalescer,
	}
}

// loggerFromContext extracts a zap.Logger from request context if present.
func loggerFromContext(ctx context.Context) *zap.Logger {
	if v := ctx.Value("logger"); v != nil {
		if l, ok := v.(*zap.Logger); ok && l != nil {
			return l
		}
	}
	return zap.NewNop()
}

// GetRate returns the multiplier converting one unit of from into to.
// Currency codes are case-insensitive. A pair of identical codes is 1.
func (s *RateService) GetRate(ctx context.Context, from, to string) (float64, error) {
	from, to = normalizeCurrency(from), normalizeCurrency(to)
	if !isCurrencyCode(from) || !isCurrencyCode(to) {
		return 0, fmt.Errorf("%w: %q to %q", ErrInvalidCurrency, from, to)
	}
	if from == to {
		return 1, nil
	}

	key := cache.Key(from, to)
	logger := loggerFromContext(ctx)

	cached, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		observability.CacheErrorsTotal.WithLabelValues("get", categorizeCacheError(err)).Inc()
		logger.Warn("cache get failed", zap.String("pair", key), zap.Error(err))
	} else if ok {
		observability.CacheHitsTotal.WithLabelValues("exchange_rate").Inc()
		logger.Debug("cache hit", zap.String("pair", key))
		return cached.Rate, nil
	}

	logger.Debug("cache miss, fetching upstream", zap.String("pair", key))

	fetch := func(ctx context.Context) (models.ExchangeRate, error) {
		rate, err := s.fetcher.GetRate(ctx, from, to)
		if err != nil {
			return models.ExchangeRate{}, err
		}
		return models.ExchangeRate{From: from, To: to, Rate: rate, FetchedAt: s.clock.Now()}, nil
	}

	var (
		fetched     models.ExchangeRate
		upstreamErr error
		shared      bool
	)
	if s.coalescer != nil {
		fetched, shared, upstreamErr = s.coalescer.GetOrDo(ctx, key, fetch)
		if shared && upstreamErr == nil {
			observability.RequestCoalescingHitsTotal.Inc()
		}
	} else {
		fetched, upstreamErr = fetch(ctx)
	}
	if upstreamErr != nil {
		return 0, fmt.Errorf("fetch rate %s: %w", key, upstreamErr)
	}

	// Only the caller that issued the fetch writes the cache.
	if !shared {
		if setErr := s.cache.Set(ctx, key, fetched, s.ttl); setErr != nil {
			observability.CacheErrorsTotal.WithLabelValues("set", categorizeCacheError(setErr)).Inc()
			logger.Warn("cache set failed", zap.String("pair", key), zap.Error(setErr))
		}
	}
	return fetched.Rate, nil
}

// categorizeCacheError returns a stable label for cache error metrics (timeout, connection, unknown).
func categorizeCacheError(err error) string {
	if err == nil {
		return "unknown"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	errStr := err.Error()
	if strings.Contains(errStr, "timeout") {
		return "timeout"
	}
	if strings.Contains(errStr, "connection") || strings.Contains(errStr, "network") {
		return "connection"
	}
	return "unknown"
}

func normalizeCurrency(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func isCurrencyCode(code string) bool {
	if len(code) != 3 {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < 'A' || code[i] > 'Z' {
			return false
		}
	}
	return true
}
