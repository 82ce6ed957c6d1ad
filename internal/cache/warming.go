package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/storefront-service/internal/observability"
)

// RateFetcher is implemented by the service layer. Declared here to avoid an
// import cycle with the service package.
type RateFetcher interface {
	GetRate(ctx context.Context, from, to string) (float64, error)
}

// Warmer prefetches exchange rates so the first checkout after start is not a miss.
type Warmer struct {
	fetcher RateFetcher
	logger  *zap.Logger
}

func NewWarmer(fetcher RateFetcher, logger *zap.Logger) *Warmer {
	return &Warmer{fetcher: fetcher, logger: logger}
}

// Warm fetches base→currency for every currency concurrently. Failures are
// joined into the returned error.
func (w *Warmer) Warm(ctx context.Context, base string, currencies []string) error {
	start := time.Now()
	observability.CacheWarmingTotal.Inc()
	if w.logger != nil {
		w.logger.Info("warming rate cache", zap.String("base", base), zap.Int("currencies", len(currencies)))
	}
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, cur := range currencies {
		wg.Add(1)
		go func(cur string) {
			defer wg.Done()
			if _, err := w.fetcher.GetRate(ctx, base, cur); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("warm %s:%s: %w", base, cur, err))
				mu.Unlock()
			}
		}(cur)
	}
	wg.Wait()

	duration := time.Since(start).Seconds()
	observability.CacheWarmingDurationSeconds.Observe(duration)
	if w.logger != nil {
		w.logger.Info("rate cache warming complete", zap.Int("errors", len(errs)), zap.Float64("duration_seconds", duration))
	}
	if len(errs) > 0 {
		observability.CacheWarmingErrorsTotal.Inc()
		return errors.Join(errs...)
	}
	return nil
}

// WarmPeriodic runs Warm immediately and then every interval until ctx is done.
func (w *Warmer) WarmPeriodic(ctx context.Context, base string, currencies []string, interval time.Duration) error {
	if err := w.Warm(ctx, base, currencies); err != nil && w.logger != nil {
		w.logger.Warn("initial rate cache warm failed", zap.Error(err))
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.Warm(ctx, base, currencies); err != nil && w.logger != nil {
				w.logger.Warn("periodic rate cache warm failed", zap.Error(err))
			}
		}
	}
}
