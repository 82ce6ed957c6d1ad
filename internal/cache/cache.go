package cache

import (
	"context"
	"sync"
	"time"

	"github.com/kjstillabower/storefront-service/internal/clock"
	"github.com/kjstillabower/storefront-service/internal/models"
)

// Cache stores exchange rates keyed by currency pair (see Key).
// Get returns cached data if present and not expired, Set stores data with TTL.
type Cache interface {
	Get(ctx context.Context, key string) (models.ExchangeRate, bool, error)
	Set(ctx context.Context, key string, value models.ExchangeRate, ttl time.Duration) error
}

// Key returns the cache key for a currency pair, e.g. "USD:EUR".
func Key(from, to string) string {
	return from + ":" + to
}

// InMemoryCache implements Cache with a mutex-guarded map and TTL expiry.
// Expired entries are removed on access.
type InMemoryCache struct {
	mu    sync.Mutex
	data  map[string]cacheEntry
	clock clock.Clock
}

type cacheEntry struct {
	value     models.ExchangeRate
	expiresAt time.Time
}

// NewInMemoryCache returns an empty cache that expires entries by clk (system clock if nil).
func NewInMemoryCache(clk clock.Clock) *InMemoryCache {
	if clk == nil {
		clk = clock.System{}
	}
	return &InMemoryCache{
		data:  make(map[string]cacheEntry),
		clock: clk,
	}
}

// Get returns (rate, true, nil) on hit and (zero, false, nil) on miss or expiry.
func (c *InMemoryCache) Get(ctx context.Context, key string) (models.ExchangeRate, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.data[key]
	if !ok {
		return models.ExchangeRate{}, false, nil
	}
	if c.clock.Now().After(entry.expiresAt) {
		delete(c.data, key)
		return models.ExchangeRate{}, false, nil
	}
	return entry.value, true, nil
}

// Set stores value until ttl elapses.
func (c *InMemoryCache) Set(ctx context.Context, key string, value models.ExchangeRate, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = cacheEntry{
		value:     value,
		expiresAt: c.clock.Now().Add(ttl),
	}
	return nil
}

// Len returns the number of stored entries, expired or not.
func (c *InMemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}
