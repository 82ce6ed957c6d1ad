package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kjstillabower/storefront-service/internal/clock"
	"github.com/kjstillabower/storefront-service/internal/models"
)

type mockRateFetcher struct {
	mu    sync.Mutex
	rate  float64
	err   error
	calls []string
}

func (m *mockRateFetcher) GetRate(ctx context.Context, from, to string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, from+":"+to)
	return m.rate, m.err
}

type mockCache struct {
	data   map[string]models.ExchangeRate
	getErr error
	setErr error
	sets   int
}

func (m *mockCache) Get(ctx context.Context, key string) (models.ExchangeRate, bool, error) {
	if m.getErr != nil {
		return models.ExchangeRate{}, false, m.getErr
	}
	val, ok := m.data[key]
	return val, ok, nil
}

func (m *mockCache) Set(ctx context.Context, key string, value models.ExchangeRate, ttl time.Duration) error {
	m.sets++
	if m.setErr != nil {
		return m.setErr
	}
	if m.data == nil {
		m.data = make(map[string]models.ExchangeRate)
	}
	m.data[key] = value
	return nil
}

var fixedNow = clock.Fixed(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))

func TestNormalizeCurrency(t *testing.T) {
	tests := []struct {
		input string
		want  string
		valid bool
	}{
		{"usd", "USD", true},
		{"  eur ", "EUR", true},
		{"GBP", "GBP", true},
		{"us", "US", false},
		{"EURO", "EURO", false},
		{"U$D", "U$D", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := normalizeCurrency(tt.input)
			if got != tt.want {
				t.Errorf("normalizeCurrency(%q) = %q, want %q", tt.input, got, tt.want)
			}
			if isCurrencyCode(got) != tt.valid {
				t.Errorf("isCurrencyCode(%q) = %v, want %v", got, !tt.valid, tt.valid)
			}
		})
	}
}

func TestRateService_GetRate_CacheHit(t *testing.T) {
	fetcher := &mockRateFetcher{rate: 9}
	c := &mockCache{data: map[string]models.ExchangeRate{"USD:EUR": {From: "USD", To: "EUR", Rate: 0.92}}}
	svc := NewRateService(fetcher, c, time.Minute, 0, fixedNow)

	got, err := svc.GetRate(context.Background(), "usd", "eur")
	if err != nil {
		t.Fatalf("GetRate() error = %v", err)
	}
	if got != 0.92 {
		t.Errorf("GetRate() = %v, want 0.92", got)
	}
	if len(fetcher.calls) != 0 {
		t.Errorf("fetcher called %v on cache hit", fetcher.calls)
	}
}

func TestRateService_GetRate_CacheMiss_UpstreamSuccess(t *testing.T) {
	fetcher := &mockRateFetcher{rate: 1.5}
	c := &mockCache{}
	svc := NewRateService(fetcher, c, time.Minute, time.Second, fixedNow)

	got, err := svc.GetRate(context.Background(), "USD", "CAD")
	if err != nil {
		t.Fatalf("GetRate() error = %v", err)
	}
	if got != 1.5 {
		t.Errorf("GetRate() = %v, want 1.5", got)
	}
	stored, ok := c.data["USD:CAD"]
	if !ok {
		t.Fatal("rate not cached after upstream success")
	}
	if stored.Rate != 1.5 || !stored.FetchedAt.Equal(fixedNow.Now()) {
		t.Errorf("cached = %+v", stored)
	}
}

func TestRateService_GetRate_SameCurrency(t *testing.T) {
	fetcher := &mockRateFetcher{rate: 3}
	svc := NewRateService(fetcher, &mockCache{}, time.Minute, 0, fixedNow)

	got, err := svc.GetRate(context.Background(), "usd", "USD")
	if err != nil || got != 1 {
		t.Errorf("GetRate() = %v, %v, want 1, nil", got, err)
	}
	if len(fetcher.calls) != 0 {
		t.Error("fetcher called for identical currencies")
	}
}

func TestRateService_GetRate_InvalidCurrency(t *testing.T) {
	svc := NewRateService(&mockRateFetcher{}, &mockCache{}, time.Minute, 0, fixedNow)
	_, err := svc.GetRate(context.Background(), "USD", "euro")
	if !errors.Is(err, ErrInvalidCurrency) {
		t.Errorf("GetRate() error = %v, want ErrInvalidCurrency", err)
	}
}

func TestRateService_GetRate_UpstreamFailure(t *testing.T) {
	upstream := errors.New("upstream down")
	c := &mockCache{}
	svc := NewRateService(&mockRateFetcher{err: upstream}, c, time.Minute, 0, fixedNow)

	_, err := svc.GetRate(context.Background(), "USD", "EUR")
	if !errors.Is(err, upstream) {
		t.Errorf("GetRate() error = %v, want wrapped upstream error", err)
	}
	if c.sets != 0 {
		t.Errorf("cache Set called %d times on failure", c.sets)
	}
}

// TestRateService_GetRate_CacheErrorsAreNotFatal verifies cache failures fall
// through to upstream and are logged.
func TestRateService_GetRate_CacheErrorsAreNotFatal(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	ctx := context.WithValue(context.Background(), "logger", zap.New(core))

	c := &mockCache{getErr: errors.New("connection refused"), setErr: errors.New("timeout")}
	svc := NewRateService(&mockRateFetcher{rate: 2}, c, time.Minute, 0, fixedNow)

	got, err := svc.GetRate(ctx, "USD", "EUR")
	if err != nil {
		t.Fatalf("GetRate() error = %v", err)
	}
	if got != 2 {
		t.Errorf("GetRate() = %v, want 2", got)
	}
	if n := logs.FilterMessage("cache get failed").Len(); n != 1 {
		t.Errorf("cache get failed logs = %d, want 1", n)
	}
	if n := logs.FilterMessage("cache set failed").Len(); n != 1 {
		t.Errorf("cache set failed logs = %d, want 1", n)
	}
}

func TestCategorizeCacheError(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "unknown"},
		{context.DeadlineExceeded, "timeout"},
		{errors.New("i/o timeout"), "timeout"},
		{errors.New("connection reset"), "connection"},
		{errors.New("weird"), "unknown"},
	}
	for _, tt := range tests {
		if got := categorizeCacheError(tt.err); got != tt.want {
			t.Errorf("categorizeCacheError(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
