package client

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
)

const providerExchangeRate = "exchange_rate"

// ExchangeRateClient fetches conversion rates from an HTTP rates API:
// GET <baseURL>?from=USD&to=EUR → {"rate": 0.92}.
type ExchangeRateClient struct {
	baseURL   *url.URL
	transport transport
}

func NewExchangeRateClient(baseURL string, opts Options) (*ExchangeRateClient, error) {
	u, err := parseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	return &ExchangeRateClient{baseURL: u, transport: newTransport(providerExchangeRate, opts)}, nil
}

type rateResponse struct {
	Rate *float64 `json:"rate"`
}

// GetRate returns how many units of to one unit of from buys.
func (c *ExchangeRateClient) GetRate(ctx context.Context, from, to string) (float64, error) {
	newReq := func(ctx context.Context) (*http.Request, error) {
		u := *c.baseURL
		q := u.Query()
		q.Set("from", strings.ToUpper(from))
		q.Set("to", strings.ToUpper(to))
		u.RawQuery = q.Encode()
		return http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	}

	resp, err := c.transport.execute(ctx, newReq, nil)
	if err != nil {
		return 0, err
	}

	var parsed rateResponse
	if err := json.Unmarshal(resp.body, &parsed); err != nil {
		return 0, fmt.Errorf("%w: parse rate: %v", ErrInvalidResponse, err)
	}
	if parsed.Rate == nil {
		return 0, fmt.Errorf("%w: rate missing", ErrInvalidResponse)
	}
	rate := *parsed.Rate
	if math.IsNaN(rate) || math.IsInf(rate, 0) || rate <= 0 {
		return 0, fmt.Errorf("%w: rate %v", ErrInvalidResponse, rate)
	}
	return rate, nil
}

func parseBaseURL(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q: scheme and host required", raw)
	}
	return u, nil
}
