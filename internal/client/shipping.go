package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/kjstillabower/storefront-service/internal/models"
)

const providerShipping = "shipping"

// ShippingClient asks a carrier API for quotes:
// GET <baseURL>/<destination> → {"cost": 10, "estimatedDays": 2}.
// A 404 means the carrier does not serve the destination.
type ShippingClient struct {
	baseURL   *url.URL
	transport transport
}

func NewShippingClient(baseURL string, opts Options) (*ShippingClient, error) {
	u, err := parseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	return &ShippingClient{baseURL: u, transport: newTransport(providerShipping, opts)}, nil
}

// GetQuote returns nil, nil when no quote exists for destination.
func (c *ShippingClient) GetQuote(ctx context.Context, destination string) (*models.ShippingQuote, error) {
	newReq := func(ctx context.Context) (*http.Request, error) {
		u := c.baseURL.JoinPath(destination)
		return http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	}
	notFoundIsResult := func(status int) bool { return status == http.StatusNotFound }

	resp, err := c.transport.execute(ctx, newReq, notFoundIsResult)
	if err != nil {
		return nil, err
	}
	if resp.status == http.StatusNotFound {
		return nil, nil
	}
	if len(strings.TrimSpace(string(resp.body))) == 0 || strings.TrimSpace(string(resp.body)) == "null" {
		return nil, nil
	}

	var quote models.ShippingQuote
	if err := json.Unmarshal(resp.body, &quote); err != nil {
		return nil, fmt.Errorf("%w: parse quote: %v", ErrInvalidResponse, err)
	}
	if quote.Cost < 0 || quote.EstimatedDays < 0 {
		return nil, fmt.Errorf("%w: negative quote", ErrInvalidResponse)
	}
	return &quote, nil
}
