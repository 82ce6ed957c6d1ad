package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/google/uuid"

	"github.com/kjstillabower/storefront-service/internal/models"
)

const providerPayment = "payment"

// PaymentClient charges cards through a payment API:
// POST <baseURL>/charges {"creditCardNumber": "...", "amount": 10} → {"status": "success"}.
// A 402 is a decline, reported as a failed charge rather than an error.
type PaymentClient struct {
	apiKey    string
	chargeURL *url.URL
	transport transport
}

func NewPaymentClient(baseURL, apiKey string, opts Options) (*PaymentClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: API key is required", ErrInvalidAPIKey)
	}
	if len(apiKey) < 10 {
		return nil, fmt.Errorf("%w: API key appears invalid (too short)", ErrInvalidAPIKey)
	}
	u, err := parseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	return &PaymentClient{
		apiKey:    apiKey,
		chargeURL: u.JoinPath("charges"),
		transport: newTransport(providerPayment, opts),
	}, nil
}

type chargeRequest struct {
	CreditCardNumber string  `json:"creditCardNumber"`
	Amount           float64 `json:"amount"`
}

// Charge bills amount to card. Every retry of one Charge carries the same
// Idempotency-Key so the processor bills at most once.
func (c *PaymentClient) Charge(ctx context.Context, card models.CreditCard, amount float64) (models.ChargeResult, error) {
	payload, err := json.Marshal(chargeRequest{CreditCardNumber: card.CreditCardNumber, Amount: amount})
	if err != nil {
		return models.ChargeResult{}, fmt.Errorf("encode charge: %w", err)
	}
	idempotencyKey := uuid.New().String()

	newReq := func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.chargeURL.String(), bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Idempotency-Key", idempotencyKey)
		return req, nil
	}
	declined := func(status int) bool { return status == http.StatusPaymentRequired }

	resp, err := c.transport.execute(ctx, newReq, declined)
	if err != nil {
		return models.ChargeResult{}, err
	}
	if resp.status == http.StatusPaymentRequired {
		return models.ChargeResult{Status: models.PaymentFailed}, nil
	}

	var result models.ChargeResult
	if err := json.Unmarshal(resp.body, &result); err != nil {
		return models.ChargeResult{}, fmt.Errorf("%w: parse charge: %v", ErrInvalidResponse, err)
	}
	switch result.Status {
	case models.PaymentSuccess, models.PaymentFailed:
		return result, nil
	default:
		return models.ChargeResult{}, fmt.Errorf("%w: unknown status %q", ErrInvalidResponse, result.Status)
	}
}
