package models

import "github.com/kjstillabower/storefront-service/internal/apperr"

type Order struct {
	TotalAmount float64 `json:"totalAmount"`
}

type CreditCard struct {
	CreditCardNumber string `json:"creditCardNumber"`
}

// PaymentStatus is the outcome reported by the payment processor.
type PaymentStatus string

const (
	PaymentSuccess PaymentStatus = "success"
	PaymentFailed  PaymentStatus = "failed"
)

type ChargeResult struct {
	Status PaymentStatus `json:"status"`
}

// OrderResult is returned by order submission. Error is set only when Success is false.
type OrderResult struct {
	Success bool        `json:"success"`
	Error   apperr.Kind `json:"error,omitempty"`
}
