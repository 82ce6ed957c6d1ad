package models

// ShippingQuote is a carrier quote for a destination.
type ShippingQuote struct {
	Cost          float64 `json:"cost"`
	EstimatedDays int     `json:"estimatedDays"`
}
