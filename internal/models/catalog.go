package models

// Coupon is a promotional code and its fractional discount (0 < Discount < 1).
type Coupon struct {
	Code     string  `json:"code"`
	Discount float64 `json:"discount"`
}

// Product is a catalog entry submitted for publishing. It is validated, never stored.
type Product struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}
