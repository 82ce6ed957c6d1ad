// Package pricing holds coupon and discount rules.
package pricing

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/kjstillabower/storefront-service/internal/apperr"
	"github.com/kjstillabower/storefront-service/internal/models"
)

// Recognized discount codes. Any other code is accepted and applies no discount.
const (
	CodeSave10 = "SAVE10"
	CodeSave20 = "SAVE20"
)

var discountByCode = map[string]decimal.Decimal{
	CodeSave10: decimal.RequireFromString("0.1"),
	CodeSave20: decimal.RequireFromString("0.2"),
}

// GetCoupons returns the currently advertised coupons.
func GetCoupons() []models.Coupon {
	return []models.Coupon{
		{Code: "SAVE20NOW", Discount: 0.2},
		{Code: "DISCOUNT50OFF", Discount: 0.5},
	}
}

// CalculateDiscount applies the discount for code to price.
// Returns apperr.InvalidPrice when price is not a positive finite number.
// Unknown codes apply no discount and are not an error.
func CalculateDiscount(price float64, code string) (float64, error) {
	if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return 0, apperr.InvalidPrice
	}
	p := decimal.NewFromFloat(price)
	rate, ok := discountByCode[code]
	if !ok {
		return price, nil
	}
	return p.Sub(p.Mul(rate)).InexactFloat64(), nil
}

// IsPriceInRange reports whether min <= price <= max.
func IsPriceInRange(price, min, max float64) bool {
	return price >= min && price <= max
}
