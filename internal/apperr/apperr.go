// Package apperr defines the tagged error used for expected validation and
// workflow failures. Callers match on Kind, never on message text.
package apperr

import "errors"

// Kind is a stable label for a failure. Values double as API error codes.
type Kind string

const (
	KindInvalidPrice        Kind = "invalid_price"
	KindInvalidDiscountCode Kind = "invalid_discount_code"
	KindInvalidUsername     Kind = "invalid_username"
	KindInvalidAge          Kind = "invalid_age"
	KindInvalidCountryCode  Kind = "invalid_country_code"
	KindInvalidName         Kind = "invalid_name"
	KindShippingUnavailable Kind = "shipping_unavailable"
	KindPaymentError        Kind = "payment_error"
)

// Error carries a Kind and the human-readable message shown to users.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Is reports whether target is an *Error of the same Kind, so that
// errors.Is(err, apperr.InvalidPrice) matches regardless of message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// New returns an *Error with the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Canonical errors. Messages match what end users have always seen.
var (
	InvalidPrice        = New(KindInvalidPrice, "Invalid price")
	InvalidDiscountCode = New(KindInvalidDiscountCode, "Invalid discount code")
	InvalidUsername     = New(KindInvalidUsername, "Invalid username")
	InvalidAge          = New(KindInvalidAge, "Invalid age")
	InvalidCountryCode  = New(KindInvalidCountryCode, "Invalid country code")
	ShippingUnavailable = New(KindShippingUnavailable, "shipping unavailable")
	PaymentError        = New(KindPaymentError, "payment_error")
)

// KindOf returns the Kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
