package validation

import (
	"errors"
	"strings"
	"unicode"
)

// Shipping destination failures. The HTTP layer reports all of them as INVALID_DESTINATION.
var (
	ErrDestinationEmpty        = errors.New("destination is required")
	ErrDestinationTooShort     = errors.New("destination too short")
	ErrDestinationTooLong      = errors.New("destination too long")
	ErrDestinationInvalidChars = errors.New("destination contains invalid characters")
)

// ValidateDestination normalizes a shipping destination and checks it.
// Runs of whitespace collapse to a single space and the ends are trimmed before the
// length bounds (in runes) apply; a bound <= 0 is not enforced. Letters, digits,
// spaces and the postal punctuation in ",-.'" are allowed.
func ValidateDestination(input string, minLen, maxLen int) (string, error) {
	s := strings.Join(strings.Fields(input), " ")
	if s == "" {
		return "", ErrDestinationEmpty
	}
	n := 0
	for _, c := range s {
		if !isDestinationRune(c) {
			return "", ErrDestinationInvalidChars
		}
		n++
	}
	if minLen > 0 && n < minLen {
		return "", ErrDestinationTooShort
	}
	if maxLen > 0 && n > maxLen {
		return "", ErrDestinationTooLong
	}
	return s, nil
}

func isDestinationRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsNumber(r) || strings.ContainsRune(" ,-.'", r)
}
