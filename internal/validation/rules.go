package validation

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kjstillabower/storefront-service/internal/apperr"
	"github.com/kjstillabower/storefront-service/internal/models"
)

const (
	// SuccessMessage is reported when user input passes validation.
	SuccessMessage = "Validation successful"
	// ProductPublishedMessage is reported when a product passes validation.
	ProductPublishedMessage = "Product was successfully published"

	minInputUsernameLen = 3
	minAge              = 18

	minUsernameLen = 5
	maxUsernameLen = 15

	minPasswordLen = 8
)

var legalDrivingAge = map[string]int{
	"US": 16,
	"UK": 17,
}

// Errors collects several validation failures. Its message joins them with ", ".
type Errors []error

func (e Errors) Error() string {
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, ", ")
}

func (e Errors) Unwrap() []error {
	return e
}

// ValidateUserInput checks that username has at least 3 characters and that age
// is at least 18. Every violation is reported; nil means the input is valid.
func ValidateUserInput(username string, age int) error {
	var errs Errors
	if utf8.RuneCountInString(username) < minInputUsernameLen {
		errs = append(errs, apperr.InvalidUsername)
	}
	if age < minAge {
		errs = append(errs, apperr.InvalidAge)
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// IsValidUsername reports whether username is between 5 and 15 characters inclusive.
func IsValidUsername(username string) bool {
	if username == "" {
		return false
	}
	n := utf8.RuneCountInString(username)
	return n >= minUsernameLen && n <= maxUsernameLen
}

// CanDrive reports whether age meets the legal driving age of countryCode.
// Unknown country codes yield apperr.InvalidCountryCode instead of a verdict.
func CanDrive(age int, countryCode string) (bool, error) {
	minDrivingAge, ok := legalDrivingAge[countryCode]
	if !ok {
		return false, apperr.InvalidCountryCode
	}
	return age >= minDrivingAge, nil
}

// IsStrongPassword requires at least 8 characters with an upper-case letter,
// a lower-case letter and a digit.
func IsStrongPassword(password string) bool {
	if utf8.RuneCountInString(password) < minPasswordLen {
		return false
	}
	var upper, lower, digit bool
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= 'a' && r <= 'z':
			lower = true
		case unicode.IsDigit(r) && r < utf8.RuneSelf:
			digit = true
		}
	}
	return upper && lower && digit
}

// ValidateProduct checks a product before publishing.
func ValidateProduct(p models.Product) error {
	if p.Name == "" {
		return apperr.New(apperr.KindInvalidName, "Name is missing")
	}
	if p.Price <= 0 {
		return apperr.New(apperr.KindInvalidPrice, "Price is missing")
	}
	return nil
}

// ValidateEmail is a minimal syntax check: a non-empty local part, a single '@',
// and a domain containing a dot that is neither leading nor trailing.
func ValidateEmail(email string) bool {
	if strings.ContainsAny(email, " \t\r\n") {
		return false
	}
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" || strings.Contains(domain, "@") {
		return false
	}
	dot := strings.LastIndex(domain, ".")
	return dot > 0 && dot < len(domain)-1
}
