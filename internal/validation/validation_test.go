package validation

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateDestination_EmptyAndWhitespace(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"spaces", "   "},
		{"tab", "\t"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ValidateDestination(tc.input, 1, 100)
			if !errors.Is(err, ErrDestinationEmpty) {
				t.Errorf("error = %v, want ErrDestinationEmpty", err)
			}
		})
	}
}

func TestValidateDestination_Bounds(t *testing.T) {
	if _, err := ValidateDestination("x", 2, 100); !errors.Is(err, ErrDestinationTooShort) {
		t.Errorf("short: error = %v, want ErrDestinationTooShort", err)
	}
	if got, err := ValidateDestination("ab", 2, 100); err != nil || got != "ab" {
		t.Errorf("min boundary: got (%q, %v)", got, err)
	}
	s100 := strings.Repeat("a", 100)
	if _, err := ValidateDestination(s100, 1, 100); err != nil {
		t.Errorf("max boundary: err = %v", err)
	}
	if _, err := ValidateDestination(s100+"a", 1, 100); !errors.Is(err, ErrDestinationTooLong) {
		t.Errorf("over max: error = %v, want ErrDestinationTooLong", err)
	}
}

func TestValidateDestination_InvalidChars(t *testing.T) {
	for _, in := range []string{"lon/don", "lon?don", "lon#don", "lon\x00don", "lon%don", "L@ndon"} {
		if _, err := ValidateDestination(in, 1, 100); !errors.Is(err, ErrDestinationInvalidChars) {
			t.Errorf("ValidateDestination(%q) error = %v, want ErrDestinationInvalidChars", in, err)
		}
	}
}

func TestValidateDestination_CheckedBeforeBounds(t *testing.T) {
	// Characters are checked before length bounds.
	if _, err := ValidateDestination("#", 2, 100); !errors.Is(err, ErrDestinationInvalidChars) {
		t.Errorf("error = %v, want ErrDestinationInvalidChars", err)
	}
	if _, err := ValidateDestination("ab", 0, 0); err != nil {
		t.Errorf("unbounded: err = %v", err)
	}
}

func TestValidateDestination_Valid(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantNorm string
	}{
		{"simple", "london", "london"},
		{"with space", "New York", "New York"},
		{"comma", "London,uk", "London,uk"},
		{"trimmed", "  Boston  ", "Boston"},
		{"unicode", "Zürich", "Zürich"},
		{"collapsed whitespace", "New \t  York", "New York"},
		{"postal punctuation", "St. John's", "St. John's"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ValidateDestination(tc.input, 1, 100)
			if err != nil {
				t.Fatalf("ValidateDestination() err = %v", err)
			}
			if got != tc.wantNorm {
				t.Errorf("normalized = %q, want %q", got, tc.wantNorm)
			}
		})
	}
}
