package validation

import (
	"errors"
	"strings"
	"unicode"
)

// ErrPostalCodeEmpty is returned when the postal code is empty or whitespace-only after trim.
var ErrPostalCodeEmpty = errors.New("pincode is required")

// ErrPostalCodeTooLong is returned when the postal code exceeds the maximum length.
var ErrPostalCodeTooLong = errors.New("pincode too long")

// ErrPostalCodeInvalid is returned when the postal code contains disallowed characters.
var ErrPostalCodeInvalid = errors.New("pincode contains invalid characters")

// ValidatePostalCode trims the input, enforces maxLen (in runes, 0 disables the check) and
// restricts to letters, digits, space and hyphen. Returns the trimmed code or an error
// suitable for a 400 INVALID_PINCODE response.
func ValidatePostalCode(input string, maxLen int) (string, error) {
	s := strings.TrimSpace(input)
	r := []rune(s)
	if len(r) == 0 {
		return "", ErrPostalCodeEmpty
	}
	if maxLen > 0 && len(r) > maxLen {
		return "", ErrPostalCodeTooLong
	}
	for _, c := range r {
		if !isAllowedPostalCodeRune(c) {
			return "", ErrPostalCodeInvalid
		}
	}
	return s, nil
}

func isAllowedPostalCodeRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) {
		return true
	}
	return r == ' ' || r == '-'
}
