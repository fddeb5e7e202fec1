// Package isbn validates and normalizes ISBN-10 and ISBN-13 identifiers.
package isbn

import (
	"errors"
	"regexp"
	"strings"
)

// ErrInvalidISBN is returned when input is neither a valid ISBN-10 nor ISBN-13.
var ErrInvalidISBN = errors.New("invalid isbn")

var separators = regexp.MustCompile(`[\s-]+`)

// Clean strips whitespace and hyphens.
func Clean(raw string) string {
	return separators.ReplaceAllString(raw, "")
}

// ValidISBN10 reports whether s is a 10 character ISBN with a correct check digit.
// The check digit may be X (case-insensitive).
func ValidISBN10(s string) bool {
	if len(s) != 10 {
		return false
	}
	total := 0
	for i := 0; i < 9; i++ {
		d, ok := digit(s[i])
		if !ok {
			return false
		}
		total += d * (10 - i)
	}
	switch c := s[9]; {
	case c == 'X' || c == 'x':
		total += 10
	case c >= '0' && c <= '9':
		total += int(c - '0')
	default:
		return false
	}
	return total%11 == 0
}

// ValidISBN13 reports whether s is 13 digits with a correct check digit.
func ValidISBN13(s string) bool {
	if len(s) != 13 {
		return false
	}
	for i := 0; i < 13; i++ {
		if _, ok := digit(s[i]); !ok {
			return false
		}
	}
	return checkDigit13(s[:12]) == int(s[12]-'0')
}

// ToISBN13 converts a valid ISBN-10 into its 978-prefixed ISBN-13.
func ToISBN13(isbn10 string) (string, error) {
	if !ValidISBN10(isbn10) {
		return "", ErrInvalidISBN
	}
	base := "978" + isbn10[:9]
	return base + string(rune('0'+checkDigit13(base))), nil
}

// Normalize cleans raw and returns the canonical ISBN-13.
func Normalize(raw string) (string, error) {
	s := Clean(raw)
	switch len(s) {
	case 13:
		if ValidISBN13(s) {
			return s, nil
		}
	case 10:
		return ToISBN13(strings.ToUpper(s))
	}
	return "", ErrInvalidISBN
}

// checkDigit13 computes the ISBN-13 check digit for a 12 digit prefix.
func checkDigit13(base string) int {
	total := 0
	for i := 0; i < 12; i++ {
		d := int(base[i] - '0')
		if i%2 == 1 {
			d *= 3
		}
		total += d
	}
	return (10 - total%10) % 10
}

func digit(c byte) (int, bool) {
	if c < '0' || c > '9' {
		return 0, false
	}
	return int(c - '0'), true
}
