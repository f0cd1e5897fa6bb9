package domain

import (
	"strings"
	"unicode/utf8"
)

const passwordSpecials = `!@#$%^&*(),.?":{}|<>`

// ValidPassword reports whether p has at least 8 characters, an upper-case letter, a digit
// and one of the accepted special characters.
func ValidPassword(p string) bool {
	if utf8.RuneCountInString(p) < 8 {
		return false
	}
	var upper, digit, special bool
	for _, r := range p {
		switch {
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune(passwordSpecials, r):
			special = true
		}
	}
	return upper && digit && special
}
