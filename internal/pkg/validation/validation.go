package validation

import (
	"regexp"
	"unicode"
)

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Name: letters, spaces, hyphens, apostrophes only.
var nameRe = regexp.MustCompile(`^[A-Za-z\s\-']+$`)

// Aadhaar: exactly 12 digits.
var aadhaarRe = regexp.MustCompile(`^\d{12}$`)

// Phone: optional +country prefix, then digits with optional separators.
var phoneRe = regexp.MustCompile(`^\+?[\d\-\s]{7,15}$`)

func IsValidEmail(email string) bool {
	return emailRe.MatchString(email)
}

func IsValidName(name string) bool {
	return name != "" && nameRe.MatchString(name)
}

func IsValidAadhaar(aadhaar string) bool {
	return aadhaarRe.MatchString(aadhaar)
}

func IsValidPhone(phone string) bool {
	return phoneRe.MatchString(phone)
}

// IsValidPassword requires:
// - at least 8 characters
// - contains at least one letter
// - contains at least one number
func IsValidPassword(password string) bool {
	if len(password) < 8 {
		return false
	}
	hasLetter, hasDigit := false, false
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	return hasLetter && hasDigit
}
