package password

import (
	"errors"
	"strings"
	"unicode"
)

// Validation failures, one per rule. The validator is fail-fast: the first
// violated rule's error is returned, not an aggregate.
var (
	ErrTooShort       = errors.New("password must be at least 8 characters long")
	ErrNoLowercase    = errors.New("password must contain a lowercase letter")
	ErrNoUppercase    = errors.New("password must contain an uppercase letter")
	ErrNoDigit        = errors.New("password must contain a digit")
	ErrNoSpecial      = errors.New("password must contain a special character")
	ErrCommonPassword = errors.New("password is too common")
)

const minLength = 8

const specialSet = "!@#$%^&*()_+-=[]{}|;:,.<>?"

// Weak passwords rejected regardless of the character-class rules. Matched
// case-insensitively and exactly.
var commonPasswords = map[string]struct{}{
	"password":   {},
	"password1":  {},
	"password1!": {},
	"p@ssword1":  {},
	"12345678":   {},
	"123456789":  {},
	"qwerty123":  {},
	"letmein123": {},
	"admin123":   {},
	"welcome1":   {},
	"iloveyou1":  {},
}

// Validate checks password against the strength policy: minimum length, one
// lowercase, one uppercase, one digit, one special character, and not a known
// common password.
func Validate(password string) error {
	if len(password) < minLength {
		return ErrTooShort
	}

	var hasLower, hasUpper, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsDigit(r):
			hasDigit = true
		case strings.ContainsRune(specialSet, r):
			hasSpecial = true
		}
	}

	if !hasLower {
		return ErrNoLowercase
	}
	if !hasUpper {
		return ErrNoUppercase
	}
	if !hasDigit {
		return ErrNoDigit
	}
	if !hasSpecial {
		return ErrNoSpecial
	}

	if _, ok := commonPasswords[strings.ToLower(password)]; ok {
		return ErrCommonPassword
	}

	return nil
}
