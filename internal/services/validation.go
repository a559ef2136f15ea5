package services

import (
	"regexp"
	"strings"
	"unicode"

	validation "github.com/go-ozzo/ozzo-validation"
)

var (
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	phonePattern = regexp.MustCompile(`^\+?[1-9]\d{4,14}$`)
)

func validateEmail(email string) error {
	if err := validation.Validate(email,
		validation.Required,
		validation.Match(emailPattern),
	); err != nil {
		return validationErrorf("invalid email address")
	}
	return nil
}

func validatePhone(phone string) error {
	if phone == "" {
		return nil
	}
	if err := validation.Validate(phone, validation.Match(phonePattern)); err != nil {
		return validationErrorf("invalid telephone number")
	}
	return nil
}

func validateName(name string) error {
	if err := validation.Validate(name,
		validation.Required,
		validation.Length(2, 100),
	); err != nil {
		return validationErrorf("name must be between 2 and 100 characters")
	}
	return nil
}

// validatePassword enforces the account password policy: at least 12
// characters with an uppercase letter, a lowercase letter, a digit and a
// symbol.
func validatePassword(password string) error {
	if len(password) < 12 {
		return validationErrorf("password must be at least 12 characters")
	}
	var upper, lower, digit, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			symbol = true
		}
	}
	if !upper || !lower || !digit || !symbol {
		return validationErrorf("password must contain uppercase, lowercase, digit and symbol characters")
	}
	return nil
}

// normalizeEmail canonicalizes the address before hashing so lookups are
// case-insensitive.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
