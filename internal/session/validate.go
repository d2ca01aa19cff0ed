package session

import (
	"strings"
	"unicode/utf8"

	"github.com/sakif/clint-crypto/internal/apperror"
)

// MinPasswordLength is the shortest password the sign-in forms accept,
// counted in characters rather than bytes.
const MinPasswordLength = 8

// Validation messages, shown inline next to the form.
const (
	msgInvalidEmail  = "Please enter a valid email address"
	msgShortPassword = "Password must be at least 8 characters"
	msgMissingName   = "Please enter your full name"
)

// ValidateCredentials checks login input before any network call.
func ValidateCredentials(email, password string) error {
	if !strings.Contains(email, "@") {
		return apperror.ValidationFailed("email", msgInvalidEmail)
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return apperror.ValidationFailed("password", msgShortPassword)
	}
	return nil
}

// ValidateSignup checks signup input; the name is checked first, matching the
// order of the form fields.
func ValidateSignup(email, password, fullName string) error {
	if err := ValidateFullName(fullName); err != nil {
		return err
	}
	return ValidateCredentials(email, password)
}

// ValidateFullName rejects blank names.
func ValidateFullName(fullName string) error {
	if strings.TrimSpace(fullName) == "" {
		return apperror.ValidationFailed("fullName", msgMissingName)
	}
	return nil
}
