package validator

import (
	"errors"
	"unicode"
)

var (
	// ErrEmptyPassword indicates the password is empty
	ErrEmptyPassword = errors.New("password cannot be empty")

	// ErrPasswordTooShort indicates the password is under the minimum length
	ErrPasswordTooShort = errors.New("password must be at least 8 characters")

	// ErrPasswordTooLong indicates the password exceeds bcrypt's input limit
	ErrPasswordTooLong = errors.New("password must be at most 72 characters")

	// ErrPasswordNoLetter indicates the password has no letters
	ErrPasswordNoLetter = errors.New("password must contain at least one letter")

	// ErrPasswordNoDigit indicates the password has no digits
	ErrPasswordNoDigit = errors.New("password must contain at least one digit")
)

// MinPasswordLength is the minimum accepted password length
const MinPasswordLength = 8

// MaxPasswordLength matches bcrypt's 72-byte input limit
const MaxPasswordLength = 72

// PasswordValidator handles member password policy checks
type PasswordValidator struct{}

// NewPasswordValidator creates a new password validator instance
func NewPasswordValidator() *PasswordValidator {
	return &PasswordValidator{}
}

// Validate checks a candidate password against the policy
func (v *PasswordValidator) Validate(password string) error {
	if password == "" {
		return ErrEmptyPassword
	}
	if len(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	if len(password) > MaxPasswordLength {
		return ErrPasswordTooLong
	}

	hasLetter := false
	hasDigit := false
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLetter {
		return ErrPasswordNoLetter
	}
	if !hasDigit {
		return ErrPasswordNoDigit
	}
	return nil
}
