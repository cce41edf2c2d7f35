package auth

import (
	"net/mail"
	"regexp"
	"strings"

	"github.com/quietpost/quietpost/pkg/domain"
)

// Handles are 3-30 characters, alphanumeric plus underscore and hyphen, and
// must start alphanumeric. They are compared case-insensitively everywhere,
// so they are normalized to lowercase before storage.
var handleRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]{2,29}$`)

const (
	maxEmailLength    = 254 // RFC 5321
	minPasswordLength = 8
	maxPasswordLength = 128
)

// ValidateHandle validates a handle's format.
func ValidateHandle(handle string) error {
	if !handleRegex.MatchString(handle) {
		return domain.ErrInvalidHandle
	}
	return nil
}

// NormalizeHandle lowercases and trims a handle.
func NormalizeHandle(handle string) string {
	return strings.ToLower(strings.TrimSpace(handle))
}

// ValidateEmail validates an email address for format and length.
func ValidateEmail(email string) error {
	if email == "" || len(email) > maxEmailLength {
		return domain.ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return domain.ErrInvalidEmail
	}
	return nil
}

// NormalizeEmail normalizes an email address by lowercasing and trimming.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidatePassword enforces the password policy.
func ValidatePassword(password string) error {
	if len(password) < minPasswordLength || len(password) > maxPasswordLength {
		return domain.ErrWeakPassword
	}
	return nil
}
