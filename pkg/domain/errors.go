package domain

import "errors"

// Lookup and ownership errors
var (
	ErrAccountNotFound = errors.New("account not found")
	ErrMessageNotFound = errors.New("message not found")
)

// Uniqueness conflicts, enforced by the store's unique indexes
var (
	ErrHandleTaken = errors.New("handle already taken")
	ErrEmailTaken  = errors.New("email already registered")
)

// Validation errors
var (
	ErrInvalidHandle  = errors.New("invalid handle format")
	ErrInvalidEmail   = errors.New("invalid email address")
	ErrWeakPassword   = errors.New("password does not meet requirements")
	ErrInvalidContent = errors.New("message content out of bounds")
)

// Verification errors
var (
	ErrCodeExpired   = errors.New("verification code expired")
	ErrCodeIncorrect = errors.New("incorrect verification code")
)

// Message acceptance
var (
	ErrNotAccepting = errors.New("account is not accepting messages")
)

// Authentication errors
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotVerified        = errors.New("account not verified")
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionExpired     = errors.New("session expired")
	ErrSessionRevoked     = errors.New("session revoked")
	ErrInvalidToken       = errors.New("invalid token")
)
