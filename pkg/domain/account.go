package domain

import (
	"time"

	"github.com/google/uuid"
)

// Account represents a registered inbox owner. The handle is the public
// routing key anonymous senders use; it is stored lowercase.
type Account struct {
	ID                uuid.UUID
	Handle            string
	Email             string
	SecretHash        string
	VerifyCode        string
	VerifyCodeExpiry  time.Time
	Verified          bool
	AcceptingMessages bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// CodeExpired reports whether the verification code has passed its horizon.
// Expiry is evaluated lazily at verification time; there is no sweeper.
func (a *Account) CodeExpired(now time.Time) bool {
	return now.After(a.VerifyCodeExpiry)
}
