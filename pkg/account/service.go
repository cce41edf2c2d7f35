// Package account implements registration, handle resolution and the
// email-verification state machine for inbox accounts.
package account

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/quietpost/quietpost/pkg/auth"
	"github.com/quietpost/quietpost/pkg/domain"
)

const (
	DefaultCodeTTL    = time.Hour
	DefaultCodeDigits = 6
)

// Store persists accounts. Uniqueness of handle and email is the store's
// responsibility (unique indexes), so two racing registrations with the same
// handle cannot both succeed.
type Store interface {
	Create(ctx context.Context, account *domain.Account) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	GetByHandle(ctx context.Context, handle string) (*domain.Account, error)
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	Reregister(ctx context.Context, account *domain.Account) error
	SetVerificationCode(ctx context.Context, id uuid.UUID, code string, expiry time.Time) error
	MarkVerified(ctx context.Context, id uuid.UUID) error
}

// Config holds verification policy.
type Config struct {
	// CodeTTL is how long a verification code stays valid (default 1h).
	CodeTTL time.Duration
	// CodeDigits is the width of the numeric code (default 6).
	CodeDigits int
}

// Service is the account service: credential store, identity resolver and
// verification engine.
type Service struct {
	config Config
	store  Store
}

// NewService creates a new account service.
func NewService(config Config, store Store) *Service {
	if config.CodeTTL == 0 {
		config.CodeTTL = DefaultCodeTTL
	}
	if config.CodeDigits == 0 {
		config.CodeDigits = DefaultCodeDigits
	}
	return &Service{config: config, store: store}
}

// CodeTTL returns how long issued verification codes stay valid.
func (s *Service) CodeTTL() time.Duration {
	return s.config.CodeTTL
}

// Register creates a new unverified account and returns it together with the
// verification code to be delivered out of band.
//
// An existing unverified account with the same email is re-registered in
// place: handle and secret are overwritten and a fresh code issued. An
// existing verified account with the email fails with ErrEmailTaken; a
// handle held by any other account fails with ErrHandleTaken.
func (s *Service) Register(ctx context.Context, handle, email, password string) (*domain.Account, string, error) {
	handle = auth.NormalizeHandle(handle)
	if err := auth.ValidateHandle(handle); err != nil {
		return nil, "", err
	}
	email = auth.NormalizeEmail(email)
	if err := auth.ValidateEmail(email); err != nil {
		return nil, "", err
	}
	if err := auth.ValidatePassword(password); err != nil {
		return nil, "", err
	}

	secretHash, err := auth.HashPassword(password)
	if err != nil {
		return nil, "", err
	}

	code, err := GenerateCode(s.config.CodeDigits)
	if err != nil {
		return nil, "", err
	}
	expiry := time.Now().Add(s.config.CodeTTL)

	existing, err := s.store.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if existing.Verified {
			return nil, "", domain.ErrEmailTaken
		}
		existing.Handle = handle
		existing.SecretHash = secretHash
		existing.VerifyCode = code
		existing.VerifyCodeExpiry = expiry
		if err := s.store.Reregister(ctx, existing); err != nil {
			return nil, "", err
		}
		return existing, code, nil
	case !errors.Is(err, domain.ErrAccountNotFound):
		return nil, "", err
	}

	now := time.Now()
	account := &domain.Account{
		ID:                uuid.New(),
		Handle:            handle,
		Email:             email,
		SecretHash:        secretHash,
		VerifyCode:        code,
		VerifyCodeExpiry:  expiry,
		Verified:          false,
		AcceptingMessages: true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.store.Create(ctx, account); err != nil {
		return nil, "", err
	}
	return account, code, nil
}

// ResolveByHandle looks up an account by its public handle,
// case-insensitively. Read-only; used by anonymous senders.
func (s *Service) ResolveByHandle(ctx context.Context, handle string) (*domain.Account, error) {
	return s.store.GetByHandle(ctx, auth.NormalizeHandle(handle))
}

// GetByID retrieves an account by its id.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	return s.store.GetByID(ctx, id)
}

// IssueCode generates a fresh verification code for the account behind the
// handle, overwriting any prior code and expiry. It never changes the
// verified flag; reissuing for an already-verified account is harmless
// because the stored code is ignored once verified.
func (s *Service) IssueCode(ctx context.Context, handle string) (*domain.Account, string, time.Time, error) {
	acct, err := s.ResolveByHandle(ctx, handle)
	if err != nil {
		return nil, "", time.Time{}, err
	}

	code, err := GenerateCode(s.config.CodeDigits)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	expiry := time.Now().Add(s.config.CodeTTL)

	if err := s.store.SetVerificationCode(ctx, acct.ID, code, expiry); err != nil {
		return nil, "", time.Time{}, err
	}
	return acct, code, expiry, nil
}

// Verify checks a submitted code against the account's stored code and
// expiry, and on success flips the account into its terminal verified state.
// The expiry check takes precedence: a matching code past its horizon fails
// with ErrCodeExpired. Verifying an already-verified account is a no-op
// success. Failures mutate nothing.
func (s *Service) Verify(ctx context.Context, handle, code string) error {
	acct, err := s.ResolveByHandle(ctx, handle)
	if err != nil {
		return err
	}

	if acct.Verified {
		return nil
	}
	if acct.CodeExpired(time.Now()) {
		return domain.ErrCodeExpired
	}
	if code != acct.VerifyCode {
		return domain.ErrCodeIncorrect
	}

	return s.store.MarkVerified(ctx, acct.ID)
}

// Authenticate verifies an identifier (handle or email) and password.
// Accounts that have not confirmed their email fail with ErrNotVerified.
// Lookup failures and password mismatches are indistinguishable to the
// caller.
func (s *Service) Authenticate(ctx context.Context, identifier, password string) (*domain.Account, error) {
	var acct *domain.Account
	var err error
	if strings.Contains(identifier, "@") {
		acct, err = s.store.GetByEmail(ctx, auth.NormalizeEmail(identifier))
	} else {
		acct, err = s.store.GetByHandle(ctx, auth.NormalizeHandle(identifier))
	}
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	if !auth.VerifyPassword(password, acct.SecretHash) {
		return nil, domain.ErrInvalidCredentials
	}
	if !acct.Verified {
		return nil, domain.ErrNotVerified
	}
	return acct, nil
}
