// Package inbox implements the per-account message ledger and the acceptance
// gate controlling whether anonymous submissions are allowed in.
package inbox

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/quietpost/quietpost/pkg/domain"
)

// Content bounds, counted in runes.
const (
	MinContentLen = 10
	MaxContentLen = 300
)

// AccountStore is the slice of account persistence the inbox needs.
type AccountStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	GetByHandle(ctx context.Context, handle string) (*domain.Account, error)
	SetAccepting(ctx context.Context, id uuid.UUID, accepting bool) error
}

// MessageStore persists messages. CreateIfAccepting must check the owner's
// acceptance flag and append atomically in one store operation, and Delete
// must be an atomic conditional removal scoped to the owning account.
type MessageStore interface {
	CreateIfAccepting(ctx context.Context, message *domain.Message) error
	ListByAccount(ctx context.Context, accountID uuid.UUID) ([]domain.Message, error)
	Delete(ctx context.Context, accountID, messageID uuid.UUID) error
}

// Service is the inbox service.
type Service struct {
	accounts AccountStore
	messages MessageStore
}

// NewService creates a new inbox service.
func NewService(accounts AccountStore, messages MessageStore) *Service {
	return &Service{accounts: accounts, messages: messages}
}

// ValidateContent enforces the message length bounds.
func ValidateContent(content string) error {
	n := utf8.RuneCountInString(content)
	if n < MinContentLen || n > MaxContentLen {
		return domain.ErrInvalidContent
	}
	return nil
}

// Resolve looks up the account behind a public handle. The store compares
// handles case-insensitively.
func (s *Service) Resolve(ctx context.Context, handle string) (*domain.Account, error) {
	return s.accounts.GetByHandle(ctx, handle)
}

// Submit appends an anonymous message to the inbox behind the handle.
// No authentication: senders are anonymous by design. The acceptance gate is
// evaluated by the store at insert time, so a toggle racing the submission
// cannot be bypassed.
func (s *Service) Submit(ctx context.Context, handle, content string) (*domain.Message, error) {
	acct, err := s.accounts.GetByHandle(ctx, handle)
	if err != nil {
		return nil, err
	}

	if err := ValidateContent(content); err != nil {
		return nil, err
	}

	message := &domain.Message{
		ID:        uuid.New(),
		AccountID: acct.ID,
		Content:   content,
		CreatedAt: time.Now(),
	}
	if err := s.messages.CreateIfAccepting(ctx, message); err != nil {
		return nil, err
	}
	return message, nil
}

// List returns the account's messages in insertion order. Owner-only; the
// transport layer supplies an authenticated account id.
func (s *Service) List(ctx context.Context, accountID uuid.UUID) ([]domain.Message, error) {
	return s.messages.ListByAccount(ctx, accountID)
}

// Delete removes one message by id from the account's collection. A message
// id owned by another account reports domain.ErrMessageNotFound; of two
// racing deletes of the same id at most one succeeds.
func (s *Service) Delete(ctx context.Context, accountID, messageID uuid.UUID) error {
	return s.messages.Delete(ctx, accountID, messageID)
}

// Acceptance reads the account's acceptance flag.
func (s *Service) Acceptance(ctx context.Context, accountID uuid.UUID) (bool, error) {
	acct, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return false, err
	}
	return acct.AcceptingMessages, nil
}

// SetAcceptance unconditionally overwrites the acceptance flag and returns
// the new value. Setting the current value again succeeds as a no-op.
func (s *Service) SetAcceptance(ctx context.Context, accountID uuid.UUID, desired bool) (bool, error) {
	if err := s.accounts.SetAccepting(ctx, accountID, desired); err != nil {
		return false, err
	}
	return desired, nil
}
