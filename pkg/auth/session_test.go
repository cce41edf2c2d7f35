package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/quietpost/quietpost/pkg/domain"
)

type fakeSessionStore struct {
	sessions map[string]*domain.Session // keyed by token hash
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: make(map[string]*domain.Session)}
}

func (f *fakeSessionStore) Create(_ context.Context, s *domain.Session) error {
	f.sessions[s.TokenHash] = s
	return nil
}

func (f *fakeSessionStore) GetByTokenHash(_ context.Context, hash string) (*domain.Session, error) {
	s, ok := f.sessions[hash]
	if !ok || s.RevokedAt != nil {
		return nil, domain.ErrSessionNotFound
	}
	return s, nil
}

func (f *fakeSessionStore) UpdateLastSeen(_ context.Context, id uuid.UUID) error {
	now := time.Now()
	for _, s := range f.sessions {
		if s.ID == id {
			s.LastSeenAt = &now
		}
	}
	return nil
}

func (f *fakeSessionStore) RevokeByTokenHash(_ context.Context, hash string) error {
	s, ok := f.sessions[hash]
	if !ok || s.RevokedAt != nil {
		return domain.ErrSessionNotFound
	}
	now := time.Now()
	s.RevokedAt = &now
	return nil
}

func (f *fakeSessionStore) RevokeAllByAccountID(_ context.Context, accountID uuid.UUID) error {
	now := time.Now()
	for _, s := range f.sessions {
		if s.AccountID == accountID && s.RevokedAt == nil {
			s.RevokedAt = &now
		}
	}
	return nil
}

type fakeAccountGetter struct {
	account *domain.Account
}

func (f *fakeAccountGetter) GetByID(_ context.Context, id uuid.UUID) (*domain.Account, error) {
	if f.account == nil || f.account.ID != id {
		return nil, domain.ErrAccountNotFound
	}
	return f.account, nil
}

func testSessionService(store *fakeSessionStore, account *domain.Account) *SessionService {
	return NewSessionService(SessionConfig{
		JWTSecret: []byte("test-secret-key-at-least-32-chars!!"),
		Issuer:    "quietpost-test",
	}, store, &fakeAccountGetter{account: account})
}

func testAccount() *domain.Account {
	return &domain.Account{
		ID:       uuid.New(),
		Handle:   "alice",
		Email:    "alice@example.com",
		Verified: true,
	}
}

func TestIssueSession_AccessTokenRoundTrip(t *testing.T) {
	ctx := context.Background()
	account := testAccount()
	svc := testSessionService(newFakeSessionStore(), account)

	pair, err := svc.IssueSession(ctx, account, IssueSessionOpts{IP: "127.0.0.1"})
	if err != nil {
		t.Fatalf("IssueSession failed: %v", err)
	}
	if pair.TokenType != "Bearer" {
		t.Errorf("TokenType = %q, want Bearer", pair.TokenType)
	}
	if pair.RefreshToken == "" {
		t.Error("expected a refresh token")
	}

	claims, err := svc.ValidateAccessToken(pair.AccessToken)
	if err != nil {
		t.Fatalf("ValidateAccessToken failed: %v", err)
	}
	if claims.Subject != account.ID.String() {
		t.Errorf("Subject = %q, want %q", claims.Subject, account.ID)
	}
	if claims.Handle != "alice" {
		t.Errorf("Handle = %q, want alice", claims.Handle)
	}
	if !claims.Verified {
		t.Error("Verified claim should be true")
	}
}

func TestValidateAccessToken_WrongSecret(t *testing.T) {
	ctx := context.Background()
	account := testAccount()
	svc := testSessionService(newFakeSessionStore(), account)

	pair, err := svc.IssueSession(ctx, account, IssueSessionOpts{})
	if err != nil {
		t.Fatalf("IssueSession failed: %v", err)
	}

	other := testSessionService(newFakeSessionStore(), account)
	other.config.JWTSecret = []byte("a-completely-different-secret-key!!")

	if _, err := other.ValidateAccessToken(pair.AccessToken); !errors.Is(err, domain.ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestRefreshSession(t *testing.T) {
	ctx := context.Background()
	account := testAccount()
	store := newFakeSessionStore()
	svc := testSessionService(store, account)

	pair, err := svc.IssueSession(ctx, account, IssueSessionOpts{})
	if err != nil {
		t.Fatalf("IssueSession failed: %v", err)
	}

	refreshed, err := svc.RefreshSession(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("RefreshSession failed: %v", err)
	}
	if refreshed.RefreshToken != pair.RefreshToken {
		t.Error("refresh should return the same refresh token")
	}
	if _, err := svc.ValidateAccessToken(refreshed.AccessToken); err != nil {
		t.Errorf("refreshed access token should validate: %v", err)
	}
}

func TestRefreshSession_Revoked(t *testing.T) {
	ctx := context.Background()
	account := testAccount()
	store := newFakeSessionStore()
	svc := testSessionService(store, account)

	pair, err := svc.IssueSession(ctx, account, IssueSessionOpts{})
	if err != nil {
		t.Fatalf("IssueSession failed: %v", err)
	}

	if err := svc.RevokeSession(ctx, pair.RefreshToken); err != nil {
		t.Fatalf("RevokeSession failed: %v", err)
	}

	if _, err := svc.RefreshSession(ctx, pair.RefreshToken); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound after revoke, got %v", err)
	}
}

func TestRefreshSession_Expired(t *testing.T) {
	ctx := context.Background()
	account := testAccount()
	store := newFakeSessionStore()
	svc := testSessionService(store, account)

	pair, err := svc.IssueSession(ctx, account, IssueSessionOpts{})
	if err != nil {
		t.Fatalf("IssueSession failed: %v", err)
	}

	// Force the stored session past its horizon.
	store.sessions[HashToken(pair.RefreshToken)].ExpiresAt = time.Now().Add(-time.Minute)

	if _, err := svc.RefreshSession(ctx, pair.RefreshToken); !errors.Is(err, domain.ErrSessionExpired) {
		t.Errorf("expected ErrSessionExpired, got %v", err)
	}
}
