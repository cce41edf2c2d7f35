package session

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/quietpost/quietpost/internal/httputil"
	"github.com/quietpost/quietpost/pkg/account"
	"github.com/quietpost/quietpost/pkg/auth"
	"github.com/quietpost/quietpost/pkg/domain"
)

type fakeAccounts struct {
	accounts map[uuid.UUID]*domain.Account
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{accounts: make(map[uuid.UUID]*domain.Account)}
}

func (f *fakeAccounts) Create(ctx context.Context, acct *domain.Account) error {
	cp := *acct
	f.accounts[acct.ID] = &cp
	return nil
}

func (f *fakeAccounts) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	if a, ok := f.accounts[id]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, domain.ErrAccountNotFound
}

func (f *fakeAccounts) GetByHandle(ctx context.Context, handle string) (*domain.Account, error) {
	for _, a := range f.accounts {
		if strings.EqualFold(a.Handle, handle) {
			cp := *a
			return &cp, nil
		}
	}
	return nil, domain.ErrAccountNotFound
}

func (f *fakeAccounts) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	for _, a := range f.accounts {
		if strings.EqualFold(a.Email, email) {
			cp := *a
			return &cp, nil
		}
	}
	return nil, domain.ErrAccountNotFound
}

func (f *fakeAccounts) Reregister(ctx context.Context, acct *domain.Account) error {
	cp := *acct
	f.accounts[acct.ID] = &cp
	return nil
}

func (f *fakeAccounts) SetVerificationCode(ctx context.Context, id uuid.UUID, code string, expiry time.Time) error {
	return nil
}

func (f *fakeAccounts) MarkVerified(ctx context.Context, id uuid.UUID) error {
	if a, ok := f.accounts[id]; ok {
		a.Verified = true
		return nil
	}
	return domain.ErrAccountNotFound
}

type fakeSessions struct {
	sessions map[string]*domain.Session
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{sessions: make(map[string]*domain.Session)}
}

func (f *fakeSessions) Create(ctx context.Context, s *domain.Session) error {
	cp := *s
	f.sessions[s.TokenHash] = &cp
	return nil
}

func (f *fakeSessions) GetByTokenHash(ctx context.Context, tokenHash string) (*domain.Session, error) {
	if s, ok := f.sessions[tokenHash]; ok && s.RevokedAt == nil {
		cp := *s
		return &cp, nil
	}
	return nil, domain.ErrSessionNotFound
}

func (f *fakeSessions) UpdateLastSeen(ctx context.Context, id uuid.UUID) error { return nil }

func (f *fakeSessions) RevokeByTokenHash(ctx context.Context, tokenHash string) error {
	if s, ok := f.sessions[tokenHash]; ok {
		now := time.Now()
		s.RevokedAt = &now
		return nil
	}
	return domain.ErrSessionNotFound
}

func (f *fakeSessions) RevokeAllByAccountID(ctx context.Context, accountID uuid.UUID) error {
	now := time.Now()
	for _, s := range f.sessions {
		if s.AccountID == accountID {
			s.RevokedAt = &now
		}
	}
	return nil
}

func seedAccount(t *testing.T, store *fakeAccounts, verified bool) *domain.Account {
	t.Helper()
	hash, err := auth.HashPassword("password123")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	acct := &domain.Account{
		ID:                uuid.New(),
		Handle:            "alice",
		Email:             "alice@example.com",
		SecretHash:        hash,
		Verified:          verified,
		AcceptingMessages: true,
	}
	if err := store.Create(context.Background(), acct); err != nil {
		t.Fatalf("Create: %v", err)
	}
	return acct
}

func testHandler(t *testing.T, verified bool) (*Handler, *fakeSessions) {
	t.Helper()
	accounts := newFakeAccounts()
	seedAccount(t, accounts, verified)
	sessions := newFakeSessions()

	accountSvc := account.NewService(account.Config{}, accounts)
	sessionSvc := auth.NewSessionService(auth.SessionConfig{
		JWTSecret: []byte("test-secret-key-at-least-32-chars!!"),
		Issuer:    "quietpost-test",
	}, sessions, accounts)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return NewHandler(logger, accountSvc, sessionSvc, httputil.DefaultCookieConfig()), sessions
}

func postJSON(t *testing.T, handler http.HandlerFunc, path, body string, mobile bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	if mobile {
		req.Header.Set("X-Client-Type", "mobile")
	}
	w := httptest.NewRecorder()
	handler(w, req)
	return w
}

func TestLogin(t *testing.T) {
	tests := []struct {
		name       string
		verified   bool
		body       string
		wantStatus int
	}{
		{
			name:       "valid login by handle",
			verified:   true,
			body:       `{"identifier":"alice","password":"password123"}`,
			wantStatus: http.StatusOK,
		},
		{
			name:       "valid login by email",
			verified:   true,
			body:       `{"identifier":"alice@example.com","password":"password123"}`,
			wantStatus: http.StatusOK,
		},
		{
			name:       "wrong password",
			verified:   true,
			body:       `{"identifier":"alice","password":"wrongpassword"}`,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "unknown identifier",
			verified:   true,
			body:       `{"identifier":"nobody","password":"password123"}`,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "unverified account",
			verified:   false,
			body:       `{"identifier":"alice","password":"password123"}`,
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "missing fields",
			verified:   true,
			body:       `{"identifier":"alice"}`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := testHandler(t, tt.verified)
			w := postJSON(t, h.Login, "/v1/auth/login", tt.body, true)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body: %s)", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

func TestLogin_MobileReceivesTokens(t *testing.T) {
	h, _ := testHandler(t, true)

	w := postJSON(t, h.Login, "/v1/auth/login", `{"identifier":"alice","password":"password123"}`, true)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d (body: %s)", w.Code, w.Body.String())
	}

	var resp TokenResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.AccessToken == "" || resp.RefreshToken == "" {
		t.Error("mobile response missing tokens")
	}
	if resp.TokenType != "Bearer" {
		t.Errorf("TokenType = %q, want Bearer", resp.TokenType)
	}
}

func TestLogin_WebReceivesCookies(t *testing.T) {
	h, _ := testHandler(t, true)

	w := postJSON(t, h.Login, "/v1/auth/login", `{"identifier":"alice","password":"password123"}`, false)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d (body: %s)", w.Code, w.Body.String())
	}

	var resp TokenResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.AccessToken != "" || resp.RefreshToken != "" {
		t.Error("web response should not carry tokens in the body")
	}

	cookies := w.Result().Cookies()
	var haveAccess, haveRefresh bool
	for _, c := range cookies {
		switch c.Name {
		case "access_token":
			haveAccess = c.Value != ""
		case "refresh_token":
			haveRefresh = c.Value != ""
		}
	}
	if !haveAccess || !haveRefresh {
		t.Errorf("cookies = %v, want access_token and refresh_token", cookies)
	}
}

func TestRefresh(t *testing.T) {
	h, _ := testHandler(t, true)

	w := postJSON(t, h.Login, "/v1/auth/login", `{"identifier":"alice","password":"password123"}`, true)
	if w.Code != http.StatusOK {
		t.Fatalf("login: status = %d", w.Code)
	}
	var login TokenResponse
	if err := json.Unmarshal(w.Body.Bytes(), &login); err != nil {
		t.Fatalf("decode login: %v", err)
	}

	t.Run("valid refresh token", func(t *testing.T) {
		w := postJSON(t, h.Refresh, "/v1/auth/refresh", `{"refresh_token":"`+login.RefreshToken+`"}`, true)
		if w.Code != http.StatusOK {
			t.Errorf("status = %d (body: %s)", w.Code, w.Body.String())
		}
	})

	t.Run("unknown refresh token", func(t *testing.T) {
		w := postJSON(t, h.Refresh, "/v1/auth/refresh", `{"refresh_token":"bogus"}`, true)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
		}
	})

	t.Run("web client without cookie", func(t *testing.T) {
		w := postJSON(t, h.Refresh, "/v1/auth/refresh", `{}`, false)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
		}
	})
}

func TestLogout(t *testing.T) {
	h, sessions := testHandler(t, true)

	w := postJSON(t, h.Login, "/v1/auth/login", `{"identifier":"alice","password":"password123"}`, true)
	if w.Code != http.StatusOK {
		t.Fatalf("login: status = %d", w.Code)
	}
	var login TokenResponse
	if err := json.Unmarshal(w.Body.Bytes(), &login); err != nil {
		t.Fatalf("decode login: %v", err)
	}

	w = postJSON(t, h.Logout, "/v1/auth/logout", `{"refresh_token":"`+login.RefreshToken+`"}`, true)
	if w.Code != http.StatusNoContent {
		t.Fatalf("logout: status = %d, want %d", w.Code, http.StatusNoContent)
	}

	// The refresh token no longer works
	if _, err := sessions.GetByTokenHash(context.Background(), auth.HashToken(login.RefreshToken)); err == nil {
		t.Error("session still resolvable after logout")
	}

	w = postJSON(t, h.Refresh, "/v1/auth/refresh", `{"refresh_token":"`+login.RefreshToken+`"}`, true)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("refresh after logout: status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}
