// Package quietpost provides an embeddable anonymous-inbox library:
// account registration with email verification, session management, and
// anonymous message submission behind a per-inbox acceptance gate.
//
// Setup:
//
//  1. Run migrations from migrations/ folder using your preferred tool
//  2. Create an App instance and mount its routes
//
// Basic usage:
//
//	db, _ := sql.Open("postgres", "postgres://localhost/myapp?sslmode=disable")
//
//	app, err := quietpost.New(quietpost.Config{
//	    DB:        db,
//	    JWTSecret: "your-secret-key-at-least-32-chars",
//	})
//	if err != nil {
//	    log.Fatal(err) // Will fail if migrations haven't been run
//	}
//
//	r := chi.NewRouter()
//	r.Mount("/inbox", app.Router())
//	http.ListenAndServe(":8080", r)
package quietpost

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	accountfeature "github.com/quietpost/quietpost/internal/http/features/account"
	inboxfeature "github.com/quietpost/quietpost/internal/http/features/inbox"
	publicfeature "github.com/quietpost/quietpost/internal/http/features/public"
	sessionfeature "github.com/quietpost/quietpost/internal/http/features/session"
	"github.com/quietpost/quietpost/internal/http/middleware"
	"github.com/quietpost/quietpost/internal/httputil"
	"github.com/quietpost/quietpost/internal/suggest"
	"github.com/quietpost/quietpost/pkg/account"
	"github.com/quietpost/quietpost/pkg/auth"
	"github.com/quietpost/quietpost/pkg/inbox"
	"github.com/quietpost/quietpost/pkg/repository"
)

// Config holds the configuration for the embeddable library.
type Config struct {
	// DB is the database connection (required).
	DB *sql.DB

	// JWTSecret is the secret key for signing JWT tokens (required, min 32 chars).
	JWTSecret string

	// JWTIssuer is the issuer claim in JWT tokens (default: "quietpost").
	JWTIssuer string

	// AccessTokenTTL is the lifetime of access tokens (default: 15 minutes).
	AccessTokenTTL time.Duration

	// RefreshTokenTTL is the lifetime of refresh tokens (default: 7 days).
	RefreshTokenTTL time.Duration

	// VerifyCodeTTL is the lifetime of verification codes (default: 1 hour).
	VerifyCodeTTL time.Duration

	// Logger is the structured logger (default: slog JSON to stdout).
	Logger *slog.Logger
}

// App is the main embeddable instance.
type App struct {
	config         Config
	db             *sql.DB
	accountsRepo   *repository.AccountsRepository
	messagesRepo   *repository.MessagesRepository
	sessionsRepo   *repository.SessionsRepository
	accountService *account.Service
	sessionService *auth.SessionService
	inboxService   *inbox.Service
	suggestService *suggest.Service
}

// New creates a new App instance with the given configuration.
// Returns an error if required database tables don't exist.
// Run migrations first - see migrations/ folder for SQL files.
func New(cfg Config) (*App, error) {
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	// Validate schema exists
	if err := validateSchema(cfg.DB); err != nil {
		return nil, err
	}

	// Initialize repositories
	accountsRepo := repository.NewAccountsRepository(cfg.DB)
	messagesRepo := repository.NewMessagesRepository(cfg.DB)
	sessionsRepo := repository.NewSessionsRepository(cfg.DB)

	// Initialize services
	accountService := account.NewService(account.Config{
		CodeTTL: cfg.VerifyCodeTTL,
	}, accountsRepo)
	sessionService := auth.NewSessionService(auth.SessionConfig{
		AccessTokenTTL:  cfg.AccessTokenTTL,
		RefreshTokenTTL: cfg.RefreshTokenTTL,
		JWTSecret:       []byte(cfg.JWTSecret),
		Issuer:          cfg.JWTIssuer,
	}, sessionsRepo, accountsRepo)
	inboxService := inbox.NewService(accountsRepo, messagesRepo)

	return &App{
		config:         cfg,
		db:             cfg.DB,
		accountsRepo:   accountsRepo,
		messagesRepo:   messagesRepo,
		sessionsRepo:   sessionsRepo,
		accountService: accountService,
		sessionService: sessionService,
		inboxService:   inboxService,
		suggestService: suggest.NewService(suggest.Config{}),
	}, nil
}

// Router returns a chi router with all inbox routes.
// Mount this on your main router:
//
//	r := chi.NewRouter()
//	r.Mount("/inbox", app.Router())
//
// Routes:
//
//	POST /auth/register               - Register with handle/email/password
//	POST /auth/verify                 - Verify with emailed code
//	POST /auth/resend-code            - Reissue a verification code
//	POST /auth/login                  - Login with handle or email + password
//	POST /auth/refresh                - Refresh access token
//	POST /auth/logout                 - Logout (revoke session)
//	POST /auth/logout/all             - Logout all sessions (protected)
//	GET  /accepting                   - Read acceptance gate (protected)
//	PUT  /accepting                   - Toggle acceptance gate (protected)
//	GET  /messages                    - List received messages (protected)
//	DELETE /messages/{messageID}      - Delete one message (protected)
//	GET  /u/{handle}                  - Public profile
//	POST /u/{handle}/messages         - Anonymous submission
//	POST /suggestions                 - Message starters
func (a *App) Router() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Logger)

	// Registration and verification (no email service in embedded mode;
	// the host app delivers codes via its own channel)
	accountHandler := accountfeature.NewHandler(a.config.Logger, a.accountService, nil)
	r.Post("/auth/register", accountHandler.Register)
	r.Post("/auth/verify", accountHandler.Verify)
	r.Post("/auth/resend-code", accountHandler.ResendCode)

	// Session routes
	sessionHandler := sessionfeature.NewHandler(a.config.Logger, a.accountService, a.sessionService, httputil.DefaultCookieConfig())
	r.Post("/auth/login", sessionHandler.Login)
	r.Post("/auth/refresh", sessionHandler.Refresh)
	r.Post("/auth/logout", sessionHandler.Logout)

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(a.sessionService))

		r.Post("/auth/logout/all", sessionHandler.LogoutAll)

		inboxHandler := inboxfeature.NewHandler(a.config.Logger, a.inboxService)
		r.Get("/accepting", inboxHandler.GetAcceptance)
		r.Put("/accepting", inboxHandler.SetAcceptance)
		r.Get("/messages", inboxHandler.ListMessages)
		r.Delete("/messages/{messageID}", inboxHandler.DeleteMessage)
	})

	// Public sender-facing routes
	publicHandler := publicfeature.NewHandler(a.config.Logger, a.inboxService, a.suggestService)
	r.Get("/u/{handle}", publicHandler.GetProfile)
	r.Post("/u/{handle}/messages", publicHandler.SubmitMessage)
	r.Post("/suggestions", publicHandler.GetSuggestions)

	return r
}

// SessionService returns the session service for advanced usage.
func (a *App) SessionService() *auth.SessionService {
	return a.sessionService
}

// AccountService returns the account service for advanced usage, for
// example to deliver verification codes through the host app's own
// notification channel.
func (a *App) AccountService() *account.Service {
	return a.accountService
}

// InboxService returns the inbox service for advanced usage.
func (a *App) InboxService() *inbox.Service {
	return a.inboxService
}

// AuthMiddleware returns middleware that validates JWT tokens.
// Use this to protect your own routes:
//
//	r.Group(func(r chi.Router) {
//	    r.Use(app.AuthMiddleware())
//	    r.Get("/protected", handler)
//	})
func (a *App) AuthMiddleware() func(http.Handler) http.Handler {
	return middleware.Auth(a.sessionService)
}

// GetAccountID extracts the account ID from a request.
// Use after AuthMiddleware:
//
//	accountID, ok := quietpost.GetAccountID(r)
func GetAccountID(r *http.Request) (string, bool) {
	id, ok := middleware.GetAccountID(r.Context())
	if !ok {
		return "", false
	}
	return id.String(), true
}

// GetAccountIDFromContext extracts the account ID from a context.
// Use after AuthMiddleware:
//
//	accountID, ok := quietpost.GetAccountIDFromContext(ctx)
func GetAccountIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	return middleware.GetAccountID(ctx)
}

// Account represents basic account info returned by GetAccount.
type Account struct {
	ID                string
	Handle            string
	Email             string
	Verified          bool
	AcceptingMessages bool
}

// GetAccount retrieves the current account from the database.
// Use after AuthMiddleware:
//
//	acct, err := app.GetAccount(r)
func (a *App) GetAccount(r *http.Request) (*Account, error) {
	id, ok := middleware.GetAccountID(r.Context())
	if !ok {
		return nil, errors.New("quietpost: not authenticated")
	}

	acct, err := a.accountsRepo.GetByID(r.Context(), id)
	if err != nil {
		return nil, err
	}

	return &Account{
		ID:                acct.ID.String(),
		Handle:            acct.Handle,
		Email:             acct.Email,
		Verified:          acct.Verified,
		AcceptingMessages: acct.AcceptingMessages,
	}, nil
}

// HealthHandler returns a simple health check handler.
func (a *App) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// Handler returns an http.Handler for mounting with http.StripPrefix.
// This is useful when using standard library ServeMux:
//
//	mux := http.NewServeMux()
//	mux.Handle("/inbox/", http.StripPrefix("/inbox", app.Handler()))
func (a *App) Handler() http.Handler {
	return a.Router()
}

// Routes registers all routes on an http.ServeMux with the given prefix.
// This provides a simpler way to mount routes without StripPrefix:
//
//	mux := http.NewServeMux()
//	app.Routes(mux, "/api/inbox")
func (a *App) Routes(mux *http.ServeMux, prefix string) {
	mux.Handle(prefix+"/", http.StripPrefix(prefix, a.Router()))
}

func validateConfig(cfg *Config) error {
	if cfg.DB == nil {
		return errors.New("quietpost: DB is required")
	}
	if cfg.JWTSecret == "" {
		return errors.New("quietpost: JWTSecret is required")
	}
	if len(cfg.JWTSecret) < 32 {
		return errors.New("quietpost: JWTSecret must be at least 32 characters")
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.JWTIssuer == "" {
		cfg.JWTIssuer = "quietpost"
	}
	if cfg.AccessTokenTTL == 0 {
		cfg.AccessTokenTTL = 15 * time.Minute
	}
	if cfg.RefreshTokenTTL == 0 {
		cfg.RefreshTokenTTL = 7 * 24 * time.Hour
	}
	if cfg.VerifyCodeTTL == 0 {
		cfg.VerifyCodeTTL = time.Hour
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}
}

// validateSchema checks that required database tables exist.
func validateSchema(db *sql.DB) error {
	requiredTables := []string{"accounts", "messages", "sessions"}

	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'public' AND table_name = $1
	`

	for _, table := range requiredTables {
		var name string
		err := db.QueryRow(query, table).Scan(&name)
		if err == sql.ErrNoRows {
			return fmt.Errorf("quietpost: missing table '%s' - run migrations first (see migrations/ folder)", table)
		}
		if err != nil {
			return fmt.Errorf("quietpost: failed to check schema: %w", err)
		}
	}

	return nil
}
