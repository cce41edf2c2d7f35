package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/quietpost/quietpost/internal/config"
	accountfeature "github.com/quietpost/quietpost/internal/http/features/account"
	inboxfeature "github.com/quietpost/quietpost/internal/http/features/inbox"
	publicfeature "github.com/quietpost/quietpost/internal/http/features/public"
	sessionfeature "github.com/quietpost/quietpost/internal/http/features/session"
	"github.com/quietpost/quietpost/internal/http/middleware"
	"github.com/quietpost/quietpost/internal/httputil"
	"github.com/quietpost/quietpost/internal/notification"
	"github.com/quietpost/quietpost/internal/suggest"
	"github.com/quietpost/quietpost/pkg/account"
	"github.com/quietpost/quietpost/pkg/auth"
	"github.com/quietpost/quietpost/pkg/inbox"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Logger             *slog.Logger
	AccountService     *account.Service
	SessionService     *auth.SessionService
	InboxService       *inbox.Service
	SuggestService     *suggest.Service
	EmailService       *notification.EmailService
	RateLimitConfig    config.RateLimitConfig
	SecurityHeaders    config.SecurityHeadersConfig
	MaxRequestBodySize int64
	CookieConfig       httputil.CookieConfig
	MetricsRegistry    *prometheus.Registry
}

// NewRouter creates a new HTTP router with all routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply global middleware
	r.Use(middleware.Recover(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(middleware.SecurityHeaders(cfg.SecurityHeaders))
	r.Use(middleware.RequestSizeLimit(cfg.MaxRequestBodySize))

	if cfg.MetricsRegistry != nil {
		metrics := middleware.NewMetrics(cfg.MetricsRegistry)
		r.Use(metrics.Handler)
		r.Method("GET", "/metrics", promhttp.HandlerFor(cfg.MetricsRegistry, promhttp.HandlerOpts{}))
	}

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Create rate limiters for different endpoint groups
	rateLimiters := middleware.CreateRateLimiters(cfg.RateLimitConfig, cfg.Logger)

	requireAuth := middleware.Auth(cfg.SessionService)

	// Registration and verification
	accountHandler := accountfeature.NewHandler(cfg.Logger, cfg.AccountService, cfg.EmailService)
	r.Group(func(r chi.Router) {
		r.Use(rateLimiters["auth"])
		r.Post("/v1/auth/register", accountHandler.Register)
	})
	r.Group(func(r chi.Router) {
		r.Use(rateLimiters["verify"])
		r.Post("/v1/auth/verify", accountHandler.Verify)
		r.Post("/v1/auth/resend-code", accountHandler.ResendCode)
	})

	// Login and session lifecycle
	sessionHandler := sessionfeature.NewHandler(cfg.Logger, cfg.AccountService, cfg.SessionService, cfg.CookieConfig)
	r.Group(func(r chi.Router) {
		r.Use(rateLimiters["auth"])
		r.Post("/v1/auth/login", sessionHandler.Login)
		r.Post("/v1/auth/refresh", sessionHandler.Refresh)
	})
	r.Post("/v1/auth/logout", sessionHandler.Logout)
	r.With(requireAuth).Post("/v1/auth/logout/all", sessionHandler.LogoutAll)

	// Owner-facing inbox routes
	inboxHandler := inboxfeature.NewHandler(cfg.Logger, cfg.InboxService)
	r.Group(func(r chi.Router) {
		r.Use(requireAuth)
		r.Use(middleware.RequireVerified())
		r.Get("/v1/inbox/accepting", inboxHandler.GetAcceptance)
		r.Put("/v1/inbox/accepting", inboxHandler.SetAcceptance)
		r.Get("/v1/inbox/messages", inboxHandler.ListMessages)
		r.Delete("/v1/inbox/messages/{messageID}", inboxHandler.DeleteMessage)
	})

	// Anonymous sender-facing routes
	publicHandler := publicfeature.NewHandler(cfg.Logger, cfg.InboxService, cfg.SuggestService)
	r.Get("/v1/u/{handle}", publicHandler.GetProfile)
	r.Group(func(r chi.Router) {
		r.Use(rateLimiters["submit"])
		r.Post("/v1/u/{handle}/messages", publicHandler.SubmitMessage)
		r.Post("/v1/suggestions", publicHandler.GetSuggestions)
	})

	return r
}
