package account

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/quietpost/quietpost/internal/httputil"
	"github.com/quietpost/quietpost/internal/notification"
	"github.com/quietpost/quietpost/pkg/account"
	"github.com/quietpost/quietpost/pkg/domain"
)

// Handler handles account registration and email verification endpoints.
type Handler struct {
	logger         *slog.Logger
	accountService *account.Service
	emailService   *notification.EmailService
}

// NewHandler creates a new account handler. emailService may be nil when no
// SMTP relay is configured; verification codes are then only written to the
// log at debug level.
func NewHandler(logger *slog.Logger, accountService *account.Service, emailService *notification.EmailService) *Handler {
	return &Handler{
		logger:         logger,
		accountService: accountService,
		emailService:   emailService,
	}
}

type RegisterRequest struct {
	Handle   string `json:"handle"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterResponse struct {
	ID      string `json:"id"`
	Handle  string `json:"handle"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

type VerifyRequest struct {
	Handle string `json:"handle"`
	Code   string `json:"code"`
}

type ResendCodeRequest struct {
	Handle string `json:"handle"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

// Register creates a new account and sends a verification code.
// POST /v1/auth/register
//
// Registering again with the email of an unverified account replaces that
// account's credentials in place and issues a fresh code.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	acct, code, err := h.accountService.Register(r.Context(), req.Handle, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidHandle):
			httputil.Error(w, http.StatusBadRequest, "handle must be 3-30 characters: letters, digits, underscore, hyphen")
		case errors.Is(err, domain.ErrInvalidEmail):
			httputil.Error(w, http.StatusBadRequest, "invalid email address")
		case errors.Is(err, domain.ErrWeakPassword):
			httputil.Error(w, http.StatusBadRequest, "password must be 8-128 characters")
		case errors.Is(err, domain.ErrHandleTaken):
			httputil.Error(w, http.StatusConflict, "handle is already taken")
		case errors.Is(err, domain.ErrEmailTaken):
			httputil.Error(w, http.StatusConflict, "email is already registered")
		default:
			h.logger.Error("failed to register account", "error", err)
			httputil.Unavailable(w)
		}
		return
	}

	h.sendCode(acct, code)

	h.logger.Info("account registered", "account_id", acct.ID, "handle", acct.Handle)

	httputil.JSON(w, http.StatusCreated, RegisterResponse{
		ID:      acct.ID.String(),
		Handle:  acct.Handle,
		Email:   acct.Email,
		Message: "Account registered. Check your email for a verification code.",
	})
}

// Verify checks a verification code for a handle.
// POST /v1/auth/verify
//
// Verifying an already-verified account succeeds without changing anything.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Handle == "" || req.Code == "" {
		httputil.Error(w, http.StatusBadRequest, "handle and code are required")
		return
	}

	if err := h.accountService.Verify(r.Context(), req.Handle, req.Code); err != nil {
		switch {
		case errors.Is(err, domain.ErrAccountNotFound):
			httputil.Error(w, http.StatusNotFound, "account not found")
		case errors.Is(err, domain.ErrCodeExpired):
			httputil.Error(w, http.StatusBadRequest, "verification code has expired. request a new one")
		case errors.Is(err, domain.ErrCodeIncorrect):
			httputil.Error(w, http.StatusBadRequest, "incorrect verification code")
		default:
			h.logger.Error("failed to verify account", "error", err, "handle", req.Handle)
			httputil.Unavailable(w)
		}
		return
	}

	h.logger.Info("account verified", "handle", req.Handle)

	httputil.JSON(w, http.StatusOK, MessageResponse{
		Message: "Account verified successfully",
	})
}

// ResendCode issues a fresh verification code and emails it.
// POST /v1/auth/resend-code
func (h *Handler) ResendCode(w http.ResponseWriter, r *http.Request) {
	var req ResendCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Handle == "" {
		httputil.Error(w, http.StatusBadRequest, "handle is required")
		return
	}

	acct, code, _, err := h.accountService.IssueCode(r.Context(), req.Handle)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			httputil.Error(w, http.StatusNotFound, "account not found")
			return
		}
		h.logger.Error("failed to issue verification code", "error", err, "handle", req.Handle)
		httputil.Unavailable(w)
		return
	}

	if h.emailService == nil {
		httputil.Error(w, http.StatusServiceUnavailable, "email service not configured")
		return
	}
	if err := h.emailService.SendVerificationCode(acct.Email, acct.Handle, code, h.accountService.CodeTTL()); err != nil {
		h.logger.Error("failed to send verification code", "error", err, "account_id", acct.ID)
		httputil.Error(w, http.StatusServiceUnavailable, "failed to send verification email")
		return
	}

	h.logger.Info("verification code resent", "account_id", acct.ID)

	httputil.JSON(w, http.StatusOK, MessageResponse{
		Message: "Verification code sent",
	})
}

// sendCode delivers a verification code on a best-effort basis. Registration
// does not fail when the email cannot be sent; the sender can ask for a
// resend.
func (h *Handler) sendCode(acct *domain.Account, code string) {
	if h.emailService == nil {
		h.logger.Debug("email service not configured, skipping verification email", "account_id", acct.ID)
		return
	}
	if err := h.emailService.SendVerificationCode(acct.Email, acct.Handle, code, h.accountService.CodeTTL()); err != nil {
		h.logger.Error("failed to send verification code", "error", err, "account_id", acct.ID)
	}
}
