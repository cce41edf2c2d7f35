package inbox

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/quietpost/quietpost/internal/http/middleware"
	"github.com/quietpost/quietpost/internal/httputil"
	"github.com/quietpost/quietpost/pkg/domain"
	"github.com/quietpost/quietpost/pkg/inbox"
)

// Handler handles the owner-facing inbox endpoints. All routes require
// authentication.
type Handler struct {
	logger       *slog.Logger
	inboxService *inbox.Service
}

// NewHandler creates a new inbox handler.
func NewHandler(logger *slog.Logger, inboxService *inbox.Service) *Handler {
	return &Handler{
		logger:       logger,
		inboxService: inboxService,
	}
}

// AcceptanceResponse reports whether the inbox accepts new messages.
type AcceptanceResponse struct {
	AcceptingMessages bool `json:"accepting_messages"`
}

// SetAcceptanceRequest toggles the acceptance gate.
type SetAcceptanceRequest struct {
	AcceptingMessages bool `json:"accepting_messages"`
}

// MessageView is the owner's view of a received message. The sender is
// never identified.
type MessageView struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// MessagesResponse lists received messages in arrival order.
type MessagesResponse struct {
	Messages []MessageView `json:"messages"`
}

// GetAcceptance reports the acceptance gate state.
// GET /v1/inbox/accepting
func (h *Handler) GetAcceptance(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.GetAccountID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	accepting, err := h.inboxService.Acceptance(r.Context(), accountID)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			httputil.Error(w, http.StatusNotFound, "account not found")
			return
		}
		h.logger.Error("failed to read acceptance state", "error", err, "account_id", accountID)
		httputil.Unavailable(w)
		return
	}

	httputil.JSON(w, http.StatusOK, AcceptanceResponse{AcceptingMessages: accepting})
}

// SetAcceptance toggles the acceptance gate.
// PUT /v1/inbox/accepting
//
// Setting the current value again succeeds and changes nothing.
func (h *Handler) SetAcceptance(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.GetAccountID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req SetAcceptanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	accepting, err := h.inboxService.SetAcceptance(r.Context(), accountID, req.AcceptingMessages)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			httputil.Error(w, http.StatusNotFound, "account not found")
			return
		}
		h.logger.Error("failed to set acceptance state", "error", err, "account_id", accountID)
		httputil.Unavailable(w)
		return
	}

	h.logger.Info("acceptance state changed", "account_id", accountID, "accepting", accepting)

	httputil.JSON(w, http.StatusOK, AcceptanceResponse{AcceptingMessages: accepting})
}

// ListMessages returns the caller's messages in arrival order.
// GET /v1/inbox/messages
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.GetAccountID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	messages, err := h.inboxService.List(r.Context(), accountID)
	if err != nil {
		h.logger.Error("failed to list messages", "error", err, "account_id", accountID)
		httputil.Unavailable(w)
		return
	}

	views := make([]MessageView, 0, len(messages))
	for _, m := range messages {
		views = append(views, MessageView{
			ID:        m.ID.String(),
			Content:   m.Content,
			CreatedAt: m.CreatedAt,
		})
	}

	httputil.JSON(w, http.StatusOK, MessagesResponse{Messages: views})
}

// DeleteMessage removes a single message from the caller's inbox.
// DELETE /v1/inbox/messages/{messageID}
//
// A message id belonging to another inbox is indistinguishable from a
// missing one.
func (h *Handler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.GetAccountID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	messageID, err := uuid.Parse(chi.URLParam(r, "messageID"))
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid message id")
		return
	}

	if err := h.inboxService.Delete(r.Context(), accountID, messageID); err != nil {
		if errors.Is(err, domain.ErrMessageNotFound) {
			httputil.Error(w, http.StatusNotFound, "message not found")
			return
		}
		h.logger.Error("failed to delete message", "error", err, "account_id", accountID, "message_id", messageID)
		httputil.Unavailable(w)
		return
	}

	h.logger.Info("message deleted", "account_id", accountID, "message_id", messageID)

	w.WriteHeader(http.StatusNoContent)
}
