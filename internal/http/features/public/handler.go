package public

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/quietpost/quietpost/internal/httputil"
	"github.com/quietpost/quietpost/internal/suggest"
	"github.com/quietpost/quietpost/pkg/domain"
	"github.com/quietpost/quietpost/pkg/inbox"
)

// Handler handles the anonymous sender-facing endpoints. Nothing here
// requires authentication and nothing identifies the sender.
type Handler struct {
	logger         *slog.Logger
	inboxService   *inbox.Service
	suggestService *suggest.Service
}

// NewHandler creates a new public handler.
func NewHandler(logger *slog.Logger, inboxService *inbox.Service, suggestService *suggest.Service) *Handler {
	return &Handler{
		logger:         logger,
		inboxService:   inboxService,
		suggestService: suggestService,
	}
}

// ProfileResponse is the public view of an inbox. It exposes only the
// handle and whether messages are currently accepted.
type ProfileResponse struct {
	Handle            string `json:"handle"`
	AcceptingMessages bool   `json:"accepting_messages"`
}

// SubmitRequest carries an anonymous message.
type SubmitRequest struct {
	Content string `json:"content"`
}

// SubmitResponse acknowledges a delivered message. The id lets a sender
// reference the message; nothing about the sender is returned.
type SubmitResponse struct {
	ID      uuid.UUID `json:"id"`
	Message string    `json:"message"`
}

// SuggestionsResponse lists proposed message starters.
type SuggestionsResponse struct {
	Suggestions []string `json:"suggestions"`
}

// GetProfile returns the public profile for a handle.
// GET /v1/u/{handle}
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	handle := chi.URLParam(r, "handle")

	acct, err := h.inboxService.Resolve(r.Context(), handle)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			httputil.Error(w, http.StatusNotFound, "no such inbox")
			return
		}
		h.logger.Error("failed to resolve handle", "error", err)
		httputil.Unavailable(w)
		return
	}

	httputil.JSON(w, http.StatusOK, ProfileResponse{
		Handle:            acct.Handle,
		AcceptingMessages: acct.AcceptingMessages,
	})
}

// SubmitMessage delivers an anonymous message to a handle's inbox.
// POST /v1/u/{handle}/messages
//
// A closed inbox rejects with 403. An unknown handle rejects with 404.
func (h *Handler) SubmitMessage(w http.ResponseWriter, r *http.Request) {
	handle := chi.URLParam(r, "handle")

	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	msg, err := h.inboxService.Submit(r.Context(), handle, req.Content)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrAccountNotFound):
			httputil.Error(w, http.StatusNotFound, "no such inbox")
		case errors.Is(err, domain.ErrInvalidContent):
			httputil.Error(w, http.StatusBadRequest, "message must be 10-300 characters")
		case errors.Is(err, domain.ErrNotAccepting):
			httputil.Error(w, http.StatusForbidden, "this inbox is not accepting messages")
		default:
			h.logger.Error("failed to submit message", "error", err)
			httputil.Unavailable(w)
		}
		return
	}

	httputil.JSON(w, http.StatusCreated, SubmitResponse{
		ID:      msg.ID,
		Message: "Message delivered",
	})
}

// GetSuggestions returns proposed message starters. Falls back to a canned
// list when the external generator is unavailable.
// POST /v1/suggestions
func (h *Handler) GetSuggestions(w http.ResponseWriter, r *http.Request) {
	suggestions, err := h.suggestService.Suggest(r.Context())
	if err != nil {
		h.logger.Warn("suggestion generator unavailable, serving defaults", "error", err)
		suggestions = suggest.Defaults()
	}

	httputil.JSON(w, http.StatusOK, SuggestionsResponse{Suggestions: suggestions})
}
