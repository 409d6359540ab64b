package chat

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	chatService "github.com/eurobot/webchat/internal/service/chat"
	"github.com/eurobot/webchat/internal/service/session"
	"github.com/eurobot/webchat/pkg/utils"
)

// Handler exposes the session controller over REST.
type Handler struct {
	chatSvc *chatService.Service
}

// New creates the session handler.
func New(chatSvc *chatService.Service) *Handler {
	return &Handler{chatSvc: chatSvc}
}

// RegisterRoutes mounts the session routes on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/sessions", h.handleCreateSession)
	r.Get("/sessions/{sessionID}", h.handleGetSession)
	r.Delete("/sessions/{sessionID}", h.handleCloseSession)
	r.Post("/sessions/{sessionID}/messages", h.handleSendMessage)
	r.Post("/sessions/{sessionID}/retry", h.handleRetry)
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		ProfileID string `json:"profileId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctrl, err := h.chatSvc.CreateSession(context.WithoutCancel(r.Context()), payload.ProfileID)
	if err != nil {
		if errors.Is(err, chatService.ErrProfileNotFound) {
			utils.RespondError(w, http.StatusBadRequest, err.Error())
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusCreated, ctrl.Snapshot())
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.lookup(w, r)
	if !ok {
		return
	}
	utils.RespondJSON(w, http.StatusOK, ctrl.Snapshot())
}

func (h *Handler) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	if err := h.chatSvc.CloseSession(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var payload struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// The exchange outlives the HTTP request: a client that hangs up must not
	// turn into a backend failure for the session.
	err := ctrl.Send(context.WithoutCancel(r.Context()), payload.Text)
	if err != nil && !errors.Is(err, session.ErrEmptyMessage) {
		respondSessionError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, ctrl.Snapshot())
}

func (h *Handler) handleRetry(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.lookup(w, r)
	if !ok {
		return
	}

	if _, err := ctrl.RetryConnection(context.WithoutCancel(r.Context())); err != nil {
		respondSessionError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, ctrl.Snapshot())
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) (*session.Controller, bool) {
	ctrl, err := h.chatSvc.GetSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return nil, false
	}
	return ctrl, true
}

// respondSessionError maps controller sentinels onto HTTP statuses.
func respondSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrBusy), errors.Is(err, session.ErrDisconnected):
		utils.RespondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, session.ErrClosed):
		utils.RespondError(w, http.StatusGone, err.Error())
	default:
		log.Error().Err(err).Msg("unexpected session error")
		utils.RespondError(w, http.StatusInternalServerError, "internal error")
	}
}
