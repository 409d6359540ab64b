package stream

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	chatService "github.com/eurobot/webchat/internal/service/chat"
	"github.com/eurobot/webchat/pkg/utils"
)

const defaultKeepAlive = 15 * time.Second

// Handler streams session snapshots via Server-Sent Events.
type Handler struct {
	chatSvc   *chatService.Service
	keepAlive time.Duration
}

// New creates a new stream handler.
func New(chatSvc *chatService.Service) *Handler {
	return &Handler{chatSvc: chatSvc, keepAlive: defaultKeepAlive}
}

// WithKeepAlive overrides the comment heartbeat interval.
func (h *Handler) WithKeepAlive(d time.Duration) *Handler {
	h.keepAlive = d
	return h
}

// RegisterRoutes mounts the stream route on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/sessions/{sessionID}/events", h.handleEvents)
}

// handleEvents emits a "state" event with the full snapshot on every change
// and ends the stream once the session closes.
func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	sessionID := chi.URLParam(r, "sessionID")
	ctrl, err := h.chatSvc.GetSession(r.Context(), sessionID)
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)

	updates, cancel := ctrl.Subscribe()
	defer cancel()

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	logger := log.With().Str("session_id", sessionID).Logger()
	logger.Debug().Msg("sse stream opened")
	defer logger.Debug().Msg("sse stream closed")

	for {
		select {
		case <-r.Context().Done():
			return
		case snap, ok := <-updates:
			if !ok {
				return
			}
			if err := utils.SendSSEEvent(w, flusher, "state", snap); err != nil {
				logger.Debug().Err(err).Msg("sse write failed")
				return
			}
			if snap.Closed {
				return
			}
		case <-ticker.C:
			if err := utils.SendSSEComment(w, flusher, "keep-alive"); err != nil {
				return
			}
		}
	}
}
