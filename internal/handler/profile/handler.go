package profile

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/eurobot/webchat/internal/model/profile"
	"github.com/eurobot/webchat/pkg/utils"
)

// Handler serves the bot branding shown in the chat header.
type Handler struct {
	profiles profile.Store
}

// New creates the profile handler.
func New(profiles profile.Store) *Handler {
	return &Handler{profiles: profiles}
}

// RegisterRoutes mounts the profile routes on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/profile", h.handleDefaultProfile)
	r.Get("/profiles", h.handleListProfiles)
}

func (h *Handler) handleDefaultProfile(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.profiles.Default())
}

func (h *Handler) handleListProfiles(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.profiles.List())
}
