package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/eurobot/webchat/internal/handler/chat"
	"github.com/eurobot/webchat/internal/handler/profile"
	"github.com/eurobot/webchat/internal/handler/stream"
	"github.com/eurobot/webchat/internal/handler/ws"
	middlewarePkg "github.com/eurobot/webchat/internal/middleware"
	profileModel "github.com/eurobot/webchat/internal/model/profile"
	chatService "github.com/eurobot/webchat/internal/service/chat"
	"github.com/eurobot/webchat/pkg/utils"
)

// Options tunes the HTTP surface.
type Options struct {
	AllowedOrigins []string
}

// NewRouter wires HTTP routes to the session registry.
func NewRouter(profiles profileModel.Store, chatSvc *chatService.Service, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(opts.AllowedOrigins))

	r.Route("/api", func(api chi.Router) {
		api.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			utils.RespondJSON(w, http.StatusOK, map[string]any{
				"status":   "ok",
				"sessions": chatSvc.Count(),
			})
		})

		profile.New(profiles).RegisterRoutes(api)
		chat.New(chatSvc).RegisterRoutes(api)
		stream.New(chatSvc).RegisterRoutes(api)
		ws.New(chatSvc, opts.AllowedOrigins).RegisterRoutes(api)
	})

	return r
}
