package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/Vaibhav-59/CodeVerse/internal/config"
	"github.com/Vaibhav-59/CodeVerse/internal/handler/project"
	"github.com/Vaibhav-59/CodeVerse/internal/handler/session"
	"github.com/Vaibhav-59/CodeVerse/internal/handler/stream"
	"github.com/Vaibhav-59/CodeVerse/internal/handler/users"
	"github.com/Vaibhav-59/CodeVerse/internal/hub"
	"github.com/Vaibhav-59/CodeVerse/internal/middleware"
	"github.com/Vaibhav-59/CodeVerse/internal/service/ai"
	"github.com/Vaibhav-59/CodeVerse/internal/store"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(cfg config.Config, projects store.Store, rooms *hub.Hub, assistant *ai.Service) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization", "Last-Event-ID"},
		AllowCredentials: true,
	}).Handler)

	projectHandler := project.New(projects)
	usersHandler := users.New(projects)
	sessionHandler := session.New(projects, rooms, ai.NewRoster(assistant, projects, rooms), cfg)

	var streamHandler *stream.Handler
	if assistant != nil {
		streamHandler = stream.New(assistant, projects)
	}

	r.Route("/api", func(api chi.Router) {
		// Websocket sessions authenticate via the token query parameter
		// because browsers cannot set headers on websocket upgrades.
		sessionHandler.RegisterRoutes(api)

		api.Group(func(authed chi.Router) {
			authed.Use(middleware.Auth(cfg.Auth.JWTSecret))

			projectHandler.RegisterRoutes(authed)
			usersHandler.RegisterRoutes(authed)
			if streamHandler != nil {
				streamHandler.RegisterRoutes(authed)
			}
		})
	})

	return r
}
