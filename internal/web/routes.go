package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/codenamed22/DupliGone/internal/constants"
	"github.com/codenamed22/DupliGone/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	analyzeHandler := handlers.NewAnalyzeHandler(s.config, s.analyzer)
	configHandler := handlers.NewConfigHandler(s.config)

	s.router.Route(constants.APIPrefix, func(r chi.Router) {
		r.Get("/health", handlers.HealthCheck)
		r.Get("/config", configHandler.Get)
		r.Post("/analyze", analyzeHandler.Analyze)
	})
}
