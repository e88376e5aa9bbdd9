package server

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dwsmith1983/faultline/internal/server/handlers"
)

func (s *Server) registerRoutes(r chi.Router) {
	h := handlers.New(s.engine, s.scheduler, s.version)
	h.SetLogger(s.logger)

	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(APIKeyMiddleware(s.apiKey))
		r.Use(MaxBodyMiddleware(s.maxBody))
		r.Use(middleware.SetHeader("Content-Type", "application/json"))

		r.Get("/health", h.Health)

		// Fleet and catalog
		r.Get("/services", h.ListServices)
		r.Get("/services/{service}", h.GetService)
		r.Get("/faults", h.ListFaults)

		// Manual triggers
		r.Post("/trigger", h.Trigger)
		r.Post("/trigger/{service}/{operation}", h.TriggerOperation)

		// Configuration
		r.Get("/config", h.GetConfig)
		r.Patch("/config", h.PatchConfig)

		// Statistics
		r.Get("/stats", h.GetStats)
		r.Post("/stats/reset", h.ResetStats)

		// Scheduled generation
		r.Get("/generator", h.GeneratorStatus)
		r.Post("/generator/start", h.StartGenerator)
		r.Post("/generator/stop", h.StopGenerator)

		// Pattern
		r.Get("/pattern", h.GetPattern)
		r.Post("/pattern/reset", h.ResetPattern)
	})
}
