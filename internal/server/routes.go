package server

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all circuit routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/challenges", h.HandleListChallenges)

	r.Route("/circuits", func(r chi.Router) {
		r.Post("/qasm", h.HandleUploadQASM)
		r.Post("/build", h.HandleBuild)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.HandleGet)
			r.Delete("/", h.HandleDelete)
			r.Get("/view", h.HandleView)
			r.Post("/noise", h.HandleNoise)
			r.Post("/challenge", h.HandleChallenge)
		})
	})
}
