package handlers

import "github.com/go-chi/chi/v5"

// RegisterRoutes registers all currency routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/api/forex/usd-thb", h.HandleGetUsdThb)
	r.Get("/api/forex/rate/{from}/{to}", h.HandleGetRate)
}
