package handlers

import "github.com/go-chi/chi/v5"

// RegisterRoutes registers all stock routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/api/stock/{ticker}", h.HandleGetQuote)
	r.Get("/api/stock/history/{ticker}", h.HandleGetHistory)
	r.Get("/api/stock/dividends/{ticker}", h.HandleGetDividends)
}
