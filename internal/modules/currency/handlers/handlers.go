// Package handlers provides HTTP handlers for currency operations.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// FxResolver resolves exchange rates between currency codes.
type FxResolver interface {
	RateWithTimestamp(ctx context.Context, from, to string) (float64, time.Time, bool)
}

// Handler handles currency HTTP requests.
type Handler struct {
	fx  FxResolver
	log zerolog.Logger
}

// NewHandler creates a new currency handler.
func NewHandler(fx FxResolver, log zerolog.Logger) *Handler {
	return &Handler{
		fx:  fx,
		log: log.With().Str("handler", "currency").Logger(),
	}
}

// HandleGetUsdThb handles GET /api/forex/usd-thb
func (h *Handler) HandleGetUsdThb(w http.ResponseWriter, r *http.Request) {
	h.writeRate(w, r, "USD", "THB")
}

// HandleGetRate handles GET /api/forex/rate/{from}/{to}
func (h *Handler) HandleGetRate(w http.ResponseWriter, r *http.Request) {
	from := strings.ToUpper(chi.URLParam(r, "from"))
	to := strings.ToUpper(chi.URLParam(r, "to"))

	if len(from) != 3 || len(to) != 3 {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "currency codes must be three letters",
		})
		return
	}
	h.writeRate(w, r, from, to)
}

func (h *Handler) writeRate(w http.ResponseWriter, r *http.Request, from, to string) {
	rate, asOf, ok := h.fx.RateWithTimestamp(r.Context(), from, to)
	if !ok {
		h.log.Warn().Str("from", from).Str("to", to).Msg("Exchange rate unavailable")
		h.writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "no conversion path for " + from + "/" + to,
		})
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"currencyPair": from + "/" + to,
		"rate":         rate,
		"timestamp":    asOf.Format(time.RFC3339),
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
