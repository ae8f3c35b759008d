// Package handlers provides HTTP handlers for stock market data.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"stockgate/internal/domain"
	"stockgate/internal/modules/dividends"
)

// MarketData is the slice of the market-data service the handlers use.
type MarketData interface {
	GetQuote(ctx context.Context, rawTicker string) (*domain.Quote, error)
	GetHistory(ctx context.Context, rawTicker string, start, end time.Time) (*domain.History, string, error)
	GetDividends(ctx context.Context, rawTicker string, start, end time.Time) (*domain.Dividends, string, error)
}

// FxResolver supplies the USD/THB metadata attached to dividend responses.
type FxResolver interface {
	RateWithTimestamp(ctx context.Context, from, to string) (float64, time.Time, bool)
}

// Handler handles stock HTTP requests.
type Handler struct {
	market             MarketData
	fx                 FxResolver
	pipeline           *dividends.Pipeline
	defaultHistoryDays int
	log                zerolog.Logger
}

// NewHandler creates a new stock handler.
func NewHandler(market MarketData, fx FxResolver, pipeline *dividends.Pipeline, defaultHistoryDays int, log zerolog.Logger) *Handler {
	return &Handler{
		market:             market,
		fx:                 fx,
		pipeline:           pipeline,
		defaultHistoryDays: defaultHistoryDays,
		log:                log.With().Str("handler", "stocks").Logger(),
	}
}

// HandleGetQuote handles GET /api/stock/{ticker}
func (h *Handler) HandleGetQuote(w http.ResponseWriter, r *http.Request) {
	rawTicker := chi.URLParam(r, "ticker")

	quote, err := h.market.GetQuote(r.Context(), rawTicker)
	if err != nil {
		h.writeError(w, rawTicker, err)
		return
	}
	h.writeJSON(w, http.StatusOK, quote)
}

// historyPointPayload renders a history point with a day-granularity date.
type historyPointPayload struct {
	Date   string  `json:"date"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
}

// HandleGetHistory handles GET /api/stock/history/{ticker}?startDate&endDate
func (h *Handler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	rawTicker := chi.URLParam(r, "ticker")

	start, end, err := h.parseRange(r)
	if err != nil {
		h.writeError(w, rawTicker, err)
		return
	}

	history, resolved, err := h.market.GetHistory(r.Context(), rawTicker, start, end)
	if err != nil {
		h.writeError(w, rawTicker, err)
		return
	}

	points := make([]historyPointPayload, 0, len(history.Points))
	for _, point := range history.Points {
		points = append(points, historyPointPayload{
			Date:   point.Date.Format("2006-01-02"),
			Close:  point.Close,
			Volume: point.Volume,
		})
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"ticker":         rawTicker,
		"resolvedTicker": resolved,
		"history":        points,
		"currency":       history.Currency,
	})
}

// HandleGetDividends handles GET /api/stock/dividends/{ticker}?startDate&endDate
func (h *Handler) HandleGetDividends(w http.ResponseWriter, r *http.Request) {
	rawTicker := chi.URLParam(r, "ticker")

	start, end, err := h.parseRange(r)
	if err != nil {
		h.writeError(w, rawTicker, err)
		return
	}

	raw, resolved, err := h.market.GetDividends(r.Context(), rawTicker, start, end)
	if err != nil {
		h.writeError(w, rawTicker, err)
		return
	}

	// The price series backs nearest-close pricing; its absence degrades
	// the response instead of failing it.
	history, _, histErr := h.market.GetHistory(r.Context(), resolved, start, end)
	if histErr != nil {
		h.log.Warn().Err(histErr).Str("ticker", resolved).Msg("No price history for dividend pricing")
		history = nil
	}

	report := h.pipeline.Enrich(r.Context(), raw.Events, history, start, end)

	meta := map[string]interface{}{
		"currentUsdThbRate": nil,
		"fxTimestamp":       nil,
	}
	if rate, asOf, ok := h.fx.RateWithTimestamp(r.Context(), "USD", "THB"); ok {
		meta["currentUsdThbRate"] = rate
		meta["fxTimestamp"] = asOf.Format(time.RFC3339)
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"ticker":         rawTicker,
		"resolvedTicker": resolved,
		"currency":       raw.Currency,
		"meta":           meta,
		"period": map[string]string{
			"start": start.Format("2006-01-02"),
			"end":   end.Format("2006-01-02"),
		},
		"events":  report.Events,
		"quality": report.Quality,
	})
}

// parseRange reads startDate/endDate query params, defaulting to a trailing
// window ending today. Dates are day-granularity UTC.
func (h *Handler) parseRange(r *http.Request) (time.Time, time.Time, error) {
	now := time.Now().UTC().Truncate(24 * time.Hour)
	start := now.AddDate(0, 0, -h.defaultHistoryDays)
	end := now

	if raw := r.URL.Query().Get("startDate"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return time.Time{}, time.Time{}, domain.NewValidationError("invalid startDate %q, want YYYY-MM-DD", raw)
		}
		start = parsed.UTC()
	}
	if raw := r.URL.Query().Get("endDate"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return time.Time{}, time.Time{}, domain.NewValidationError("invalid endDate %q, want YYYY-MM-DD", raw)
		}
		end = parsed.UTC()
	}

	if end.Before(start) {
		return time.Time{}, time.Time{}, domain.NewValidationError("endDate %s is before startDate %s", end.Format("2006-01-02"), start.Format("2006-01-02"))
	}
	return start, end, nil
}

// writeError maps the error taxonomy onto HTTP statuses.
func (h *Handler) writeError(w http.ResponseWriter, rawTicker string, err error) {
	var rateErr *domain.RateLimitedError
	switch {
	case domain.IsValidation(err):
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		h.writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "no data found for ticker " + rawTicker,
		})
	case errors.As(err, &rateErr):
		retryAfter := int(math.Ceil(rateErr.RetryAfter.Seconds()))
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"error":             rateErr.Error(),
			"retryAfterSeconds": retryAfter,
		})
	default:
		h.log.Error().Err(err).Str("ticker", rawTicker).Msg("Request failed")
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
