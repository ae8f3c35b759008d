package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFx struct {
	rates map[string]float64
}

func (s *stubFx) RateWithTimestamp(ctx context.Context, from, to string) (float64, time.Time, bool) {
	rate, ok := s.rates[from+":"+to]
	return rate, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), ok
}

func newTestRouter(fx *stubFx) chi.Router {
	handler := NewHandler(fx, zerolog.Nop())
	router := chi.NewRouter()
	handler.RegisterRoutes(router)
	return router
}

func doRequest(t *testing.T, router chi.Router, path string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, path, nil))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	return recorder, body
}

func TestHandleGetUsdThb(t *testing.T) {
	router := newTestRouter(&stubFx{rates: map[string]float64{"USD:THB": 35.5}})

	recorder, body := doRequest(t, router, "/api/forex/usd-thb")
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "USD/THB", body["currencyPair"])
	assert.Equal(t, 35.5, body["rate"])
	assert.Equal(t, "2024-03-01T12:00:00Z", body["timestamp"])
}

func TestHandleGetRate(t *testing.T) {
	router := newTestRouter(&stubFx{rates: map[string]float64{"GBP:THB": 43.75}})

	recorder, body := doRequest(t, router, "/api/forex/rate/gbp/thb")
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "GBP/THB", body["currencyPair"])
	assert.Equal(t, 43.75, body["rate"])
}

func TestHandleGetRateUnavailable(t *testing.T) {
	router := newTestRouter(&stubFx{})

	recorder, body := doRequest(t, router, "/api/forex/rate/GBP/THB")
	assert.Equal(t, http.StatusNotFound, recorder.Code)
	assert.Contains(t, body["error"], "GBP/THB")
}

func TestHandleGetRateBadCode(t *testing.T) {
	router := newTestRouter(&stubFx{})

	recorder, _ := doRequest(t, router, "/api/forex/rate/DOLLARS/THB")
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}
