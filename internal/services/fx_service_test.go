package services

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockgate/internal/cache"
	"stockgate/internal/domain"
)

// stubQuotes answers synthetic pair symbols like "USDTHB=X".
type stubQuotes struct {
	prices map[string]float64
	calls  int
}

func (s *stubQuotes) GetQuote(ctx context.Context, rawTicker string) (*domain.Quote, error) {
	s.calls++
	price, ok := s.prices[rawTicker]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &domain.Quote{Symbol: rawTicker, Price: price, Currency: "USD", AsOf: time.Now().UTC()}, nil
}

type stubFallback struct {
	rates map[string]float64
	calls int
}

func (s *stubFallback) GetRate(ctx context.Context, from, to string) (float64, error) {
	s.calls++
	rate, ok := s.rates[from+":"+to]
	if !ok {
		return 0, errors.New("pair unavailable")
	}
	return rate, nil
}

func newFxService(t *testing.T, quotes QuoteFetcher, fallback RateFallback) *FxService {
	t.Helper()
	store := cache.NewStore(filepath.Join(t.TempDir(), "snapshot.json"), zerolog.Nop())
	return NewFxService(quotes, fallback, store, zerolog.Nop())
}

func TestRateIdentity(t *testing.T) {
	quotes := &stubQuotes{}
	service := newFxService(t, quotes, nil)

	rate, ok := service.Rate(context.Background(), "THB", "THB")
	require.True(t, ok)
	assert.Equal(t, 1.0, rate)
	assert.Zero(t, quotes.calls)
}

func TestRateUSDBase(t *testing.T) {
	quotes := &stubQuotes{prices: map[string]float64{"USDTHB=X": 35.0}}
	service := newFxService(t, quotes, nil)

	rate, ok := service.Rate(context.Background(), "USD", "THB")
	require.True(t, ok)
	assert.Equal(t, 35.0, rate)
}

func TestRateInversion(t *testing.T) {
	quotes := &stubQuotes{prices: map[string]float64{"USDTHB=X": 35.0}}
	service := newFxService(t, quotes, nil)

	rate, ok := service.Rate(context.Background(), "THB", "USD")
	require.True(t, ok)
	assert.InDelta(t, 1.0/35.0, rate, 1e-12)
}

func TestRateComposition(t *testing.T) {
	quotes := &stubQuotes{prices: map[string]float64{
		"USDGBP=X": 0.8, // GBP->USD = 1.25
		"USDTHB=X": 35.0,
	}}
	service := newFxService(t, quotes, nil)

	rate, ok := service.Rate(context.Background(), "GBP", "THB")
	require.True(t, ok)
	assert.InDelta(t, 1.25*35.0, rate, 1e-9)
}

func TestRateComposedResultIsCached(t *testing.T) {
	quotes := &stubQuotes{prices: map[string]float64{
		"USDGBP=X": 0.8,
		"USDTHB=X": 35.0,
	}}
	service := newFxService(t, quotes, nil)

	_, ok := service.Rate(context.Background(), "GBP", "THB")
	require.True(t, ok)
	callsAfterFirst := quotes.calls

	rate, ok := service.Rate(context.Background(), "GBP", "THB")
	require.True(t, ok)
	assert.InDelta(t, 43.75, rate, 1e-9)
	assert.Equal(t, callsAfterFirst, quotes.calls, "a composed pair must be served from its direct key")
}

func TestRateFallsBackToSecondarySource(t *testing.T) {
	quotes := &stubQuotes{}
	fallback := &stubFallback{rates: map[string]float64{"USD:THB": 35.5}}
	service := newFxService(t, quotes, fallback)

	rate, ok := service.Rate(context.Background(), "USD", "THB")
	require.True(t, ok)
	assert.Equal(t, 35.5, rate)
	assert.Equal(t, 1, fallback.calls)
}

func TestRateUnresolvableIsAbsentNotError(t *testing.T) {
	service := newFxService(t, &stubQuotes{}, &stubFallback{})

	_, ok := service.Rate(context.Background(), "GBP", "THB")
	assert.False(t, ok)
}

func TestRateEmptyCurrencyIsAbsent(t *testing.T) {
	service := newFxService(t, &stubQuotes{}, nil)

	_, ok := service.Rate(context.Background(), "", "THB")
	assert.False(t, ok)
}

func TestRateWithTimestamp(t *testing.T) {
	quotes := &stubQuotes{prices: map[string]float64{"USDTHB=X": 35.0}}
	service := newFxService(t, quotes, nil)

	rate, asOf, ok := service.RateWithTimestamp(context.Background(), "USD", "THB")
	require.True(t, ok)
	assert.Equal(t, 35.0, rate)
	assert.WithinDuration(t, time.Now().UTC(), asOf, time.Minute)
}
