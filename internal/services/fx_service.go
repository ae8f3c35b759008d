package services

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"stockgate/internal/cache"
	"stockgate/internal/domain"
)

// fxHub is the only currency rates are composed through. Two-hop
// composition via USD covers every pair this gateway is asked about;
// anything needing more hops is unsupported.
const fxHub = "USD"

// QuoteFetcher is the slice of the market-data service the FX resolver
// needs: currency pairs are quoted as synthetic "USDTHB=X" style symbols.
type QuoteFetcher interface {
	GetQuote(ctx context.Context, rawTicker string) (*domain.Quote, error)
}

// RateFallback is the secondary direct-fetch source tried when the quote
// provider cannot resolve a pair.
type RateFallback interface {
	GetRate(ctx context.Context, fromCurrency, toCurrency string) (float64, error)
}

// FxService resolves exchange rates between arbitrary currency codes by
// treating USD as a hub. Resolved rates - including composed cross-rates -
// are cached under the short FX TTL.
type FxService struct {
	quotes   QuoteFetcher
	fallback RateFallback
	cache    *cache.Store
	log      zerolog.Logger
}

// NewFxService creates the resolver. fallback may be nil to disable the
// secondary source.
func NewFxService(quotes QuoteFetcher, fallback RateFallback, store *cache.Store, log zerolog.Logger) *FxService {
	return &FxService{
		quotes:   quotes,
		fallback: fallback,
		cache:    store,
		log:      log.With().Str("component", "fx").Logger(),
	}
}

func fxKey(from, to string) string {
	return "fx:" + from + ":" + to
}

// Rate resolves 1 unit of from into to. The second return is false when no
// path can be resolved; callers treat that as "conversion unavailable",
// never as a fatal condition.
func (s *FxService) Rate(ctx context.Context, from, to string) (float64, bool) {
	from = strings.ToUpper(strings.TrimSpace(from))
	to = strings.ToUpper(strings.TrimSpace(to))
	if from == "" || to == "" {
		return 0, false
	}
	if from == to {
		return 1, true
	}

	var cached float64
	if s.cache.GetJSON(fxKey(from, to), &cached) && cached > 0 {
		return cached, true
	}

	// Direct pairs are always quoted USD-base, so the non-USD side of a
	// single-hop lookup is the reciprocal of the USD-base fetch.
	if from == fxHub {
		rate, ok := s.fetchHubRate(ctx, to)
		if !ok {
			return 0, false
		}
		return rate, true
	}
	if to == fxHub {
		rate, ok := s.fetchHubRate(ctx, from)
		if !ok || rate == 0 {
			return 0, false
		}
		inverted := 1 / rate
		s.cache.Set(fxKey(from, to), inverted)
		return inverted, true
	}

	// Cross rate: exactly one hub hop, never a longer chain.
	toUSD, ok := s.Rate(ctx, from, fxHub)
	if !ok {
		return 0, false
	}
	fromUSD, ok := s.Rate(ctx, fxHub, to)
	if !ok {
		return 0, false
	}
	composed := toUSD * fromUSD
	s.cache.Set(fxKey(from, to), composed)
	s.log.Debug().
		Str("from", from).
		Str("to", to).
		Float64("rate", composed).
		Msg("Composed cross rate through USD")
	return composed, true
}

// RateWithTimestamp is Rate plus the moment the figure was obtained, for
// response metadata.
func (s *FxService) RateWithTimestamp(ctx context.Context, from, to string) (float64, time.Time, bool) {
	rate, ok := s.Rate(ctx, from, to)
	if !ok {
		return 0, time.Time{}, false
	}
	return rate, time.Now().UTC(), true
}

// fetchHubRate resolves USD->currency, caching the result under the
// USD-base key. Quote provider first, then the direct-fetch fallback.
func (s *FxService) fetchHubRate(ctx context.Context, currency string) (float64, bool) {
	key := fxKey(fxHub, currency)

	var cached float64
	if s.cache.GetJSON(key, &cached) && cached > 0 {
		return cached, true
	}

	if quote, err := s.quotes.GetQuote(ctx, fxHub+currency+"=X"); err == nil && quote.Price > 0 {
		s.cache.Set(key, quote.Price)
		return quote.Price, true
	} else if err != nil {
		s.log.Debug().Err(err).Str("currency", currency).Msg("Quote provider could not resolve pair, trying fallback")
	}

	if s.fallback != nil {
		if rate, err := s.fallback.GetRate(ctx, fxHub, currency); err == nil && rate > 0 {
			s.cache.Set(key, rate)
			return rate, true
		} else if err != nil {
			s.log.Warn().Err(err).Str("currency", currency).Msg("Fallback rate source failed")
		}
	}

	return 0, false
}
