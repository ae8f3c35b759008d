// Package services holds the gateway's core logic: the provider fallback
// chain over the shared cache and circuit breaker, and the USD-hub FX
// resolver built on top of it.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"stockgate/internal/cache"
	"stockgate/internal/domain"
	"stockgate/internal/reliability"
	"stockgate/internal/ticker"
)

// Provider is one upstream market-data source normalized into the shared
// domain types. Every method returns domain.ErrNotFound when the symbol
// yields no data, a *domain.RateLimitedError on the throttle signature, or
// a *domain.UpstreamError for anything else.
type Provider interface {
	Name() string
	FetchQuote(ctx context.Context, symbol string) (*domain.Quote, error)
	FetchHistory(ctx context.Context, symbol string, start, end time.Time) (*domain.History, error)
	FetchDividends(ctx context.Context, symbol string, start, end time.Time) (*domain.Dividends, error)
}

// ChainProvider pairs a provider with its breaker policy. Only providers
// that emit the non-JSON throttle signature are allowed to trip the shared
// breaker; a CSV source failing to parse means something else entirely.
type ChainProvider struct {
	Provider
	BreakerGuarded bool
}

// candidate is one (symbol, provider) attempt in the fallback order. The
// chain is a flat, pre-built list so the order is data, not control flow.
type candidate struct {
	symbol   string
	provider ChainProvider
}

// providerMajor orders candidates so the primary provider is tried across
// all variants before the next provider sees any. Switching providers
// mid-variant-scan would waste the exact-match intent of the first variant.
func providerMajor(variants []string, providers []ChainProvider) []candidate {
	candidates := make([]candidate, 0, len(variants)*len(providers))
	for _, p := range providers {
		for _, v := range variants {
			candidates = append(candidates, candidate{symbol: v, provider: p})
		}
	}
	return candidates
}

// variantMajor orders candidates so every provider is exhausted for one
// variant before the next variant is tried. Dividend coverage differs
// per exchange listing, so the listing takes priority over the source.
func variantMajor(variants []string, providers []ChainProvider) []candidate {
	candidates := make([]candidate, 0, len(variants)*len(providers))
	for _, v := range variants {
		for _, p := range providers {
			candidates = append(candidates, candidate{symbol: v, provider: p})
		}
	}
	return candidates
}

// MarketDataService answers quote, history and dividend lookups by walking
// an ordered provider chain behind the cache and the shared breaker.
type MarketDataService struct {
	providers []ChainProvider
	cache     *cache.Store
	breaker   *reliability.Breaker
	log       zerolog.Logger
}

// NewMarketDataService creates the service. The provider order is the
// fallback order.
func NewMarketDataService(providers []ChainProvider, store *cache.Store, breaker *reliability.Breaker, log zerolog.Logger) *MarketDataService {
	return &MarketDataService{
		providers: providers,
		cache:     store,
		breaker:   breaker,
		log:       log.With().Str("component", "market_data").Logger(),
	}
}

func quoteKey(symbol string) string {
	return "quote:" + symbol
}

func historyKey(symbol string, start, end time.Time) string {
	return fmt.Sprintf("history:%s:%s:%s", symbol, start.Format("2006-01-02"), end.Format("2006-01-02"))
}

func dividendsKey(symbol string, start, end time.Time) string {
	return fmt.Sprintf("dividends:%s:%s:%s", symbol, start.Format("2006-01-02"), end.Format("2006-01-02"))
}

// GetQuote resolves rawTicker to its variants and returns the first quote
// any candidate yields, serving from cache when possible.
func (s *MarketDataService) GetQuote(ctx context.Context, rawTicker string) (*domain.Quote, error) {
	variants := ticker.Variants(rawTicker)
	if len(variants) == 0 {
		return nil, domain.NewValidationError("ticker must not be empty")
	}

	// Every variant's cache slot is checked before any upstream call, so
	// a second request within the TTL window costs zero provider calls.
	for _, variant := range variants {
		var quote domain.Quote
		if s.cache.GetJSON(quoteKey(variant), &quote) {
			s.log.Debug().Str("symbol", variant).Msg("Quote served from cache")
			return &quote, nil
		}
	}

	if err := s.checkBreaker(); err != nil {
		return nil, err
	}

	var lastErr error
	for _, cand := range providerMajor(variants, s.providers) {
		quote, err := s.fetchQuoteFrom(ctx, cand)
		if err == nil {
			s.cache.Set(quoteKey(cand.symbol), quote)
			return quote, nil
		}
		if escalate := s.classify(cand, err, &lastErr); escalate != nil {
			return nil, escalate
		}
	}
	return nil, s.exhausted(lastErr)
}

// GetHistory returns daily price history for [start, end], resolved the
// same way as quotes. The resolved symbol is returned alongside so callers
// can report which listing answered.
func (s *MarketDataService) GetHistory(ctx context.Context, rawTicker string, start, end time.Time) (*domain.History, string, error) {
	variants := ticker.Variants(rawTicker)
	if len(variants) == 0 {
		return nil, "", domain.NewValidationError("ticker must not be empty")
	}

	for _, variant := range variants {
		var history domain.History
		if s.cache.GetJSON(historyKey(variant, start, end), &history) {
			s.log.Debug().Str("symbol", variant).Msg("History served from cache")
			return &history, variant, nil
		}
	}

	if err := s.checkBreaker(); err != nil {
		return nil, "", err
	}

	var lastErr error
	for _, cand := range providerMajor(variants, s.providers) {
		history, err := s.fetchHistoryFrom(ctx, cand, start, end)
		if err == nil {
			s.cache.Set(historyKey(cand.symbol, start, end), history)
			return history, cand.symbol, nil
		}
		if escalate := s.classify(cand, err, &lastErr); escalate != nil {
			return nil, "", escalate
		}
	}
	return nil, "", s.exhausted(lastErr)
}

// GetDividends returns raw payout events for [start, end]. Unlike quotes
// and history the chain is variant-major: all providers are exhausted for
// one listing before the next listing is tried.
func (s *MarketDataService) GetDividends(ctx context.Context, rawTicker string, start, end time.Time) (*domain.Dividends, string, error) {
	variants := ticker.Variants(rawTicker)
	if len(variants) == 0 {
		return nil, "", domain.NewValidationError("ticker must not be empty")
	}

	for _, variant := range variants {
		var dividends domain.Dividends
		if s.cache.GetJSON(dividendsKey(variant, start, end), &dividends) {
			s.log.Debug().Str("symbol", variant).Msg("Dividends served from cache")
			return &dividends, variant, nil
		}
	}

	if err := s.checkBreaker(); err != nil {
		return nil, "", err
	}

	var lastErr error
	for _, cand := range variantMajor(variants, s.providers) {
		dividends, err := s.fetchDividendsFrom(ctx, cand, start, end)
		if err == nil {
			s.cache.Set(dividendsKey(cand.symbol, start, end), dividends)
			return dividends, cand.symbol, nil
		}
		if escalate := s.classify(cand, err, &lastErr); escalate != nil {
			return nil, "", escalate
		}
	}
	return nil, "", s.exhausted(lastErr)
}

func (s *MarketDataService) fetchQuoteFrom(ctx context.Context, cand candidate) (*domain.Quote, error) {
	if err := s.guard(cand); err != nil {
		return nil, err
	}
	return cand.provider.FetchQuote(ctx, cand.symbol)
}

func (s *MarketDataService) fetchHistoryFrom(ctx context.Context, cand candidate, start, end time.Time) (*domain.History, error) {
	if err := s.guard(cand); err != nil {
		return nil, err
	}
	return cand.provider.FetchHistory(ctx, cand.symbol, start, end)
}

func (s *MarketDataService) fetchDividendsFrom(ctx context.Context, cand candidate, start, end time.Time) (*domain.Dividends, error) {
	if err := s.guard(cand); err != nil {
		return nil, err
	}
	return cand.provider.FetchDividends(ctx, cand.symbol, start, end)
}

// checkBreaker rejects the whole operation while the breaker is open. A
// rejected request returns immediately without attempting any I/O.
func (s *MarketDataService) checkBreaker() error {
	if blocked, remaining := s.breaker.ShouldBlock(); blocked {
		return &domain.RateLimitedError{Provider: "upstream", RetryAfter: remaining}
	}
	return nil
}

// guard re-checks the breaker before each guarded call; a concurrent
// request may have tripped it mid-chain.
func (s *MarketDataService) guard(cand candidate) error {
	if !cand.provider.BreakerGuarded {
		return nil
	}
	if blocked, remaining := s.breaker.ShouldBlock(); blocked {
		return &domain.RateLimitedError{Provider: cand.provider.Name(), RetryAfter: remaining}
	}
	return nil
}

// classify routes one candidate's failure: NotFound and UpstreamError are
// recoverable (record and continue), the rate-limit signature trips the
// breaker and aborts the remaining chain. Returns the error to escalate,
// or nil to keep walking.
func (s *MarketDataService) classify(cand candidate, err error, lastErr *error) error {
	var rateErr *domain.RateLimitedError
	if errors.As(err, &rateErr) {
		if cand.provider.BreakerGuarded && rateErr.RetryAfter == 0 {
			// A fresh signature, not a breaker rejection: trip now.
			s.breaker.Trip()
			s.log.Warn().
				Str("provider", cand.provider.Name()).
				Str("symbol", cand.symbol).
				Msg("Rate-limit signature detected, circuit breaker tripped")
		}
		if _, remaining := s.breaker.ShouldBlock(); remaining > 0 {
			rateErr.RetryAfter = remaining
		}
		return rateErr
	}

	if !errors.Is(err, domain.ErrNotFound) {
		s.log.Debug().
			Err(err).
			Str("provider", cand.provider.Name()).
			Str("symbol", cand.symbol).
			Msg("Provider attempt failed, trying next candidate")
		*lastErr = err
	}
	return nil
}

// exhausted maps a fully-walked chain to its caller-facing error: NotFound
// when nothing worse than a miss was seen, otherwise the last real failure.
func (s *MarketDataService) exhausted(lastErr error) error {
	if lastErr == nil {
		return domain.ErrNotFound
	}
	var upErr *domain.UpstreamError
	if errors.As(lastErr, &upErr) {
		return lastErr
	}
	return &domain.UpstreamError{Provider: "chain", Err: lastErr}
}
