package cache

import (
	"strings"
	"time"
)

// TTL constants for the two cache classes. The class is a pure function of
// the key prefix: currency-pair lookups go stale quickly, everything else
// (quotes, history, dividends) is kept for longer.
const (
	// TTLExchangeRate applies to "fx:" keys - rates move intraday.
	TTLExchangeRate = 10 * time.Minute

	// TTLMarketData applies to all other keys.
	TTLMarketData = time.Hour
)

// fxKeyPrefix marks cache keys holding currency-pair rates.
const fxKeyPrefix = "fx:"

// fxPairMarker appears in quote keys for synthetic currency-pair symbols
// ("quote:USDTHB=X"); those move with the rate and share its short TTL.
const fxPairMarker = "=X"

// TTLFor returns the time-to-live for a cache key.
func TTLFor(key string) time.Duration {
	if strings.HasPrefix(key, fxKeyPrefix) || strings.Contains(key, fxPairMarker) {
		return TTLExchangeRate
	}
	return TTLMarketData
}
