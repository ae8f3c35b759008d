// Package ticker normalizes raw user input into the ordered candidate
// symbols the provider chain should try.
package ticker

import "strings"

// DefaultMarketSuffix is appended to bare symbols that carry no explicit
// market qualifier. The gateway's home market is the Stock Exchange of
// Thailand, so "PTT" is tried as-typed and then as "PTT.BK".
const DefaultMarketSuffix = ".BK"

// Variants returns the ordered candidate symbols for a raw input.
//
// The input is trimmed and uppercased. A symbol that already carries a
// market qualifier ("." as in AAPL.US or PTT.BK) or a currency-pair marker
// ("=" as in USDTHB=X) is returned as the sole candidate. A bare symbol
// yields [as-typed, as-typed+".BK"]. Input order is preserved; nothing is
// deduplicated beyond exact equality.
//
// An empty input (after trimming) yields an empty slice - rejecting it is the
// caller's job.
func Variants(raw string) []string {
	symbol := strings.ToUpper(strings.TrimSpace(raw))
	if symbol == "" {
		return nil
	}

	if strings.ContainsAny(symbol, ".=") {
		return []string{symbol}
	}

	return []string{symbol, symbol + DefaultMarketSuffix}
}
