package ticker

import "strings"

// marketCurrencies maps market-qualifier suffixes to their trading currency.
// Providers that do not report a currency (Alpha Vantage, Stooq) fall back
// to this mapping.
var marketCurrencies = map[string]string{
	".BK": "THB",
	".L":  "GBP",
	".T":  "JPY",
	".HK": "HKD",
	".SI": "SGD",
	".AX": "AUD",
	".TO": "CAD",
	".DE": "EUR",
	".PA": "EUR",
}

// CurrencyForSymbol infers the trading currency from a symbol's market
// suffix. Unqualified symbols are assumed to be US listings in USD.
func CurrencyForSymbol(symbol string) string {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if idx := strings.LastIndex(symbol, "."); idx >= 0 {
		if currency, ok := marketCurrencies[symbol[idx:]]; ok {
			return currency
		}
	}
	return "USD"
}
