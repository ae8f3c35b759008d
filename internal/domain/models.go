// Package domain contains the normalized market-data types shared by all
// providers, services and handlers. Providers translate their own response
// shapes into these types; nothing upstream-specific leaks past this package.
package domain

import "time"

// Quote is a normalized current-price snapshot for a single symbol.
type Quote struct {
	Symbol   string    `json:"symbol"`
	LongName string    `json:"longName"`
	Price    float64   `json:"currentPrice"`
	Currency string    `json:"currency"`
	AsOf     time.Time `json:"timestamp"`
	Provider string    `json:"provider"`
}

// HistoryPoint is one day of normalized price history.
// Date is day-granularity UTC; a series is sorted ascending with no
// duplicate dates.
type HistoryPoint struct {
	Date   time.Time `json:"date"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// History is a normalized price series with its quote currency.
type History struct {
	Points   []HistoryPoint
	Currency string
}

// DividendEvent is a raw payout record as returned by a provider.
// AmountPerShare is a pointer so a missing amount survives normalization
// and can be flagged during enrichment instead of silently becoming zero.
type DividendEvent struct {
	Date           string   `json:"date"`
	AmountPerShare *float64 `json:"amountPerShare"`
	Currency       string   `json:"currency"`
}

// Dividends bundles raw payout events with the currency they are quoted in.
type Dividends struct {
	Events   []DividendEvent
	Currency string
}
