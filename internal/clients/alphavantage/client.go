// Package alphavantage implements the secondary market-data provider on the
// Alpha Vantage REST API. Works with the public "demo" key when no API key
// is configured, at heavily reduced limits.
package alphavantage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"stockgate/internal/domain"
	"stockgate/internal/ticker"
)

// Name identifies this provider in chain ordering and response metadata.
const Name = "alphavantage"

// Client for the Alpha Vantage query API.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	log     zerolog.Logger
}

// NewClient creates a new Alpha Vantage client. An empty apiKey falls back
// to the public demo key.
func NewClient(apiKey string, log zerolog.Logger) *Client {
	if apiKey == "" {
		apiKey = "demo"
	}
	return &Client{
		baseURL: "https://www.alphavantage.co/query",
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
		log:     log.With().Str("client", Name).Logger(),
	}
}

// Name returns the provider name.
func (c *Client) Name() string { return Name }

// globalQuoteResponse mirrors the GLOBAL_QUOTE payload. Alpha Vantage keys
// fields with numbered labels.
type globalQuoteResponse struct {
	GlobalQuote map[string]string `json:"Global Quote"`
	Note        string            `json:"Note"`
	Information string            `json:"Information"`
	ErrorMsg    string            `json:"Error Message"`
}

// FetchQuote returns the current price snapshot for symbol.
func (c *Client) FetchQuote(ctx context.Context, symbol string) (*domain.Quote, error) {
	body, err := c.query(ctx, url.Values{
		"function": {"GLOBAL_QUOTE"},
		"symbol":   {symbol},
	})
	if err != nil {
		return nil, err
	}

	var parsed globalQuoteResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		// Non-JSON where JSON was expected: the rate-limit signature.
		c.log.Warn().Str("symbol", symbol).Msg("Non-JSON response from Alpha Vantage, treating as rate limited")
		return nil, &domain.RateLimitedError{Provider: Name}
	}

	if parsed.ErrorMsg != "" {
		// "Error Message" means an invalid symbol or call, not throttling.
		return nil, domain.ErrNotFound
	}
	if msg := throttleMessage(parsed.Note, parsed.Information); msg != "" {
		return nil, &domain.UpstreamError{Provider: Name, Err: fmt.Errorf("%s", msg)}
	}
	if len(parsed.GlobalQuote) == 0 {
		return nil, domain.ErrNotFound
	}

	price, err := strconv.ParseFloat(parsed.GlobalQuote["05. price"], 64)
	if err != nil || price <= 0 {
		return nil, domain.ErrNotFound
	}

	resolvedSymbol := parsed.GlobalQuote["01. symbol"]
	if resolvedSymbol == "" {
		resolvedSymbol = symbol
	}

	asOf := time.Now().UTC()
	if day := parsed.GlobalQuote["07. latest trading day"]; day != "" {
		if parsedDay, err := time.Parse("2006-01-02", day); err == nil {
			asOf = parsedDay.UTC()
		}
	}

	return &domain.Quote{
		Symbol:   resolvedSymbol,
		LongName: resolvedSymbol,
		Price:    price,
		Currency: ticker.CurrencyForSymbol(resolvedSymbol),
		AsOf:     asOf,
		Provider: Name,
	}, nil
}

// timeSeriesResponse mirrors the TIME_SERIES_DAILY payload.
type timeSeriesResponse struct {
	TimeSeries  map[string]map[string]string `json:"Time Series (Daily)"`
	Note        string                       `json:"Note"`
	Information string                       `json:"Information"`
	ErrorMsg    string                       `json:"Error Message"`
}

// FetchHistory returns daily close/volume points for [start, end].
func (c *Client) FetchHistory(ctx context.Context, symbol string, start, end time.Time) (*domain.History, error) {
	body, err := c.query(ctx, url.Values{
		"function":   {"TIME_SERIES_DAILY"},
		"symbol":     {symbol},
		"outputsize": {"full"},
	})
	if err != nil {
		return nil, err
	}

	var parsed timeSeriesResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		c.log.Warn().Str("symbol", symbol).Msg("Non-JSON response from Alpha Vantage, treating as rate limited")
		return nil, &domain.RateLimitedError{Provider: Name}
	}

	if parsed.ErrorMsg != "" {
		return nil, domain.ErrNotFound
	}
	if msg := throttleMessage(parsed.Note, parsed.Information); msg != "" {
		return nil, &domain.UpstreamError{Provider: Name, Err: fmt.Errorf("%s", msg)}
	}
	if len(parsed.TimeSeries) == 0 {
		return nil, domain.ErrNotFound
	}

	points := make([]domain.HistoryPoint, 0, len(parsed.TimeSeries))
	for day, fields := range parsed.TimeSeries {
		date, err := time.Parse("2006-01-02", day)
		if err != nil {
			continue
		}
		date = date.UTC()
		if date.Before(start) || date.After(end) {
			continue
		}
		closePrice, err := strconv.ParseFloat(fields["4. close"], 64)
		if err != nil {
			continue
		}
		volume, _ := strconv.ParseInt(fields["5. volume"], 10, 64)
		points = append(points, domain.HistoryPoint{Date: date, Close: closePrice, Volume: volume})
	}

	if len(points) == 0 {
		return nil, domain.ErrNotFound
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })

	return &domain.History{Points: points, Currency: ticker.CurrencyForSymbol(symbol)}, nil
}

// dividendsResponse mirrors the DIVIDENDS payload.
type dividendsResponse struct {
	Data []struct {
		ExDividendDate string `json:"ex_dividend_date"`
		Amount         string `json:"amount"`
	} `json:"data"`
	Note        string `json:"Note"`
	Information string `json:"Information"`
	ErrorMsg    string `json:"Error Message"`
}

// FetchDividends returns raw payout events for [start, end].
func (c *Client) FetchDividends(ctx context.Context, symbol string, start, end time.Time) (*domain.Dividends, error) {
	body, err := c.query(ctx, url.Values{
		"function": {"DIVIDENDS"},
		"symbol":   {symbol},
	})
	if err != nil {
		return nil, err
	}

	var parsed dividendsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		c.log.Warn().Str("symbol", symbol).Msg("Non-JSON response from Alpha Vantage, treating as rate limited")
		return nil, &domain.RateLimitedError{Provider: Name}
	}

	if parsed.ErrorMsg != "" {
		return nil, domain.ErrNotFound
	}
	if msg := throttleMessage(parsed.Note, parsed.Information); msg != "" {
		return nil, &domain.UpstreamError{Provider: Name, Err: fmt.Errorf("%s", msg)}
	}
	if len(parsed.Data) == 0 {
		return nil, domain.ErrNotFound
	}

	currency := ticker.CurrencyForSymbol(symbol)
	startDay := start.Format("2006-01-02")
	endDay := end.Format("2006-01-02")

	events := make([]domain.DividendEvent, 0, len(parsed.Data))
	for _, row := range parsed.Data {
		if row.ExDividendDate < startDay || row.ExDividendDate > endDay {
			continue
		}
		event := domain.DividendEvent{Date: row.ExDividendDate, Currency: currency}
		if amount, err := strconv.ParseFloat(row.Amount, 64); err == nil {
			event.AmountPerShare = &amount
		}
		events = append(events, event)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Date < events[j].Date })

	return &domain.Dividends{Events: events, Currency: currency}, nil
}

// query performs one API call and returns the raw body for shape-specific
// decoding.
func (c *Client) query(ctx context.Context, params url.Values) ([]byte, error) {
	params.Set("apikey", c.apiKey)
	reqURL := c.baseURL + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, &domain.UpstreamError{Provider: Name, Err: err}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &domain.UpstreamError{Provider: Name, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.UpstreamError{Provider: Name, Err: err}
	}
	return body, nil
}

// throttleMessage returns the quota notice, if any. Throttle notes arrive
// as valid JSON, so they are recoverable upstream errors rather than the
// breaker's non-JSON signature.
func throttleMessage(note, information string) string {
	if note != "" {
		return note
	}
	return information
}
