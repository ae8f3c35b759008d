// Package yahoo implements the primary market-data provider on top of the
// Yahoo Finance chart API. Yahoo serves an HTML error page instead of JSON
// when it throttles a caller; that parse failure is the rate-limit signature
// the circuit breaker keys on.
package yahoo

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
)

// Name identifies this provider in chain ordering and response metadata.
const Name = "yahoo"

// Client for the Yahoo Finance v8 chart API.
type Client struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

// NewClient creates a new Yahoo Finance client.
func NewClient(log zerolog.Logger) *Client {
	return &Client{
		baseURL: "https://query1.finance.yahoo.com/v8/finance/chart",
		client:  &http.Client{Timeout: 10 * time.Second},
		log:     log.With().Str("client", Name).Logger(),
	}
}

// Name returns the provider name.
func (c *Client) Name() string { return Name }

// chartResponse mirrors the subset of the chart API payload we consume.
type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Meta struct {
		Currency           string  `json:"currency"`
		Symbol             string  `json:"symbol"`
		LongName           string  `json:"longName"`
		ShortName          string  `json:"shortName"`
		RegularMarketPrice float64 `json:"regularMarketPrice"`
		RegularMarketTime  int64   `json:"regularMarketTime"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Close  []*float64 `json:"close"`
			Volume []*int64   `json:"volume"`
		} `json:"quote"`
	} `json:"indicators"`
	Events struct {
		Dividends map[string]struct {
			Amount *float64 `json:"amount"`
			Date   int64    `json:"date"`
		} `json:"dividends"`
	} `json:"events"`
}

// FetchQuote returns the current price snapshot for symbol.
func (c *Client) FetchQuote(ctx context.Context, symbol string) (*domain.Quote, error) {
	result, err := c.fetchChart(ctx, symbol, url.Values{
		"range":    {"1d"},
		"interval": {"1d"},
	})
	if err != nil {
		return nil, err
	}

	meta := result.Meta
	if meta.RegularMarketPrice <= 0 {
		return nil, domain.ErrNotFound
	}

	name := meta.LongName
	if name == "" {
		name = meta.ShortName
	}
	if name == "" {
		name = meta.Symbol
	}

	asOf := time.Now().UTC()
	if meta.RegularMarketTime > 0 {
		asOf = time.Unix(meta.RegularMarketTime, 0).UTC()
	}

	return &domain.Quote{
		Symbol:   meta.Symbol,
		LongName: name,
		Price:    meta.RegularMarketPrice,
		Currency: meta.Currency,
		AsOf:     asOf,
		Provider: Name,
	}, nil
}

// FetchHistory returns daily close/volume points for [start, end].
func (c *Client) FetchHistory(ctx context.Context, symbol string, start, end time.Time) (*domain.History, error) {
	result, err := c.fetchChart(ctx, symbol, url.Values{
		"period1":  {strconv.FormatInt(start.Unix(), 10)},
		"period2":  {strconv.FormatInt(end.Add(24 * time.Hour).Unix(), 10)},
		"interval": {"1d"},
	})
	if err != nil {
		return nil, err
	}

	if len(result.Timestamp) == 0 || len(result.Indicators.Quote) == 0 {
		return nil, domain.ErrNotFound
	}

	quote := result.Indicators.Quote[0]
	points := make([]domain.HistoryPoint, 0, len(result.Timestamp))
	var lastDate time.Time
	for i, ts := range result.Timestamp {
		if i >= len(quote.Close) || quote.Close[i] == nil {
			continue
		}
		date := time.Unix(ts, 0).UTC().Truncate(24 * time.Hour)
		// Intraday candles for the current session collapse onto one day;
		// keep the first occurrence only.
		if !lastDate.IsZero() && !date.After(lastDate) {
			continue
		}
		lastDate = date

		var volume int64
		if i < len(quote.Volume) && quote.Volume[i] != nil {
			volume = *quote.Volume[i]
		}
		points = append(points, domain.HistoryPoint{
			Date:   date,
			Close:  *quote.Close[i],
			Volume: volume,
		})
	}

	if len(points) == 0 {
		return nil, domain.ErrNotFound
	}

	return &domain.History{Points: points, Currency: result.Meta.Currency}, nil
}

// FetchDividends returns raw payout events for [start, end].
func (c *Client) FetchDividends(ctx context.Context, symbol string, start, end time.Time) (*domain.Dividends, error) {
	result, err := c.fetchChart(ctx, symbol, url.Values{
		"period1":  {strconv.FormatInt(start.Unix(), 10)},
		"period2":  {strconv.FormatInt(end.Add(24 * time.Hour).Unix(), 10)},
		"interval": {"1d"},
		"events":   {"div"},
	})
	if err != nil {
		return nil, err
	}

	if result.Meta.Symbol == "" {
		return nil, domain.ErrNotFound
	}

	events := make([]domain.DividendEvent, 0, len(result.Events.Dividends))
	for _, div := range result.Events.Dividends {
		events = append(events, domain.DividendEvent{
			Date:           time.Unix(div.Date, 0).UTC().Format("2006-01-02"),
			AmountPerShare: div.Amount,
			Currency:       result.Meta.Currency,
		})
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Date < events[j].Date })

	return &domain.Dividends{Events: events, Currency: result.Meta.Currency}, nil
}

// fetchChart performs one chart API call and classifies the response.
func (c *Client) fetchChart(ctx context.Context, symbol string, params url.Values) (*chartResult, error) {
	reqURL := fmt.Sprintf("%s/%s?%s", c.baseURL, url.PathEscape(symbol), params.Encode())
	c.log.Debug().Str("url", reqURL).Msg("Fetching chart data")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, &domain.UpstreamError{Provider: Name, Err: err}
	}
	// Yahoo rejects requests without a browser-like user agent.
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; stockgate/1.0)")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &domain.UpstreamError{Provider: Name, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.UpstreamError{Provider: Name, Err: err}
	}

	var parsed chartResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		// Yahoo served something other than the expected JSON shape -
		// almost always an HTML throttle page. This is the rate-limit
		// signature regardless of status code.
		c.log.Warn().
			Int("status", resp.StatusCode).
			Str("symbol", symbol).
			Msg("Non-JSON response from Yahoo, treating as rate limited")
		return nil, &domain.RateLimitedError{Provider: Name}
	}

	if parsed.Chart.Error != nil {
		if parsed.Chart.Error.Code == "Not Found" {
			return nil, domain.ErrNotFound
		}
		return nil, &domain.UpstreamError{
			Provider: Name,
			Err:      fmt.Errorf("%s: %s", parsed.Chart.Error.Code, parsed.Chart.Error.Description),
		}
	}

	if len(parsed.Chart.Result) == 0 {
		return nil, domain.ErrNotFound
	}

	return &parsed.Chart.Result[0], nil
}
