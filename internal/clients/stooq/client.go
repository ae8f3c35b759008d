// Package stooq implements the tertiary market-data provider on the Stooq
// CSV download endpoint. Stooq is keyless and serves CSV, so the non-JSON
// rate-limit heuristic does not apply here.
package stooq

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"stockgate/internal/domain"
	"stockgate/internal/ticker"
)

// Name identifies this provider in chain ordering and response metadata.
const Name = "stooq"

// Client for the Stooq historical data endpoint.
type Client struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

// NewClient creates a new Stooq client.
func NewClient(log zerolog.Logger) *Client {
	return &Client{
		baseURL: "https://stooq.com/q/d/l/",
		client:  &http.Client{Timeout: 10 * time.Second},
		log:     log.With().Str("client", Name).Logger(),
	}
}

// Name returns the provider name.
func (c *Client) Name() string { return Name }

// FetchQuote derives a quote from the most recent daily candle. Stooq has
// no dedicated quote endpoint.
func (c *Client) FetchQuote(ctx context.Context, symbol string) (*domain.Quote, error) {
	end := time.Now().UTC()
	history, err := c.FetchHistory(ctx, symbol, end.AddDate(0, 0, -14), end)
	if err != nil {
		return nil, err
	}

	last := history.Points[len(history.Points)-1]
	return &domain.Quote{
		Symbol:   symbol,
		LongName: symbol,
		Price:    last.Close,
		Currency: history.Currency,
		AsOf:     last.Date,
		Provider: Name,
	}, nil
}

// FetchHistory returns daily close/volume points for [start, end].
func (c *Client) FetchHistory(ctx context.Context, symbol string, start, end time.Time) (*domain.History, error) {
	params := url.Values{
		"s":  {stooqSymbol(symbol)},
		"d1": {start.Format("20060102")},
		"d2": {end.Format("20060102")},
		"i":  {"d"},
	}
	reqURL := c.baseURL + "?" + params.Encode()
	c.log.Debug().Str("url", reqURL).Msg("Fetching daily candles")

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

	if strings.Contains(strings.ToLower(string(body)), "no data") {
		return nil, domain.ErrNotFound
	}

	points, err := parseDailyCSV(body)
	if err != nil {
		return nil, &domain.UpstreamError{Provider: Name, Err: err}
	}
	if len(points) == 0 {
		return nil, domain.ErrNotFound
	}

	return &domain.History{Points: points, Currency: ticker.CurrencyForSymbol(symbol)}, nil
}

// FetchDividends is unsupported: the CSV endpoint carries no corporate
// actions, so the chain always falls through to the next candidate.
func (c *Client) FetchDividends(ctx context.Context, symbol string, start, end time.Time) (*domain.Dividends, error) {
	return nil, domain.ErrNotFound
}

// parseDailyCSV decodes Date,Open,High,Low,Close,Volume rows. Rows with an
// unparseable date or close are skipped; Stooq emits the series in
// ascending date order already.
func parseDailyCSV(body []byte) ([]domain.HistoryPoint, error) {
	reader := csv.NewReader(strings.NewReader(string(body)))
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing CSV: %w", err)
	}
	if len(records) < 2 {
		return nil, nil
	}

	points := make([]domain.HistoryPoint, 0, len(records)-1)
	for _, row := range records[1:] {
		if len(row) < 5 {
			continue
		}
		date, err := time.Parse("2006-01-02", row[0])
		if err != nil {
			continue
		}
		closePrice, err := strconv.ParseFloat(row[4], 64)
		if err != nil {
			continue
		}
		var volume int64
		if len(row) > 5 {
			volume, _ = strconv.ParseInt(row[5], 10, 64)
		}
		points = append(points, domain.HistoryPoint{
			Date:   date.UTC(),
			Close:  closePrice,
			Volume: volume,
		})
	}
	return points, nil
}

// stooqSymbol maps common ticker spellings onto Stooq's naming. Bare US
// symbols need a ".US" suffix; exchange suffixes are lowercased.
func stooqSymbol(symbol string) string {
	lower := strings.ToLower(symbol)
	if !strings.Contains(lower, ".") {
		return lower + ".us"
	}
	return lower
}
