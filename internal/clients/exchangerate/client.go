// Package exchangerate provides the fallback currency rate source on
// exchangerate-api.com. Caching lives in the FX service, not here.
package exchangerate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Client for exchangerate-api.com.
type Client struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

// NewClient creates a new exchangerate-api.com client.
func NewClient(log zerolog.Logger) *Client {
	return &Client{
		baseURL: "https://api.exchangerate-api.com/v4/latest",
		client:  &http.Client{Timeout: 10 * time.Second},
		log:     log.With().Str("client", "exchangerate-api").Logger(),
	}
}

// GetRate fetches the current from->to conversion rate.
func (c *Client) GetRate(ctx context.Context, fromCurrency, toCurrency string) (float64, error) {
	if fromCurrency == toCurrency {
		return 1.0, nil
	}

	reqURL := fmt.Sprintf("%s/%s", c.baseURL, fromCurrency)
	c.log.Debug().Str("url", reqURL).Msg("Fetching rates")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return 0, fmt.Errorf("building request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("API returned status %d", resp.StatusCode)
	}

	var result struct {
		Rates map[string]float64 `json:"rates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, fmt.Errorf("failed to parse response: %w", err)
	}

	rate, exists := result.Rates[toCurrency]
	if !exists {
		return 0, fmt.Errorf("no rate for %s in %s response", toCurrency, fromCurrency)
	}
	if rate <= 0 {
		return 0, fmt.Errorf("non-positive rate %f for %s/%s", rate, fromCurrency, toCurrency)
	}

	c.log.Debug().
		Str("from", fromCurrency).
		Str("to", toCurrency).
		Float64("rate", rate).
		Msg("Fetched exchange rate")
	return rate, nil
}
