package alphavantage

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockgate/internal/domain"
)

func newTestClient(serverURL string) *Client {
	client := NewClient("test-key", zerolog.Nop())
	client.baseURL = serverURL
	return client
}

func TestNewClientDefaultsToDemoKey(t *testing.T) {
	client := NewClient("", zerolog.Nop())
	assert.Equal(t, "demo", client.apiKey)
}

func TestFetchQuote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GLOBAL_QUOTE", r.URL.Query().Get("function"))
		assert.Equal(t, "test-key", r.URL.Query().Get("apikey"))
		fmt.Fprint(w, `{"Global Quote":{
			"01. symbol":"PTT.BK",
			"05. price":"34.2500",
			"07. latest trading day":"2024-03-01"
		}}`)
	}))
	defer server.Close()

	quote, err := newTestClient(server.URL).FetchQuote(context.Background(), "PTT.BK")
	require.NoError(t, err)
	assert.Equal(t, "PTT.BK", quote.Symbol)
	assert.Equal(t, 34.25, quote.Price)
	assert.Equal(t, "THB", quote.Currency)
	assert.Equal(t, Name, quote.Provider)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), quote.AsOf)
}

func TestFetchQuoteEmptyPayloadNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"Global Quote":{}}`)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).FetchQuote(context.Background(), "NOPE")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFetchQuoteErrorMessageNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"Error Message":"Invalid API call."}`)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).FetchQuote(context.Background(), "NOPE")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFetchQuoteThrottleNoteIsUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"Note":"Thank you for using Alpha Vantage! Our standard API call frequency is 25 requests per day."}`)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).FetchQuote(context.Background(), "PTT.BK")
	require.Error(t, err)
	// Quota notes arrive as valid JSON, so they do not trip the breaker.
	assert.False(t, domain.IsRateLimited(err))
	assert.NotErrorIs(t, err, domain.ErrNotFound)
}

func TestFetchQuoteNonJSONIsRateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html>service unavailable</html>`)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).FetchQuote(context.Background(), "PTT.BK")
	assert.True(t, domain.IsRateLimited(err))
}

func TestFetchHistory(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "TIME_SERIES_DAILY", r.URL.Query().Get("function"))
		fmt.Fprint(w, `{"Time Series (Daily)":{
			"2024-01-03":{"4. close":"34.50","5. volume":"2000"},
			"2024-01-02":{"4. close":"34.00","5. volume":"1000"},
			"2023-12-29":{"4. close":"33.00","5. volume":"500"}
		}}`)
	}))
	defer server.Close()

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	history, err := newTestClient(server.URL).FetchHistory(context.Background(), "PTT.BK", start, end)
	require.NoError(t, err)
	assert.Equal(t, "THB", history.Currency)
	require.Len(t, history.Points, 2)

	// Out-of-range days are dropped and the rest sorted ascending.
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), history.Points[0].Date)
	assert.Equal(t, 34.0, history.Points[0].Close)
	assert.Equal(t, int64(1000), history.Points[0].Volume)
	assert.Equal(t, time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), history.Points[1].Date)
}

func TestFetchHistoryAllOutOfRangeNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"Time Series (Daily)":{"2020-01-02":{"4. close":"30.00","5. volume":"100"}}}`)
	}))
	defer server.Close()

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := newTestClient(server.URL).FetchHistory(context.Background(), "PTT.BK", start, start.AddDate(0, 1, 0))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFetchDividends(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "DIVIDENDS", r.URL.Query().Get("function"))
		fmt.Fprint(w, `{"data":[
			{"ex_dividend_date":"2024-03-01","amount":"0.80"},
			{"ex_dividend_date":"2023-09-01","amount":"1.00"},
			{"ex_dividend_date":"2019-03-01","amount":"0.50"},
			{"ex_dividend_date":"2024-02-01","amount":"None"}
		]}`)
	}))
	defer server.Close()

	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
	dividends, err := newTestClient(server.URL).FetchDividends(context.Background(), "PTT.BK", start, end)
	require.NoError(t, err)
	assert.Equal(t, "THB", dividends.Currency)
	require.Len(t, dividends.Events, 3)

	assert.Equal(t, "2023-09-01", dividends.Events[0].Date)
	require.NotNil(t, dividends.Events[0].AmountPerShare)
	assert.Equal(t, 1.0, *dividends.Events[0].AmountPerShare)

	// Unparseable amounts survive as events with a nil amount.
	assert.Equal(t, "2024-02-01", dividends.Events[1].Date)
	assert.Nil(t, dividends.Events[1].AmountPerShare)

	assert.Equal(t, "2024-03-01", dividends.Events[2].Date)
}
