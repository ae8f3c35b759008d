package exchangerate

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(serverURL string) *Client {
	client := NewClient(zerolog.Nop())
	client.baseURL = serverURL
	return client
}

func TestGetRate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/USD", r.URL.Path)
		fmt.Fprint(w, `{"base":"USD","rates":{"THB":35.5,"EUR":0.92}}`)
	}))
	defer server.Close()

	rate, err := newTestClient(server.URL).GetRate(context.Background(), "USD", "THB")
	require.NoError(t, err)
	assert.Equal(t, 35.5, rate)
}

func TestGetRateIdentity(t *testing.T) {
	// Same-currency conversions never hit the network.
	client := newTestClient("http://127.0.0.1:0")
	rate, err := client.GetRate(context.Background(), "THB", "THB")
	require.NoError(t, err)
	assert.Equal(t, 1.0, rate)
}

func TestGetRateMissingCurrency(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"base":"USD","rates":{"EUR":0.92}}`)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).GetRate(context.Background(), "USD", "XXX")
	assert.Error(t, err)
}

func TestGetRateServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).GetRate(context.Background(), "USD", "THB")
	assert.Error(t, err)
}
