package rates

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

func newTestClient(baseURL, apiKey string) *Client {
	c := New(baseURL, apiKey, &http.Client{Timeout: 5 * time.Second})
	c.Logger = log.New(io.Discard)
	c.Now = func() time.Time { return fixedNow }
	return c
}

func closedServerURL(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	u := srv.URL
	srv.Close()
	return u
}

func TestSelectURL(t *testing.T) {
	assert.Equal(t, FreeURL, SelectURL("", ""))
	assert.Equal(t, FreeURL, SelectURL("   ", ""))
	assert.Equal(t, KeyedURL, SelectURL("secret", ""))
	assert.Equal(t, "http://rates.local/latest", SelectURL("secret", "http://rates.local/latest"))
}

func TestFetchQueryParameters(t *testing.T) {
	var got map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Query()
		_, _ = io.WriteString(w, `{"base":"EUR","date":"2024-01-01","rates":{"USD":1.08,"GBP":0.86}}`)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, "k3y")
	_, err := c.Fetch(context.Background(), NewQuery("eur", []string{"usd", "GBP"}))
	require.NoError(t, err)
	assert.Equal(t, []string{"EUR"}, got["base"])
	assert.Equal(t, []string{"k3y"}, got["access_key"])
	assert.Equal(t, []string{"USD,GBP"}, got["symbols"])

	c = newTestClient(srv.URL, " ")
	_, err = c.Fetch(context.Background(), NewQuery("", nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"USD"}, got["base"])
	assert.NotContains(t, got, "access_key")
	assert.NotContains(t, got, "symbols")
}

func TestFetchSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"base":"EUR","date":"2024-01-01","rates":{"USD":1.08,"GBP":0.86}}`)
	}))
	defer srv.Close()

	set, err := newTestClient(srv.URL, "").Fetch(context.Background(), NewQuery("EUR", []string{"USD", "GBP"}))
	require.NoError(t, err)
	assert.Equal(t, RateSet{Base: "EUR", Date: "2024-01-01", Rates: map[string]float64{"USD": 1.08, "GBP": 0.86}}, set)
}

func TestFetchFiltersUnrequestedSymbols(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"result":"success","base_code":"USD","time_last_update_unix":1704067201,"rates":{"USD":1,"EUR":0.91,"JPY":141.2,"GBP":0.79}}`)
	}))
	defer srv.Close()

	set, err := newTestClient(srv.URL, "").Fetch(context.Background(), NewQuery("USD", []string{"EUR", "GBP", "XXX"}))
	require.NoError(t, err)
	assert.Equal(t, "USD", set.Base)
	assert.Equal(t, "2024-01-01", set.Date)
	assert.Equal(t, map[string]float64{"EUR": 0.91, "GBP": 0.79}, set.Rates)
	assert.False(t, set.Fallback)
}

func TestFetchMissingRatesIsDegraded(t *testing.T) {
	for _, body := range []string{`{"success":true}`, `{"success":true,"rates":null}`} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, body)
		}))

		set, err := newTestClient(srv.URL, "").Fetch(context.Background(), NewQuery("CHF", nil))
		srv.Close()
		require.NoError(t, err, body)
		assert.Equal(t, "CHF", set.Base)
		assert.Equal(t, "2024-03-15", set.Date)
		assert.Empty(t, set.Rates)
		assert.NotNil(t, set.Rates)
	}
}

func TestFetchUpstreamErrors(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    string
		message string
	}{
		{"error field", http.StatusOK, `{"success":false,"error":{"code":101,"info":"invalid access key"}}`, "API error: invalid access key"},
		{"error string", http.StatusOK, `{"error":"quota exceeded"}`, "API error: quota exceeded"},
		{"result error", http.StatusOK, `{"result":"error","error-type":"unsupported-code"}`, "API error: unsupported-code"},
		{"bad status", http.StatusServiceUnavailable, `{}`, "upstream status 503"},
		{"bad json", http.StatusOK, `<html>`, "failed to decode upstream response"},
		{"bad rates", http.StatusOK, `{"rates":[1,2]}`, "malformed rates"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, tc.body)
			}))
			defer srv.Close()

			_, err := newTestClient(srv.URL, "").Fetch(context.Background(), NewQuery("USD", nil))
			require.Error(t, err)
			var upErr *UpstreamError
			require.True(t, errors.As(err, &upErr))
			assert.Contains(t, upErr.Error(), tc.message)
		})
	}
}

func TestFetchConnectionFailureUsesFallback(t *testing.T) {
	c := newTestClient(closedServerURL(t), "")

	set, err := c.Fetch(context.Background(), NewQuery("EUR", []string{"USD", "GBP"}))
	require.NoError(t, err)
	assert.True(t, set.Fallback)
	assert.Equal(t, "EUR", set.Base)
	assert.Equal(t, "2024-03-15", set.Date)
	require.Len(t, set.Rates, 2)
	assert.InDelta(t, 1.0/0.92, set.Rates["USD"], 1e-9)
	assert.InDelta(t, 0.78/0.92, set.Rates["GBP"], 1e-9)
}

func TestFetchCanceledContextIsNotFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"rates":{}}`)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestClient(srv.URL, "").Fetch(ctx, NewQuery("USD", nil))
	var upErr *UpstreamError
	require.True(t, errors.As(err, &upErr))
	assert.ErrorIs(t, err, context.Canceled)
}
