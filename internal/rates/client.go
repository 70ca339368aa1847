// Package rates provides a minimal client for currency rate APIs with a static
// fallback table for when the upstream cannot be reached.
package rates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	// KeyedURL is used when an access key is configured.
	KeyedURL = "https://api.exchangerate.host/latest"
	// FreeURL needs no key.
	FreeURL = "https://open.er-api.com/v6/latest"
)

// SelectURL returns override when set, otherwise the endpoint matching the key.
func SelectURL(apiKey, override string) string {
	if strings.TrimSpace(override) != "" {
		return override
	}
	if strings.TrimSpace(apiKey) != "" {
		return KeyedURL
	}
	return FreeURL
}

// Client fetches the latest rates from one upstream endpoint.
type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
	Logger  *log.Logger

	// Now stamps degraded and fallback sets. Defaults to time.Now.
	Now func() time.Time
}

// New returns a new client. If httpClient is nil, an instrumented client
// without a timeout is used.
func New(baseURL, apiKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		HTTP:    httpClient,
		Logger:  log.Default(),
		Now:     time.Now,
	}
}

// Fetch performs one GET against the upstream and returns normalized rates.
// Connection failures are answered from the fallback table; every other
// failure is an *UpstreamError.
func (c *Client) Fetch(ctx context.Context, q Query) (RateSet, error) {
	reqURL, err := c.buildURL(q)
	if err != nil {
		return RateSet{}, &UpstreamError{Message: "invalid upstream url", Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return RateSet{}, &UpstreamError{Message: "build upstream request", Err: err}
	}
	req.Header.Set("Accept", "application/json")

	c.Logger.Info("fetching exchange rates", "url", c.BaseURL, "base", q.Base)
	resp, err := c.HTTP.Do(req)
	if err != nil {
		if isConnectionError(err) {
			c.Logger.Warn("connection error, using fallback rates", "err", err)
			return Fallback(q, c.Now()), nil
		}
		c.Logger.Error("error fetching exchange rates", "err", err)
		return RateSet{}, &UpstreamError{Message: "failed to fetch exchange rates", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return RateSet{}, &UpstreamError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("failed to fetch exchange rates: upstream status %d", resp.StatusCode),
		}
	}
	body, err := decodeJSON(resp)
	if err != nil {
		return RateSet{}, &UpstreamError{StatusCode: resp.StatusCode, Message: "failed to decode upstream response", Err: err}
	}
	return c.normalize(q, body)
}

// buildURL composes the request URL with query params.
func (c *Client) buildURL(q Query) (string, error) {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base url: %w", err)
	}
	v := u.Query()
	v.Set("base", q.Base)
	if strings.TrimSpace(c.APIKey) != "" {
		v.Set("access_key", c.APIKey)
	}
	if len(q.Symbols) > 0 {
		v.Set("symbols", q.SymbolList())
	}
	u.RawQuery = v.Encode()
	return u.String(), nil
}

// decodeJSON decodes an HTTP response body into a generic object.
func decodeJSON(resp *http.Response) (map[string]any, error) {
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	if body == nil {
		return nil, errors.New("empty response body")
	}
	return body, nil
}

// normalize tolerates the field names of the supported upstreams.
func (c *Client) normalize(q Query, body map[string]any) (RateSet, error) {
	raw, ok := body["rates"]
	if !ok || raw == nil {
		if apiErr, ok := body["error"]; ok {
			c.Logger.Error("upstream reported an error", "error", apiErr)
			return RateSet{}, &UpstreamError{Message: "API error: " + describe(apiErr)}
		}
		if getString(body, "result") == "error" {
			return RateSet{}, &UpstreamError{Message: "API error: " + firstNonEmpty(getString(body, "error-type"), "unknown")}
		}
		c.Logger.Warn("unexpected upstream response format")
		return RateSet{Base: q.Base, Date: c.today(), Rates: map[string]float64{}}, nil
	}

	table, ok := raw.(map[string]any)
	if !ok {
		return RateSet{}, &UpstreamError{Message: fmt.Sprintf("malformed rates field of type %T", raw)}
	}
	rates := make(map[string]float64, len(table))
	for code, v := range table {
		if f, ok := v.(float64); ok {
			rates[code] = f
		}
	}

	return RateSet{
		Base:  firstNonEmpty(getString(body, "base"), getString(body, "base_code"), q.Base),
		Date:  firstNonEmpty(getString(body, "date"), unixDate(body["time_last_update_unix"]), c.today()),
		Rates: filterSymbols(rates, q.Symbols),
	}, nil
}

func (c *Client) today() string {
	return c.Now().Format(DateLayout)
}

func isConnectionError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET)
}

func describe(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case map[string]any:
		if s := firstNonEmpty(getString(t, "info"), getString(t, "message"), getString(t, "type")); s != "" {
			return s
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

func unixDate(v any) string {
	secs, ok := v.(float64)
	if !ok || secs <= 0 {
		return ""
	}
	return time.Unix(int64(secs), 0).UTC().Format(DateLayout)
}

func getString(m map[string]any, key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
