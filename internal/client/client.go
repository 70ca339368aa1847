// Package client calls the exchange rate tools server and turns its answers
// into prompts for a language model.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/sourcegraph/jsonrpc2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"exchange-rate-mcp/internal/tools"
	"exchange-rate-mcp/pkg/protocol"
)

// Client posts envelopes to a tools server.
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
	Logger  *log.Logger

	// NewID returns the id for the next request. Defaults to random UUIDs.
	NewID func() string
}

// New returns a Client for baseURL. If httpClient is nil, an instrumented
// client is used.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    httpClient,
		Logger:  log.Default(),
		NewID:   uuid.NewString,
	}
}

// StatusError reports a non-2xx answer from the tools endpoint.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("tools endpoint returned status %d", e.StatusCode)
}

// GetExchangeRates calls the exchange-rates tool. An empty base is sent as
// USD; empty symbols are omitted. An error envelope is returned as a
// *jsonrpc2.Error.
func (c *Client) GetExchangeRates(ctx context.Context, base string, symbols []string) (*protocol.ToolResult, error) {
	if strings.TrimSpace(base) == "" {
		base = "USD"
	}
	params := protocol.CallToolParams{
		Name:       tools.ExchangeRates,
		Parameters: protocol.RateParameters{Base: base, Symbols: symbols},
	}

	var resp protocol.CallToolResponse
	if err := c.call(ctx, protocol.MethodCallTool, params, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	if resp.Result == nil {
		return nil, fmt.Errorf("response carries neither result nor error")
	}
	return resp.Result, nil
}

// ListTools returns the tools the server advertises.
func (c *Client) ListTools(ctx context.Context) ([]protocol.ToolDescriptor, error) {
	var resp protocol.ListToolsResponse
	if err := c.call(ctx, protocol.MethodListTools, struct{}{}, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	if resp.Result == nil {
		return nil, nil
	}
	return resp.Result.Tools, nil
}

func (c *Client) call(ctx context.Context, method string, params, out any) error {
	rawParams, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("encode params: %w", err)
	}
	id := jsonrpc2.ID{Str: c.nextID(), IsString: true}
	body, err := json.Marshal(protocol.Request{
		JSONRPC: protocol.Version,
		ID:      &id,
		Method:  method,
		Params:  rawParams,
	})
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/tools", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		c.Logger.Error("error fetching exchange rates", "err", err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.Logger.Error("tools endpoint failed", "status", resp.StatusCode, "body", strings.TrimSpace(string(b)))
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) nextID() string {
	if c.NewID == nil {
		return uuid.NewString()
	}
	return c.NewID()
}
