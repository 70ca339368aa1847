// Package generate talks to a local Ollama instance for single-shot text
// generation.
package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// DefaultURL is where Ollama listens out of the box.
const DefaultURL = "http://localhost:11434"

// Client is a minimal Ollama /api/generate client.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Logger  *log.Logger
}

// New returns a Client for baseURL. An empty baseURL selects DefaultURL and a
// nil httpClient an instrumented client without a timeout; generation on large
// models routinely takes minutes.
func New(baseURL string, httpClient *http.Client) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    httpClient,
		Logger:  log.Default(),
	}
}

// StatusError is returned when Ollama answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ollama returned status %d: %s", e.StatusCode, e.Body)
}

type generateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Generate sends prompt to model with streaming disabled and returns the
// response text. Extra options are merged into the request body; they cannot
// override model, prompt or stream.
func (c *Client) Generate(ctx context.Context, model, prompt string, options map[string]any) (string, error) {
	payload := make(map[string]any, len(options)+3)
	for k, v := range options {
		payload[k] = v
	}
	payload["model"] = model
	payload["prompt"] = prompt
	payload["stream"] = false

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode generate request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	c.Logger.Debug("calling ollama", "url", c.BaseURL, "model", model)
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("error calling Ollama API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode generate response: %w", err)
	}
	return out.Response, nil
}
