// Package ollama is a small client for the Ollama text generation API.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HealthTimeout bounds a Health call.
const HealthTimeout = 5 * time.Second

// maxErrorBody caps how much of an error response is kept in the error message.
const maxErrorBody = 512

// Options are the sampling options sent with every generation request.
type Options struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
}

// DefaultOptions are the sampling options used for titles.
var DefaultOptions = Options{Temperature: 0.3, TopP: 0.9}

// GenerateRequest is the body of POST /api/generate.
type GenerateRequest struct {
	Model   string  `json:"model"`
	Prompt  string  `json:"prompt"`
	Stream  bool    `json:"stream"`
	Options Options `json:"options"`
}

// GenerateResponse is the non-streaming response of POST /api/generate.
type GenerateResponse struct {
	Response string `json:"response"`
	Model    string `json:"model"`
	Done     bool   `json:"done"`
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("ollama returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("ollama returned status %d: %s", e.StatusCode, e.Body)
}

// Client talks to one Ollama server.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for baseURL. A nil httpClient uses a default
// client; per-request deadlines come from the caller's context.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

// BaseURL returns the server base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Generate runs a non-streaming generation. Stream is always sent as false.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	req.Stream = false
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(resp)
	}

	var out GenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode generate response: %w", err)
	}
	return &out, nil
}

// Health reports whether the server answers GET /api/tags with a 2xx status.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, HealthTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{StatusCode: resp.StatusCode}
	}
	return nil
}

func statusError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
}
