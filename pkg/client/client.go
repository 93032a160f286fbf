// Package client is a Go client for the docrag HTTP API.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultTimeout bounds a single request, model generation included.
const DefaultTimeout = 120 * time.Second

// DefaultServerURL is the address docragd listens on by default.
const DefaultServerURL = "http://localhost:8000"

// User facing messages.
const (
	ServerErrorMessage     = "⚠️ Server error."
	ConnectionFailedPrefix = "⚠️ API connection failed: "
)

// maxErrorBody caps how much of an error response is kept.
const maxErrorBody = 512

// StatusError is returned when the server answers with a non-200 status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned status %d: %s", e.Code, e.Body)
}

// HealthResponse matches internal/http HealthResponse.
type HealthResponse struct {
	Status    string `json:"status"`
	OllamaURL string `json:"ollama_url"`
	Model     string `json:"model"`
}

// askResponse matches internal/http AskResponse.
type askResponse struct {
	Answer string `json:"answer"`
}

// Client calls a docrag server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets the per request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// New creates a Client for baseURL. An empty baseURL selects
// DefaultServerURL.
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultServerURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the server address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Ask sends question to POST /ask and returns the answer text.
func (c *Client) Ask(ctx context.Context, question string) (string, error) {
	endpoint := c.baseURL + "/ask?question=" + url.QueryEscape(question)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	var resp askResponse
	if err := c.do(req, &resp); err != nil {
		return "", err
	}
	return resp.Answer, nil
}

// Health calls GET /health.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	var resp HealthResponse
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Message returns the text a client shows for the result of Ask: the
// answer itself, or one of the two fixed error messages.
func Message(answer string, err error) string {
	if err == nil {
		return answer
	}
	var se *StatusError
	if errors.As(err, &se) {
		return ServerErrorMessage
	}
	return ConnectionFailedPrefix + err.Error()
}
