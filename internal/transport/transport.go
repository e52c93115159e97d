// Package transport is the single HTTP boundary every backend call in this
// module funnels through: it owns the base URL, bearer auth, and JSON
// envelope handling so the orchestrator and chat gateway never touch
// net/http directly.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const defaultTimeout = 30 * time.Second

// Client wraps an oauth2-authorized http.Client pinned to a backend base
// URL, matching every request with Authorization: Bearer <token>.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New builds a Client. An empty authToken yields an unauthenticated client
// (useful for local testing against an open backend).
func New(baseURL, authToken string) *Client {
	baseURL = strings.TrimRight(baseURL, "/")

	var httpClient *http.Client
	if authToken == "" {
		httpClient = &http.Client{Timeout: defaultTimeout}
	} else {
		tokenSource := oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: authToken,
			TokenType:   "Bearer",
		})
		httpClient = oauth2.NewClient(context.Background(), tokenSource)
		httpClient.Timeout = defaultTimeout
	}

	return &Client{baseURL: baseURL, httpClient: httpClient}
}

// APIError wraps a non-2xx HTTP response.
type APIError struct {
	StatusCode int
	Path       string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend request to %s failed with status %d: %s", e.Path, e.StatusCode, e.Body)
}

// DoJSON issues method to path with body marshaled as the JSON request
// payload (nil for no body) and decodes the JSON response into out (nil to
// discard the body). A non-2xx response returns *APIError.
func (c *Client) DoJSON(ctx context.Context, method, path string, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Path: path, Body: string(respBody)}
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response body from %s: %w", path, err)
	}
	return nil
}

// Stream issues a POST to path and returns the raw response body for the
// caller to read as an event stream. The caller owns closing the body.
func (c *Client) Stream(ctx context.Context, path string, body interface{}) (io.ReadCloser, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request POST %s: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(resp.Body)
		return nil, &APIError{StatusCode: resp.StatusCode, Path: path, Body: string(respBody)}
	}

	return resp.Body, nil
}
