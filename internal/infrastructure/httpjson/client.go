// Package httpjson is the JSON-over-HTTP transport shared by the inference and
// generation backends.
package httpjson

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/medinsight/report-analyzer/internal/infrastructure/resilience"
)

const defaultTimeout = 120 * time.Second

type Client struct {
	backend string
	baseURL string
	token   string
	http    *http.Client
}

// New returns a client for backend rooted at baseURL. A non-positive timeout
// uses the default; per-call deadlines still come from the caller context.
func New(backend, baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		backend: backend,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// WithBearer returns a copy that sends token in the Authorization header.
func (c *Client) WithBearer(token string) *Client {
	out := *c
	out.token = strings.TrimSpace(token)
	return &out
}

// Post sends payload to path and decodes a 2xx body into out. Other statuses
// come back as *resilience.HTTPStatusError.
func (c *Client) Post(ctx context.Context, path, operation string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s request: %w", c.backend, operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resilience.NewHTTPStatusError(c.backend, operation, resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}
