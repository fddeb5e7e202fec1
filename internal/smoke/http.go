package smoke

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// HeaderAdminKey carries the admin credential.
const HeaderAdminKey = "X-Admin-Key"

// maxBodyBytes bounds how much of a response is read.
const maxBodyBytes = 8 << 20

// HTTPClient wraps http.Client with the base URL and admin key of a run.
type HTTPClient struct {
	client   *http.Client
	baseURL  string
	adminKey string
}

// newHTTPClient creates a client for cfg. A nil hc gets a fresh client with
// the configured timeout.
func newHTTPClient(cfg Config, hc *http.Client) *HTTPClient {
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	return &HTTPClient{client: hc, baseURL: cfg.BaseURL, adminKey: cfg.AdminKey}
}

// response is what a probe needs from an HTTP exchange.
type response struct {
	status   int
	body     []byte
	duration time.Duration
}

// do sends one request and reads the whole body.
func (c *HTTPClient) do(ctx context.Context, method, path string, query, headers map[string]string) (response, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		q := url.Values{}
		for k, v := range query {
			q.Set(k, v)
		}
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, http.NoBody)
	if err != nil {
		return response{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return response{}, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return response{}, fmt.Errorf("failed to read response body: %w", err)
	}
	return response{status: resp.StatusCode, body: body, duration: time.Since(start)}, nil
}

// probeHeaders merges the probe's headers with the admin credential.
func (c *HTTPClient) probeHeaders(p Probe) map[string]string {
	if !p.Admin {
		return p.Headers
	}
	h := make(map[string]string, len(p.Headers)+1)
	for k, v := range p.Headers {
		h[k] = v
	}
	key := c.adminKey
	if p.AdminKeyOverride != nil {
		key = *p.AdminKeyOverride
	}
	if key != "" {
		h[HeaderAdminKey] = key
	}
	return h
}
