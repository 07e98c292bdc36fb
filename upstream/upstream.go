// Package upstream is the HTTP client for the wiki REST service the tools
// call into. It owns request shaping, auth headers, and the error type that
// carries upstream HTTP status and a truncated body snippet back to tools.
//
// No timeout is enforced here beyond what the injected http.Client carries;
// the transport layer deliberately leaves upstream deadlines to the caller's
// client configuration.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// snippetLimit bounds how much of an upstream error body is carried into the
// error message.
const snippetLimit = 512

// Error describes a non-success upstream response.
type Error struct {
	Status  int
	Snippet string
	URL     string
}

func (e *Error) Error() string {
	return fmt.Sprintf("upstream returned %d for %s: %s", e.Status, e.URL, e.Snippet)
}

// Client talks to the wiki REST API.
type Client struct {
	base  *url.URL
	http  *http.Client
	token string
	log   *slog.Logger
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient injects the underlying http.Client. Any upstream timeout
// must be configured here.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithToken sets the bearer token attached to upstream requests.
func WithToken(token string) Option {
	return func(c *Client) { c.token = strings.TrimSpace(token) }
}

// WithLogger sets the slog logger. If not provided, slog.Default is used.
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// New builds a Client rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream URL %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("upstream URL must use HTTP or HTTPS scheme, got %q", u.Scheme)
	}
	c := &Client{base: u, http: http.DefaultClient, log: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// GetJSON performs a GET against path with the given query and decodes the
// JSON response into out.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

// PostJSON performs a POST against path with a JSON-encoded body and decodes
// the JSON response into out.
func (c *Client) PostJSON(ctx context.Context, path string, body any, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request body: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, nil, raw, out)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body []byte, out any) error {
	u := *c.base
	u.Path = joinPath(c.base.Path, path)
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rdr)
	if err != nil {
		return fmt.Errorf("build upstream request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("upstream %s %s: %w", method, u.Path, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(res.Body, snippetLimit))
		c.log.WarnContext(ctx, "upstream.fetch.fail",
			slog.String("url", u.String()),
			slog.Int("status", res.StatusCode),
		)
		return &Error{Status: res.StatusCode, Snippet: string(snippet), URL: u.String()}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, res.Body)
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode upstream response from %s: %w", u.String(), err)
	}
	return nil
}

func joinPath(base, p string) string {
	base = strings.TrimSuffix(base, "/")
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return base + p
}
