// Package trmnl talks to the TRMNL display API.
package trmnl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	displayPath       = "/api/display"
	accessTokenHeader = "access-token"

	// DefaultUserAgent identifies this client to the server.
	DefaultUserAgent = "byod/dev (+https://github.com/tinytelemetry/byod)"

	defaultTimeout = 30 * time.Second
	maxBodySize    = 16 << 20
)

// Config holds the immutable connection settings.
type Config struct {
	BaseURL   string
	APIKey    string
	UserAgent string
	Timeout   time.Duration
}

// Response is one raw reply of the display endpoint. The body is kept raw
// so callers can log it when it does not decode.
type Response struct {
	StatusCode int
	Body       []byte
}

// Client fetches directives and images.
type Client struct {
	base      *url.URL
	apiKey    string
	userAgent string
	http      *http.Client
}

// NewClient validates cfg and builds a Client.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("trmnl: base url required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("trmnl: api key required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("trmnl: parsing base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("trmnl: unsupported base url scheme %q", base.Scheme)
	}

	ua := cfg.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		base:      base,
		apiKey:    cfg.APIKey,
		userAgent: ua,
		http:      &http.Client{Timeout: timeout},
	}, nil
}

// FetchDirective requests the current display directive. Any HTTP status
// is returned as a Response; only transport and body read failures are
// errors.
func (c *Client) FetchDirective(ctx context.Context) (*Response, error) {
	endpoint := c.base.JoinPath(displayPath).String()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("building display request: %w", err)
	}
	req.Header.Set(accessTokenHeader, c.apiKey)
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("display request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("reading display response: %w", err)
	}
	return &Response{StatusCode: resp.StatusCode, Body: body}, nil
}

// FetchImage downloads the encoded image at rawURL. Relative URLs are
// resolved against the base URL.
func (c *Client) FetchImage(ctx context.Context, rawURL string) ([]byte, error) {
	target, err := c.ResolveURL(rawURL)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("building image request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("image request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("reading image body: %w", err)
	}
	return data, nil
}

// ResolveURL turns a possibly relative image URL into an absolute one.
func (c *Client) ResolveURL(rawURL string) (string, error) {
	ref, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parsing image url %q: %w", rawURL, err)
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}
	return c.base.ResolveReference(ref).String(), nil
}
