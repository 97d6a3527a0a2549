// Package fda queries the openFDA drug label search API.
package fda

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ppiankov/sidefx/internal/label"
	"github.com/ppiankov/sidefx/internal/model"
	"github.com/ppiankov/sidefx/internal/util"
)

const (
	// DefaultBaseURL is the public openFDA endpoint
	DefaultBaseURL = "https://api.fda.gov"

	// MaxLimit is the largest page openFDA serves for a search
	MaxLimit = 1000

	labelPath = "/drug/label.json"
)

// StatusError is returned for non-2xx responses other than 404
type StatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("openFDA returned %d for %s: %s", e.StatusCode, e.URL, e.Body)
	}
	return fmt.Sprintf("openFDA returned %d for %s", e.StatusCode, e.URL)
}

// Waiter blocks until a request to the host of rawURL may proceed,
// then for an extra crawl delay
type Waiter interface {
	WaitURL(ctx context.Context, rawURL string, crawlDelay time.Duration) error
}

// Config holds FDA client settings
type Config struct {
	BaseURL    string
	APIKey     string
	Limit      int
	UserAgent  string
	Timeout    time.Duration
	MaxBytes   int64
	HTTPProxy  string
	HTTPSProxy string

	// RespectRobots checks robots.txt on the API host before each search
	RespectRobots bool
}

// ConfigFromModel converts the application configuration to fda.Config
func ConfigFromModel(cfg *model.Config) Config {
	return Config{
		BaseURL:       cfg.FDA.BaseURL,
		APIKey:        cfg.FDA.APIKey,
		Limit:         cfg.FDA.Limit,
		UserAgent:     cfg.HTTP.UserAgent,
		Timeout:       cfg.HTTP.Timeout,
		MaxBytes:      cfg.HTTP.MaxBodyBytes,
		HTTPProxy:     cfg.HTTP.HTTPProxy,
		HTTPSProxy:    cfg.HTTP.HTTPSProxy,
		RespectRobots: cfg.HTTP.RespectRobots,
	}
}

// Client searches drug labels by adverse reaction
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	limit      int
	userAgent  string
	maxBytes   int64
	limiter    Waiter
	robots     *util.RobotsChecker
}

// Option configures a Client
type Option func(*Client)

// WithLimiter throttles requests through w per API host. The robots.txt
// crawl delay is added when RespectRobots is set.
func WithLimiter(w Waiter) Option {
	return func(c *Client) {
		c.limiter = w
	}
}

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a new Client with the given configuration
func NewClient(cfg Config, opts ...Option) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	limit := cfg.Limit
	if limit <= 0 || limit > MaxLimit {
		limit = MaxLimit
	}

	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = 50 * 1024 * 1024
	}

	c := &Client{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: util.NewTransport(cfg.HTTPProxy, cfg.HTTPSProxy, ""),
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("stopped after 3 redirects")
				}
				return nil
			},
		},
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		apiKey:    cfg.APIKey,
		limit:     limit,
		userAgent: cfg.UserAgent,
		maxBytes:  maxBytes,
	}

	for _, opt := range opts {
		opt(c)
	}

	if cfg.RespectRobots {
		c.robots = util.NewRobotsCheckerWithClient(cfg.UserAgent, c.httpClient)
	}

	return c
}

// SearchURL builds the search URL for labels whose adverse reactions table
// mentions effectName
func (c *Client) SearchURL(effectName string, limit int) string {
	if limit <= 0 || limit > MaxLimit {
		limit = c.limit
	}

	params := url.Values{}
	params.Set("search", fmt.Sprintf("adverse_reactions_table:%q", effectName))
	params.Set("limit", strconv.Itoa(limit))
	if c.apiKey != "" {
		params.Set("api_key", c.apiKey)
	}

	return c.baseURL + labelPath + "?" + params.Encode()
}

// Search returns the labels whose adverse reactions table mentions
// effectName. A 404 from openFDA means no matches and yields an empty bundle.
func (c *Client) Search(ctx context.Context, effectName string, limit int) (*label.Bundle, error) {
	effectName = strings.TrimSpace(effectName)
	if effectName == "" {
		return nil, fmt.Errorf("effect name is required")
	}

	searchURL := c.SearchURL(effectName, limit)

	var crawlDelay time.Duration
	if c.robots != nil {
		allowed, delay, err := c.robots.CanFetch(ctx, searchURL)
		if err != nil {
			return nil, fmt.Errorf("check robots.txt: %w", err)
		}
		if !allowed {
			return nil, fmt.Errorf("%s: %w", Redact(searchURL), util.ErrDisallowed)
		}
		crawlDelay = delay
	}

	if c.limiter != nil {
		if err := c.limiter.WaitURL(ctx, searchURL, crawlDelay); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	body, err := c.get(ctx, searchURL)
	if err != nil {
		return nil, err
	}
	if body == nil {
		return &label.Bundle{Results: []label.Label{}}, nil
	}

	bundle, err := label.Decode(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", effectName, err)
	}
	return bundle, nil
}

// get fetches rawURL and returns the body; a nil body means 404
func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}

	// Read one byte past the limit to detect truncation
	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			URL:        Redact(rawURL),
			Body:       truncate(strings.TrimSpace(string(body)), 200),
		}
	}

	if int64(len(body)) > c.maxBytes {
		return nil, fmt.Errorf("response exceeds %d bytes", c.maxBytes)
	}

	return body, nil
}

// Redact removes the API key from a URL before it is shown
func Redact(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := parsed.Query()
	if q.Has("api_key") {
		q.Set("api_key", "REDACTED")
		parsed.RawQuery = q.Encode()
	}
	return parsed.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
