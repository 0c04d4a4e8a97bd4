// Package jina fetches search results and page/PDF text from the Jina
// search (s.jina.ai) and reader (r.jina.ai) endpoints.
package jina

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/hpungsan/codyarch/internal/errors"
)

const (
	DefaultSearchURL = "https://s.jina.ai"
	DefaultReaderURL = "https://r.jina.ai"

	defaultTimeout   = 60 * time.Second
	defaultRateLimit = 1.0 // requests per second
	defaultBurst     = 2

	// maxBodyBytes caps how much of a response body is read.
	maxBodyBytes = 32 << 20
)

// Config configures a Client. Zero values select the defaults.
type Config struct {
	SearchURL string
	ReaderURL string
	APIKey    string `json:"-"`
	Timeout   time.Duration

	// RateLimit is requests per second; 0 selects the default, negative disables throttling.
	RateLimit float64

	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client issues search and reader requests.
type Client struct {
	searchURL  string
	readerURL  string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// New creates a Client.
func New(cfg Config) *Client {
	searchURL := strings.TrimRight(cfg.SearchURL, "/")
	if searchURL == "" {
		searchURL = DefaultSearchURL
	}
	readerURL := strings.TrimRight(cfg.ReaderURL, "/")
	if readerURL == "" {
		readerURL = DefaultReaderURL
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	limit := rate.Limit(defaultRateLimit)
	switch {
	case cfg.RateLimit > 0:
		limit = rate.Limit(cfg.RateLimit)
	case cfg.RateLimit < 0:
		limit = rate.Inf
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		searchURL:  searchURL,
		readerURL:  readerURL,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		httpClient: httpClient,
		limiter:    rate.NewLimiter(limit, defaultBurst),
		logger:     logger.Named("jina"),
	}
}

// SearchURL builds the search request URL for query, optionally restricted to site.
func (c *Client) SearchURL(query, site string) string {
	u := c.searchURL + "/" + url.PathEscape(query)
	if site = strings.TrimSpace(site); site != "" {
		u += "?" + url.Values{"site": {site}}.Encode()
	}
	return u
}

// ReaderURL builds the reader request URL for target. The target URL is
// appended verbatim; the reader endpoint parses it from the path.
func (c *Client) ReaderURL(target string) string {
	return c.readerURL + "/" + target
}

// Search returns the search results for query as text.
func (c *Client) Search(ctx context.Context, query, site string) (string, error) {
	return c.get(ctx, c.SearchURL(query, site))
}

// Read returns the extracted text of the document at target.
func (c *Client) Read(ctx context.Context, target string) (string, error) {
	return c.get(ctx, c.ReaderURL(target))
}

func (c *Client) get(ctx context.Context, target string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return "", errors.NewCancelled("fetch")
		}
		return "", errors.NewFetchFailed(target, 0, fmt.Errorf("rate limiter: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", errors.NewInvalidRequest(fmt.Sprintf("invalid request URL: %v", err))
	}
	req.Header.Set("X-With-Generated-Alt", "true")
	req.Header.Set("X-With-Links-Summary", "true")
	req.Header.Set("X-No-Cache", "true")

	c.logger.Debug("request",
		zap.String("url", target),
		zap.Any("headers", req.Header.Clone()),
	)

	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if stderrors.Is(err, context.Canceled) {
			return "", errors.NewCancelled("fetch")
		}
		return "", errors.NewFetchFailed(target, 0, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", errors.NewFetchFailed(target, resp.StatusCode, fmt.Errorf("read body: %w", err))
	}

	c.logger.Debug("response",
		zap.String("url", target),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(body)),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", errors.NewFetchFailed(target, resp.StatusCode, nil)
	}

	return string(body), nil
}
