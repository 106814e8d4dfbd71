// Package scraper is the HTTP client of the external job scraping service.
package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/justsurfingit/jobtrackr/internal/retry"
)

// StatusError is a non-2xx answer from the service.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("scraper service error: status=%d body=%s", e.StatusCode, e.Body)
}

type Client struct {
	baseURL    string
	apiKey     string
	getTimeout time.Duration
	httpClient *http.Client
	retry      retry.Policy
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

func WithRetryPolicy(p retry.Policy) Option {
	return func(client *Client) {
		client.retry = p
	}
}

// NewClient builds a client for baseURL. getTimeout bounds each GET attempt; runs are bounded
// only by the caller's context, since a scrape can take minutes.
func NewClient(baseURL, apiKey string, getTimeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		getTimeout: getTimeout,
		httpClient: &http.Client{},
		retry:      retry.DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.retry.Permanent = isClientError
	return c
}

func (c *Client) Health(ctx context.Context) (*Health, error) {
	var h Health
	if err := c.get(ctx, "/api/health", &h); err != nil {
		return nil, fmt.Errorf("health: %w", err)
	}
	return &h, nil
}

// Run starts a scraper and blocks until the service answers with the result. It is not retried.
func (c *Client) Run(ctx context.Context, scraperID string, req RunRequest) (*RunResult, error) {
	var result RunResult
	path := "/api/scrapers/" + url.PathEscape(scraperID)
	if err := c.do(ctx, http.MethodPost, path, req, &result); err != nil {
		return nil, fmt.Errorf("run %s: %w", scraperID, err)
	}
	if result.Scraper == "" {
		result.Scraper = scraperID
	}
	return &result, nil
}

func (c *Client) Logs(ctx context.Context) ([]LogEntry, error) {
	var logs []LogEntry
	if err := c.get(ctx, "/api/scrapers/logs", &logs); err != nil {
		return nil, fmt.Errorf("logs: %w", err)
	}
	return logs, nil
}

func (c *Client) Stats(ctx context.Context) (*Stats, error) {
	var s Stats
	if err := c.get(ctx, "/api/scrapers/stats", &s); err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	return &s, nil
}

func (c *Client) get(ctx context.Context, path string, result any) error {
	return retry.Do(ctx, c.retry, func() error {
		reqCtx := ctx
		if c.getTimeout > 0 {
			var cancel context.CancelFunc
			reqCtx, cancel = context.WithTimeout(ctx, c.getTimeout)
			defer cancel()
		}
		return c.do(reqCtx, http.MethodGet, path, nil, result)
	})
}

func (c *Client) do(ctx context.Context, method, path string, body any, result any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if result == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

// isClientError marks 4xx answers, which repeat on retry.
func isClientError(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode >= 400 && se.StatusCode < 500
}
