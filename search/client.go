package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// Fragment is one retrieved document chunk, ordered by relevance.
type Fragment struct {
	Content string  `json:"content"`
	Source  string  `json:"source"`
	Score   float64 `json:"score"`
}

const (
	MinLimit     = 1
	MaxLimit     = 10
	DefaultLimit = 2
)

// ClampLimit bounds the result-count setting to the service's allowed range.
func ClampLimit(limit int) int {
	if limit < MinLimit {
		return MinLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// Searcher is the hosted document-search service, treated as a black box.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]Fragment, error)
	Ping(ctx context.Context) error
}

// Client talks to the search service's REST endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *log.Logger
}

func NewClient(baseURL, apiKey string, logger *log.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

type searchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

type searchResponse struct {
	Results []Fragment `json:"results"`
}

// Search returns up to limit fragments matching the query, most relevant
// first. Transient failures (429, 5xx) are retried with backoff.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]Fragment, error) {
	body, err := json.Marshal(searchRequest{Query: query, Limit: ClampLimit(limit)})
	if err != nil {
		return nil, fmt.Errorf("encode search request: %w", err)
	}

	var results []Fragment
	err = withRetry(ctx, defaultRetry, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.baseURL+"/search", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create search request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("search request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			err := fmt.Errorf("search service returned %d: %s", resp.StatusCode, msg)
			if retryableStatus(resp.StatusCode) {
				return err
			}
			return permanent(err)
		}

		var decoded searchResponse
		if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
			return permanent(fmt.Errorf("decode search response: %w", err))
		}
		results = decoded.Results
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Debug("search", "query", query, "results", len(results))
	return results, nil
}

// Ping checks reachability for the UI's connection status indicator.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("create ping request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("search service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("search service health check returned %d", resp.StatusCode)
	}
	return nil
}

// retryConfig drives the exponential backoff for transient search failures.
type retryConfig struct {
	maxAttempts  int
	initialDelay time.Duration
	maxDelay     time.Duration
}

var defaultRetry = retryConfig{
	maxAttempts:  3,
	initialDelay: 100 * time.Millisecond,
	maxDelay:     2 * time.Second,
}

type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

func permanent(err error) error { return permanentError{err} }

func withRetry(ctx context.Context, cfg retryConfig, fn func() error) error {
	var lastErr error
	delay := cfg.initialDelay

	for attempt := 1; attempt <= cfg.maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		var perm permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		if attempt == cfg.maxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if delay > cfg.maxDelay {
			delay = cfg.maxDelay
		}
	}
	return lastErr
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}
