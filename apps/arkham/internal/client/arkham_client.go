package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"arkham/apps/arkham/internal/config"
)

// RawTag is a tag as returned by the API on an address record.
type RawTag struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// RawAddress is one address record as returned by the API. Older responses
// carry entityName/entityType at the top level, newer ones nest them under
// entity; both shapes appear in the wild.
type RawAddress struct {
	Address    string `json:"address"`
	Chain      string `json:"chain"`
	EntityName string `json:"entityName"`
	EntityType string `json:"entityType"`
	Entity     struct {
		Name string `json:"name"`
		Type string `json:"type"`
	} `json:"entity"`
	Tags []RawTag `json:"tags"`
}

// Page is one page of results for a tag.
type Page struct {
	Addresses []RawAddress `json:"addresses"`
	HasMore   bool         `json:"hasMore"`
}

// ArkhamClient fetches tagged address pages from the Arkham Intel API.
// Requests are strictly sequential; a fixed delay follows every successful
// call and transient failures are retried a fixed number of times with a
// fixed delay. HTTP 429 waits the longer rate-limit delay instead.
type ArkhamClient struct {
	config     *config.Config
	httpClient *http.Client
	logger     *zap.Logger
}

func NewArkhamClient(cfg *config.Config, logger *zap.Logger) *ArkhamClient {
	return &ArkhamClient{
		config: cfg,
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		logger: logger,
	}
}

// FetchTagPage fetches one page of addresses for a tag link. It returns a
// fatal error once the retry budget is exhausted.
func (c *ArkhamClient) FetchTagPage(ctx context.Context, tagLink string, page int) (*Page, error) {
	requestURL := fmt.Sprintf("%s/tag/top?tag=%s&page=%d", c.config.BaseURL, url.QueryEscape(tagLink), page)

	var lastErr error
	for attempt := 1; attempt <= c.config.MaxRetries; attempt++ {
		c.logger.Info("Fetching tag page",
			zap.String("tag", tagLink),
			zap.Int("page", page),
			zap.Int("attempt", attempt))

		result, retryDelay, err := c.fetchOnce(ctx, requestURL)
		if err == nil {
			// Pause between requests to stay under the API's rate limits
			if err := sleep(ctx, c.config.RequestDelay); err != nil {
				return nil, err
			}
			return result, nil
		}
		lastErr = err

		if attempt == c.config.MaxRetries {
			break
		}

		c.logger.Warn("Request failed, retrying",
			zap.String("tag", tagLink),
			zap.Int("page", page),
			zap.Int("attempt", attempt),
			zap.Int("max_retries", c.config.MaxRetries),
			zap.Duration("retry_in", retryDelay),
			zap.Error(err))

		if err := sleep(ctx, retryDelay); err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("failed to fetch tag %s page %d after %d attempts: %w",
		tagLink, page, c.config.MaxRetries, lastErr)
}

// fetchOnce issues a single request. On failure it also returns the delay
// to wait before the next attempt: the long rate-limit pause for HTTP 429,
// the fixed retry delay for everything else.
func (c *ArkhamClient) fetchOnce(ctx context.Context, requestURL string) (*Page, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, c.config.RetryDelay, fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("accept", "application/json, text/plain, */*")
	req.Header.Set("accept-language", "en-US,en;q=0.9")
	req.Header.Set("origin", "https://intel.arkm.com")
	req.Header.Set("referer", "https://intel.arkm.com/")
	req.Header.Set("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/136.0.0.0 Safari/537.36")
	if c.config.Payload != "" {
		req.Header.Set("x-payload", c.config.Payload)
	}
	if c.config.Timestamp != "" {
		req.Header.Set("x-timestamp", c.config.Timestamp)
	}

	req.AddCookie(&http.Cookie{Name: "arkham_is_authed", Value: "true"})
	if c.config.Session != "" {
		req.AddCookie(&http.Cookie{Name: "arkham_platform_session", Value: c.config.Session})
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.config.RetryDelay, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		c.logger.Warn("API rate limit hit, backing off",
			zap.Duration("delay", c.config.RateLimitDelay))
		return nil, c.config.RateLimitDelay, fmt.Errorf("rate limited (HTTP 429)")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, c.config.RetryDelay, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.config.RetryDelay, fmt.Errorf("failed to read response: %w", err)
	}

	var page Page
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, c.config.RetryDelay, fmt.Errorf("failed to decode response: %w", err)
	}

	return &page, 0, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
