package papertweets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"
)

const DefaultBaseURL = "https://api.twitter.com"

// ErrRateLimited is returned once a request is still throttled after all retries.
var ErrRateLimited = errors.New("twitter: rate limited")

// ClientConfig configures a Client. Either BearerToken or the consumer
// key/secret pair must be set; the pair is exchanged for an app-only token.
type ClientConfig struct {
	BaseURL        string
	BearerToken    string
	ConsumerKey    string
	ConsumerSecret string
	MinInterval    time.Duration
	MaxRetries     int
	Timeout        time.Duration
	// MaxRetryWait caps how long a 429 response may stall a request.
	MaxRetryWait time.Duration
}

// Client talks to the Twitter v1.1 REST API.
type Client struct {
	http         *http.Client
	baseURL      string
	limiter      *rate.Limiter
	maxRetries   int
	maxRetryWait time.Duration
}

func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.MaxRetryWait <= 0 {
		cfg.MaxRetryWait = 15 * time.Minute
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")

	// oauth2 uses this client both for the token exchange and as the transport
	// underneath the authorised client.
	base := &http.Client{Timeout: cfg.Timeout}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)

	var httpClient *http.Client
	switch {
	case cfg.BearerToken != "":
		httpClient = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: cfg.BearerToken,
			TokenType:   "Bearer",
		}))
	case cfg.ConsumerKey != "" && cfg.ConsumerSecret != "":
		cc := clientcredentials.Config{
			ClientID:     cfg.ConsumerKey,
			ClientSecret: cfg.ConsumerSecret,
			TokenURL:     baseURL + "/oauth2/token",
			AuthStyle:    oauth2.AuthStyleInHeader,
		}
		httpClient = cc.Client(ctx)
	default:
		return nil, errors.New("twitter: bearer token or consumer key/secret required")
	}
	httpClient.Timeout = cfg.Timeout

	limit := rate.Inf
	if cfg.MinInterval > 0 {
		limit = rate.Every(cfg.MinInterval)
	}

	return &Client{
		http:         httpClient,
		baseURL:      baseURL,
		limiter:      rate.NewLimiter(limit, 1),
		maxRetries:   cfg.MaxRetries,
		maxRetryWait: cfg.MaxRetryWait,
	}, nil
}

// UserTimeline returns up to count of the most recent statuses posted by screenName.
func (c *Client) UserTimeline(ctx context.Context, screenName string, count int) ([]Status, error) {
	params := url.Values{
		"screen_name": {screenName},
		"count":       {strconv.Itoa(count)},
		"tweet_mode":  {"extended"},
	}
	var statuses []Status
	if err := c.get(ctx, "/1.1/statuses/user_timeline.json", params, &statuses); err != nil {
		return nil, fmt.Errorf("timeline for @%s: %w", screenName, err)
	}
	log.Printf("📦 Fetched %d timeline tweets for @%s", len(statuses), screenName)
	return statuses, nil
}

// Search returns statuses matching query from the standard search API.
func (c *Client) Search(ctx context.Context, query string, count int) ([]Status, error) {
	params := url.Values{
		"q":           {query},
		"count":       {strconv.Itoa(count)},
		"result_type": {"recent"},
		"tweet_mode":  {"extended"},
	}
	var resp searchResponse
	if err := c.get(ctx, "/1.1/search/tweets.json", params, &resp); err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}
	log.Printf("🔍 Search %q returned %d tweets", query, len(resp.Statuses))
	return resp.Statuses, nil
}

// RateLimitStatus reports the app's current per-endpoint limits.
func (c *Client) RateLimitStatus(ctx context.Context) (*RateLimits, error) {
	var limits RateLimits
	if err := c.get(ctx, "/1.1/application/rate_limit_status.json", nil, &limits); err != nil {
		return nil, fmt.Errorf("rate limit status: %w", err)
	}
	return &limits, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("API request failed: %w", err)
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			if attempt >= c.maxRetries {
				return fmt.Errorf("%w after %d retries: %s", ErrRateLimited, attempt, strings.TrimSpace(string(body)))
			}
			wait := retryDelay(resp.Header, time.Now())
			if wait > c.maxRetryWait {
				return fmt.Errorf("%w: reset in %s", ErrRateLimited, wait.Round(time.Second))
			}
			log.Printf("⏳ Rate limited on %s. Waiting %s before retry %d/%d...", path, wait.Round(time.Second), attempt+1, c.maxRetries)
			if err := sleep(ctx, wait); err != nil {
				return err
			}
			continue
		}

		if resp.StatusCode != http.StatusOK {
			log.Printf("⚠️  API Error Response: %s", string(body))
			return fmt.Errorf("API returned status code %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		}

		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("failed to parse JSON response: %w", err)
		}
		return nil
	}
}

// retryDelay prefers Retry-After and falls back to the epoch in
// x-rate-limit-reset. Without either header it waits 30 seconds.
func retryDelay(h http.Header, now time.Time) time.Duration {
	if v := h.Get("Retry-After"); v != "" {
		if seconds, err := strconv.Atoi(v); err == nil && seconds >= 0 {
			return time.Duration(seconds) * time.Second
		}
	}
	if v := h.Get("x-rate-limit-reset"); v != "" {
		if epoch, err := strconv.ParseInt(v, 10, 64); err == nil {
			if d := time.Unix(epoch, 0).Sub(now); d > 0 {
				return d
			}
			return 0
		}
	}
	return 30 * time.Second
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
