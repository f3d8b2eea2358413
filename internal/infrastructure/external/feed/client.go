// Package feed fetches and parses the university's public schedule feed.
package feed

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/schedule-hub/schedule-hub/internal/domain/schedule"
	"github.com/schedule-hub/schedule-hub/pkg/circuitbreaker"
	"github.com/schedule-hub/schedule-hub/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// DefaultBaseURL is the public schedule data endpoint.
const DefaultBaseURL = "https://public.mai.ru/schedule/data"

// maxBodySize caps a single feed response.
const maxBodySize = 16 << 20

// ClientConfig contains configuration for the feed client.
type ClientConfig struct {
	// BaseURL is the feed base URL without a trailing slash
	BaseURL string

	// Timeout is the HTTP request timeout
	Timeout time.Duration

	UserAgent string

	RateLimiterConfig RateLimiterConfig

	CircuitBreakerConfig circuitbreaker.Config

	// MaxAttempts, RetryBaseDelay and RetryMaxDelay configure retries of transient failures
	MaxAttempts    int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration

	// Logger for structured logging
	Logger *slog.Logger
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(baseURL string) ClientConfig {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return ClientConfig{
		BaseURL:              strings.TrimRight(baseURL, "/"),
		Timeout:              30 * time.Second,
		UserAgent:            "schedule-hub/1.0",
		RateLimiterConfig:    DefaultRateLimiterConfig(),
		CircuitBreakerConfig: circuitbreaker.DefaultConfig("schedule-feed"),
		MaxAttempts:          3,
		RetryBaseDelay:       500 * time.Millisecond,
		RetryMaxDelay:        10 * time.Second,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

var (
	errFeedNotFound = errors.New("feed not found")
	errEmptyBody    = errors.New("empty feed body")
)

// Client implements schedule.FeedFetcher over HTTP.
type Client struct {
	config         ClientConfig
	httpClient     *http.Client
	logger         *slog.Logger
	rateLimiter    *RateLimiter
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryPolicy    retry.Policy
}

var _ schedule.FeedFetcher = (*Client)(nil)

// NewClient creates a new feed client.
func NewClient(config ClientConfig) *Client {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	logger := config.Logger.With("component", "feed_client")

	cbConfig := config.CircuitBreakerConfig
	cbConfig.IsFailure = func(err error) bool {
		return !errors.Is(err, errFeedNotFound) && !errors.Is(err, context.Canceled)
	}
	cbConfig.OnStateChange = func(name string, from, to circuitbreaker.State) {
		logger.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger:         logger,
		rateLimiter:    NewRateLimiter(config.RateLimiterConfig),
		circuitBreaker: circuitbreaker.New(cbConfig),
		retryPolicy: retry.Policy{
			MaxAttempts: config.MaxAttempts,
			BaseDelay:   config.RetryBaseDelay,
			MaxDelay:    config.RetryMaxDelay,
			Jitter:      0.2,
			OnRetry: func(attempt int, err error, delay time.Duration) {
				logger.Debug("retrying feed request", "attempt", attempt, "delay", delay, "error", err)
			},
		},
	}
}

// GroupFeedPath returns the feed path for a group: md5 of the group name.
func GroupFeedPath(group string) string {
	sum := md5.Sum([]byte(group))
	return "/" + hex.EncodeToString(sum[:]) + ".json"
}

// TeacherFeedPath returns the feed path for a teacher's external id.
func TeacherFeedPath(externalID string) string {
	return "/" + url.PathEscape(externalID) + ".json"
}

// FetchGroup returns the raw feed of a group.
func (c *Client) FetchGroup(ctx context.Context, group string) ([]byte, error) {
	return c.fetch(ctx, "FetchGroup", group, GroupFeedPath(group))
}

// FetchTeacher returns the raw feed of a teacher.
func (c *Client) FetchTeacher(ctx context.Context, externalID string) ([]byte, error) {
	return c.fetch(ctx, "FetchTeacher", externalID, TeacherFeedPath(externalID))
}

func (c *Client) fetch(ctx context.Context, op, key, path string) ([]byte, error) {
	var body []byte
	err := c.circuitBreaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		body, err = retry.Do(ctx, c.retryPolicy, func(ctx context.Context) ([]byte, error) {
			if err := c.rateLimiter.Allow(ctx); err != nil {
				return nil, err
			}
			return c.doSingleRequest(ctx, path)
		})
		return err
	})
	if err != nil {
		c.logger.Warn("feed request failed", "op", op, "key", key, "error", err)
		return nil, schedule.FeedUnavailable(op, key, err)
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, schedule.FeedUnavailable(op, key, errEmptyBody)
	}

	c.logger.Debug("feed fetched", "op", op, "key", key, "bytes", len(body))
	return body, nil
}

// doSingleRequest performs one GET. Transient failures come back marked with retry.Transient.
func (c *Client) doSingleRequest(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, retry.Transient(fmt.Errorf("execute request: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, retry.Transient(fmt.Errorf("read response: %w", err))
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, errFeedNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		c.rateLimiter.RecordRateLimitHit()
		return nil, retry.TransientAfter(fmt.Errorf("feed returned status %d", resp.StatusCode),
			retryAfter(resp.Header.Get("Retry-After")))
	case resp.StatusCode >= 500:
		return nil, retry.TransientAfter(fmt.Errorf("feed returned status %d", resp.StatusCode),
			retryAfter(resp.Header.Get("Retry-After")))
	default:
		return nil, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}
}

// retryAfter parses a Retry-After header given in seconds. HTTP dates and
// garbage mean no server minimum.
func retryAfter(header string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(header))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// CircuitSnapshot returns the state of the feed's circuit breaker.
func (c *Client) CircuitSnapshot() circuitbreaker.Snapshot {
	return c.circuitBreaker.Snapshot()
}

// CheckHealth reports the feed as down while its circuit is open.
// It never calls the feed itself.
func (c *Client) CheckHealth(context.Context) error {
	s := c.circuitBreaker.Snapshot()
	if s.State == circuitbreaker.StateOpen {
		return fmt.Errorf("%w: %s, retry in %s after %d failures",
			circuitbreaker.ErrCircuitOpen, s.Name, s.RetryIn.Round(time.Second), s.TotalFailures)
	}
	return nil
}
