// Package canvas implements the Canvas LMS API client.
// This package handles all communication with the course feed API:
// announcement listings and upcoming-assignment listings per assignment
// group. Every failure surfaces as the shared fetch-error taxonomy so the
// poll loop can skip a course for one tick without corrupting state.
package canvas

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/coursehub/course-herald/internal/domain/course"
	"github.com/coursehub/course-herald/internal/domain/shared"
	"github.com/coursehub/course-herald/pkg/circuitbreaker"
	"github.com/coursehub/course-herald/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// contentType asks Canvas to serialize ids as strings, so large ids
// survive JSON decoding intact.
const contentType = "application/json+canvas-string-ids"

// ClientConfig contains configuration for the Canvas API client.
type ClientConfig struct {
	// Domain is the Canvas base URL including trailing slash.
	Domain string

	// Token is the API bearer token.
	Token string

	// Timeout bounds each upstream call.
	Timeout time.Duration

	// RateLimiterConfig for client-side rate limiting.
	RateLimiterConfig RateLimiterConfig

	// RetryConfig for retry behavior.
	RetryConfig retry.Config

	// CircuitBreakerConfig for fault tolerance.
	CircuitBreakerConfig circuitbreaker.Config

	// Logger for structured logging.
	Logger zerolog.Logger
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(domain, token string) ClientConfig {
	return ClientConfig{
		Domain:               domain,
		Token:                token,
		Timeout:              30 * time.Second,
		RateLimiterConfig:    DefaultRateLimiterConfig(),
		RetryConfig:          retry.DefaultConfig(),
		CircuitBreakerConfig: circuitbreaker.DefaultConfig(),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client is the Canvas API client. It implements the change-detection
// engine's Fetcher port.
type Client struct {
	config      ClientConfig
	httpClient  *http.Client
	logger      zerolog.Logger
	rateLimiter *RateLimiter
	breaker     *circuitbreaker.Breaker
	mapper      *Mapper
}

// NewClient creates a new Canvas API client.
func NewClient(config ClientConfig) *Client {
	logger := config.Logger.With().Str("component", "canvas").Logger()

	cb := config.CircuitBreakerConfig
	if cb.OnStateChange == nil {
		cb.OnStateChange = func(from, to circuitbreaker.State) {
			logger.Warn().
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("canvas circuit breaker state change")
		}
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger:      logger,
		rateLimiter: NewRateLimiter(config.RateLimiterConfig),
		breaker:     circuitbreaker.New(cb),
		mapper:      NewMapper(),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// FEED OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// Announcements fetches the announcement listing for a course context.
// The endpoint returns entries most-recent-first; order is preserved.
func (c *Client) Announcements(ctx context.Context, courseID string) ([]course.AnnouncementFeedEntry, error) {
	path := "api/v1/announcements?" + url.Values{
		"context_codes[]": {"course_" + courseID},
	}.Encode()

	var dtos []AnnouncementDTO
	if err := c.doRequest(ctx, "Announcements", path, &dtos); err != nil {
		return nil, err
	}
	return c.mapper.AnnouncementEntries(dtos), nil
}

// UpcomingAssignments fetches the upcoming assignments of one assignment
// group, sorted ascending by due date by the endpoint.
func (c *Client) UpcomingAssignments(ctx context.Context, courseID, groupID string) ([]course.AssignmentFeedEntry, error) {
	path := fmt.Sprintf("api/v1/courses/%s/assignment_groups/%s/assignments?bucket=upcoming&order_by=due_at",
		url.PathEscape(courseID), url.PathEscape(groupID))

	var dtos []AssignmentDTO
	if err := c.doRequest(ctx, "UpcomingAssignments", path, &dtos); err != nil {
		return nil, err
	}
	return c.mapper.AssignmentEntries(dtos), nil
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST PIPELINE
// ══════════════════════════════════════════════════════════════════════════════

// doRequest runs one GET through the rate limiter, circuit breaker and
// retry policy, decoding the JSON response into out.
func (c *Client) doRequest(ctx context.Context, op, path string, out any) error {
	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return shared.WrapError("canvas", op, shared.ErrTimeout, "rate limiter wait", err)
	}

	retryCfg := c.config.RetryConfig
	retryCfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		c.logger.Warn().
			Int("attempt", attempt).
			Dur("delay", delay).
			Err(err).
			Str("op", op).
			Msg("retrying canvas request")
	}

	err := c.breaker.Do(ctx, func(ctx context.Context) error {
		return retry.Do(ctx, retryCfg, func(ctx context.Context) error {
			return c.execute(ctx, path, out)
		})
	})
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return shared.WrapError("canvas", op, shared.ErrTimeout, "request timed out", err)
	case errors.Is(err, circuitbreaker.ErrOpen):
		return shared.WrapError("canvas", op, shared.ErrFetch, "circuit breaker open", err)
	default:
		return shared.WrapError("canvas", op, shared.ErrFetch, "request failed", err)
	}
}

// execute performs a single HTTP attempt.
func (c *Client) execute(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.Domain+path, nil)
	if err != nil {
		return retry.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+c.config.Token)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := fmt.Errorf("canvas status %d: %s", resp.StatusCode, errorMessage(body))
		// Server-side failures and throttling are worth retrying,
		// everything else is not.
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return apiErr
		}
		return retry.Permanent(apiErr)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return retry.Permanent(fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// errorMessage extracts a readable message from a Canvas error payload.
func errorMessage(body []byte) string {
	var dto ErrorDTO
	if err := json.Unmarshal(body, &dto); err == nil && len(dto.Errors) > 0 {
		return dto.Errors[0].Message
	}
	if len(body) > 200 {
		body = body[:200]
	}
	return string(body)
}
