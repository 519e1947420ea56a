// Package twitter implements the microblog client: posting statuses and
// replies over the v1.1 API (OAuth 1.0a) and searching recent mentions
// over the v2 API (bearer token).
package twitter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/coursehub/course-herald/internal/application/mentions"
	"github.com/coursehub/course-herald/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// ClientConfig contains configuration for the Twitter client.
type ClientConfig struct {
	// OAuth 1.0a credentials for posting.
	ConsumerKey       string
	ConsumerSecret    string
	AccessTokenKey    string
	AccessTokenSecret string

	// BearerToken authorizes the v2 search endpoint.
	BearerToken string

	// Handle is the bot's account handle, without the @.
	Handle string

	// BaseURL is the API base (default https://api.twitter.com).
	BaseURL string

	// Timeout bounds each request.
	Timeout time.Duration

	// Logger for structured logging.
	Logger zerolog.Logger
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		BaseURL: "https://api.twitter.com",
		Timeout: 15 * time.Second,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// DTOs
// ══════════════════════════════════════════════════════════════════════════════

// searchResponseDTO mirrors the v2 recent search payload.
type searchResponseDTO struct {
	Data []struct {
		ID              string    `json:"id"`
		Text            string    `json:"text"`
		CreatedAt       time.Time `json:"created_at"`
		AuthorID        string    `json:"author_id"`
		InReplyToUserID string    `json:"in_reply_to_user_id"`
	} `json:"data"`
	Includes struct {
		Users []struct {
			ID       string `json:"id"`
			Username string `json:"username"`
		} `json:"users"`
	} `json:"includes"`
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client is the Twitter API client. It implements the mention scanner's
// Searcher port and the fan-out router's StatusPoster port.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	signer     *oauth1Signer
	logger     zerolog.Logger
}

// NewClient creates a new Twitter client.
func NewClient(config ClientConfig) *Client {
	if config.BaseURL == "" {
		config.BaseURL = "https://api.twitter.com"
	}
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		signer: newOAuth1Signer(
			config.ConsumerKey,
			config.ConsumerSecret,
			config.AccessTokenKey,
			config.AccessTokenSecret,
		),
		logger: config.Logger.With().Str("component", "twitter").Logger(),
	}
}

// PostStatus posts a status, optionally as a reply to another status.
func (c *Client) PostStatus(ctx context.Context, text, inReplyTo string) error {
	endpoint := c.config.BaseURL + "/1.1/statuses/update.json"

	form := url.Values{}
	form.Set("status", text)
	if inReplyTo != "" {
		form.Set("in_reply_to_status_id", inReplyTo)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return shared.WrapError("twitter", "PostStatus", shared.ErrDispatch, "create request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", c.signer.authorizationHeader(http.MethodPost, endpoint, form))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return shared.WrapError("twitter", "PostStatus", shared.ErrDispatch, "execute request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return shared.WrapError("twitter", "PostStatus", shared.ErrDispatch,
			fmt.Sprintf("status %d", resp.StatusCode), fmt.Errorf("%s", body))
	}

	c.logger.Debug().Bool("reply", inReplyTo != "").Msg("status posted")
	return nil
}

// RecentMentions searches recent tweets mentioning the bot's handle,
// most-recent-first (upstream default ordering).
func (c *Client) RecentMentions(ctx context.Context) ([]mentions.Mention, error) {
	query := url.Values{
		"query":        {"@" + c.config.Handle},
		"tweet.fields": {"created_at,in_reply_to_user_id"},
		"expansions":   {"author_id"},
	}
	endpoint := c.config.BaseURL + "/2/tweets/search/recent?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, shared.WrapError("twitter", "RecentMentions", shared.ErrFetch, "create request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.BearerToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, shared.WrapError("twitter", "RecentMentions", shared.ErrFetch, "execute request", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, shared.WrapError("twitter", "RecentMentions", shared.ErrFetch, "read response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, shared.WrapError("twitter", "RecentMentions", shared.ErrFetch,
			fmt.Sprintf("status %d", resp.StatusCode), fmt.Errorf("%s", truncateBody(body)))
	}

	var dto searchResponseDTO
	if err := json.Unmarshal(body, &dto); err != nil {
		return nil, shared.WrapError("twitter", "RecentMentions", shared.ErrFetch, "decode response", err)
	}

	usernames := make(map[string]string, len(dto.Includes.Users))
	for _, u := range dto.Includes.Users {
		usernames[u.ID] = u.Username
	}

	out := make([]mentions.Mention, 0, len(dto.Data))
	for _, t := range dto.Data {
		out = append(out, mentions.Mention{
			ID:              t.ID,
			Text:            t.Text,
			AuthorID:        t.AuthorID,
			AuthorUsername:  usernames[t.AuthorID],
			InReplyToUserID: t.InReplyToUserID,
			CreatedAt:       t.CreatedAt,
		})
	}
	return out, nil
}

func truncateBody(body []byte) string {
	if len(body) > 512 {
		body = body[:512]
	}
	return string(body)
}
