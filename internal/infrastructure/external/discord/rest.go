// Package discord implements the chat platform client: a REST client for
// sending messages and reading guild data, and a gateway client that
// receives message and guild events over a websocket.
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/coursehub/course-herald/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// ClientConfig contains configuration for the Discord REST client.
type ClientConfig struct {
	// Token is the bot token.
	Token string

	// BaseURL is the REST API base (default https://discord.com/api/v10).
	BaseURL string

	// Timeout bounds each REST call.
	Timeout time.Duration

	// Logger for structured logging.
	Logger zerolog.Logger
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(token string) ClientConfig {
	return ClientConfig{
		Token:   token,
		BaseURL: "https://discord.com/api/v10",
		Timeout: 15 * time.Second,
	}
}

// apiError mirrors a Discord REST error payload.
type apiError struct {
	Code       int     `json:"code"`
	Message    string  `json:"message"`
	RetryAfter float64 `json:"retry_after,omitempty"`
}

// ══════════════════════════════════════════════════════════════════════════════
// REST CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// RestClient is the Discord REST API client.
type RestClient struct {
	config     ClientConfig
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewRestClient creates a new REST client.
func NewRestClient(config ClientConfig) *RestClient {
	if config.BaseURL == "" {
		config.BaseURL = "https://discord.com/api/v10"
	}
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}

	return &RestClient{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger: config.Logger.With().Str("component", "discord.rest").Logger(),
	}
}

// SendChannelMessage sends a message to a channel by id. A 429 is retried
// once after the advertised delay; other failures surface immediately.
func (c *RestClient) SendChannelMessage(ctx context.Context, channelID string, payload MessagePayload) error {
	path := fmt.Sprintf("/channels/%s/messages", channelID)

	err := c.do(ctx, http.MethodPost, path, payload, nil)
	var rateLimited *rateLimitError
	if ok := asRateLimit(err, &rateLimited); ok {
		timer := time.NewTimer(rateLimited.retryAfter)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		err = c.do(ctx, http.MethodPost, path, payload, nil)
	}
	if err != nil {
		return shared.WrapError("discord", "SendChannelMessage", shared.ErrDispatch, channelID, err)
	}
	return nil
}

// GetGuildRoles returns all roles of a guild.
func (c *RestClient) GetGuildRoles(ctx context.Context, guildID string) ([]Role, error) {
	var roles []Role
	if err := c.do(ctx, http.MethodGet, "/guilds/"+guildID+"/roles", nil, &roles); err != nil {
		return nil, shared.WrapError("discord", "GetGuildRoles", shared.ErrFetch, guildID, err)
	}
	return roles, nil
}

// GetChannel returns a channel by id (used to resolve channel names for
// subscription bookkeeping).
func (c *RestClient) GetChannel(ctx context.Context, channelID string) (*Channel, error) {
	var ch Channel
	if err := c.do(ctx, http.MethodGet, "/channels/"+channelID, nil, &ch); err != nil {
		return nil, shared.WrapError("discord", "GetChannel", shared.ErrFetch, channelID, err)
	}
	return &ch, nil
}

// GetGuild returns a guild by id (used to resolve server names for
// subscription bookkeeping).
func (c *RestClient) GetGuild(ctx context.Context, guildID string) (*Guild, error) {
	var g Guild
	if err := c.do(ctx, http.MethodGet, "/guilds/"+guildID, nil, &g); err != nil {
		return nil, shared.WrapError("discord", "GetGuild", shared.ErrFetch, guildID, err)
	}
	return &g, nil
}

// GetGatewayURL asks the API where the gateway lives.
func (c *RestClient) GetGatewayURL(ctx context.Context) (string, error) {
	var out struct {
		URL string `json:"url"`
	}
	if err := c.do(ctx, http.MethodGet, "/gateway/bot", nil, &out); err != nil {
		return "", shared.WrapError("discord", "GetGatewayURL", shared.ErrFetch, "gateway discovery", err)
	}
	return out.URL, nil
}

// MemberHasAdministrator reports whether a member holds the ADMINISTRATOR
// permission through any of their roles (or the @everyone role).
func (c *RestClient) MemberHasAdministrator(ctx context.Context, guildID string, member *Member) (bool, error) {
	if member == nil {
		return false, nil
	}

	roles, err := c.GetGuildRoles(ctx, guildID)
	if err != nil {
		return false, err
	}

	memberRoles := make(map[string]struct{}, len(member.Roles))
	for _, id := range member.Roles {
		memberRoles[id] = struct{}{}
	}

	for _, role := range roles {
		// The @everyone role shares the guild's id and applies to all.
		_, held := memberRoles[role.ID]
		if !held && role.ID != guildID {
			continue
		}
		if role.PermissionValue()&PermissionAdministrator != 0 {
			return true, nil
		}
	}
	return false, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Request plumbing
// ─────────────────────────────────────────────────────────────────────────────

type rateLimitError struct {
	retryAfter time.Duration
}

func (e *rateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.retryAfter)
}

func asRateLimit(err error, target **rateLimitError) bool {
	if err == nil {
		return false
	}
	rl, ok := err.(*rateLimitError)
	if !ok {
		return false
	}
	*target = rl
	return true
}

func (c *RestClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bot "+c.config.Token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		var apiErr apiError
		retryAfter := time.Second
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.RetryAfter > 0 {
			retryAfter = time.Duration(apiErr.RetryAfter * float64(time.Second))
		} else if header := resp.Header.Get("Retry-After"); header != "" {
			if secs, convErr := strconv.ParseFloat(header, 64); convErr == nil {
				retryAfter = time.Duration(secs * float64(time.Second))
			}
		}
		return &rateLimitError{retryAfter: retryAfter}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Message != "" {
			return fmt.Errorf("discord status %d: %s (code %d)", resp.StatusCode, apiErr.Message, apiErr.Code)
		}
		return fmt.Errorf("discord status %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
