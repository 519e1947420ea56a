package discord

import (
	"regexp"
	"strconv"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// API TYPES
// ══════════════════════════════════════════════════════════════════════════════

// User is a Discord user.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Bot      bool   `json:"bot,omitempty"`
}

// Member is a partial guild member as carried on gateway messages.
type Member struct {
	Roles []string `json:"roles"`
	Nick  string   `json:"nick,omitempty"`
}

// Role is a guild role.
type Role struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Permissions string `json:"permissions"` // stringified bitfield
}

// PermissionValue parses the role's permission bitfield.
func (r Role) PermissionValue() uint64 {
	v, err := strconv.ParseUint(r.Permissions, 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// PermissionAdministrator is the ADMINISTRATOR permission bit.
const PermissionAdministrator uint64 = 1 << 3

// Message is a Discord message as received over the gateway.
type Message struct {
	ID        string  `json:"id"`
	ChannelID string  `json:"channel_id"`
	GuildID   string  `json:"guild_id,omitempty"`
	Author    User    `json:"author"`
	Member    *Member `json:"member,omitempty"`
	Content   string  `json:"content"`
	Mentions  []User  `json:"mentions"`
}

// MentionsUser reports whether the message mentions the given user id.
func (m Message) MentionsUser(userID string) bool {
	for _, u := range m.Mentions {
		if u.ID == userID {
			return true
		}
	}
	return false
}

var channelMentionPattern = regexp.MustCompile(`<#(\d+)>`)

// ChannelMentions returns the channel ids referenced in the content,
// in order of appearance.
func (m Message) ChannelMentions() []string {
	matches := channelMentionPattern.FindAllStringSubmatch(m.Content, -1)
	out := make([]string, 0, len(matches))
	for _, match := range matches {
		out = append(out, match[1])
	}
	return out
}

// Channel is a Discord channel.
type Channel struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	GuildID string `json:"guild_id,omitempty"`
}

// Guild is a Discord guild ("chat server").
type Guild struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// UnavailableGuild is the GUILD_DELETE payload. Unavailable is true for
// outages; absent/false means the bot was actually removed.
type UnavailableGuild struct {
	ID          string `json:"id"`
	Unavailable bool   `json:"unavailable"`
}

// ReadyEvent is the gateway READY payload subset the bot needs.
type ReadyEvent struct {
	User             User   `json:"user"`
	SessionID        string `json:"session_id"`
	ResumeGatewayURL string `json:"resume_gateway_url"`
}

// ══════════════════════════════════════════════════════════════════════════════
// OUTBOUND TYPES
// ══════════════════════════════════════════════════════════════════════════════

// Embed is a rich message embed.
type Embed struct {
	Title     string       `json:"title,omitempty"`
	URL       string       `json:"url,omitempty"`
	Color     int          `json:"color,omitempty"`
	Author    *EmbedAuthor `json:"author,omitempty"`
	Fields    []EmbedField `json:"fields,omitempty"`
	Timestamp string       `json:"timestamp,omitempty"` // ISO8601
}

// EmbedAuthor is the embed author line.
type EmbedAuthor struct {
	Name string `json:"name"`
}

// EmbedField is one field of an embed.
type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// MessagePayload is the body of a channel message create call.
type MessagePayload struct {
	Content string  `json:"content,omitempty"`
	Embeds  []Embed `json:"embeds,omitempty"`
}

// EmbedTimestamp formats a time for the embed timestamp field.
func EmbedTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
