package discord

import (
	"context"

	"github.com/coursehub/course-herald/internal/application/fanout"
)

// Sender adapts the REST client to the fan-out router's ChatSender port,
// rendering platform-neutral messages as embeds.
type Sender struct {
	rest *RestClient
}

// NewSender creates a ChatSender backed by the REST client.
func NewSender(rest *RestClient) *Sender {
	return &Sender{rest: rest}
}

// SendText posts a plain text message.
func (s *Sender) SendText(ctx context.Context, channelID, text string) error {
	return s.rest.SendChannelMessage(ctx, channelID, MessagePayload{Content: text})
}

// SendEmbed renders the message as a single embed and posts it.
func (s *Sender) SendEmbed(ctx context.Context, channelID string, msg fanout.ChatMessage) error {
	embed := Embed{
		Title: msg.Title,
		URL:   msg.URL,
		Color: msg.Color,
	}
	if msg.Author != "" {
		embed.Author = &EmbedAuthor{Name: msg.Author}
	}
	if !msg.Timestamp.IsZero() {
		embed.Timestamp = EmbedTimestamp(msg.Timestamp)
	}
	for _, f := range msg.Fields {
		embed.Fields = append(embed.Fields, EmbedField{Name: f.Name, Value: f.Value})
	}

	return s.rest.SendChannelMessage(ctx, channelID, MessagePayload{
		Embeds: []Embed{embed},
	})
}
