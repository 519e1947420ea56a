package fanout

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursehub/course-herald/internal/domain/subscription"
)

type fakeSender struct {
	sent    []string // channel ids in send order
	failFor map[string]bool
}

func (s *fakeSender) SendEmbed(_ context.Context, channelID string, _ ChatMessage) error {
	if s.failFor[channelID] {
		return errors.New("channel gone")
	}
	s.sent = append(s.sent, channelID)
	return nil
}

type fakePoster struct {
	statuses []string
	replies  []string
	err      error
}

func (p *fakePoster) PostStatus(_ context.Context, text, inReplyTo string) error {
	if p.err != nil {
		return p.err
	}
	if inReplyTo != "" {
		p.replies = append(p.replies, text)
		return nil
	}
	p.statuses = append(p.statuses, text)
	return nil
}

type fakeSubs struct {
	dests []subscription.Destination
}

func (s *fakeSubs) FindSubscribers(string) []subscription.Destination { return s.dests }

func dest(channel string) subscription.Destination {
	return subscription.Destination{ServerID: "s1", ChannelID: channel}
}

func TestPush_DeliversToAllSubscribers(t *testing.T) {
	sender := &fakeSender{}
	poster := &fakePoster{}
	subs := &fakeSubs{dests: []subscription.Destination{dest("c1"), dest("c2")}}
	router := NewRouter(sender, poster, subs, zerolog.Nop())

	result := router.Push(context.Background(), "101", ChatMessage{Title: "x"}, "status text")

	assert.Equal(t, 2, result.Attempted)
	assert.Equal(t, 2, result.Delivered)
	assert.True(t, result.StatusPosted)
	assert.NoError(t, result.Err)
	assert.Equal(t, []string{"c1", "c2"}, sender.sent)
	assert.Equal(t, []string{"status text"}, poster.statuses)
	assert.True(t, result.ShouldCommit())
}

func TestPush_IsolatesPerDestinationFailures(t *testing.T) {
	sender := &fakeSender{failFor: map[string]bool{"c2": true}}
	subs := &fakeSubs{dests: []subscription.Destination{dest("c1"), dest("c2"), dest("c3")}}
	router := NewRouter(sender, nil, subs, zerolog.Nop())

	result := router.Push(context.Background(), "101", ChatMessage{}, "")

	assert.Equal(t, 3, result.Attempted)
	assert.Equal(t, 2, result.Delivered)
	assert.Error(t, result.Err)
	assert.Equal(t, []string{"c1", "c3"}, sender.sent)
	// Partial delivery still counts as dispatched.
	assert.True(t, result.ShouldCommit())
}

func TestPush_TotalFailureDoesNotCommit(t *testing.T) {
	sender := &fakeSender{failFor: map[string]bool{"c1": true}}
	poster := &fakePoster{err: errors.New("api down")}
	subs := &fakeSubs{dests: []subscription.Destination{dest("c1")}}
	router := NewRouter(sender, poster, subs, zerolog.Nop())

	result := router.Push(context.Background(), "101", ChatMessage{}, "text")

	assert.False(t, result.AnyDelivered())
	assert.False(t, result.ShouldCommit())
	assert.Error(t, result.Err)
}

func TestPush_NoSubscribersCommits(t *testing.T) {
	router := NewRouter(&fakeSender{}, nil, &fakeSubs{}, zerolog.Nop())

	result := router.Push(context.Background(), "101", ChatMessage{}, "")

	assert.Equal(t, 0, result.Attempted)
	assert.NoError(t, result.Err)
	// Nothing to deliver means the item is done, not stuck retrying.
	assert.True(t, result.ShouldCommit())
}

func TestPush_StatusLegSkippedWhenDisabled(t *testing.T) {
	sender := &fakeSender{}
	subs := &fakeSubs{dests: []subscription.Destination{dest("c1")}}
	router := NewRouter(sender, nil, subs, zerolog.Nop())

	result := router.Push(context.Background(), "101", ChatMessage{}, "would-be status")

	assert.False(t, result.StatusPosted)
	assert.NoError(t, result.Err)
	assert.True(t, result.ShouldCommit())
}

func TestReplyStatus(t *testing.T) {
	poster := &fakePoster{}
	router := NewRouter(&fakeSender{}, poster, &fakeSubs{}, zerolog.Nop())

	require.NoError(t, router.ReplyStatus(context.Background(), "@user hi", "900"))
	assert.Equal(t, []string{"@user hi"}, poster.replies)

	// Disabled microblog leg: replies are a silent no-op.
	disabled := NewRouter(&fakeSender{}, nil, &fakeSubs{}, zerolog.Nop())
	assert.NoError(t, disabled.ReplyStatus(context.Background(), "@user hi", "900"))
}
