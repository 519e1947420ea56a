package discord

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursehub/course-herald/internal/application/fanout"
	"github.com/coursehub/course-herald/internal/application/present"
	"github.com/coursehub/course-herald/internal/domain/course"
	"github.com/coursehub/course-herald/internal/domain/subscription"
	platform "github.com/coursehub/course-herald/internal/infrastructure/external/discord"
)

type fakeResponder struct {
	texts  map[string][]string // channel id -> texts
	embeds map[string][]fanout.ChatMessage
}

func newFakeResponder() *fakeResponder {
	return &fakeResponder{
		texts:  make(map[string][]string),
		embeds: make(map[string][]fanout.ChatMessage),
	}
}

func (r *fakeResponder) SendText(_ context.Context, channelID, text string) error {
	r.texts[channelID] = append(r.texts[channelID], text)
	return nil
}

func (r *fakeResponder) SendEmbed(_ context.Context, channelID string, msg fanout.ChatMessage) error {
	r.embeds[channelID] = append(r.embeds[channelID], msg)
	return nil
}

func (r *fakeResponder) lastText(channelID string) string {
	texts := r.texts[channelID]
	if len(texts) == 0 {
		return ""
	}
	return texts[len(texts)-1]
}

type fakeDirectory struct {
	admin bool
}

func (d *fakeDirectory) GetChannel(_ context.Context, channelID string) (*platform.Channel, error) {
	return &platform.Channel{ID: channelID, Name: "general"}, nil
}

func (d *fakeDirectory) GetGuild(_ context.Context, guildID string) (*platform.Guild, error) {
	return &platform.Guild{ID: guildID, Name: "Test Guild"}, nil
}

func (d *fakeDirectory) MemberHasAdministrator(_ context.Context, _ string, _ *platform.Member) (bool, error) {
	return d.admin, nil
}

type fakeStates struct {
	state course.State
}

func (s *fakeStates) Snapshot(string) (course.State, error) {
	return s.state, nil
}

type memoryRepo struct {
	subs []subscription.Subscription
}

func (r *memoryRepo) Load(_ context.Context) ([]subscription.Subscription, error) {
	return r.subs, nil
}

func (r *memoryRepo) Save(_ context.Context, subs []subscription.Subscription) error {
	r.subs = subs
	return nil
}

const dispatcherBotID = "bot-user"

func newTestDispatcher(t *testing.T, admin bool, state course.State) (*Dispatcher, *fakeResponder, *subscription.Store) {
	t.Helper()

	courses := []course.Course{
		{ID: "101", Name: "CS101", Nick: "intro", HomeworkGroupID: "hw", TestGroupID: "tg"},
		{ID: "202", Name: "Algorithms", Nick: "algo", HomeworkGroupID: "hw2", TestGroupID: "tg2"},
	}
	registry, err := course.NewRegistry(courses)
	require.NoError(t, err)

	store := subscription.NewStore(&memoryRepo{})
	require.NoError(t, store.Load(context.Background()))

	responder := newFakeResponder()
	d := NewDispatcher(
		registry,
		course.NewKeywordMatcher(courses),
		course.NewKeywordClassifier(),
		store,
		&fakeStates{state: state},
		present.New("Herald", "https://canvas.test/"),
		&fakeDirectory{admin: admin},
		responder,
		zerolog.Nop(),
	)
	d.HandleReady(platform.ReadyEvent{User: platform.User{ID: dispatcherBotID}})
	return d, responder, store
}

func msgMentioningBot(content string) platform.Message {
	return platform.Message{
		ID:        "m1",
		ChannelID: "chan-1",
		GuildID:   "guild-1",
		Author:    platform.User{ID: "user-1", Username: "amy"},
		Member:    &platform.Member{},
		Content:   content,
		Mentions:  []platform.User{{ID: dispatcherBotID}},
	}
}

func TestHandleMessage_IgnoresWithoutBotMention(t *testing.T) {
	d, responder, _ := newTestDispatcher(t, false, course.State{})

	msg := msgMentioningBot("cs101 homework")
	msg.Mentions = nil
	d.HandleMessage(context.Background(), msg)

	assert.Empty(t, responder.texts)
	assert.Empty(t, responder.embeds)
}

func TestHandleMessage_IgnoresBots(t *testing.T) {
	d, responder, _ := newTestDispatcher(t, false, course.State{})

	msg := msgMentioningBot("cs101 homework")
	msg.Author.Bot = true
	d.HandleMessage(context.Background(), msg)

	assert.Empty(t, responder.embeds)
}

func TestHandleMessage_Help(t *testing.T) {
	d, responder, _ := newTestDispatcher(t, false, course.State{})

	d.HandleMessage(context.Background(), msgMentioningBot("help me out"))

	assert.Contains(t, responder.lastText("chan-1"), "announcement")
}

func TestHandleMessage_UnknownCourseListsOptions(t *testing.T) {
	d, responder, _ := newTestDispatcher(t, false, course.State{})

	d.HandleMessage(context.Background(), msgMentioningBot("chemistry homework?"))

	assert.Contains(t, responder.lastText("chan-1"), "CS101, Algorithms")
}

func TestHandleMessage_QueryRepliesWithEmbed(t *testing.T) {
	state := course.State{Homework: []course.Assignment{{Title: "Lab 1", DueDate: "2026-03-18"}}}
	d, responder, _ := newTestDispatcher(t, false, state)

	d.HandleMessage(context.Background(), msgMentioningBot("cs101 hw please"))

	require.Len(t, responder.embeds["chan-1"], 1)
	assert.Equal(t, "Upcoming Homework", responder.embeds["chan-1"][0].Title)
}

func TestHandleMessage_AnnouncementQuery(t *testing.T) {
	state := course.State{LastAnnouncement: &course.Announcement{Title: "Midterm moved"}}
	d, responder, _ := newTestDispatcher(t, false, state)

	d.HandleMessage(context.Background(), msgMentioningBot("any cs101 news?"))

	require.Len(t, responder.embeds["chan-1"], 1)
	assert.Equal(t, "Midterm moved", responder.embeds["chan-1"][0].Title)
}

func TestHandleMessage_AddRequiresAdmin(t *testing.T) {
	d, responder, store := newTestDispatcher(t, false, course.State{})

	d.HandleMessage(context.Background(), msgMentioningBot("add cs101 here"))

	assert.Contains(t, responder.lastText("chan-1"), "Administrator")
	assert.Equal(t, 0, store.Len())
}

func TestHandleMessage_AdminAddsCurrentChannel(t *testing.T) {
	d, responder, store := newTestDispatcher(t, true, course.State{})

	d.HandleMessage(context.Background(), msgMentioningBot("add cs101"))

	require.Equal(t, 1, store.Len())
	sub, ok := store.Get(subscription.Key{ServerID: "guild-1", ChannelID: "chan-1", CourseID: "101"})
	require.True(t, ok)
	assert.Equal(t, "general", sub.ChannelName)
	assert.Equal(t, "Test Guild", sub.ServerName)
	assert.Contains(t, responder.lastText("chan-1"), "Subscribed")
}

func TestHandleMessage_AdminAddsMentionedChannel(t *testing.T) {
	d, _, store := newTestDispatcher(t, true, course.State{})

	d.HandleMessage(context.Background(), msgMentioningBot("add cs101 to <#555>"))

	_, ok := store.Get(subscription.Key{ServerID: "guild-1", ChannelID: "555", CourseID: "101"})
	assert.True(t, ok)
}

func TestHandleMessage_AddDuplicate(t *testing.T) {
	d, responder, store := newTestDispatcher(t, true, course.State{})

	d.HandleMessage(context.Background(), msgMentioningBot("add cs101"))
	d.HandleMessage(context.Background(), msgMentioningBot("add cs101"))

	assert.Equal(t, 1, store.Len())
	assert.Contains(t, responder.lastText("chan-1"), "already subscribed")
}

func TestHandleMessage_RemoveMissing(t *testing.T) {
	d, responder, _ := newTestDispatcher(t, true, course.State{})

	d.HandleMessage(context.Background(), msgMentioningBot("remove cs101"))

	assert.Contains(t, responder.lastText("chan-1"), "isn't subscribed")
}

func TestHandleMessage_RemoveExisting(t *testing.T) {
	d, responder, store := newTestDispatcher(t, true, course.State{})

	d.HandleMessage(context.Background(), msgMentioningBot("add cs101"))
	require.Equal(t, 1, store.Len())

	d.HandleMessage(context.Background(), msgMentioningBot("remove cs101"))
	assert.Equal(t, 0, store.Len())
	assert.Contains(t, responder.lastText("chan-1"), "Unsubscribed")
}

func TestHandleMessage_FallbackOnNoIntent(t *testing.T) {
	d, responder, _ := newTestDispatcher(t, false, course.State{})

	d.HandleMessage(context.Background(), msgMentioningBot("cs101 is fun"))

	assert.Contains(t, responder.lastText("chan-1"), "help")
}

func TestHandleGuildDelete_RemovesAllSubscriptions(t *testing.T) {
	d, _, store := newTestDispatcher(t, true, course.State{})

	d.HandleMessage(context.Background(), msgMentioningBot("add cs101"))
	d.HandleMessage(context.Background(), msgMentioningBot("add algo to <#9>"))
	require.Equal(t, 2, store.Len())

	d.HandleGuildDelete(context.Background(), platform.UnavailableGuild{ID: "guild-1"})
	assert.Equal(t, 0, store.Len())
}
