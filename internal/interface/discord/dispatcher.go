// Package discord interprets inbound chat messages directed at the bot
// and turns them into subscription mutations or state queries. Keyword
// precedence, first match wins: help, course resolution, add/remove for
// administrators, announcement/homework/tests query, fallback.
package discord

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/coursehub/course-herald/internal/application/fanout"
	"github.com/coursehub/course-herald/internal/application/present"
	"github.com/coursehub/course-herald/internal/domain/course"
	"github.com/coursehub/course-herald/internal/domain/shared"
	"github.com/coursehub/course-herald/internal/domain/subscription"
	platform "github.com/coursehub/course-herald/internal/infrastructure/external/discord"
)

// ══════════════════════════════════════════════════════════════════════════════
// PORTS
// ══════════════════════════════════════════════════════════════════════════════

// Responder sends replies back to the originating channel.
type Responder interface {
	SendText(ctx context.Context, channelID, text string) error
	SendEmbed(ctx context.Context, channelID string, msg fanout.ChatMessage) error
}

// Directory resolves guild data needed for subscription bookkeeping and
// permission checks.
type Directory interface {
	GetChannel(ctx context.Context, channelID string) (*platform.Channel, error)
	GetGuild(ctx context.Context, guildID string) (*platform.Guild, error)
	MemberHasAdministrator(ctx context.Context, guildID string, member *platform.Member) (bool, error)
}

// StateReader reads course state snapshots.
type StateReader interface {
	Snapshot(courseID string) (course.State, error)
}

// ══════════════════════════════════════════════════════════════════════════════
// DISPATCHER
// ══════════════════════════════════════════════════════════════════════════════

const helpText = "Mention me with a course name plus what you need:\n" +
	"• `announcement` or `news` for the latest announcement\n" +
	"• `homework` or `hw` for upcoming homework\n" +
	"• `test`, `exam` or `quiz` for upcoming assessments\n" +
	"Administrators can also `add` or `remove` a course subscription " +
	"for a channel (mention the channel, or I use the current one)."

// Dispatcher handles gateway events for the bot.
type Dispatcher struct {
	registry   *course.Registry
	matcher    course.Matcher
	classifier course.Classifier
	store      *subscription.Store
	states     StateReader
	presenter  *present.Presenter
	directory  Directory
	responder  Responder
	logger     zerolog.Logger

	mu        sync.RWMutex
	botUserID string
}

// NewDispatcher creates a command dispatcher.
func NewDispatcher(
	registry *course.Registry,
	matcher course.Matcher,
	classifier course.Classifier,
	store *subscription.Store,
	states StateReader,
	presenter *present.Presenter,
	directory Directory,
	responder Responder,
	logger zerolog.Logger,
) *Dispatcher {
	return &Dispatcher{
		registry:   registry,
		matcher:    matcher,
		classifier: classifier,
		store:      store,
		states:     states,
		presenter:  presenter,
		directory:  directory,
		responder:  responder,
		logger:     logger.With().Str("component", "commands").Logger(),
	}
}

// HandleReady records the bot's own user id from the READY event.
func (d *Dispatcher) HandleReady(ev platform.ReadyEvent) {
	d.mu.Lock()
	d.botUserID = ev.User.ID
	d.mu.Unlock()
	d.logger.Info().Str("bot_user_id", ev.User.ID).Msg("gateway ready")
}

// HandleGuildDelete bulk-removes every subscription of a guild the bot
// was evicted from.
func (d *Dispatcher) HandleGuildDelete(ctx context.Context, guild platform.UnavailableGuild) {
	removed, err := d.store.RemoveAllForServer(ctx, guild.ID)
	if err != nil {
		d.logger.Error().Err(err).Str("server_id", guild.ID).Msg("guild eviction cleanup failed")
		return
	}
	d.logger.Info().Str("server_id", guild.ID).Int("removed", removed).Msg("guild subscriptions removed")
}

// HandleMessage processes one inbound message. Messages from bots or not
// mentioning this bot are ignored.
func (d *Dispatcher) HandleMessage(ctx context.Context, msg platform.Message) {
	if msg.Author.Bot {
		return
	}

	d.mu.RLock()
	botUserID := d.botUserID
	d.mu.RUnlock()
	if botUserID == "" || !msg.MentionsUser(botUserID) {
		return
	}

	if course.IsHelp(msg.Content) {
		d.reply(ctx, msg.ChannelID, helpText)
		return
	}

	c, ok := d.matcher.MatchCourse(msg.Content)
	if !ok {
		d.reply(ctx, msg.ChannelID, "I don't recognize that course. I track: "+d.registry.Names())
		return
	}

	if mutation := course.MutationIntent(msg.Content); mutation != course.IntentNone {
		d.handleMutation(ctx, msg, c, mutation)
		return
	}

	switch d.classifier.ClassifyQuery(msg.Content) {
	case course.IntentAnnouncement:
		d.replyAnnouncement(ctx, msg.ChannelID, c)
	case course.IntentHomework:
		d.replyAssignments(ctx, msg.ChannelID, c, course.KindHomework)
	case course.IntentTests:
		d.replyAssignments(ctx, msg.ChannelID, c, course.KindTests)
	default:
		d.reply(ctx, msg.ChannelID, "Not sure what you need. Mention me with `help` for usage.")
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Subscription mutations
// ─────────────────────────────────────────────────────────────────────────────

func (d *Dispatcher) handleMutation(ctx context.Context, msg platform.Message, c course.Course, intent course.Intent) {
	admin, err := d.directory.MemberHasAdministrator(ctx, msg.GuildID, msg.Member)
	if err != nil {
		d.logger.Error().Err(err).Str("server_id", msg.GuildID).Msg("permission check failed")
		d.reply(ctx, msg.ChannelID, "I couldn't verify your permissions, try again in a bit.")
		return
	}
	if !admin {
		d.reply(ctx, msg.ChannelID, "Managing subscriptions needs the Administrator permission.")
		return
	}

	// The mutation targets the first mentioned channel, or the channel the
	// command came from.
	targetID := msg.ChannelID
	if mentioned := msg.ChannelMentions(); len(mentioned) > 0 {
		targetID = mentioned[0]
	}

	if intent == course.IntentRemove {
		key := subscription.Key{ServerID: msg.GuildID, ChannelID: targetID, CourseID: c.ID}
		if err := d.store.Remove(ctx, key); err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				d.reply(ctx, msg.ChannelID, "That channel isn't subscribed to "+c.Name+".")
				return
			}
			d.logger.Error().Err(err).Str("channel_id", targetID).Msg("subscription remove failed")
			d.reply(ctx, msg.ChannelID, "Something went wrong removing that subscription.")
			return
		}
		d.reply(ctx, msg.ChannelID, "Unsubscribed <#"+targetID+"> from "+c.Name+".")
		return
	}

	sub := subscription.Subscription{
		ServerID:   msg.GuildID,
		ChannelID:  targetID,
		CourseID:   c.ID,
		CourseName: c.Name,
	}
	if ch, err := d.directory.GetChannel(ctx, targetID); err == nil {
		sub.ChannelName = ch.Name
	}
	if g, err := d.directory.GetGuild(ctx, msg.GuildID); err == nil {
		sub.ServerName = g.Name
	}

	if _, err := d.store.Add(ctx, sub); err != nil {
		if errors.Is(err, shared.ErrAlreadyExists) {
			d.reply(ctx, msg.ChannelID, "That channel is already subscribed to "+c.Name+".")
			return
		}
		d.logger.Error().Err(err).Str("channel_id", targetID).Msg("subscription add failed")
		d.reply(ctx, msg.ChannelID, "Something went wrong adding that subscription.")
		return
	}
	d.reply(ctx, msg.ChannelID, "Subscribed <#"+targetID+"> to "+c.Name+" updates.")
}

// ─────────────────────────────────────────────────────────────────────────────
// State queries
// ─────────────────────────────────────────────────────────────────────────────

func (d *Dispatcher) replyAnnouncement(ctx context.Context, channelID string, c course.Course) {
	state, err := d.states.Snapshot(c.ID)
	if err != nil {
		d.logger.Error().Err(err).Str("course_id", c.ID).Msg("snapshot failed")
		return
	}
	d.replyEmbed(ctx, channelID, d.presenter.CurrentAnnouncementEmbed(state))
}

func (d *Dispatcher) replyAssignments(ctx context.Context, channelID string, c course.Course, kind course.AssignmentKind) {
	state, err := d.states.Snapshot(c.ID)
	if err != nil {
		d.logger.Error().Err(err).Str("course_id", c.ID).Msg("snapshot failed")
		return
	}
	d.replyEmbed(ctx, channelID, d.presenter.AssignmentListEmbed(c, kind, state))
}

// ─────────────────────────────────────────────────────────────────────────────
// Reply plumbing
// ─────────────────────────────────────────────────────────────────────────────

func (d *Dispatcher) reply(ctx context.Context, channelID, text string) {
	if err := d.responder.SendText(ctx, channelID, text); err != nil {
		d.logger.Error().Err(err).Str("channel_id", channelID).Msg("reply failed")
	}
}

func (d *Dispatcher) replyEmbed(ctx context.Context, channelID string, msg fanout.ChatMessage) {
	if err := d.responder.SendEmbed(ctx, channelID, msg); err != nil {
		d.logger.Error().Err(err).Str("channel_id", channelID).Msg("reply failed")
	}
}
