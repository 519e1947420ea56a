// Package fanout routes new-item events to their destinations: all
// subscribed chat channels of a course for scheduled pushes, a single
// channel for direct query replies, and the microblog feed. A failure
// sending to one destination never prevents delivery to the others.
package fanout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/coursehub/course-herald/internal/domain/shared"
	"github.com/coursehub/course-herald/internal/domain/subscription"
)

// ChatMessage is a platform-neutral rich message. The chat adapter renders
// it as an embed.
type ChatMessage struct {
	Title     string
	URL       string
	Color     int
	Author    string
	Fields    []MessageField
	Timestamp time.Time
}

// MessageField is one name/value pair of a rich message.
type MessageField struct {
	Name  string
	Value string
}

// ChatSender sends a rich message to a chat channel by id.
type ChatSender interface {
	SendEmbed(ctx context.Context, channelID string, msg ChatMessage) error
}

// StatusPoster posts a status to the microblog feed, optionally as a reply.
type StatusPoster interface {
	PostStatus(ctx context.Context, text string, inReplyTo string) error
}

// Subscribers resolves the channels subscribed to a course.
type Subscribers interface {
	FindSubscribers(courseID string) []subscription.Destination
}

// Result reports the outcome of a fan-out batch.
type Result struct {
	// Attempted is the number of chat destinations resolved.
	Attempted int

	// Delivered is the number of chat destinations that accepted the send.
	Delivered int

	// StatusPosted reports whether the microblog leg succeeded.
	StatusPosted bool

	// Err joins every per-destination failure.
	Err error
}

// AnyDelivered reports whether the item reached at least one outbound
// destination. The poll job commits an item only when this holds (or when
// there were no destinations at all), so a total delivery failure retries
// next tick without duplicating anything.
func (r Result) AnyDelivered() bool {
	return r.Delivered > 0 || r.StatusPosted
}

// ShouldCommit reports whether the item counts as dispatched.
func (r Result) ShouldCommit() bool {
	return r.Attempted == 0 && r.Err == nil || r.AnyDelivered()
}

// Router resolves destinations and dispatches formatted output.
type Router struct {
	chat    ChatSender
	status  StatusPoster // nil when the microblog leg is disabled
	subs    Subscribers
	logger  zerolog.Logger
	timeout time.Duration
}

// NewRouter creates a fan-out router. status may be nil to disable the
// microblog leg.
func NewRouter(chat ChatSender, status StatusPoster, subs Subscribers, logger zerolog.Logger) *Router {
	return &Router{
		chat:   chat,
		status: status,
		subs:   subs,
		logger: logger.With().Str("component", "fanout").Logger(),
	}
}

// Push delivers a new item to every channel subscribed to the course and
// posts it to the microblog feed. Per-destination failures are isolated,
// logged and collected; the batch never aborts early.
func (r *Router) Push(ctx context.Context, courseID string, msg ChatMessage, statusText string) Result {
	batchID := uuid.NewString()
	destinations := r.subs.FindSubscribers(courseID)

	result := Result{Attempted: len(destinations)}
	var errs []error

	for _, dest := range destinations {
		if err := r.chat.SendEmbed(ctx, dest.ChannelID, msg); err != nil {
			wrapped := shared.WrapError("fanout", "Push", shared.ErrDispatch,
				fmt.Sprintf("channel %s", dest.ChannelID), err)
			errs = append(errs, wrapped)
			r.logger.Error().
				Str("batch_id", batchID).
				Str("course_id", courseID).
				Str("server_id", dest.ServerID).
				Str("channel_id", dest.ChannelID).
				Err(err).
				Msg("chat delivery failed")
			continue
		}
		result.Delivered++
	}

	if r.status != nil && statusText != "" {
		if err := r.status.PostStatus(ctx, statusText, ""); err != nil {
			errs = append(errs, shared.WrapError("fanout", "Push", shared.ErrDispatch, "microblog status", err))
			r.logger.Error().
				Str("batch_id", batchID).
				Str("course_id", courseID).
				Err(err).
				Msg("microblog delivery failed")
		} else {
			result.StatusPosted = true
		}
	}

	result.Err = errors.Join(errs...)
	r.logger.Debug().
		Str("batch_id", batchID).
		Str("course_id", courseID).
		Int("attempted", result.Attempted).
		Int("delivered", result.Delivered).
		Bool("status_posted", result.StatusPosted).
		Msg("fan-out batch complete")
	return result
}

// Reply sends a rich message to one explicit channel (direct query reply).
func (r *Router) Reply(ctx context.Context, channelID string, msg ChatMessage) error {
	if err := r.chat.SendEmbed(ctx, channelID, msg); err != nil {
		return shared.WrapError("fanout", "Reply", shared.ErrDispatch,
			fmt.Sprintf("channel %s", channelID), err)
	}
	return nil
}

// ReplyStatus posts a microblog reply to a specific status.
func (r *Router) ReplyStatus(ctx context.Context, text, inReplyTo string) error {
	if r.status == nil {
		return nil
	}
	if err := r.status.PostStatus(ctx, text, inReplyTo); err != nil {
		return shared.WrapError("fanout", "ReplyStatus", shared.ErrDispatch, "microblog reply", err)
	}
	return nil
}
