// Package mentions scans recent microblog mentions of the bot and answers
// each qualifying mention exactly once. Mentions are ephemeral: processed
// within a look-back window, never persisted.
package mentions

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/coursehub/course-herald/internal/application/present"
	"github.com/coursehub/course-herald/internal/domain/course"
)

// Mention is one microblog post directed at the bot.
type Mention struct {
	ID              string
	Text            string
	AuthorID        string
	AuthorUsername  string
	InReplyToUserID string
	CreatedAt       time.Time
}

// Searcher fetches recent mentions of the bot's handle, most-recent-first.
type Searcher interface {
	RecentMentions(ctx context.Context) ([]Mention, error)
}

// Replier posts a reply to a specific status.
type Replier interface {
	ReplyStatus(ctx context.Context, text, inReplyTo string) error
}

// StateReader reads course state snapshots.
type StateReader interface {
	Snapshot(courseID string) (course.State, error)
}

// Scanner walks recent mentions once per poll tick.
type Scanner struct {
	searcher   Searcher
	replier    Replier
	states     StateReader
	matcher    course.Matcher
	classifier course.Classifier
	presenter  *present.Presenter
	logger     zerolog.Logger

	// botUserID keeps only direct replies/tags of the bot's own account,
	// which filters out retweets.
	botUserID string
	window    time.Duration
	now       func() time.Time
}

// Config configures the scanner.
type Config struct {
	BotUserID string
	Window    time.Duration
}

// NewScanner creates a mention scanner.
func NewScanner(
	searcher Searcher,
	replier Replier,
	states StateReader,
	matcher course.Matcher,
	classifier course.Classifier,
	presenter *present.Presenter,
	cfg Config,
	logger zerolog.Logger,
) *Scanner {
	if cfg.Window <= 0 {
		cfg.Window = 5 * time.Minute
	}
	return &Scanner{
		searcher:   searcher,
		replier:    replier,
		states:     states,
		matcher:    matcher,
		classifier: classifier,
		presenter:  presenter,
		logger:     logger.With().Str("component", "mentions").Logger(),
		botUserID:  cfg.BotUserID,
		window:     cfg.Window,
		now:        time.Now,
	}
}

// Scan fetches mentions since the look-back window and sends exactly one
// reply per qualifying mention. A reply failure is logged and does not
// stop the walk; a fetch failure aborts the scan for this tick only.
func (s *Scanner) Scan(ctx context.Context) error {
	items, err := s.searcher.RecentMentions(ctx)
	if err != nil {
		return fmt.Errorf("mention scan: %w", err)
	}

	cutoff := s.now().Add(-s.window)
	replied := 0
	for _, m := range items {
		// The search result is most-recent-first: the first mention
		// outside the window ends the walk.
		if !m.CreatedAt.After(cutoff) {
			break
		}
		if m.InReplyToUserID != s.botUserID {
			continue
		}

		c, ok := s.matcher.MatchCourse(m.Text)
		if !ok {
			continue // unknown course: no reply, no error
		}
		intent := s.classifier.ClassifyQuery(m.Text)
		if intent == course.IntentNone {
			continue
		}

		state, err := s.states.Snapshot(c.ID)
		if err != nil {
			s.logger.Warn().Err(err).Str("course_id", c.ID).Msg("snapshot failed for mention")
			continue
		}

		reply := s.presenter.MentionReply(m.AuthorUsername, intent, state)
		if reply == "" {
			continue
		}
		if err := s.replier.ReplyStatus(ctx, reply, m.ID); err != nil {
			s.logger.Error().Err(err).Str("mention_id", m.ID).Msg("mention reply failed")
			continue
		}
		replied++
	}

	s.logger.Debug().Int("mentions", len(items)).Int("replied", replied).Msg("mention scan complete")
	return nil
}
